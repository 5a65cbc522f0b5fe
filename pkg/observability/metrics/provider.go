/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package metrics

import (
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"
)

// Logger used by the metrics providers.
var Logger = log.New("metrics-provider")

// Constants used by the metrics providers.
const (
	// Namespace Organization namespace.
	Namespace = "creditledger"

	// Registry Credit registry.
	Registry                      = "registry"
	RegistryMintTimeMetric        = "mint_seconds"
	RegistryRetireTimeMetric      = "retire_seconds"
	RegistryFreezeProofTimeMetric = "freeze_proof_seconds"
	RegistryMintCountMetric       = "mint_count"
	RegistryRetireCountMetric     = "retire_count"

	// Marketplace Marketplace escrow.
	Marketplace                        = "marketplace"
	MarketplaceListTimeMetric          = "list_seconds"
	MarketplaceBuyTimeMetric           = "buy_seconds"
	MarketplaceCancelTimeMetric        = "cancel_seconds"
	MarketplaceListingCountMetric      = "listing_count"
	MarketplaceSaleCountMetric         = "sale_count"
	MarketplaceCancellationCountMetric = "cancellation_count"

	// Bridge Bridge publisher.
	Bridge                     = "bridge"
	BridgeTimeMetric           = "bridge_seconds"
	BridgeCountMetric          = "bridge_count"
	BridgeDustBurnedMetric     = "dust_burned_total"
	BridgeFungibleSupplyMetric = "fungible_supply"
)

// Provider is an interface for metrics provider.
type Provider interface {
	// Create creates a metrics provider instance
	Create() error
	// Destroy destroys the metrics provider instance
	Destroy() error
	// Metrics providers metrics
	Metrics() Metrics
}

// Metrics is an interface for the metrics to be supported by the provider.
type Metrics interface {
	MintTime(value time.Duration)
	RetireTime(value time.Duration)
	FreezeProofTime(value time.Duration)
	IncrementMintCount()
	IncrementRetireCount()

	ListTime(value time.Duration)
	BuyTime(value time.Duration)
	CancelTime(value time.Duration)
	IncrementListingCount()
	IncrementSaleCount()
	IncrementCancellationCount()

	BridgeTime(value time.Duration)
	IncrementBridgeCount()
	AddBridgeDustBurned(amount uint64)
	SetFungibleSupply(supply uint64)
}
