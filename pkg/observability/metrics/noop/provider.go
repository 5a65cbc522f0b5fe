/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package noop

import (
	"time"

	"github.com/trustbloc/creditledger/pkg/observability/metrics"
)

// Provider implements a no-op metrics provider.
type Provider struct{}

// NewProvider creates a new instance of the no-op metrics provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Create does nothing.
func (p *Provider) Create() error {
	return nil
}

// Destroy does nothing.
func (p *Provider) Destroy() error {
	return nil
}

// Metrics returns the supported metrics.
func (p *Provider) Metrics() metrics.Metrics {
	return &NoOpMetrics{}
}

// NoOpMetrics provides a default no-op implementation of the Metrics interface.
type NoOpMetrics struct{}

// MintTime records the time it takes to mint a credential token.
func (m *NoOpMetrics) MintTime(value time.Duration) {}

// RetireTime records the time it takes to retire a credential token.
func (m *NoOpMetrics) RetireTime(value time.Duration) {}

// FreezeProofTime records the time it takes to freeze a retirement proof.
func (m *NoOpMetrics) FreezeProofTime(value time.Duration) {}

// IncrementMintCount increments the number of tokens minted.
func (m *NoOpMetrics) IncrementMintCount() {}

// IncrementRetireCount increments the number of tokens retired.
func (m *NoOpMetrics) IncrementRetireCount() {}

// ListTime records the time it takes to list a token.
func (m *NoOpMetrics) ListTime(value time.Duration) {}

// BuyTime records the time it takes to buy a listed token.
func (m *NoOpMetrics) BuyTime(value time.Duration) {}

// CancelTime records the time it takes to cancel a listing.
func (m *NoOpMetrics) CancelTime(value time.Duration) {}

// IncrementListingCount increments the number of listings created.
func (m *NoOpMetrics) IncrementListingCount() {}

// IncrementSaleCount increments the number of listings sold.
func (m *NoOpMetrics) IncrementSaleCount() {}

// IncrementCancellationCount increments the number of listings cancelled.
func (m *NoOpMetrics) IncrementCancellationCount() {}

// BridgeTime records the time it takes to retire-and-bridge a token.
func (m *NoOpMetrics) BridgeTime(value time.Duration) {}

// IncrementBridgeCount increments the number of tokens bridged.
func (m *NoOpMetrics) IncrementBridgeCount() {}

// AddBridgeDustBurned adds to the total dust burned by truncation.
func (m *NoOpMetrics) AddBridgeDustBurned(amount uint64) {}

// SetFungibleSupply sets the current fungible supply.
func (m *NoOpMetrics) SetFungibleSupply(supply uint64) {}
