/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/trustbloc/creditledger/pkg/observability/metrics"
)

var (
	createOnce sync.Once       //nolint:gochecknoglobals
	instance   metrics.Metrics //nolint:gochecknoglobals
)

// Provider implements a Prometheus metrics provider.
type Provider struct{}

// NewProvider creates a new instance of the Prometheus metrics provider.
func NewProvider() *Provider {
	return &Provider{}
}

// Create does nothing. The metrics endpoint is served by the hosting
// HTTP server.
func (p *Provider) Create() error {
	return nil
}

// Destroy does nothing.
func (p *Provider) Destroy() error {
	return nil
}

// Metrics returns the supported metrics.
func (p *Provider) Metrics() metrics.Metrics {
	return GetMetrics()
}

// GetMetrics returns the metrics implementation. The metrics are
// registered with the default Prometheus registerer exactly once.
func GetMetrics() metrics.Metrics {
	createOnce.Do(func() {
		instance = NewMetrics()
	})

	return instance
}

// PromMetrics manages the Prometheus metrics for creditledger.
type PromMetrics struct {
	registryMintTime        prometheus.Histogram
	registryRetireTime      prometheus.Histogram
	registryFreezeProofTime prometheus.Histogram
	registryMintCount       prometheus.Counter
	registryRetireCount     prometheus.Counter

	marketplaceListTime          prometheus.Histogram
	marketplaceBuyTime           prometheus.Histogram
	marketplaceCancelTime        prometheus.Histogram
	marketplaceListingCount      prometheus.Counter
	marketplaceSaleCount         prometheus.Counter
	marketplaceCancellationCount prometheus.Counter

	bridgeTime           prometheus.Histogram
	bridgeCount          prometheus.Counter
	bridgeDustBurned     prometheus.Counter
	bridgeFungibleSupply prometheus.Gauge
}

// NewMetrics creates the Prometheus metrics and registers them with the
// default registerer.
func NewMetrics() metrics.Metrics {
	m := &PromMetrics{
		registryMintTime: newHistogram(metrics.Registry, metrics.RegistryMintTimeMetric,
			"The time (in seconds) that it takes to mint a credential token.", nil),
		registryRetireTime: newHistogram(metrics.Registry, metrics.RegistryRetireTimeMetric,
			"The time (in seconds) that it takes to retire a credential token.", nil),
		registryFreezeProofTime: newHistogram(metrics.Registry, metrics.RegistryFreezeProofTimeMetric,
			"The time (in seconds) that it takes to freeze a retirement proof.", nil),
		registryMintCount: newCounter(metrics.Registry, metrics.RegistryMintCountMetric,
			"The number of credential tokens minted.", nil),
		registryRetireCount: newCounter(metrics.Registry, metrics.RegistryRetireCountMetric,
			"The number of credential tokens retired.", nil),
		marketplaceListTime: newHistogram(metrics.Marketplace, metrics.MarketplaceListTimeMetric,
			"The time (in seconds) that it takes to list a credential token.", nil),
		marketplaceBuyTime: newHistogram(metrics.Marketplace, metrics.MarketplaceBuyTimeMetric,
			"The time (in seconds) that it takes to buy a listed credential token.", nil),
		marketplaceCancelTime: newHistogram(metrics.Marketplace, metrics.MarketplaceCancelTimeMetric,
			"The time (in seconds) that it takes to cancel a listing.", nil),
		marketplaceListingCount: newCounter(metrics.Marketplace, metrics.MarketplaceListingCountMetric,
			"The number of listings created.", nil),
		marketplaceSaleCount: newCounter(metrics.Marketplace, metrics.MarketplaceSaleCountMetric,
			"The number of listings sold.", nil),
		marketplaceCancellationCount: newCounter(metrics.Marketplace, metrics.MarketplaceCancellationCountMetric,
			"The number of listings cancelled.", nil),
		bridgeTime: newHistogram(metrics.Bridge, metrics.BridgeTimeMetric,
			"The time (in seconds) that it takes to retire-and-bridge a credential token.", nil),
		bridgeCount: newCounter(metrics.Bridge, metrics.BridgeCountMetric,
			"The number of credential tokens bridged.", nil),
		bridgeDustBurned: newCounter(metrics.Bridge, metrics.BridgeDustBurnedMetric,
			"The total fungible dust burned by bridging truncation.", nil),
		bridgeFungibleSupply: newGauge(metrics.Bridge, metrics.BridgeFungibleSupplyMetric,
			"The current supply of the fungible bridged-credit unit.", nil),
	}

	prometheus.MustRegister(
		m.registryMintTime, m.registryRetireTime, m.registryFreezeProofTime,
		m.registryMintCount, m.registryRetireCount,
		m.marketplaceListTime, m.marketplaceBuyTime, m.marketplaceCancelTime,
		m.marketplaceListingCount, m.marketplaceSaleCount, m.marketplaceCancellationCount,
		m.bridgeTime, m.bridgeCount, m.bridgeDustBurned, m.bridgeFungibleSupply,
	)

	return m
}

// MintTime records the time it takes to mint a credential token.
func (m *PromMetrics) MintTime(value time.Duration) {
	m.registryMintTime.Observe(value.Seconds())
}

// RetireTime records the time it takes to retire a credential token.
func (m *PromMetrics) RetireTime(value time.Duration) {
	m.registryRetireTime.Observe(value.Seconds())
}

// FreezeProofTime records the time it takes to freeze a retirement proof.
func (m *PromMetrics) FreezeProofTime(value time.Duration) {
	m.registryFreezeProofTime.Observe(value.Seconds())
}

// IncrementMintCount increments the number of tokens minted.
func (m *PromMetrics) IncrementMintCount() {
	m.registryMintCount.Inc()
}

// IncrementRetireCount increments the number of tokens retired.
func (m *PromMetrics) IncrementRetireCount() {
	m.registryRetireCount.Inc()
}

// ListTime records the time it takes to list a token.
func (m *PromMetrics) ListTime(value time.Duration) {
	m.marketplaceListTime.Observe(value.Seconds())
}

// BuyTime records the time it takes to buy a listed token.
func (m *PromMetrics) BuyTime(value time.Duration) {
	m.marketplaceBuyTime.Observe(value.Seconds())
}

// CancelTime records the time it takes to cancel a listing.
func (m *PromMetrics) CancelTime(value time.Duration) {
	m.marketplaceCancelTime.Observe(value.Seconds())
}

// IncrementListingCount increments the number of listings created.
func (m *PromMetrics) IncrementListingCount() {
	m.marketplaceListingCount.Inc()
}

// IncrementSaleCount increments the number of listings sold.
func (m *PromMetrics) IncrementSaleCount() {
	m.marketplaceSaleCount.Inc()
}

// IncrementCancellationCount increments the number of listings cancelled.
func (m *PromMetrics) IncrementCancellationCount() {
	m.marketplaceCancellationCount.Inc()
}

// BridgeTime records the time it takes to retire-and-bridge a token.
func (m *PromMetrics) BridgeTime(value time.Duration) {
	m.bridgeTime.Observe(value.Seconds())
}

// IncrementBridgeCount increments the number of tokens bridged.
func (m *PromMetrics) IncrementBridgeCount() {
	m.bridgeCount.Inc()
}

// AddBridgeDustBurned adds to the total dust burned by truncation.
func (m *PromMetrics) AddBridgeDustBurned(amount uint64) {
	m.bridgeDustBurned.Add(float64(amount))
}

// SetFungibleSupply sets the current fungible supply.
func (m *PromMetrics) SetFungibleSupply(supply uint64) {
	m.bridgeFungibleSupply.Set(float64(supply))
}

func newCounter(subsystem, name, help string, labels prometheus.Labels) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func newGauge(subsystem, name, help string, labels prometheus.Labels) prometheus.Gauge {
	return prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}

func newHistogram(subsystem, name, help string, labels prometheus.Labels) prometheus.Histogram {
	return prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   metrics.Namespace,
		Subsystem:   subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: labels,
	})
}
