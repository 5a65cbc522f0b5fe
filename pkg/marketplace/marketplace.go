/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package marketplace implements the escrow marketplace: a listed token
// is held by its listing until it is bought or the listing is cancelled.
package marketplace

import (
	"fmt"
	"sync"
	"time"

	"github.com/bluele/gcache"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/event"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/observability/metrics"
)

var logger = log.New("marketplace")

const (
	defaultCacheSize       = 100
	defaultCacheExpiration = 10 * time.Second
)

type credentialStore interface {
	Put(token *ledger.CredentialToken) error
	Get(tokenID string) (*ledger.CredentialToken, error)
	Delete(tokenID string) error
}

type listingStore interface {
	Put(listing *ledger.Listing) error
	Get(listingID string) (*ledger.Listing, error)
	Delete(listingID string) error
	ActiveIDs() ([]string, error)
}

type balanceStore interface {
	Credit(account ledger.Account, amount uint64) error
}

type eventPublisher interface {
	Publish(topic string, evt interface{}) error
}

// Providers contains the dependencies of the marketplace.
//
// TokenLock serializes every operation that reads and then consumes or
// transfers a credential token. All services sharing a credential store
// must be given the same lock, otherwise a concurrent retire and list of
// the same token could both pass their ownership checks. When nil, the
// marketplace uses a private mutex.
type Providers struct {
	CredentialStore credentialStore
	ListingStore    listingStore
	BalanceStore    balanceStore
	EventPublisher  eventPublisher
	Metrics         metrics.Metrics
	TokenLock       sync.Locker
}

// Config holds the marketplace configuration.
type Config struct {
	CacheSize       int
	CacheExpiration time.Duration
}

// Marketplace manages listings of credential tokens.
type Marketplace struct {
	*Providers

	listingCache gcache.Cache
	lock         sync.Locker
}

// New returns a new marketplace.
func New(cfg Config, providers *Providers) *Marketplace {
	lock := providers.TokenLock
	if lock == nil {
		lock = &sync.Mutex{}
	}

	m := &Marketplace{
		Providers: providers,
		lock:      lock,
	}

	cacheSize := cfg.CacheSize

	if cacheSize == 0 {
		cacheSize = defaultCacheSize
	}

	cacheExpiration := cfg.CacheExpiration

	if cacheExpiration == 0 {
		cacheExpiration = defaultCacheExpiration
	}

	m.listingCache = gcache.New(cacheSize).ARC().
		Expiration(cacheExpiration).
		LoaderFunc(func(i interface{}) (interface{}, error) {
			return m.ListingStore.Get(i.(string))
		}).Build()

	return m
}

// List wraps the seller's token into a new listing and appends it to the
// active index. The token is held in escrow by the listing until the
// listing is bought or cancelled. A price of zero is permitted.
func (m *Marketplace) List(seller ledger.Account, tokenID string, price uint64) (string, error) {
	startTime := time.Now()

	defer func() {
		m.Metrics.ListTime(time.Since(startTime))
	}()

	m.lock.Lock()
	defer m.lock.Unlock()

	token, err := m.CredentialStore.Get(tokenID)
	if err != nil {
		return "", fmt.Errorf("get credential token [%s]: %w", tokenID, err)
	}

	if token.Owner != seller {
		return "", fmt.Errorf("token [%s] is not owned by [%s]: %w", tokenID, seller, errors.ErrNotOwner)
	}

	listing := &ledger.Listing{
		ID:      ledger.NewID(),
		TokenID: tokenID,
		Token:   token,
		Price:   price,
		Seller:  seller,
	}

	if err := m.CredentialStore.Delete(tokenID); err != nil {
		return "", fmt.Errorf("move credential token [%s] into escrow: %w", tokenID, err)
	}

	if err := m.ListingStore.Put(listing); err != nil {
		m.restoreToken(token)

		return "", fmt.Errorf("store listing: %w", err)
	}

	if err := m.EventPublisher.Publish(event.ListingCreatedTopic, &event.ListingCreated{
		ListingID: listing.ID,
		TokenID:   tokenID,
		Price:     price,
		Seller:    string(seller),
	}); err != nil {
		logger.Warn("Error publishing listing-created event", log.WithError(err),
			logfields.WithListingID(listing.ID))
	}

	m.Metrics.IncrementListingCount()

	logger.Info("Created listing", logfields.WithListingID(listing.ID),
		logfields.WithTokenID(tokenID), logfields.WithPrice(price))

	return listing.ID, nil
}

// Buy transfers the listed token to the buyer and the payment to the
// seller. The payment must match the listing price exactly. The listing
// is removed from the active index before any transfer so that a failed
// transfer can never leave a spendable index entry.
func (m *Marketplace) Buy(buyer ledger.Account, listingID string, payment *ledger.Payment) error {
	startTime := time.Now()

	defer func() {
		m.Metrics.BuyTime(time.Since(startTime))
	}()

	m.lock.Lock()
	defer m.lock.Unlock()

	listing, err := m.ListingStore.Get(listingID)
	if err != nil {
		return fmt.Errorf("get listing [%s]: %w", listingID, err)
	}

	if payment == nil || payment.Amount != listing.Price {
		return fmt.Errorf("listing [%s] has price %d: %w", listingID, listing.Price,
			errors.ErrIncorrectPaymentAmount)
	}

	if err := m.ListingStore.Delete(listingID); err != nil {
		return fmt.Errorf("delete listing [%s]: %w", listingID, err)
	}

	m.listingCache.Remove(listingID)

	// Transfer a copy so that a rollback restores the listing with the
	// escrowed token still owned by the seller.
	token := *listing.Token
	token.Owner = buyer

	if err := m.CredentialStore.Put(&token); err != nil {
		m.restoreListing(listing)

		return fmt.Errorf("transfer credential token [%s] to buyer: %w", token.ID, err)
	}

	if err := m.BalanceStore.Credit(listing.Seller, listing.Price); err != nil {
		m.revokeTransfer(token.ID)
		m.restoreListing(listing)

		return fmt.Errorf("credit seller [%s] for listing [%s]: %w", listing.Seller, listingID, err)
	}

	if err := m.EventPublisher.Publish(event.ItemSoldTopic, &event.ItemSold{
		ListingID: listingID,
		TokenID:   token.ID,
		Price:     listing.Price,
		Seller:    string(listing.Seller),
		Buyer:     string(buyer),
	}); err != nil {
		logger.Warn("Error publishing item-sold event", log.WithError(err),
			logfields.WithListingID(listingID))
	}

	m.Metrics.IncrementSaleCount()

	logger.Info("Sold listing", logfields.WithListingID(listingID),
		logfields.WithBuyer(string(buyer)), logfields.WithPrice(listing.Price))

	return nil
}

// Cancel removes the caller's listing and returns the wrapped token to
// the seller.
func (m *Marketplace) Cancel(caller ledger.Account, listingID string) error {
	startTime := time.Now()

	defer func() {
		m.Metrics.CancelTime(time.Since(startTime))
	}()

	m.lock.Lock()
	defer m.lock.Unlock()

	listing, err := m.ListingStore.Get(listingID)
	if err != nil {
		return fmt.Errorf("get listing [%s]: %w", listingID, err)
	}

	if listing.Seller != caller {
		return fmt.Errorf("listing [%s] was not created by [%s]: %w", listingID, caller,
			errors.ErrNotSeller)
	}

	if err := m.ListingStore.Delete(listingID); err != nil {
		return fmt.Errorf("delete listing [%s]: %w", listingID, err)
	}

	m.listingCache.Remove(listingID)

	token := *listing.Token
	token.Owner = listing.Seller

	if err := m.CredentialStore.Put(&token); err != nil {
		m.restoreListing(listing)

		return fmt.Errorf("return credential token [%s] to seller: %w", token.ID, err)
	}

	if err := m.EventPublisher.Publish(event.ListingCancelledTopic, &event.ListingCancelled{
		ListingID: listingID,
		TokenID:   token.ID,
		Seller:    string(listing.Seller),
	}); err != nil {
		logger.Warn("Error publishing listing-cancelled event", log.WithError(err),
			logfields.WithListingID(listingID))
	}

	m.Metrics.IncrementCancellationCount()

	logger.Info("Cancelled listing", logfields.WithListingID(listingID),
		logfields.WithSeller(string(caller)))

	return nil
}

// ActiveListingIDs returns a snapshot of the active listing IDs. The
// index carries identities only; per-listing detail is fetched with
// Listing.
func (m *Marketplace) ActiveListingIDs() ([]string, error) {
	return m.ListingStore.ActiveIDs()
}

// Listing returns the detail of the given listing. Reads go through a
// short-lived cache since a listing is immutable while active.
func (m *Marketplace) Listing(listingID string) (*ledger.Listing, error) {
	listing, err := m.listingCache.Get(listingID)
	if err != nil {
		return nil, fmt.Errorf("get listing [%s]: %w", listingID, err)
	}

	return listing.(*ledger.Listing), nil
}

func (m *Marketplace) restoreToken(token *ledger.CredentialToken) {
	if err := m.CredentialStore.Put(token); err != nil {
		logger.Error("Error restoring credential token while rolling back",
			log.WithError(err), logfields.WithTokenID(token.ID))
	}
}

func (m *Marketplace) restoreListing(listing *ledger.Listing) {
	if err := m.ListingStore.Put(listing); err != nil {
		logger.Error("Error restoring listing while rolling back",
			log.WithError(err), logfields.WithListingID(listing.ID))
	}
}

// revokeTransfer takes back a token handed to the buyer by a sale that
// could not be completed.
func (m *Marketplace) revokeTransfer(tokenID string) {
	if err := m.CredentialStore.Delete(tokenID); err != nil {
		logger.Error("Error revoking credential token transfer while rolling back sale",
			log.WithError(err), logfields.WithTokenID(tokenID))
	}
}
