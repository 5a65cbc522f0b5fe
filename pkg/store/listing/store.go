/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package listing

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/store/storeutil"
)

const (
	nameSpace = "listing"

	sellerTag = "seller"

	indexKey = "active-index"
)

var logger = log.New("listing-store")

// index is the insertion-ordered collection of active listing IDs. The
// per-listing detail lives in separate documents; the index holds only
// identities so that enumeration stays cheap to read.
type index struct {
	IDs []string `json:"ids"`
}

// New creates the db implementation of the listing registry.
func New(provider storage.Provider) (*Store, error) {
	store, err := storeutil.Open(provider, nameSpace, storeutil.TagGroup{sellerTag})
	if err != nil {
		return nil, fmt.Errorf("open listing store: %w", err)
	}

	return &Store{
		store:     store,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
	}, nil
}

// Store is the db implementation of the listing registry.
type Store struct {
	store     storage.Store
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

// Put stores the given listing and appends its ID to the active index.
func (s *Store) Put(listing *ledger.Listing) error {
	listingBytes, err := s.marshal(listing)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}

	idx, err := s.getIndex()
	if err != nil {
		return err
	}

	idx.IDs = append(idx.IDs, listing.ID)

	indexBytes, err := s.marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal listing index: %w", err)
	}

	err = s.store.Batch([]storage.Operation{
		{
			Key:   listing.ID,
			Value: listingBytes,
			Tags:  []storage.Tag{{Name: sellerTag, Value: sellerTagValue(listing.Seller)}},
		},
		{
			Key:   indexKey,
			Value: indexBytes,
		},
	})
	if err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store listing [%s]: %w", listing.ID, err))
	}

	logger.Debug("Stored listing", logfields.WithListingID(listing.ID),
		logfields.WithSeller(string(listing.Seller)), logfields.WithPrice(listing.Price))

	return nil
}

// Get retrieves the listing with the given ID.
func (s *Store) Get(listingID string) (*ledger.Listing, error) {
	listingBytes, err := s.store.Get(listingID)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ledgererrors.ErrListingNotFound
		}

		return nil, ledgererrors.NewTransient(fmt.Errorf("get listing [%s]: %w", listingID, err))
	}

	listing := &ledger.Listing{}

	if err := s.unmarshal(listingBytes, listing); err != nil {
		return nil, fmt.Errorf("unmarshal listing [%s]: %w", listingID, err)
	}

	return listing, nil
}

// Delete removes the listing with the given ID from the active index and
// then deletes the listing document. The index entry is always removed
// before the document so that enumeration never returns a stale ID.
func (s *Store) Delete(listingID string) error {
	idx, err := s.getIndex()
	if err != nil {
		return err
	}

	pos := -1

	for i, id := range idx.IDs {
		if id == listingID {
			pos = i

			break
		}
	}

	if pos == -1 {
		return ledgererrors.ErrListingNotFound
	}

	// Swap-remove: order of the remaining entries may change.
	idx.IDs[pos] = idx.IDs[len(idx.IDs)-1]
	idx.IDs = idx.IDs[:len(idx.IDs)-1]

	indexBytes, err := s.marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal listing index: %w", err)
	}

	err = s.store.Batch([]storage.Operation{
		{
			Key:   indexKey,
			Value: indexBytes,
		},
		{
			Key:   listingID,
			Value: nil,
		},
	})
	if err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("delete listing [%s]: %w", listingID, err))
	}

	logger.Debug("Deleted listing", logfields.WithListingID(listingID))

	return nil
}

// ActiveIDs returns a snapshot of the active listing IDs at call time.
func (s *Store) ActiveIDs() ([]string, error) {
	idx, err := s.getIndex()
	if err != nil {
		return nil, err
	}

	return idx.IDs, nil
}

func (s *Store) getIndex() (*index, error) {
	indexBytes, err := s.store.Get(indexKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return &index{}, nil
		}

		return nil, ledgererrors.NewTransient(fmt.Errorf("get listing index: %w", err))
	}

	idx := &index{}

	if err := s.unmarshal(indexBytes, idx); err != nil {
		return nil, fmt.Errorf("unmarshal listing index: %w", err)
	}

	return idx, nil
}

// sellerTagValue encodes the account into a storage-safe tag value, since
// account identifiers may contain characters the tag syntax reserves.
func sellerTagValue(seller ledger.Account) string {
	return base64.RawURLEncoding.EncodeToString([]byte(seller))
}
