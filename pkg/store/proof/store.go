/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package proof

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
	nameSpace = "retirementproof"

	ownerTag = "owner"
)

var logger = log.New("proof-store")

// New creates the db implementation of the retirement proof registry.
func New(provider storage.Provider) (*Store, error) {
	store, err := storeutil.Open(provider, nameSpace, storeutil.TagGroup{ownerTag})
	if err != nil {
		return nil, fmt.Errorf("open retirement proof store: %w", err)
	}

	return &Store{
		store:     store,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
	}, nil
}

// Store is the db implementation of the retirement proof registry.
type Store struct {
	store     storage.Store
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

// Put stores the given retirement proof.
func (s *Store) Put(proof *ledger.RetirementProof) error {
	proofBytes, err := s.marshal(proof)
	if err != nil {
		return fmt.Errorf("marshal retirement proof: %w", err)
	}

	err = s.store.Put(proof.ID, proofBytes, storage.Tag{Name: ownerTag, Value: ownerTagValue(proof.RetiredBy)})
	if err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store retirement proof [%s]: %w", proof.ID, err))
	}

	logger.Debug("Stored retirement proof", logfields.WithProofID(proof.ID),
		logfields.WithTokenID(proof.TokenID))

	return nil
}

// Get retrieves the retirement proof with the given ID.
func (s *Store) Get(proofID string) (*ledger.RetirementProof, error) {
	proofBytes, err := s.store.Get(proofID)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ledgererrors.ErrProofNotFound
		}

		return nil, ledgererrors.NewTransient(fmt.Errorf("get retirement proof [%s]: %w", proofID, err))
	}

	proof := &ledger.RetirementProof{}

	if err := s.unmarshal(proofBytes, proof); err != nil {
		return nil, fmt.Errorf("unmarshal retirement proof [%s]: %w", proofID, err)
	}

	return proof, nil
}

// ownerTagValue encodes the account into a storage-safe tag value, since
// account identifiers may contain characters the tag syntax reserves.
func ownerTagValue(owner ledger.Account) string {
	return base64.RawURLEncoding.EncodeToString([]byte(owner))
}
