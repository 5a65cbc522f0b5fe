/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package verification

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/store/storeutil"
)

const nameSpace = "verification"

var logger = log.New("verification-store")

// New creates the db implementation of the verification-reference deduplication set.
func New(provider storage.Provider) (*Store, error) {
	store, err := storeutil.Open(provider, nameSpace)
	if err != nil {
		return nil, fmt.Errorf("open verification store: %w", err)
	}

	return &Store{store: store}, nil
}

// Store is the db implementation of the verification-reference deduplication set.
// References consumed by a completed mint are never removed.
type Store struct {
	store storage.Store
}

// IsProcessed returns true if the given verification reference was consumed by a previous mint.
func (s *Store) IsProcessed(ref []byte) (bool, error) {
	_, err := s.store.Get(refKey(ref))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return false, nil
		}

		return false, ledgererrors.NewTransient(fmt.Errorf("get verification reference: %w", err))
	}

	return true, nil
}

// MarkProcessed permanently marks the given verification reference as processed.
// Returns ErrDuplicateVerification if the reference was already marked.
func (s *Store) MarkProcessed(ref []byte) error {
	processed, err := s.IsProcessed(ref)
	if err != nil {
		return err
	}

	if processed {
		return ledgererrors.ErrDuplicateVerification
	}

	// IsNewKey lets the database reject a concurrent duplicate insert.
	err = s.store.Batch([]storage.Operation{
		{
			Key:        refKey(ref),
			Value:      []byte("processed"),
			PutOptions: &storage.PutOptions{IsNewKey: true},
		},
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return ledgererrors.ErrDuplicateVerification
		}

		return ledgererrors.NewTransient(fmt.Errorf("mark verification reference as processed: %w", err))
	}

	logger.Debug("Marked verification reference as processed", logfields.WithVerificationRef(ref))

	return nil
}

// Delete removes the given verification reference from the set. It exists
// only so that a mint that failed after consuming the reference can release
// it again; references consumed by a completed mint are never removed.
func (s *Store) Delete(ref []byte) error {
	if err := s.store.Delete(refKey(ref)); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("delete verification reference: %w", err))
	}

	logger.Debug("Deleted verification reference", logfields.WithVerificationRef(ref))

	return nil
}

// refKey encodes the origin-supplied reference bytes into a stable store key.
func refKey(ref []byte) string {
	return base64.RawURLEncoding.EncodeToString(ref)
}
