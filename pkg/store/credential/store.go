/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

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
	nameSpace = "credential"

	ownerTag = "owner"
)

var logger = log.New("credential-store")

// New creates the db implementation of the credential token registry.
func New(provider storage.Provider) (*Store, error) {
	store, err := storeutil.Open(provider, nameSpace, storeutil.TagGroup{ownerTag})
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	return &Store{
		store:     store,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
	}, nil
}

// Store is the db implementation of the credential token registry. Each credential token
// document is keyed by token ID and tagged with the owning account.
type Store struct {
	store     storage.Store
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

// Put stores the given credential token.
func (s *Store) Put(token *ledger.CredentialToken) error {
	tokenBytes, err := s.marshal(token)
	if err != nil {
		return fmt.Errorf("marshal credential token: %w", err)
	}

	err = s.store.Put(token.ID, tokenBytes, storage.Tag{Name: ownerTag, Value: ownerTagValue(token.Owner)})
	if err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store credential token [%s]: %w", token.ID, err))
	}

	logger.Debug("Stored credential token", logfields.WithTokenID(token.ID),
		logfields.WithOwner(string(token.Owner)))

	return nil
}

// Get retrieves the credential token with the given ID. Returns ErrTokenNotFound if the
// token does not exist (never minted, retired, or bridged).
func (s *Store) Get(tokenID string) (*ledger.CredentialToken, error) {
	tokenBytes, err := s.store.Get(tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, ledgererrors.ErrTokenNotFound
		}

		return nil, ledgererrors.NewTransient(fmt.Errorf("get credential token [%s]: %w", tokenID, err))
	}

	token := &ledger.CredentialToken{}

	if err := s.unmarshal(tokenBytes, token); err != nil {
		return nil, fmt.Errorf("unmarshal credential token [%s]: %w", tokenID, err)
	}

	return token, nil
}

// Delete removes the credential token with the given ID. The token's identity is never reused.
func (s *Store) Delete(tokenID string) error {
	if err := s.store.Delete(tokenID); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("delete credential token [%s]: %w", tokenID, err))
	}

	logger.Debug("Deleted credential token", logfields.WithTokenID(tokenID))

	return nil
}

// ByOwner returns all credential tokens currently owned by the given account.
func (s *Store) ByOwner(owner ledger.Account) ([]*ledger.CredentialToken, error) {
	it, err := s.store.Query(fmt.Sprintf("%s:%s", ownerTag, ownerTagValue(owner)))
	if err != nil {
		return nil, ledgererrors.NewTransient(fmt.Errorf("query credential tokens by owner: %w", err))
	}

	defer func() {
		if err := it.Close(); err != nil {
			logfields.CloseIteratorError(logger, err)
		}
	}()

	var tokens []*ledger.CredentialToken

	for {
		ok, err := it.Next()
		if err != nil {
			return nil, ledgererrors.NewTransient(fmt.Errorf("iterate credential tokens: %w", err))
		}

		if !ok {
			break
		}

		tokenBytes, err := it.Value()
		if err != nil {
			return nil, ledgererrors.NewTransient(fmt.Errorf("get credential token value: %w", err))
		}

		token := &ledger.CredentialToken{}

		if err := s.unmarshal(tokenBytes, token); err != nil {
			return nil, fmt.Errorf("unmarshal credential token: %w", err)
		}

		tokens = append(tokens, token)
	}

	return tokens, nil
}

// ownerTagValue encodes the account into a storage-safe tag value, since
// account identifiers may contain characters the tag syntax reserves.
func ownerTagValue(owner ledger.Account) string {
	return base64.RawURLEncoding.EncodeToString([]byte(owner))
}
