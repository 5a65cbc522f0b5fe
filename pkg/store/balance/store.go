/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package balance

import (
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

const nameSpace = "balance"

var logger = log.New("balance-store")

type record struct {
	Amount uint64 `json:"amount"`
}

// New creates the db implementation of the settlement balance ledger.
func New(provider storage.Provider) (*Store, error) {
	store, err := storeutil.Open(provider, nameSpace)
	if err != nil {
		return nil, fmt.Errorf("open balance store: %w", err)
	}

	return &Store{
		store:     store,
		marshal:   json.Marshal,
		unmarshal: json.Unmarshal,
	}, nil
}

// Store tracks the payment balances credited to accounts by marketplace
// settlements.
type Store struct {
	store     storage.Store
	marshal   func(v interface{}) ([]byte, error)
	unmarshal func(data []byte, v interface{}) error
}

// Credit adds the given amount to the account's balance.
func (s *Store) Credit(account ledger.Account, amount uint64) error {
	current, err := s.Balance(account)
	if err != nil {
		return err
	}

	recordBytes, err := s.marshal(&record{Amount: current + amount})
	if err != nil {
		return fmt.Errorf("marshal balance record: %w", err)
	}

	if err := s.store.Put(string(account), recordBytes); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store balance [%s]: %w", account, err))
	}

	logger.Debug("Credited account", logfields.WithOwner(string(account)),
		logfields.WithAmount(amount), logfields.WithTotal(int(current+amount)))

	return nil
}

// Balance returns the account's current balance. An account that was never
// credited has a zero balance.
func (s *Store) Balance(account ledger.Account) (uint64, error) {
	recordBytes, err := s.store.Get(string(account))
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return 0, nil
		}

		return 0, ledgererrors.NewTransient(fmt.Errorf("get balance [%s]: %w", account, err))
	}

	r := &record{}

	if err := s.unmarshal(recordBytes, r); err != nil {
		return 0, fmt.Errorf("unmarshal balance record [%s]: %w", account, err)
	}

	return r.Amount, nil
}
