/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package balance

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mock"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
)

func TestNew(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)
		require.NotNil(t, s)
	})

	t.Run("open store error", func(t *testing.T) {
		s, err := New(&mock.Provider{ErrOpenStore: errors.New("injected open store error")})
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected open store error")
		require.Nil(t, s)
	})
}

func TestStore_CreditBalance(t *testing.T) {
	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	t.Run("zero balance for unknown account", func(t *testing.T) {
		amount, err := s.Balance("acct:unknown")
		require.NoError(t, err)
		require.Zero(t, amount)
	})

	t.Run("credits accumulate", func(t *testing.T) {
		require.NoError(t, s.Credit("acct:seller1", 100))
		require.NoError(t, s.Credit("acct:seller1", 250))
		require.NoError(t, s.Credit("acct:seller2", 40))

		amount, err := s.Balance("acct:seller1")
		require.NoError(t, err)
		require.Equal(t, uint64(350), amount)

		amount, err = s.Balance("acct:seller2")
		require.NoError(t, err)
		require.Equal(t, uint64(40), amount)
	})
}

func TestStore_Error(t *testing.T) {
	t.Run("put error -> transient", func(t *testing.T) {
		s, err := New(&mock.Provider{OpenStoreReturn: &mock.Store{
			ErrGet: storage.ErrDataNotFound,
			ErrPut: errors.New("injected put error"),
		}})
		require.NoError(t, err)

		err = s.Credit("acct:seller1", 100)
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
		require.Contains(t, err.Error(), "injected put error")
	})

	t.Run("get error -> transient", func(t *testing.T) {
		s, err := New(&mock.Provider{OpenStoreReturn: &mock.Store{ErrGet: errors.New("injected get error")}})
		require.NoError(t, err)

		_, err = s.Balance("acct:seller1")
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
		require.Contains(t, err.Error(), "injected get error")
	})

	t.Run("unmarshal error", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		require.NoError(t, s.Credit("acct:seller1", 100))

		s.unmarshal = func([]byte, interface{}) error { return errors.New("injected unmarshal error") }

		_, err = s.Balance("acct:seller1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected unmarshal error")
	})

	t.Run("marshal error", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		s.marshal = func(interface{}) ([]byte, error) { return nil, errors.New("injected marshal error") }

		err = s.Credit("acct:seller1", 100)
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected marshal error")
	})
}
