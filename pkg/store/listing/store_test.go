/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package listing

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mock"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/ledger"
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

func TestStore_PutGetDelete(t *testing.T) {
	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	l1 := newListing("acct:seller1", 100)
	l2 := newListing("acct:seller2", 250)
	l3 := newListing("acct:seller1", 0)

	require.NoError(t, s.Put(l1))
	require.NoError(t, s.Put(l2))
	require.NoError(t, s.Put(l3))

	t.Run("get", func(t *testing.T) {
		got, err := s.Get(l2.ID)
		require.NoError(t, err)
		require.Equal(t, l2, got)
	})

	t.Run("get not found -> ErrListingNotFound", func(t *testing.T) {
		got, err := s.Get("no-such-listing")
		require.ErrorIs(t, err, ledgererrors.ErrListingNotFound)
		require.Nil(t, got)
	})

	t.Run("active IDs are insertion-ordered", func(t *testing.T) {
		ids, err := s.ActiveIDs()
		require.NoError(t, err)
		require.Equal(t, []string{l1.ID, l2.ID, l3.ID}, ids)
	})

	t.Run("delete swap-removes from index", func(t *testing.T) {
		require.NoError(t, s.Delete(l1.ID))

		ids, err := s.ActiveIDs()
		require.NoError(t, err)
		require.Equal(t, []string{l3.ID, l2.ID}, ids)

		_, err = s.Get(l1.ID)
		require.ErrorIs(t, err, ledgererrors.ErrListingNotFound)
	})

	t.Run("delete last entry", func(t *testing.T) {
		require.NoError(t, s.Delete(l2.ID))
		require.NoError(t, s.Delete(l3.ID))

		ids, err := s.ActiveIDs()
		require.NoError(t, err)
		require.Empty(t, ids)
	})

	t.Run("delete not found -> ErrListingNotFound", func(t *testing.T) {
		require.ErrorIs(t, s.Delete(l1.ID), ledgererrors.ErrListingNotFound)
	})
}

func TestStore_Error(t *testing.T) {
	t.Run("marshal error", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		s.marshal = func(interface{}) ([]byte, error) { return nil, errors.New("injected marshal error") }

		err = s.Put(newListing("acct:seller1", 100))
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected marshal error")
	})

	t.Run("unmarshal error", func(t *testing.T) {
		s, err := New(mem.NewProvider())
		require.NoError(t, err)

		l := newListing("acct:seller1", 100)

		require.NoError(t, s.Put(l))

		s.unmarshal = func([]byte, interface{}) error { return errors.New("injected unmarshal error") }

		_, err = s.Get(l.ID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected unmarshal error")

		_, err = s.ActiveIDs()
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected unmarshal error")
	})

	t.Run("batch error -> transient", func(t *testing.T) {
		s, err := New(&mock.Provider{OpenStoreReturn: &mock.Store{
			ErrGet:   storage.ErrDataNotFound,
			ErrBatch: errors.New("injected batch error"),
		}})
		require.NoError(t, err)

		err = s.Put(newListing("acct:seller1", 100))
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
		require.Contains(t, err.Error(), "injected batch error")
	})

	t.Run("get index error -> transient", func(t *testing.T) {
		s, err := New(&mock.Provider{OpenStoreReturn: &mock.Store{ErrGet: errors.New("injected get error")}})
		require.NoError(t, err)

		_, err = s.ActiveIDs()
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
		require.Contains(t, err.Error(), "injected get error")
	})
}

func newListing(seller ledger.Account, price uint64) *ledger.Listing {
	tokenID := ledger.NewID()

	return &ledger.Listing{
		ID:      ledger.NewID(),
		TokenID: tokenID,
		Token: &ledger.CredentialToken{
			ID:              tokenID,
			Quantity:        10,
			Category:        1,
			VerificationRef: []byte("ref"),
			Owner:           seller,
		},
		Price:  price,
		Seller: seller,
	}
}
