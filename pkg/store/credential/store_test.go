/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package credential

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mock"
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

	t.Run("error - open store fails", func(t *testing.T) {
		s, err := New(&mock.Provider{ErrOpenStore: errors.New("injected open store error")})
		require.Error(t, err)
		require.Nil(t, s)
	})
}

func TestStore_PutGetDelete(t *testing.T) {
	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	token := &ledger.CredentialToken{
		ID:              ledger.NewID(),
		Quantity:        1000,
		Category:        1,
		VerificationRef: []byte("VERIF_001"),
		IssuedAt:        1693526400000,
		Owner:           "did:example:alice",
	}

	require.NoError(t, s.Put(token))

	got, err := s.Get(token.ID)
	require.NoError(t, err)
	require.Equal(t, token, got)

	require.NoError(t, s.Delete(token.ID))

	_, err = s.Get(token.ID)
	require.ErrorIs(t, err, ledgererrors.ErrTokenNotFound)
}

func TestStore_ByOwner(t *testing.T) {
	s, err := New(mem.NewProvider())
	require.NoError(t, err)

	const owner = ledger.Account("did:example:alice")

	token1 := &ledger.CredentialToken{ID: ledger.NewID(), Quantity: 100, Owner: owner}
	token2 := &ledger.CredentialToken{ID: ledger.NewID(), Quantity: 200, Owner: owner}
	token3 := &ledger.CredentialToken{ID: ledger.NewID(), Quantity: 300, Owner: "did:example:bob"}

	require.NoError(t, s.Put(token1))
	require.NoError(t, s.Put(token2))
	require.NoError(t, s.Put(token3))

	tokens, err := s.ByOwner(owner)
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	var total uint64

	for _, token := range tokens {
		require.Equal(t, owner, token.Owner)

		total += token.Quantity
	}

	require.Equal(t, uint64(300), total)
}

func TestStore_Errors(t *testing.T) {
	t.Run("put error", func(t *testing.T) {
		s, err := New(&mock.Provider{
			OpenStoreReturn: &mock.Store{ErrPut: errors.New("injected put error")},
		})
		require.NoError(t, err)

		err = s.Put(&ledger.CredentialToken{ID: "token1"})
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
	})

	t.Run("get error", func(t *testing.T) {
		s, err := New(&mock.Provider{
			OpenStoreReturn: &mock.Store{ErrGet: errors.New("injected get error")},
		})
		require.NoError(t, err)

		_, err = s.Get("token1")
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
	})

	t.Run("delete error", func(t *testing.T) {
		s, err := New(&mock.Provider{
			OpenStoreReturn: &mock.Store{ErrDelete: errors.New("injected delete error")},
		})
		require.NoError(t, err)

		err = s.Delete("token1")
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
	})

	t.Run("query error", func(t *testing.T) {
		s, err := New(&mock.Provider{
			OpenStoreReturn: &mock.Store{ErrQuery: errors.New("injected query error")},
		})
		require.NoError(t, err)

		_, err = s.ByOwner("did:example:alice")
		require.Error(t, err)
		require.True(t, ledgererrors.IsTransient(err))
	})
}
