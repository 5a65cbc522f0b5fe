/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package transport implements the two external coordinator objects of
// the bridge: the token transport, which turns fungible amounts into
// transfer tickets, and the message transport, which publishes tickets
// in sequenced, signed envelopes.
package transport

import (
	"errors"
	"fmt"
	"sync"

	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/bridge"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/store/storeutil"
)

const (
	tokenNameSpace = "tokentransport"

	tokenTransportIDKey = "transport-id"

	assetKeyPrefix = "asset-"
)

var logger = log.New("bridge-transport")

// truncationFactor drops the decimals beyond the fixed transfer
// precision. The fungible unit has nine decimals and the transfer
// convention carries eight.
var truncationFactor = computeTruncationFactor()

func computeTruncationFactor() uint64 {
	factor := bridge.UnitScale

	for i := 0; i < bridge.TransferDecimals; i++ {
		factor /= 10
	}

	return factor
}

// TransferTicket packages a truncated fungible amount with its serialized
// payload for hand-off to the message transport.
type TransferTicket struct {
	ID              string `json:"id"`
	Denom           string `json:"denom"`
	Amount          uint64 `json:"amount"`
	Payload         []byte `json:"payload"`
	TargetChainID   uint16 `json:"targetChainId"`
	TargetRecipient []byte `json:"targetRecipient"`
}

// TokenTransport tracks which fungible denominations are registered as
// native assets and creates transfer tickets for them.
type TokenTransport struct {
	store storage.Store

	mutex sync.Mutex
	id    string
}

// NewTokenTransport returns the token transport coordinator, creating a
// persistent identity on first use.
func NewTokenTransport(provider storage.Provider) (*TokenTransport, error) {
	store, err := storeutil.Open(provider, tokenNameSpace)
	if err != nil {
		return nil, fmt.Errorf("open token transport store: %w", err)
	}

	t := &TokenTransport{store: store}

	id, err := loadOrCreateID(store, tokenTransportIDKey)
	if err != nil {
		return nil, err
	}

	t.id = id

	return t, nil
}

// ID returns the coordinator's persistent identity.
func (t *TokenTransport) ID() string {
	return t.id
}

// RegisterNativeAsset registers the given denomination as a native
// (non-wrapped) asset.
func (t *TokenTransport) RegisterNativeAsset(denom string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if err := t.store.Put(assetKeyPrefix+denom, []byte(`{"native":true}`)); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("register native asset [%s]: %w", denom, err))
	}

	logger.Info("Registered native asset", logfields.WithDenom(denom))

	return nil
}

// IsNativeAsset returns true if the given denomination is registered as a
// native asset.
func (t *TokenTransport) IsNativeAsset(denom string) (bool, error) {
	_, err := t.store.Get(assetKeyPrefix + denom)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return false, nil
		}

		return false, ledgererrors.NewTransient(fmt.Errorf("get native asset [%s]: %w", denom, err))
	}

	return true, nil
}

// NewTransfer creates a transfer ticket for the given fungible amount.
// The amount is truncated to the fixed transfer precision; the remainder
// is returned as dust for the caller to burn. It fails with
// ErrAssetNotRegistered if the denomination is not registered native.
func (t *TokenTransport) NewTransfer(denom string, amount uint64, payload []byte,
	targetChainID uint16, targetRecipient []byte) (*TransferTicket, uint64, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	native, err := t.IsNativeAsset(denom)
	if err != nil {
		return nil, 0, err
	}

	if !native {
		return nil, 0, fmt.Errorf("denom [%s]: %w", denom, ledgererrors.ErrAssetNotRegistered)
	}

	transferAmount := amount / truncationFactor * truncationFactor
	dust := amount - transferAmount

	ticket := &TransferTicket{
		ID:              ledger.NewID(),
		Denom:           denom,
		Amount:          transferAmount,
		Payload:         payload,
		TargetChainID:   targetChainID,
		TargetRecipient: targetRecipient,
	}

	logger.Debug("Created transfer ticket", logfields.WithDenom(denom),
		logfields.WithAmount(transferAmount), logfields.WithChainID(targetChainID))

	return ticket, dust, nil
}

func loadOrCreateID(store storage.Store, key string) (string, error) {
	idBytes, err := store.Get(key)
	if err == nil {
		return string(idBytes), nil
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return "", ledgererrors.NewTransient(fmt.Errorf("get transport ID: %w", err))
	}

	id := ledger.NewID()

	if err := store.Put(key, []byte(id)); err != nil {
		return "", ledgererrors.NewTransient(fmt.Errorf("store transport ID: %w", err))
	}

	return id, nil
}
