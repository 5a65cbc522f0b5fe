/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"

	"github.com/trustbloc/creditledger/pkg/bridge"
	"github.com/trustbloc/creditledger/pkg/bridge/payload"
	"github.com/trustbloc/creditledger/pkg/bridge/transport"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/event"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/marketplace"
	"github.com/trustbloc/creditledger/pkg/observability/metrics/noop"
	"github.com/trustbloc/creditledger/pkg/pubsub/mempubsub"
	"github.com/trustbloc/creditledger/pkg/store/balance"
	"github.com/trustbloc/creditledger/pkg/store/credential"
	"github.com/trustbloc/creditledger/pkg/store/listing"
	"github.com/trustbloc/creditledger/pkg/store/proof"
	"github.com/trustbloc/creditledger/pkg/store/verification"
)

const (
	issuer = ledger.Account("acct:issuer")
	holder = ledger.Account("acct:holder")
	other  = ledger.Account("acct:other")
)

func TestRegistry_Mint(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	mintedChan := f.subscribe(t, event.CredentialMintedTopic)

	t.Run("success", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 100, 2, []byte("ref-1"))
		require.NoError(t, err)
		require.NotEmpty(t, tokenID)

		token, err := f.credentialStore.Get(tokenID)
		require.NoError(t, err)
		require.Equal(t, uint64(100), token.Quantity)
		require.Equal(t, ledger.Category(2), token.Category)
		require.Equal(t, []byte("ref-1"), token.VerificationRef)
		require.Equal(t, holder, token.Owner)
		require.NotZero(t, token.IssuedAt)

		minted := &event.CredentialMinted{}
		requireEvent(t, mintedChan, minted)
		require.Equal(t, tokenID, minted.TokenID)
		require.Equal(t, string(holder), minted.Recipient)
	})

	t.Run("duplicate verification reference", func(t *testing.T) {
		_, err := f.registry.Mint(f.issuerCap, holder, 50, 2, []byte("ref-1"))
		require.ErrorIs(t, err, ledgererrors.ErrDuplicateVerification)
	})

	t.Run("zero quantity -> ErrInvalidAmount", func(t *testing.T) {
		_, err := f.registry.Mint(f.issuerCap, holder, 0, 2, []byte("ref-2"))
		require.ErrorIs(t, err, ledgererrors.ErrInvalidAmount)
	})

	t.Run("missing capability -> ErrUnauthorized", func(t *testing.T) {
		_, err := f.registry.Mint(nil, holder, 10, 2, []byte("ref-3"))
		require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)

		_, err = f.registry.Mint(NewCapability(), holder, 10, 2, []byte("ref-3"))
		require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)

		// The reference must not have been consumed by the failed mints.
		_, err = f.registry.Mint(f.issuerCap, holder, 10, 2, []byte("ref-3"))
		require.NoError(t, err)
	})

	t.Run("credential store failure releases the reference", func(t *testing.T) {
		r := New(&Providers{
			VerificationLedger: f.verificationStore,
			CredentialStore:    &mockCredentialStore{errPut: errors.New("injected put error")},
			ProofStore:         f.proofStore,
			EventPublisher:     f.publisher,
			Metrics:            noop.NewProvider().Metrics(),
			Clock:              &ledger.SystemClock{},
		}, nil, f.issuerCap)

		_, err := r.Mint(f.issuerCap, holder, 10, 2, []byte("ref-4"))
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected put error")

		processed, err := f.verificationStore.IsProcessed([]byte("ref-4"))
		require.NoError(t, err)
		require.False(t, processed)

		// The reference can still back a later successful mint.
		_, err = f.registry.Mint(f.issuerCap, holder, 10, 2, []byte("ref-4"))
		require.NoError(t, err)
	})
}

func TestRegistry_Retire(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	retiredChan := f.subscribe(t, event.CredentialRetiredTopic)
	proofChan := f.subscribe(t, event.ProofMintedTopic)

	tokenID, err := f.registry.Mint(f.issuerCap, holder, 100, 2, []byte("ref-1"))
	require.NoError(t, err)

	t.Run("not owner -> ErrNotOwner", func(t *testing.T) {
		_, err := f.registry.Retire(other, tokenID)
		require.ErrorIs(t, err, ledgererrors.ErrNotOwner)

		_, err = f.credentialStore.Get(tokenID)
		require.NoError(t, err)
	})

	t.Run("success", func(t *testing.T) {
		proofID, err := f.registry.Retire(holder, tokenID)
		require.NoError(t, err)

		_, err = f.credentialStore.Get(tokenID)
		require.ErrorIs(t, err, ledgererrors.ErrTokenNotFound)

		p, err := f.proofStore.Get(proofID)
		require.NoError(t, err)
		require.Equal(t, tokenID, p.TokenID)
		require.Equal(t, holder, p.RetiredBy)
		require.Equal(t, uint64(100), p.Quantity)
		require.Equal(t, []byte("ref-1"), p.VerificationRef)
		require.False(t, p.Frozen)

		retired := &event.CredentialRetired{}
		requireEvent(t, retiredChan, retired)
		require.Equal(t, tokenID, retired.TokenID)

		pm := &event.ProofMinted{}
		requireEvent(t, proofChan, pm)
		require.Equal(t, proofID, pm.ProofID)
	})

	t.Run("retired token -> ErrTokenNotFound", func(t *testing.T) {
		_, err := f.registry.Retire(holder, tokenID)
		require.ErrorIs(t, err, ledgererrors.ErrTokenNotFound)
	})

	t.Run("proof store failure restores token", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 10, 1, []byte("ref-2"))
		require.NoError(t, err)

		failing := &mockProofStore{errPut: errors.New("injected put error")}

		r := New(&Providers{
			VerificationLedger: f.verificationStore,
			CredentialStore:    f.credentialStore,
			ProofStore:         failing,
			EventPublisher:     f.publisher,
			Metrics:            noop.NewProvider().Metrics(),
			Clock:              &ledger.SystemClock{},
		}, nil, f.issuerCap)

		_, err = r.Retire(holder, tokenID)
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected put error")

		token, err := f.credentialStore.Get(tokenID)
		require.NoError(t, err)
		require.Equal(t, holder, token.Owner)
	})
}

func TestRegistry_FreezeProof(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	tokenID, err := f.registry.Mint(f.issuerCap, holder, 100, 2, []byte("ref-1"))
	require.NoError(t, err)

	proofID, err := f.registry.Retire(holder, tokenID)
	require.NoError(t, err)

	t.Run("not holder -> ErrNotOwner", func(t *testing.T) {
		require.ErrorIs(t, f.registry.FreezeProof(other, proofID), ledgererrors.ErrNotOwner)
	})

	t.Run("success", func(t *testing.T) {
		require.NoError(t, f.registry.FreezeProof(holder, proofID))

		p, err := f.proofStore.Get(proofID)
		require.NoError(t, err)
		require.True(t, p.Frozen)
	})

	t.Run("refreeze -> ErrProofFrozen", func(t *testing.T) {
		require.ErrorIs(t, f.registry.FreezeProof(holder, proofID), ledgererrors.ErrProofFrozen)
	})

	t.Run("unknown proof -> ErrProofNotFound", func(t *testing.T) {
		require.ErrorIs(t, f.registry.FreezeProof(holder, "no-such-proof"), ledgererrors.ErrProofNotFound)
	})
}

func TestRegistry_RetireAndBridge(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	outboundChan := f.subscribe(t, transport.OutboundTopic)
	bridgeChan := f.subscribe(t, event.BridgeInitiatedTopic)

	recipient := []byte{0xde, 0xad, 0xbe, 0xef}

	t.Run("not initialized", func(t *testing.T) {
		r := New(&Providers{
			VerificationLedger: f.verificationStore,
			CredentialStore:    f.credentialStore,
			ProofStore:         f.proofStore,
			EventPublisher:     f.publisher,
			Metrics:            noop.NewProvider().Metrics(),
			Clock:              &ledger.SystemClock{},
		}, nil, f.issuerCap)

		_, err := r.RetireAndBridge(holder, "token-1", recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrBridgeNotInitialized)
	})

	t.Run("capability not bound", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 7, 1, []byte("ref-unbound"))
		require.NoError(t, err)

		_, err = f.registry.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrBridgeNotInitialized)
	})

	require.NoError(t, f.adminCap.Bind(f.msgTransport.ID(), f.tokenTransport.ID(), "emitter-cap-1"))

	t.Run("asset not registered", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 7, 1, []byte("ref-unregistered"))
		require.NoError(t, err)

		_, err = f.registry.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrAssetNotRegistered)

		// Precondition failures leave the token untouched.
		_, err = f.credentialStore.Get(tokenID)
		require.NoError(t, err)
	})

	require.NoError(t, f.tokenTransport.RegisterNativeAsset(bridge.Denom))

	t.Run("not owner -> ErrNotOwner", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 7, 1, []byte("ref-notowner"))
		require.NoError(t, err)

		_, err = f.registry.RetireAndBridge(other, tokenID, recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrNotOwner)
	})

	t.Run("quantity too large to scale -> ErrInvalidAmount", func(t *testing.T) {
		// Twenty billion credits scaled by the unit factor does not fit
		// in a uint64.
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 20_000_000_000, 1, []byte("ref-overflow"))
		require.NoError(t, err)

		_, err = f.registry.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrInvalidAmount)

		// The token was not consumed and nothing was minted.
		_, err = f.credentialStore.Get(tokenID)
		require.NoError(t, err)

		supply, err := f.adminCap.TotalSupply()
		require.NoError(t, err)
		require.Zero(t, supply)
	})

	t.Run("success", func(t *testing.T) {
		tokenID, err := f.registry.Mint(f.issuerCap, holder, 7, 3, []byte("ref-bridge"))
		require.NoError(t, err)

		receipt, err := f.registry.RetireAndBridge(holder, tokenID, recipient, 5, &ledger.Payment{Amount: 2})
		require.NoError(t, err)
		require.Equal(t, tokenID, receipt.TokenID)
		require.Equal(t, 7*bridge.UnitScale, receipt.Amount)
		require.Zero(t, receipt.Dust)
		require.Equal(t, uint64(1), receipt.Sequence)
		require.Equal(t, uint16(5), receipt.TargetChainID)

		_, err = f.credentialStore.Get(tokenID)
		require.ErrorIs(t, err, ledgererrors.ErrTokenNotFound)

		supply, err := f.adminCap.TotalSupply()
		require.NoError(t, err)
		require.Equal(t, 7*bridge.UnitScale, supply)

		envelope := &transport.Envelope{}
		requireEvent(t, outboundChan, envelope)
		require.Equal(t, uint64(1), envelope.Sequence)
		require.True(t, envelope.Verify())

		codec, err := payload.NewCodec()
		require.NoError(t, err)

		p, err := codec.Unmarshal(envelope.Ticket.Payload)
		require.NoError(t, err)
		require.Equal(t, payload.TokenIDBytes(tokenID), p.SourceTokenID)
		require.Equal(t, uint64(7), p.Quantity)
		require.Equal(t, uint8(3), p.Category)
		require.Equal(t, []byte("ref-bridge"), p.VerificationRef)
		require.Equal(t, string(holder), p.SourceOwner)
		require.Equal(t, recipient, p.TargetRecipient)
		require.Equal(t, uint16(5), p.TargetChainID)

		initiated := &event.BridgeInitiated{}
		requireEvent(t, bridgeChan, initiated)
		require.Equal(t, tokenID, initiated.TokenID)
		require.Equal(t, uint64(1), initiated.Sequence)

		fees, err := f.msgTransport.FeesCollected()
		require.NoError(t, err)
		require.Equal(t, uint64(2), fees)
	})
}

func TestRegistry_RetireAndBridge_Compensation(t *testing.T) {
	f := newFixture(t)
	defer f.close(t)

	require.NoError(t, f.adminCap.Bind("msg-transport-1", "token-transport-1", "emitter-cap-1"))

	recipient := []byte{0x01}

	newRegistry := func(tt tokenTransport, mt messageTransport) *Registry {
		codec, err := payload.NewCodec()
		require.NoError(t, err)

		return New(&Providers{
			VerificationLedger: f.verificationStore,
			CredentialStore:    f.credentialStore,
			ProofStore:         f.proofStore,
			EventPublisher:     f.publisher,
			Metrics:            noop.NewProvider().Metrics(),
			Clock:              &ledger.SystemClock{},
		}, &BridgeProviders{
			Capability:       f.adminCap,
			TokenTransport:   tt,
			MessageTransport: mt,
			PayloadCodec:     codec,
		}, f.issuerCap)
	}

	t.Run("transport mismatch -> ErrUnauthorized", func(t *testing.T) {
		r := newRegistry(
			&mockTokenTransport{id: "token-transport-other", native: true},
			&mockMessageTransport{id: "msg-transport-1"})

		tokenID, err := r.Mint(f.issuerCap, holder, 7, 1, []byte("ref-mismatch"))
		require.NoError(t, err)

		_, err = r.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.ErrorIs(t, err, ledgererrors.ErrUnauthorized)
	})

	t.Run("publish failure burns mint and restores token", func(t *testing.T) {
		r := newRegistry(
			&mockTokenTransport{id: "token-transport-1", native: true, dust: 3},
			&mockMessageTransport{id: "msg-transport-1", err: errors.New("injected publish error")})

		tokenID, err := r.Mint(f.issuerCap, holder, 7, 1, []byte("ref-publish-fail"))
		require.NoError(t, err)

		_, err = r.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected publish error")

		token, err := f.credentialStore.Get(tokenID)
		require.NoError(t, err)
		require.Equal(t, holder, token.Owner)

		supply, err := f.adminCap.TotalSupply()
		require.NoError(t, err)
		require.Zero(t, supply)
	})

	t.Run("transfer failure burns mint and restores token", func(t *testing.T) {
		r := newRegistry(
			&mockTokenTransport{id: "token-transport-1", native: true, err: errors.New("injected transfer error")},
			&mockMessageTransport{id: "msg-transport-1"})

		tokenID, err := r.Mint(f.issuerCap, holder, 7, 1, []byte("ref-transfer-fail"))
		require.NoError(t, err)

		_, err = r.RetireAndBridge(holder, tokenID, recipient, 5, nil)
		require.Error(t, err)
		require.Contains(t, err.Error(), "injected transfer error")

		_, err = f.credentialStore.Get(tokenID)
		require.NoError(t, err)

		supply, err := f.adminCap.TotalSupply()
		require.NoError(t, err)
		require.Zero(t, supply)
	})
}

func TestRegistry_ConcurrentRetireAndList(t *testing.T) {
	provider := mem.NewProvider()

	pubSub := mempubsub.New(mempubsub.DefaultConfig())
	defer func() {
		require.NoError(t, pubSub.Close())
	}()

	verificationStore, err := verification.New(provider)
	require.NoError(t, err)

	credentialStore, err := credential.New(provider)
	require.NoError(t, err)

	proofStore, err := proof.New(provider)
	require.NoError(t, err)

	listingStore, err := listing.New(provider)
	require.NoError(t, err)

	balanceStore, err := balance.New(provider)
	require.NoError(t, err)

	publisher := event.NewPublisher(pubSub)
	issuerCap := NewCapability()

	// Both services consume tokens from the same credential store and
	// therefore share one lock.
	tokenLock := &sync.Mutex{}

	reg := New(&Providers{
		VerificationLedger: verificationStore,
		CredentialStore:    credentialStore,
		ProofStore:         proofStore,
		EventPublisher:     publisher,
		Metrics:            noop.NewProvider().Metrics(),
		Clock:              &ledger.SystemClock{},
		TokenLock:          tokenLock,
	}, nil, issuerCap)

	market := marketplace.New(marketplace.Config{}, &marketplace.Providers{
		CredentialStore: credentialStore,
		ListingStore:    listingStore,
		BalanceStore:    balanceStore,
		EventPublisher:  publisher,
		Metrics:         noop.NewProvider().Metrics(),
		TokenLock:       tokenLock,
	})

	// A token may be retired or listed, never both. Race the two
	// operations; exactly one of them must win for every token.
	for i := 0; i < 20; i++ {
		tokenID, err := reg.Mint(issuerCap, holder, 10, 1, []byte(fmt.Sprintf("ref-race-%d", i)))
		require.NoError(t, err)

		var (
			retireErr error
			listErr   error
		)

		start := make(chan struct{})

		var wg sync.WaitGroup

		wg.Add(2)

		go func() {
			defer wg.Done()

			<-start

			_, retireErr = reg.Retire(holder, tokenID)
		}()

		go func() {
			defer wg.Done()

			<-start

			_, listErr = market.List(holder, tokenID, 100)
		}()

		close(start)
		wg.Wait()

		require.Truef(t, (retireErr == nil) != (listErr == nil),
			"exactly one of retire and list must succeed for token [%s]: retire=%v, list=%v",
			tokenID, retireErr, listErr)

		if retireErr != nil {
			require.ErrorIs(t, retireErr, ledgererrors.ErrTokenNotFound)
		} else {
			require.ErrorIs(t, listErr, ledgererrors.ErrTokenNotFound)
		}
	}
}

type fixture struct {
	pubSub            *mempubsub.PubSub
	publisher         *event.Publisher
	verificationStore *verification.Store
	credentialStore   *credential.Store
	proofStore        *proof.Store
	adminCap          *bridge.AdminCapability
	tokenTransport    *transport.TokenTransport
	msgTransport      *transport.MessageTransport
	issuerCap         *Capability
	registry          *Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	provider := mem.NewProvider()
	pubSub := mempubsub.New(mempubsub.DefaultConfig())

	verificationStore, err := verification.New(provider)
	require.NoError(t, err)

	credentialStore, err := credential.New(provider)
	require.NoError(t, err)

	proofStore, err := proof.New(provider)
	require.NoError(t, err)

	adminCap, err := bridge.NewAdminCapability(provider)
	require.NoError(t, err)

	tokenTransport, err := transport.NewTokenTransport(provider)
	require.NoError(t, err)

	msgTransport, err := transport.NewMessageTransport(provider, pubSub)
	require.NoError(t, err)

	codec, err := payload.NewCodec()
	require.NoError(t, err)

	publisher := event.NewPublisher(pubSub)
	issuerCap := NewCapability()

	registry := New(&Providers{
		VerificationLedger: verificationStore,
		CredentialStore:    credentialStore,
		ProofStore:         proofStore,
		EventPublisher:     publisher,
		Metrics:            noop.NewProvider().Metrics(),
		Clock:              &ledger.SystemClock{},
	}, &BridgeProviders{
		Capability:       adminCap,
		TokenTransport:   tokenTransport,
		MessageTransport: msgTransport,
		PayloadCodec:     codec,
	}, issuerCap)

	return &fixture{
		pubSub:            pubSub,
		publisher:         publisher,
		verificationStore: verificationStore,
		credentialStore:   credentialStore,
		proofStore:        proofStore,
		adminCap:          adminCap,
		tokenTransport:    tokenTransport,
		msgTransport:      msgTransport,
		issuerCap:         issuerCap,
		registry:          registry,
	}
}

func (f *fixture) close(t *testing.T) {
	t.Helper()

	require.NoError(t, f.pubSub.Close())
}

func (f *fixture) subscribe(t *testing.T, topic string) <-chan *message.Message {
	t.Helper()

	msgChan, err := f.pubSub.Subscribe(context.Background(), topic)
	require.NoError(t, err)

	return msgChan
}

func requireEvent(t *testing.T, msgChan <-chan *message.Message, evt interface{}) {
	t.Helper()

	select {
	case msg := <-msgChan:
		msg.Ack()

		require.NoError(t, json.Unmarshal(msg.Payload, evt))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

type mockCredentialStore struct {
	errPut error
}

func (m *mockCredentialStore) Put(*ledger.CredentialToken) error {
	return m.errPut
}

func (m *mockCredentialStore) Get(string) (*ledger.CredentialToken, error) {
	return nil, ledgererrors.ErrTokenNotFound
}

func (m *mockCredentialStore) Delete(string) error {
	return nil
}

type mockProofStore struct {
	errPut error
	errGet error
}

func (m *mockProofStore) Put(*ledger.RetirementProof) error {
	return m.errPut
}

func (m *mockProofStore) Get(string) (*ledger.RetirementProof, error) {
	return nil, m.errGet
}

type mockTokenTransport struct {
	id     string
	native bool
	dust   uint64
	err    error
}

func (m *mockTokenTransport) ID() string {
	return m.id
}

func (m *mockTokenTransport) IsNativeAsset(string) (bool, error) {
	return m.native, nil
}

func (m *mockTokenTransport) NewTransfer(denom string, amount uint64, payloadBytes []byte,
	targetChainID uint16, targetRecipient []byte) (*transport.TransferTicket, uint64, error) {
	if m.err != nil {
		return nil, 0, m.err
	}

	return &transport.TransferTicket{
		ID:              ledger.NewID(),
		Denom:           denom,
		Amount:          amount - m.dust,
		Payload:         payloadBytes,
		TargetChainID:   targetChainID,
		TargetRecipient: targetRecipient,
	}, m.dust, nil
}

type mockMessageTransport struct {
	id  string
	err error
}

func (m *mockMessageTransport) ID() string {
	return m.id
}

func (m *mockMessageTransport) Publish(*transport.TransferTicket, *ledger.Payment) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}

	return 1, nil
}
