/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package registry implements the credit registry: minting of credential
// tokens gated by verification-reference deduplication, retirement into
// soulbound proofs, and retirement-with-bridging to a foreign chain.
package registry

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	"github.com/trustbloc/creditledger/pkg/bridge"
	"github.com/trustbloc/creditledger/pkg/bridge/payload"
	"github.com/trustbloc/creditledger/pkg/bridge/transport"
	"github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/event"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/observability/metrics"
)

var logger = log.New("registry")

// Capability is the issuer capability required to mint. Minting is gated
// purely by possession of the handle created at deployment.
type Capability struct {
	id string
}

// NewCapability creates a new issuer capability.
func NewCapability() *Capability {
	return &Capability{id: ledger.NewID()}
}

// ID returns the capability's identity.
func (c *Capability) ID() string {
	return c.id
}

type verificationLedger interface {
	MarkProcessed(ref []byte) error
	Delete(ref []byte) error
}

type credentialStore interface {
	Put(token *ledger.CredentialToken) error
	Get(tokenID string) (*ledger.CredentialToken, error)
	Delete(tokenID string) error
}

type proofStore interface {
	Put(proof *ledger.RetirementProof) error
	Get(proofID string) (*ledger.RetirementProof, error)
}

type eventPublisher interface {
	Publish(topic string, evt interface{}) error
}

type adminCapability interface {
	Binding() (*bridge.Binding, error)
	Mint(amount uint64) (uint64, error)
	Burn(amount uint64) (uint64, error)
}

type tokenTransport interface {
	ID() string
	IsNativeAsset(denom string) (bool, error)
	NewTransfer(denom string, amount uint64, payloadBytes []byte,
		targetChainID uint16, targetRecipient []byte) (*transport.TransferTicket, uint64, error)
}

type messageTransport interface {
	ID() string
	Publish(ticket *transport.TransferTicket, fee *ledger.Payment) (uint64, error)
}

type payloadCodec interface {
	Marshal(p *payload.Payload) ([]byte, error)
}

// Providers contains the dependencies of the registry.
//
// TokenLock serializes every operation that reads and then consumes or
// transfers a credential token. All services sharing a credential store
// must be given the same lock, otherwise a concurrent retire and list of
// the same token could both pass their ownership checks. When nil, the
// registry uses a private mutex.
type Providers struct {
	VerificationLedger verificationLedger
	CredentialStore    credentialStore
	ProofStore         proofStore
	EventPublisher     eventPublisher
	Metrics            metrics.Metrics
	Clock              ledger.Clock
	TokenLock          sync.Locker
}

// BridgeProviders contains the bridge coordinator dependencies of the
// registry. A registry constructed without them rejects bridging with
// ErrBridgeNotInitialized.
type BridgeProviders struct {
	Capability       adminCapability
	TokenTransport   tokenTransport
	MessageTransport messageTransport
	PayloadCodec     payloadCodec
}

// BridgeReceipt describes the outcome of a retire-and-bridge operation.
type BridgeReceipt struct {
	TokenID       string
	Amount        uint64
	Dust          uint64
	Sequence      uint64
	TargetChainID uint16
}

// Registry manages the lifecycle of credential tokens.
type Registry struct {
	*Providers

	bridgeProviders *BridgeProviders
	issuerCap       *Capability

	lock sync.Locker
}

// New returns a new credit registry. The issuer capability gates minting;
// bridgeProviders may be nil if bridging is not configured.
func New(providers *Providers, bridgeProviders *BridgeProviders, issuerCap *Capability) *Registry {
	lock := providers.TokenLock
	if lock == nil {
		lock = &sync.Mutex{}
	}

	return &Registry{
		Providers:       providers,
		bridgeProviders: bridgeProviders,
		issuerCap:       issuerCap,
		lock:            lock,
	}
}

// Mint creates a new credential token owned by recipient. The caller must
// possess the issuer capability. The verification reference may be
// consumed by at most one mint, ever.
func (r *Registry) Mint(issuerCap *Capability, recipient ledger.Account, quantity uint64,
	category ledger.Category, verificationRef []byte) (string, error) {
	startTime := time.Now()

	defer func() {
		r.Metrics.MintTime(time.Since(startTime))
	}()

	if issuerCap == nil || issuerCap != r.issuerCap {
		return "", fmt.Errorf("mint requires the issuer capability: %w", errors.ErrUnauthorized)
	}

	if quantity == 0 {
		return "", errors.ErrInvalidAmount
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.VerificationLedger.MarkProcessed(verificationRef); err != nil {
		return "", fmt.Errorf("mark verification reference processed: %w", err)
	}

	token := &ledger.CredentialToken{
		ID:              ledger.NewID(),
		Quantity:        quantity,
		Category:        category,
		VerificationRef: verificationRef,
		IssuedAt:        r.Clock.Now().UnixMilli(),
		Owner:           recipient,
	}

	if err := r.CredentialStore.Put(token); err != nil {
		r.releaseVerificationRef(verificationRef)

		return "", fmt.Errorf("store credential token: %w", err)
	}

	if err := r.EventPublisher.Publish(event.CredentialMintedTopic, &event.CredentialMinted{
		TokenID:         token.ID,
		Quantity:        quantity,
		Category:        uint8(category),
		VerificationRef: verificationRef,
		Recipient:       string(recipient),
	}); err != nil {
		logger.Warn("Error publishing credential-minted event", log.WithError(err),
			logfields.WithTokenID(token.ID))
	}

	r.Metrics.IncrementMintCount()

	logger.Info("Minted credential token", logfields.WithTokenID(token.ID),
		logfields.WithRecipient(string(recipient)), logfields.WithQuantity(quantity))

	return token.ID, nil
}

// Retire destroys the caller's credential token and mints exactly one
// soulbound retirement proof bound to the caller. Deletion is
// irreversible.
func (r *Registry) Retire(caller ledger.Account, tokenID string) (string, error) {
	startTime := time.Now()

	defer func() {
		r.Metrics.RetireTime(time.Since(startTime))
	}()

	r.lock.Lock()
	defer r.lock.Unlock()

	token, err := r.CredentialStore.Get(tokenID)
	if err != nil {
		return "", fmt.Errorf("get credential token [%s]: %w", tokenID, err)
	}

	if token.Owner != caller {
		return "", fmt.Errorf("token [%s] is not owned by [%s]: %w", tokenID, caller, errors.ErrNotOwner)
	}

	if err := r.CredentialStore.Delete(tokenID); err != nil {
		return "", fmt.Errorf("delete credential token [%s]: %w", tokenID, err)
	}

	proof := &ledger.RetirementProof{
		ID:              ledger.NewID(),
		TokenID:         token.ID,
		RetiredBy:       caller,
		Quantity:        token.Quantity,
		VerificationRef: token.VerificationRef,
		RetiredAt:       r.Clock.Now().UnixMilli(),
	}

	if err := r.ProofStore.Put(proof); err != nil {
		r.restoreToken(token)

		return "", fmt.Errorf("store retirement proof: %w", err)
	}

	r.publishRetirementEvents(token, proof)

	r.Metrics.IncrementRetireCount()

	logger.Info("Retired credential token", logfields.WithTokenID(tokenID),
		logfields.WithProofID(proof.ID), logfields.WithOwner(string(caller)))

	return proof.ID, nil
}

// FreezeProof makes the caller's retirement proof permanently immutable.
// There is no unfreeze path; freezing a frozen proof fails with
// ErrProofFrozen.
func (r *Registry) FreezeProof(caller ledger.Account, proofID string) error {
	startTime := time.Now()

	defer func() {
		r.Metrics.FreezeProofTime(time.Since(startTime))
	}()

	r.lock.Lock()
	defer r.lock.Unlock()

	proof, err := r.ProofStore.Get(proofID)
	if err != nil {
		return fmt.Errorf("get retirement proof [%s]: %w", proofID, err)
	}

	if proof.RetiredBy != caller {
		return fmt.Errorf("proof [%s] is not held by [%s]: %w", proofID, caller, errors.ErrNotOwner)
	}

	if proof.Frozen {
		return fmt.Errorf("proof [%s]: %w", proofID, errors.ErrProofFrozen)
	}

	proof.Frozen = true

	if err := r.ProofStore.Put(proof); err != nil {
		return fmt.Errorf("store retirement proof [%s]: %w", proofID, err)
	}

	logger.Info("Froze retirement proof", logfields.WithProofID(proofID))

	return nil
}

// RetireAndBridge destroys the caller's credential token and hands its
// value to the foreign chain: an equivalent fungible amount is minted,
// packaged into a transfer ticket, and published through the message
// transport in a sequenced, signed envelope. The dust below the transfer
// precision is burned, never dropped. A failure after the token was
// consumed rolls the mint and the token back.
func (r *Registry) RetireAndBridge(caller ledger.Account, tokenID string, targetRecipient []byte,
	targetChainID uint16, fee *ledger.Payment) (*BridgeReceipt, error) {
	startTime := time.Now()

	defer func() {
		r.Metrics.BridgeTime(time.Since(startTime))
	}()

	if r.bridgeProviders == nil {
		return nil, errors.ErrBridgeNotInitialized
	}

	bp := r.bridgeProviders

	r.lock.Lock()
	defer r.lock.Unlock()

	binding, err := bp.Capability.Binding()
	if err != nil {
		return nil, fmt.Errorf("get bridge binding: %w", err)
	}

	if binding.MessageTransportID != bp.MessageTransport.ID() ||
		binding.TokenTransportID != bp.TokenTransport.ID() {
		return nil, fmt.Errorf("capability is bound to different transport coordinators: %w",
			errors.ErrUnauthorized)
	}

	native, err := bp.TokenTransport.IsNativeAsset(bridge.Denom)
	if err != nil {
		return nil, fmt.Errorf("check native asset: %w", err)
	}

	if !native {
		return nil, fmt.Errorf("denom [%s]: %w", bridge.Denom, errors.ErrAssetNotRegistered)
	}

	token, err := r.CredentialStore.Get(tokenID)
	if err != nil {
		return nil, fmt.Errorf("get credential token [%s]: %w", tokenID, err)
	}

	if token.Owner != caller {
		return nil, fmt.Errorf("token [%s] is not owned by [%s]: %w", tokenID, caller, errors.ErrNotOwner)
	}

	// The fungible amount is quantity scaled by UnitScale. Reject quantities
	// whose scaled amount does not fit in a uint64 before the token is consumed.
	if token.Quantity > math.MaxUint64/bridge.UnitScale {
		return nil, fmt.Errorf("quantity [%d] of token [%s] exceeds the maximum bridgeable quantity [%d]: %w",
			token.Quantity, tokenID, uint64(math.MaxUint64)/bridge.UnitScale, errors.ErrInvalidAmount)
	}

	payloadBytes, err := bp.PayloadCodec.Marshal(&payload.Payload{
		SourceTokenID:   payload.TokenIDBytes(token.ID),
		Quantity:        token.Quantity,
		Category:        uint8(token.Category),
		VerificationRef: token.VerificationRef,
		SourceOwner:     string(caller),
		TargetRecipient: targetRecipient,
		TargetChainID:   targetChainID,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal bridge payload: %w", err)
	}

	if err := r.CredentialStore.Delete(tokenID); err != nil {
		return nil, fmt.Errorf("delete credential token [%s]: %w", tokenID, err)
	}

	mintAmount := token.Quantity * bridge.UnitScale

	supply, err := bp.Capability.Mint(mintAmount)
	if err != nil {
		r.restoreToken(token)

		return nil, fmt.Errorf("mint fungible amount: %w", err)
	}

	ticket, dust, err := bp.TokenTransport.NewTransfer(bridge.Denom, mintAmount,
		payloadBytes, targetChainID, targetRecipient)
	if err != nil {
		r.compensateBridge(token, mintAmount)

		return nil, fmt.Errorf("create transfer ticket: %w", err)
	}

	if dust > 0 {
		supply, err = bp.Capability.Burn(dust)
		if err != nil {
			r.compensateBridge(token, mintAmount)

			return nil, fmt.Errorf("burn dust: %w", err)
		}

		r.Metrics.AddBridgeDustBurned(dust)

		logger.Debug("Burned bridging dust", logfields.WithTokenID(tokenID),
			logfields.WithAmount(dust))
	}

	sequence, err := bp.MessageTransport.Publish(ticket, fee)
	if err != nil {
		r.compensateBridge(token, mintAmount-dust)

		return nil, fmt.Errorf("publish transfer ticket: %w", err)
	}

	r.Metrics.SetFungibleSupply(supply)

	if err := r.EventPublisher.Publish(event.BridgeInitiatedTopic, &event.BridgeInitiated{
		TokenID:         token.ID,
		Amount:          ticket.Amount,
		Dust:            dust,
		TargetChainID:   targetChainID,
		TargetRecipient: targetRecipient,
		Sequence:        sequence,
	}); err != nil {
		logger.Warn("Error publishing bridge-initiated event", log.WithError(err),
			logfields.WithTokenID(token.ID))
	}

	r.Metrics.IncrementBridgeCount()

	logger.Info("Bridged credential token", logfields.WithTokenID(tokenID),
		logfields.WithAmount(ticket.Amount), logfields.WithChainID(targetChainID),
		logfields.WithSequence(sequence))

	return &BridgeReceipt{
		TokenID:       token.ID,
		Amount:        ticket.Amount,
		Dust:          dust,
		Sequence:      sequence,
		TargetChainID: targetChainID,
	}, nil
}

func (r *Registry) publishRetirementEvents(token *ledger.CredentialToken, proof *ledger.RetirementProof) {
	if err := r.EventPublisher.Publish(event.CredentialRetiredTopic, &event.CredentialRetired{
		TokenID:         token.ID,
		Quantity:        token.Quantity,
		VerificationRef: token.VerificationRef,
		RetiredBy:       string(proof.RetiredBy),
	}); err != nil {
		logger.Warn("Error publishing credential-retired event", log.WithError(err),
			logfields.WithTokenID(token.ID))
	}

	if err := r.EventPublisher.Publish(event.ProofMintedTopic, &event.ProofMinted{
		ProofID:   proof.ID,
		TokenID:   token.ID,
		Quantity:  proof.Quantity,
		RetiredBy: string(proof.RetiredBy),
	}); err != nil {
		logger.Warn("Error publishing proof-minted event", log.WithError(err),
			logfields.WithProofID(proof.ID))
	}
}

// compensateBridge rolls back a partially-applied bridge: the minted
// fungible amount is burned and the consumed token is restored.
func (r *Registry) compensateBridge(token *ledger.CredentialToken, mintedAmount uint64) {
	if _, err := r.bridgeProviders.Capability.Burn(mintedAmount); err != nil {
		logger.Error("Error burning fungible amount while rolling back bridge",
			log.WithError(err), logfields.WithTokenID(token.ID), logfields.WithAmount(mintedAmount))
	}

	r.restoreToken(token)
}

// releaseVerificationRef rolls back the consumption of a verification
// reference so that a failed mint does not burn the reference forever.
func (r *Registry) releaseVerificationRef(ref []byte) {
	if err := r.VerificationLedger.Delete(ref); err != nil {
		logger.Error("Error releasing verification reference while rolling back mint",
			log.WithError(err))
	}
}

func (r *Registry) restoreToken(token *ledger.CredentialToken) {
	if err := r.CredentialStore.Put(token); err != nil {
		logger.Error("Error restoring credential token while rolling back",
			log.WithError(err), logfields.WithTokenID(token.ID))
	}
}
