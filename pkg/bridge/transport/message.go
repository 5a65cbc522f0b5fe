/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
	ledgererrors "github.com/trustbloc/creditledger/pkg/errors"
	"github.com/trustbloc/creditledger/pkg/ledger"
	"github.com/trustbloc/creditledger/pkg/store/storeutil"
)

const (
	// OutboundTopic is the topic the message transport publishes signed
	// envelopes to.
	OutboundTopic = "bridge-outbound"

	messageNameSpace = "msgtransport"

	messageTransportIDKey = "transport-id"
	sequenceKey           = "sequence"
	signingKeyKey         = "signing-key"
	feesKey               = "fees-collected"
)

// Envelope is the signed wrapper around a transfer ticket. The sequence
// number is the receiver's replay protection; the payload itself carries
// no nonce.
type Envelope struct {
	Sequence  uint64          `json:"sequence"`
	Ticket    *TransferTicket `json:"ticket"`
	PublicKey []byte          `json:"publicKey"`
	Signature []byte          `json:"signature"`
}

// SigningBytes returns the bytes covered by the envelope signature.
func (e *Envelope) SigningBytes() []byte {
	buf := make([]byte, 8, 8+len(e.Ticket.Payload))
	binary.BigEndian.PutUint64(buf, e.Sequence)

	return append(buf, e.Ticket.Payload...)
}

// Verify checks the envelope signature against its public key.
func (e *Envelope) Verify() bool {
	if len(e.PublicKey) != ed25519.PublicKeySize {
		return false
	}

	return ed25519.Verify(e.PublicKey, e.SigningBytes(), e.Signature)
}

type publisher interface {
	Publish(topic string, messages ...*message.Message) error
}

// MessageTransport publishes transfer tickets in sequenced, ed25519-signed
// envelopes and collects the publish fee.
type MessageTransport struct {
	store   storage.Store
	pubSub  publisher
	marshal func(v interface{}) ([]byte, error)

	mutex      sync.Mutex
	id         string
	signingKey ed25519.PrivateKey
}

// NewMessageTransport returns the message transport coordinator. The
// coordinator identity, signing key, and sequence counter persist across
// restarts.
func NewMessageTransport(provider storage.Provider, pubSub publisher) (*MessageTransport, error) {
	store, err := storeutil.Open(provider, messageNameSpace)
	if err != nil {
		return nil, fmt.Errorf("open message transport store: %w", err)
	}

	t := &MessageTransport{
		store:   store,
		pubSub:  pubSub,
		marshal: json.Marshal,
	}

	id, err := loadOrCreateID(store, messageTransportIDKey)
	if err != nil {
		return nil, err
	}

	t.id = id

	signingKey, err := loadOrCreateSigningKey(store)
	if err != nil {
		return nil, err
	}

	t.signingKey = signingKey

	return t, nil
}

// ID returns the coordinator's persistent identity.
func (t *MessageTransport) ID() string {
	return t.id
}

// PublicKey returns the public half of the envelope signing key.
func (t *MessageTransport) PublicKey() ed25519.PublicKey {
	return t.signingKey.Public().(ed25519.PublicKey)
}

// Publish wraps the given ticket in the next sequenced envelope, signs
// it, consumes the fee, and publishes it to the outbound topic. It
// returns the envelope's sequence number.
func (t *MessageTransport) Publish(ticket *TransferTicket, fee *ledger.Payment) (uint64, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	sequence, err := t.nextSequence()
	if err != nil {
		return 0, err
	}

	envelope := &Envelope{
		Sequence:  sequence,
		Ticket:    ticket,
		PublicKey: t.PublicKey(),
	}

	envelope.Signature = ed25519.Sign(t.signingKey, envelope.SigningBytes())

	envelopeBytes, err := t.marshal(envelope)
	if err != nil {
		return 0, fmt.Errorf("marshal envelope: %w", err)
	}

	if err := t.collectFee(fee); err != nil {
		return 0, err
	}

	msg := message.NewMessage(watermill.NewUUID(), envelopeBytes)

	if err := t.pubSub.Publish(OutboundTopic, msg); err != nil {
		return 0, ledgererrors.NewTransient(fmt.Errorf("publish envelope: %w", err))
	}

	logger.Debug("Published bridge envelope", logfields.WithSequence(sequence),
		logfields.WithMessageID(msg.UUID), logfields.WithChainID(ticket.TargetChainID))

	return sequence, nil
}

// FeesCollected returns the total fee amount consumed by publishes.
func (t *MessageTransport) FeesCollected() (uint64, error) {
	feesBytes, err := t.store.Get(feesKey)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return 0, nil
		}

		return 0, ledgererrors.NewTransient(fmt.Errorf("get collected fees: %w", err))
	}

	fees, err := strconv.ParseUint(string(feesBytes), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse collected fees: %w", err)
	}

	return fees, nil
}

// nextSequence increments and persists the monotonic sequence counter.
// Sequence numbers start at 1 so that 0 is never a valid envelope.
func (t *MessageTransport) nextSequence() (uint64, error) {
	var sequence uint64

	sequenceBytes, err := t.store.Get(sequenceKey)
	if err != nil {
		if !errors.Is(err, storage.ErrDataNotFound) {
			return 0, ledgererrors.NewTransient(fmt.Errorf("get sequence: %w", err))
		}
	} else {
		sequence, err = strconv.ParseUint(string(sequenceBytes), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parse sequence: %w", err)
		}
	}

	sequence++

	if err := t.store.Put(sequenceKey, []byte(strconv.FormatUint(sequence, 10))); err != nil {
		return 0, ledgererrors.NewTransient(fmt.Errorf("store sequence: %w", err))
	}

	return sequence, nil
}

func (t *MessageTransport) collectFee(fee *ledger.Payment) error {
	if fee == nil || fee.Amount == 0 {
		return nil
	}

	fees, err := t.FeesCollected()
	if err != nil {
		return err
	}

	fees += fee.Amount

	if err := t.store.Put(feesKey, []byte(strconv.FormatUint(fees, 10))); err != nil {
		return ledgererrors.NewTransient(fmt.Errorf("store collected fees: %w", err))
	}

	return nil
}

func loadOrCreateSigningKey(store storage.Store) (ed25519.PrivateKey, error) {
	seed, err := store.Get(signingKeyKey)
	if err == nil {
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("invalid signing key seed size %d", len(seed))
		}

		return ed25519.NewKeyFromSeed(seed), nil
	}

	if !errors.Is(err, storage.ErrDataNotFound) {
		return nil, ledgererrors.NewTransient(fmt.Errorf("get signing key: %w", err))
	}

	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}

	if err := store.Put(signingKeyKey, privateKey.Seed()); err != nil {
		return nil, ledgererrors.NewTransient(fmt.Errorf("store signing key: %w", err))
	}

	return privateKey, nil
}
