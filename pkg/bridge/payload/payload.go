/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package payload implements the canonical binary encoding of the
// cross-chain bridge payload. The encoding is the byte-exact contract
// that the foreign-chain receiver replicates, so it uses the CBOR core
// deterministic encoding options.
package payload

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Payload carries the fields of a retired credential token to the
// foreign-chain receiver.
type Payload struct {
	SourceTokenID   [32]byte `cbor:"1,keyasint"`
	Quantity        uint64   `cbor:"2,keyasint"`
	Category        uint8    `cbor:"3,keyasint"`
	VerificationRef []byte   `cbor:"4,keyasint"`
	SourceOwner     string   `cbor:"5,keyasint"`
	TargetRecipient []byte   `cbor:"6,keyasint"`
	TargetChainID   uint16   `cbor:"7,keyasint"`
}

// TokenIDBytes derives the fixed 32-byte token identifier carried in the
// payload from the token's string identity.
func TokenIDBytes(tokenID string) [32]byte {
	return sha256.Sum256([]byte(tokenID))
}

// Codec encodes and decodes bridge payloads.
type Codec struct {
	encMode cbor.EncMode
}

// NewCodec returns a codec using the CBOR core deterministic encoding.
func NewCodec() (*Codec, error) {
	encMode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("create deterministic encode mode: %w", err)
	}

	return &Codec{encMode: encMode}, nil
}

// Marshal encodes the given payload.
func (c *Codec) Marshal(p *Payload) ([]byte, error) {
	payloadBytes, err := c.encMode.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal bridge payload: %w", err)
	}

	return payloadBytes, nil
}

// Unmarshal decodes the given payload bytes.
func (c *Codec) Unmarshal(data []byte) (*Payload, error) {
	p := &Payload{}

	if err := cbor.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("unmarshal bridge payload: %w", err)
	}

	return p, nil
}
