/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package ledger contains the core types of the credit ledger: credential tokens that
// represent verified real-world claims, the soulbound proofs minted when a token is
// retired, and the escrow listings that hold tokens for sale.
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Account identifies a ledger account.
type Account string

// Category is a small enumerated tag describing the kind of claim behind a credential token.
type Category uint8

// CredentialToken represents one verified real-world claim. A token is owned by a single
// account at a time and is destroyed by retirement or by bridging-retirement.
type CredentialToken struct {
	ID              string   `json:"id"`
	Quantity        uint64   `json:"quantity"`
	Category        Category `json:"category"`
	VerificationRef []byte   `json:"verificationRef"`
	IssuedAt        int64    `json:"issuedAt"` // Milliseconds since epoch, ledger-supplied.
	Owner           Account  `json:"owner"`
}

// RetirementProof is the soulbound receipt minted when a credential token is retired.
// Exactly one proof is created per retirement; it is never merged or split.
type RetirementProof struct {
	ID              string  `json:"id"`
	TokenID         string  `json:"tokenId"`
	RetiredBy       Account `json:"retiredBy"`
	Quantity        uint64  `json:"quantity"`
	VerificationRef []byte  `json:"verificationRef"`
	RetiredAt       int64   `json:"retiredAt"`
	Frozen          bool    `json:"frozen"`
}

// Listing is an escrow wrapper around exactly one credential token. The wrapped token's
// ownership is transferred into the listing for as long as the listing is active.
type Listing struct {
	ID      string           `json:"id"`
	TokenID string           `json:"tokenId"`
	Token   *CredentialToken `json:"token"`
	Price   uint64           `json:"price"` // Smallest currency unit. Fixed at creation.
	Seller  Account          `json:"seller"`
}

// Payment is the bearer payment instrument supplied to a purchase. Funding the payment
// is the responsibility of the caller's wallet layer.
type Payment struct {
	Amount uint64 `json:"amount"`
}

// NewID returns a fresh, never-reused object identity.
func NewID() string {
	return uuid.New().String()
}

// Clock supplies ledger timestamps.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// SystemClock is a Clock on the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}
