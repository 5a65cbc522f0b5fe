/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package event defines the domain events emitted by the registry,
// marketplace, and bridge services, along with the topics they are
// published to.
package event

// Topics for the domain events.
const (
	CredentialMintedTopic  = "credential-minted"
	CredentialRetiredTopic = "credential-retired"
	ProofMintedTopic       = "proof-minted"
	ListingCreatedTopic    = "listing-created"
	ItemSoldTopic          = "item-sold"
	ListingCancelledTopic  = "listing-cancelled"
	BridgeInitiatedTopic   = "bridge-initiated"
)

// CredentialMinted is published when a new credential token is minted.
type CredentialMinted struct {
	TokenID         string `json:"tokenId"`
	Quantity        uint64 `json:"quantity"`
	Category        uint8  `json:"category"`
	VerificationRef []byte `json:"verificationRef"`
	Recipient       string `json:"recipient"`
}

// CredentialRetired is published when a credential token is retired.
type CredentialRetired struct {
	TokenID         string `json:"tokenId"`
	Quantity        uint64 `json:"quantity"`
	VerificationRef []byte `json:"verificationRef"`
	RetiredBy       string `json:"retiredBy"`
}

// ProofMinted is published when a retirement proof is minted.
type ProofMinted struct {
	ProofID   string `json:"proofId"`
	TokenID   string `json:"tokenId"`
	Quantity  uint64 `json:"quantity"`
	RetiredBy string `json:"retiredBy"`
}

// ListingCreated is published when a token is listed on the marketplace.
type ListingCreated struct {
	ListingID string `json:"listingId"`
	TokenID   string `json:"tokenId"`
	Price     uint64 `json:"price"`
	Seller    string `json:"seller"`
}

// ItemSold is published when a listed token is bought.
type ItemSold struct {
	ListingID string `json:"listingId"`
	TokenID   string `json:"tokenId"`
	Price     uint64 `json:"price"`
	Seller    string `json:"seller"`
	Buyer     string `json:"buyer"`
}

// ListingCancelled is published when a listing is cancelled by its seller.
type ListingCancelled struct {
	ListingID string `json:"listingId"`
	TokenID   string `json:"tokenId"`
	Seller    string `json:"seller"`
}

// BridgeInitiated is published when a token is retired into a bridged
// fungible amount destined for another chain.
type BridgeInitiated struct {
	TokenID         string `json:"tokenId"`
	Amount          uint64 `json:"amount"`
	Dust            uint64 `json:"dust"`
	TargetChainID   uint16 `json:"targetChainId"`
	TargetRecipient []byte `json:"targetRecipient"`
	Sequence        uint64 `json:"sequence"`
}
