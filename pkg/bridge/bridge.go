/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package bridge holds the administrative capability and the fungible
// supply ledger for the bridged-credit unit.
package bridge

const (
	// Denom is the denomination of the fungible bridged-credit unit.
	Denom = "ubridgedcredit"

	// UnitScale converts a token quantity into fungible units. The unit
	// carries nine decimals.
	UnitScale = uint64(1_000_000_000)

	// TransferDecimals is the fixed decimal precision of the cross-chain
	// transfer convention. Amounts are truncated to this precision before
	// transfer and the remainder is burned.
	TransferDecimals = 8
)
