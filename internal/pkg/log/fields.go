/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package log

import (
	"go.uber.org/zap"
)

// Log Fields.
const (
	FieldTokenID         = "token-id"
	FieldProofID         = "proof-id"
	FieldListingID       = "listing-id"
	FieldVerificationRef = "verification-ref"
	FieldRecipient       = "recipient"
	FieldSeller          = "seller"
	FieldBuyer           = "buyer"
	FieldOwner           = "owner"
	FieldQuantity        = "quantity"
	FieldAmount          = "amount"
	FieldPrice           = "price"
	FieldCategory        = "category"
	FieldChainID         = "chain-id"
	FieldSequence        = "sequence"
	FieldTopic           = "topic"
	FieldMessageID       = "message-id"
	FieldMetadata        = "metadata"
	FieldProperty        = "property"
	FieldValue           = "value"
	FieldType            = "type"
	FieldParameter       = "parameter"
	FieldStoreName       = "store"
	FieldDenom           = "denom"
	FieldTotalItems      = "total"
	FieldAddress         = "address"
	FieldLogSpec         = "log-spec"
	FieldKey             = "key"
	FieldServiceName     = "service"
	FieldIndex           = "index"
	FieldSize            = "size"
)

// WithIndex sets the index field.
func WithIndex(value int) zap.Field {
	return zap.Int(FieldIndex, value)
}

// WithSize sets the size field.
func WithSize(value int) zap.Field {
	return zap.Int(FieldSize, value)
}

// WithServiceName sets the service field.
func WithServiceName(value string) zap.Field {
	return zap.String(FieldServiceName, value)
}

// WithTokenID sets the token-id field.
func WithTokenID(value string) zap.Field {
	return zap.String(FieldTokenID, value)
}

// WithProofID sets the proof-id field.
func WithProofID(value string) zap.Field {
	return zap.String(FieldProofID, value)
}

// WithListingID sets the listing-id field.
func WithListingID(value string) zap.Field {
	return zap.String(FieldListingID, value)
}

// WithVerificationRef sets the verification-ref field.
func WithVerificationRef(value []byte) zap.Field {
	return zap.ByteString(FieldVerificationRef, value)
}

// WithRecipient sets the recipient field.
func WithRecipient(value string) zap.Field {
	return zap.String(FieldRecipient, value)
}

// WithSeller sets the seller field.
func WithSeller(value string) zap.Field {
	return zap.String(FieldSeller, value)
}

// WithBuyer sets the buyer field.
func WithBuyer(value string) zap.Field {
	return zap.String(FieldBuyer, value)
}

// WithOwner sets the owner field.
func WithOwner(value string) zap.Field {
	return zap.String(FieldOwner, value)
}

// WithQuantity sets the quantity field.
func WithQuantity(value uint64) zap.Field {
	return zap.Uint64(FieldQuantity, value)
}

// WithAmount sets the amount field.
func WithAmount(value uint64) zap.Field {
	return zap.Uint64(FieldAmount, value)
}

// WithPrice sets the price field.
func WithPrice(value uint64) zap.Field {
	return zap.Uint64(FieldPrice, value)
}

// WithCategory sets the category field.
func WithCategory(value uint8) zap.Field {
	return zap.Uint8(FieldCategory, value)
}

// WithChainID sets the chain-id field.
func WithChainID(value uint16) zap.Field {
	return zap.Uint16(FieldChainID, value)
}

// WithSequence sets the sequence field.
func WithSequence(value uint64) zap.Field {
	return zap.Uint64(FieldSequence, value)
}

// WithTopic sets the topic field.
func WithTopic(value string) zap.Field {
	return zap.String(FieldTopic, value)
}

// WithMessageID sets the message-id field.
func WithMessageID(value string) zap.Field {
	return zap.String(FieldMessageID, value)
}

// WithMetadata sets the metadata field.
func WithMetadata(value interface{}) zap.Field {
	return zap.Any(FieldMetadata, value)
}

// WithProperty sets the property field.
func WithProperty(value string) zap.Field {
	return zap.String(FieldProperty, value)
}

// WithValue sets the value field.
func WithValue(value string) zap.Field {
	return zap.String(FieldValue, value)
}

// WithType sets the type field.
func WithType(value string) zap.Field {
	return zap.String(FieldType, value)
}

// WithParameter sets the parameter field.
func WithParameter(value string) zap.Field {
	return zap.String(FieldParameter, value)
}

// WithStoreName sets the store field.
func WithStoreName(value string) zap.Field {
	return zap.String(FieldStoreName, value)
}

// WithDenom sets the denom field.
func WithDenom(value string) zap.Field {
	return zap.String(FieldDenom, value)
}

// WithTotal sets the total field.
func WithTotal(value int) zap.Field {
	return zap.Int(FieldTotalItems, value)
}

// WithAddress sets the address field.
func WithAddress(value string) zap.Field {
	return zap.String(FieldAddress, value)
}

// WithLogSpec sets the log-spec field.
func WithLogSpec(value string) zap.Field {
	return zap.String(FieldLogSpec, value)
}

// WithKey sets the key field.
func WithKey(value string) zap.Field {
	return zap.String(FieldKey, value)
}
