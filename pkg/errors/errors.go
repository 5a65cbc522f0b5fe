/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package errors

import (
	"errors"
	"fmt"
)

var (
	transientType = &transient{} //nolint:gochecknoglobals

	invalidRequestType = &badRequest{} //nolint:gochecknoglobals

	// ErrInvalidAmount is used to indicate that a mint was attempted with a zero quantity.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrDuplicateVerification is used to indicate that the given verification reference
	// was already consumed by a previous mint.
	ErrDuplicateVerification = errors.New("duplicate verification reference")

	// ErrIncorrectPaymentAmount is used to indicate that the payment supplied to a purchase
	// does not exactly match the listing price.
	ErrIncorrectPaymentAmount = errors.New("incorrect payment amount")

	// ErrNotSeller is used to indicate that a listing operation was attempted by an account
	// other than the listing's seller.
	ErrNotSeller = errors.New("not the seller of the listing")

	// ErrBridgeNotInitialized is used to indicate that bridging was attempted before the
	// administrative capability was bound to the transport coordinators.
	ErrBridgeNotInitialized = errors.New("bridge not initialized")

	// ErrBridgeAlreadyInitialized is used to indicate that the one-time binding of the
	// administrative capability was attempted more than once.
	ErrBridgeAlreadyInitialized = errors.New("bridge already initialized")

	// ErrAssetNotRegistered is used to indicate that the fungible unit is not registered
	// as a native asset with the token-transport coordinator.
	ErrAssetNotRegistered = errors.New("asset not registered with token transport")

	// ErrTokenNotFound is used to indicate that the given credential token does not exist.
	ErrTokenNotFound = errors.New("credential token not found")

	// ErrProofNotFound is used to indicate that the given retirement proof does not exist.
	ErrProofNotFound = errors.New("retirement proof not found")

	// ErrListingNotFound is used to indicate that the given listing does not exist
	// (never created, already sold, or cancelled).
	ErrListingNotFound = errors.New("listing not found")

	// ErrNotOwner is used to indicate that the caller does not currently own the object.
	ErrNotOwner = errors.New("not the owner")

	// ErrProofFrozen is used to indicate that the retirement proof was already frozen.
	ErrProofFrozen = errors.New("retirement proof is frozen")

	// ErrUnauthorized is used to indicate that the caller does not possess the capability
	// required by the operation.
	ErrUnauthorized = errors.New("unauthorized")
)

// NewTransient returns a transient error that wraps the given error in order to indicate to the caller that a retry may
// resolve the problem, whereas a non-transient (persistent) error will always fail with the same outcome if retried.
func NewTransient(err error) error {
	return &transient{err: err}
}

// NewTransientf returns a transient error in order to indicate to the caller that a retry may resolve the problem,
// whereas a non-transient (persistent) error will always fail with the same outcome if retried.
func NewTransientf(format string, a ...interface{}) error {
	return &transient{err: fmt.Errorf(format, a...)}
}

// IsTransient returns true if the given error is a 'transient' error.
func IsTransient(err error) bool {
	return errors.As(err, &transientType)
}

// NewBadRequest returns a 'bad request' error that wraps the given error in order to indicate to the caller that
// the request was invalid.
func NewBadRequest(err error) error {
	return &badRequest{err: err}
}

// NewBadRequestf returns a 'bad request' error in order to indicate to the caller that the request was invalid.
func NewBadRequestf(format string, a ...interface{}) error {
	return &badRequest{err: fmt.Errorf(format, a...)}
}

// IsBadRequest returns true if the given error is a 'bad request' error.
func IsBadRequest(err error) bool {
	return errors.As(err, &invalidRequestType)
}

type transient struct {
	err error
}

func (e *transient) Error() string {
	return e.err.Error()
}

func (e *transient) Unwrap() error {
	return e.err
}

type badRequest struct {
	err error
}

func (e *badRequest) Error() string {
	return e.err.Error()
}

func (e *badRequest) Unwrap() error {
	return e.err
}
