/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package spi

// UndeliverableTopic is the topic to which to post undeliverable messages.
const UndeliverableTopic = "creditledger.undeliverable"

// Options contains publisher/subscriber options.
type Options struct {
	PoolSize int
}

// Option specifies a publisher/subscriber option.
type Option func(option *Options)

// WithPool sets the size of the subscriber pool for a subscription, allowing messages
// on the same topic to be processed concurrently.
func WithPool(size int) Option {
	return func(option *Options) {
		option.PoolSize = size
	}
}
