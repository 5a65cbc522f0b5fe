/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package lifecycle

import (
	"errors"
	"sync/atomic"

	"github.com/trustbloc/logutil-go/pkg/log"

	logfields "github.com/trustbloc/creditledger/internal/pkg/log"
)

var logger = log.New("lifecycle")

// State is the state of a service.
type State = uint32

// Service states.
const (
	StateNotStarted State = 0
	StateStarting   State = 1
	StateStarted    State = 2
	StateStopped    State = 3
)

// ErrNotStarted indicates that an operation was attempted on a service that has not been started.
var ErrNotStarted = errors.New("service has not started")

type options struct {
	start func()
	stop  func()
}

// Opt sets a lifecycle option.
type Opt func(opts *options)

// WithStart sets the start function which is invoked when Start() is called.
func WithStart(start func()) Opt {
	return func(opts *options) {
		opts.start = start
	}
}

// WithStop sets the stop function which is invoked when Stop() is called.
func WithStop(stop func()) Opt {
	return func(opts *options) {
		opts.stop = stop
	}
}

// Lifecycle implements the lifecycle of a service, i.e. Start and Stop.
type Lifecycle struct {
	*options

	name  string
	state uint32
}

// New returns a new Lifecycle.
func New(name string, opts ...Opt) *Lifecycle {
	lcOpts := &options{
		start: func() {},
		stop:  func() {},
	}

	for _, opt := range opts {
		opt(lcOpts)
	}

	return &Lifecycle{
		options: lcOpts,
		name:    name,
	}
}

// Start starts the service. A service may only be started once. Subsequent invocations are ignored.
func (h *Lifecycle) Start() {
	if !atomic.CompareAndSwapUint32(&h.state, StateNotStarted, StateStarting) {
		logger.Debug("Service already started", logfields.WithServiceName(h.name))

		return
	}

	logger.Debug("Starting service ...", logfields.WithServiceName(h.name))

	h.start()

	logger.Debug("... service started", logfields.WithServiceName(h.name))

	atomic.StoreUint32(&h.state, StateStarted)
}

// Stop stops the service. A service may only be stopped once. Subsequent invocations are ignored.
func (h *Lifecycle) Stop() {
	if !atomic.CompareAndSwapUint32(&h.state, StateStarted, StateStopped) {
		logger.Debug("Service already stopped", logfields.WithServiceName(h.name))

		return
	}

	logger.Debug("Stopping service ...", logfields.WithServiceName(h.name))

	h.stop()

	logger.Debug("... service stopped", logfields.WithServiceName(h.name))
}

// State returns the state of the service.
func (h *Lifecycle) State() State {
	return atomic.LoadUint32(&h.state)
}
