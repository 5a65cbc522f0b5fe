/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle(t *testing.T) {
	started := false
	stopped := false

	lc := New("service1",
		WithStart(func() { started = true }),
		WithStop(func() { stopped = true }),
	)

	require.Equal(t, StateNotStarted, lc.State())

	lc.Start()

	require.True(t, started)
	require.Equal(t, StateStarted, lc.State())

	// Second start is a no-op.
	lc.Start()
	require.Equal(t, StateStarted, lc.State())

	lc.Stop()

	require.True(t, stopped)
	require.Equal(t, StateStopped, lc.State())

	// Second stop is a no-op.
	lc.Stop()
	require.Equal(t, StateStopped, lc.State())
}

func TestLifecycle_Defaults(t *testing.T) {
	lc := New("service2")

	require.NotPanics(t, lc.Start)
	require.NotPanics(t, lc.Stop)

	// Stop before start is ignored.
	lc2 := New("service3")
	lc2.Stop()
	require.Equal(t, StateNotStarted, lc2.State())
}
