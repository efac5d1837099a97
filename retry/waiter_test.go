// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogama/hostpool/request"
)

func attemptCtx(t *testing.T, attempt int) *request.Context {
	r, err := request.NewRequest("GET", "http://example.com", nil)
	require.NoError(t, err)
	rc := request.NewContext(r, attempt+1)
	for i := 0; i < attempt; i++ {
		rc = rc.WithRetry()
	}
	return rc
}

func TestFixedWaiter(t *testing.T) {
	w := NewFixedWaiter(250 * time.Millisecond)
	for attempt := 0; attempt < 4; attempt++ {
		assert.Equal(t, 250*time.Millisecond, w.Wait(attemptCtx(t, attempt)))
	}
}

func TestExpWaiterNoJitter(t *testing.T) {
	w := NewExpWaiter(50*time.Millisecond, 400*time.Millisecond, nil)
	expected := []time.Duration{
		50 * time.Millisecond,
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		400 * time.Millisecond, // capped
	}
	for attempt, want := range expected {
		assert.Equal(t, want, w.Wait(attemptCtx(t, attempt)), "attempt %d", attempt)
	}
}

func TestExpWaiterJitterStaysBelowCeiling(t *testing.T) {
	w := NewExpWaiter(50*time.Millisecond, time.Second, int64(12345))
	for attempt := 0; attempt < 8; attempt++ {
		rc := attemptCtx(t, attempt)
		for i := 0; i < 20; i++ {
			d := w.Wait(rc)
			assert.GreaterOrEqual(t, d, time.Duration(0))
			assert.Less(t, d, time.Second)
		}
	}
}

func TestExpWaiterOverflowCapsAtMax(t *testing.T) {
	w := NewExpWaiter(time.Second, 30*time.Second, nil)
	assert.Equal(t, 30*time.Second, w.Wait(attemptCtx(t, 62)))
	assert.Equal(t, 30*time.Second, w.Wait(attemptCtx(t, 63)))
}

func TestNewExpWaiterValidation(t *testing.T) {
	assert.Panics(t, func() { NewExpWaiter(0, time.Second, nil) })
	assert.Panics(t, func() { NewExpWaiter(time.Second, time.Millisecond, nil) })
	assert.Panics(t, func() { NewExpWaiter(time.Second, time.Minute, "seed") })
	assert.Panics(t, func() { NewExpWaiter(time.Second, time.Minute, (*rand.Rand)(nil)) })
}

func TestJitterSources(t *testing.T) {
	sources := []interface{}{
		time.Now(),
		42,
		int64(42),
		rand.NewSource(42),
		rand.New(rand.NewSource(42)),
	}
	for i, j := range sources {
		w := NewExpWaiter(time.Millisecond, time.Second, j)
		assert.NotNil(t, w, "jitter source %d", i)
	}
}
