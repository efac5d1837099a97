// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package retry

import (
	"errors"
	"io"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogama/hostpool/request"
)

func ctxFor(t *testing.T, method string, body interface{}, retries int) *request.Context {
	r, err := request.NewRequest(method, "http://example.com", body)
	require.NoError(t, err)
	return request.NewContext(r, retries)
}

func TestDefaultDecider(t *testing.T) {
	transientCause := syscall.ECONNREFUSED
	t.Run("retries transient failure of safe request", func(t *testing.T) {
		rc := ctxFor(t, "GET", nil, 2)
		assert.True(t, DefaultDecider.Decide(rc, transientCause))
	})
	t.Run("rejects when no retries left", func(t *testing.T) {
		rc := ctxFor(t, "GET", nil, 0)
		assert.False(t, DefaultDecider.Decide(rc, transientCause))
	})
	t.Run("rejects non-idempotent method", func(t *testing.T) {
		rc := ctxFor(t, "POST", nil, 2)
		assert.False(t, DefaultDecider.Decide(rc, transientCause))
	})
	t.Run("rejects one-shot entity", func(t *testing.T) {
		rc := ctxFor(t, "PUT", strings.NewReader("x"), 2)
		assert.False(t, DefaultDecider.Decide(rc, transientCause))
	})
	t.Run("rejects non-transient cause", func(t *testing.T) {
		rc := ctxFor(t, "GET", nil, 2)
		assert.False(t, DefaultDecider.Decide(rc, errors.New("400 level nonsense")))
	})
	t.Run("retries early close", func(t *testing.T) {
		rc := ctxFor(t, "GET", nil, 2)
		assert.True(t, DefaultDecider.Decide(rc, io.ErrUnexpectedEOF))
	})
}

func TestBuiltInDeciders(t *testing.T) {
	rc := ctxFor(t, "GET", nil, 1)
	cause := errors.New("cause")
	assert.True(t, Always.Decide(rc, cause))
	assert.False(t, Never.Decide(rc, cause))
	assert.True(t, HasAttemptsLeft.Decide(rc, cause))
	assert.False(t, HasAttemptsLeft.Decide(ctxFor(t, "GET", nil, 0), cause))
	assert.True(t, IdempotentMethod.Decide(rc, cause))
	assert.False(t, IdempotentMethod.Decide(ctxFor(t, "POST", nil, 1), cause))
	assert.True(t, ReplayableEntity.Decide(rc, cause))
	assert.False(t, ReplayableEntity.Decide(ctxFor(t, "PUT", strings.NewReader("x"), 1), cause))
	assert.True(t, TransientErr.Decide(rc, syscall.ECONNRESET))
	assert.False(t, TransientErr.Decide(rc, cause))
}

func TestDeciderComposition(t *testing.T) {
	rc := ctxFor(t, "GET", nil, 1)
	cause := errors.New("cause")

	t.Run("And", func(t *testing.T) {
		assert.True(t, Always.And(Always).Decide(rc, cause))
		assert.False(t, Always.And(Never).Decide(rc, cause))
		assert.False(t, Never.And(Always).Decide(rc, cause))
	})
	t.Run("And short-circuits", func(t *testing.T) {
		called := false
		spy := DeciderFunc(func(*request.Context, error) bool { called = true; return true })
		assert.False(t, Never.And(spy).Decide(rc, cause))
		assert.False(t, called)
	})
	t.Run("Or", func(t *testing.T) {
		assert.True(t, Never.Or(Always).Decide(rc, cause))
		assert.True(t, Always.Or(Never).Decide(rc, cause))
		assert.False(t, Never.Or(Never).Decide(rc, cause))
	})
	t.Run("Or short-circuits", func(t *testing.T) {
		called := false
		spy := DeciderFunc(func(*request.Context, error) bool { called = true; return true })
		assert.True(t, Always.Or(spy).Decide(rc, cause))
		assert.False(t, called)
	})
}
