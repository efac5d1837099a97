// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	t.Run("empty method means GET", func(t *testing.T) {
		r, err := NewRequest("", "http://example.com", nil)
		require.NoError(t, err)
		assert.Equal(t, "GET", r.Method)
	})
	t.Run("invalid method", func(t *testing.T) {
		_, err := NewRequest("GET IT", "http://example.com", nil)
		assert.Error(t, err)
	})
	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRequest("GET", "://nope", nil)
		assert.Error(t, err)
	})
	t.Run("empty port is stripped", func(t *testing.T) {
		r, err := NewRequest("GET", "http://example.com:/x", nil)
		require.NoError(t, err)
		assert.Equal(t, "example.com", r.URL.Host)
	})
	t.Run("nil context", func(t *testing.T) {
		_, err := NewRequestWithContext(nil, "GET", "http://example.com", nil) //nolint:staticcheck
		assert.Error(t, err)
	})
	t.Run("invalid body type", func(t *testing.T) {
		_, err := NewRequest("POST", "http://example.com", 42)
		assert.Error(t, err)
	})
}

func TestRequestBodies(t *testing.T) {
	t.Run("nil body", func(t *testing.T) {
		r, err := NewRequest("GET", "http://example.com", nil)
		require.NoError(t, err)
		assert.Nil(t, r.Body)
		assert.True(t, r.IsReplayable())
	})
	t.Run("string body is strict and replayable", func(t *testing.T) {
		r, err := NewRequest("PUT", "http://example.com", "hello")
		require.NoError(t, err)
		require.NotNil(t, r.GetBody)
		assert.Equal(t, int64(5), r.ContentLength)
		assert.True(t, r.IsReplayable())
		for i := 0; i < 2; i++ {
			rc, err := r.GetBody()
			require.NoError(t, err)
			b, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, "hello", string(b), "replay %d", i)
		}
	})
	t.Run("byte slice body is strict and replayable", func(t *testing.T) {
		r, err := NewRequest("PUT", "http://example.com", []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, int64(3), r.ContentLength)
		assert.True(t, r.IsReplayable())
	})
	t.Run("reader body is one-shot", func(t *testing.T) {
		r, err := NewRequest("PUT", "http://example.com", strings.NewReader("stream"))
		require.NoError(t, err)
		assert.NotNil(t, r.Body)
		assert.Nil(t, r.GetBody)
		assert.False(t, r.IsReplayable())
	})
	t.Run("empty strict body means no entity", func(t *testing.T) {
		r, err := NewRequest("PUT", "http://example.com", "")
		require.NoError(t, err)
		assert.Nil(t, r.Body)
		assert.True(t, r.IsReplayable())
	})
}

func TestIsIdempotent(t *testing.T) {
	idempotent := []string{"GET", "HEAD", "OPTIONS", "TRACE", "PUT", "DELETE", ""}
	for _, m := range idempotent {
		t.Run(fmt.Sprintf("%q", m), func(t *testing.T) {
			r := &Request{Method: m}
			assert.True(t, r.IsIdempotent())
		})
	}
	notIdempotent := []string{"POST", "PATCH", "CONNECT", "LOCK"}
	for _, m := range notIdempotent {
		t.Run(m, func(t *testing.T) {
			r := &Request{Method: m}
			assert.False(t, r.IsIdempotent())
		})
	}
}

func TestWithContext(t *testing.T) {
	r, err := NewRequest("GET", "http://example.com", nil)
	require.NoError(t, err)
	assert.Equal(t, context.Background(), r.Context())

	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	r2 := r.WithContext(ctx)
	assert.NotSame(t, r, r2)
	assert.Same(t, ctx, r2.Context())
	assert.Equal(t, context.Background(), r.Context())

	assert.Panics(t, func() { r.WithContext(nil) }) //nolint:staticcheck
}

func TestSetBasicAuth(t *testing.T) {
	r, err := NewRequest("GET", "http://example.com", nil)
	require.NoError(t, err)
	r.SetBasicAuth("user", "pass")
	assert.Equal(t, "Basic dXNlcjpwYXNz", r.Header.Get("Authorization"))
}

func TestAddCookie(t *testing.T) {
	r, err := NewRequest("GET", "http://example.com", nil)
	require.NoError(t, err)
	r.AddCookie(&http.Cookie{Name: "a", Value: "1"})
	r.AddCookie(&http.Cookie{Name: "b", Value: "2"})
	assert.Equal(t, "a=1; b=2", r.Header.Get("Cookie"))
}

func TestToHTTP(t *testing.T) {
	r, err := NewRequest("PUT", "http://example.com/x", "body")
	require.NoError(t, err)
	r.Header.Set("X-Custom", "yes")
	r.Close = true

	hr, err := r.ToHTTP(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "PUT", hr.Method)
	assert.Equal(t, "/x", hr.URL.Path)
	assert.Equal(t, "yes", hr.Header.Get("X-Custom"))
	assert.Equal(t, int64(4), hr.ContentLength)
	assert.True(t, hr.Close)
	require.NotNil(t, hr.Body)
	b, err := io.ReadAll(hr.Body)
	require.NoError(t, err)
	assert.Equal(t, "body", string(b))

	// A second conversion gets a fresh entity stream.
	hr2, err := r.ToHTTP(context.Background())
	require.NoError(t, err)
	b, err = io.ReadAll(hr2.Body)
	require.NoError(t, err)
	assert.Equal(t, "body", string(b))
}
