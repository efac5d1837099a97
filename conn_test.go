// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWillCloseAfter(t *testing.T) {
	req := func() *http.Request {
		return &http.Request{Header: make(http.Header)}
	}
	resp := func(major, minor int) *http.Response {
		return &http.Response{ProtoMajor: major, ProtoMinor: minor, Header: make(http.Header)}
	}

	t.Run("http/1.1 keep-alive by default", func(t *testing.T) {
		assert.False(t, willCloseAfter(req(), resp(1, 1)))
	})
	t.Run("request demanded closure", func(t *testing.T) {
		hr := req()
		hr.Close = true
		assert.True(t, willCloseAfter(hr, resp(1, 1)))
	})
	t.Run("request connection close header", func(t *testing.T) {
		hr := req()
		hr.Header.Set("Connection", "close")
		assert.True(t, willCloseAfter(hr, resp(1, 1)))
	})
	t.Run("response close flag", func(t *testing.T) {
		r := resp(1, 1)
		r.Close = true
		assert.True(t, willCloseAfter(req(), r))
	})
	t.Run("response connection close header", func(t *testing.T) {
		r := resp(1, 1)
		r.Header.Set("Connection", "close")
		assert.True(t, willCloseAfter(req(), r))
	})
	t.Run("connection header token list", func(t *testing.T) {
		r := resp(1, 1)
		r.Header.Set("Connection", "keep-alive, close")
		assert.True(t, willCloseAfter(req(), r))
	})
	t.Run("token match is not substring match", func(t *testing.T) {
		r := resp(1, 1)
		r.Header.Set("Connection", "not-close")
		assert.False(t, willCloseAfter(req(), r))
	})
	t.Run("http/1.0 closes by default", func(t *testing.T) {
		assert.True(t, willCloseAfter(req(), resp(1, 0)))
	})
	t.Run("http/1.0 with keep-alive persists", func(t *testing.T) {
		r := resp(1, 0)
		r.Header.Set("Connection", "keep-alive")
		assert.False(t, willCloseAfter(req(), r))
	})
}
