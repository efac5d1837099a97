// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"context"
	"crypto/tls"
	"net"
)

// A Dialer establishes one outbound transport session to the pool's
// host. The pool calls DialContext each time a slot needs a fresh
// connection; the context is cancelled when the pool shuts down.
//
// Implementations of Dialer must be safe for concurrent use by
// multiple goroutines, as several slots may dial at once.
type Dialer interface {
	DialContext(ctx context.Context) (net.Conn, error)
}

// The DialerFunc type is an adapter to allow the use of ordinary
// functions as dialers.
type DialerFunc func(ctx context.Context) (net.Conn, error)

// DialContext calls f(ctx).
func (f DialerFunc) DialContext(ctx context.Context) (net.Conn, error) {
	return f(ctx)
}

// NewNetDialer returns a Dialer that opens plain TCP connections to
// addr (a "host:port" string) using the standard net.Dialer.
func NewNetDialer(addr string) Dialer {
	d := &net.Dialer{}
	return DialerFunc(func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	})
}

// NewTLSDialer returns a Dialer that opens TLS sessions to addr (a
// "host:port" string). A nil config means the default TLS
// configuration with the server name inferred from addr.
func NewTLSDialer(addr string, config *tls.Config) Dialer {
	d := &tls.Dialer{Config: config}
	return DialerFunc(func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	})
}
