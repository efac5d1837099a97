// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package hostpool provides a bounded pool of HTTP/1.1 client
connections to a single host, built around a per-slot connection
state machine.

Create a Pool with a Dialer for the target host to begin making
requests.

	pool, err := hostpool.New(hostpool.NewNetDialer("example.com:80"), hostpool.Settings{})
	...
	req, err := request.NewRequest("GET", "http://example.com/", nil)
	resp, err := pool.Do(context.Background(), req)
	...
	body := resp.Entity.Subscribe()
	defer body.Close()

Each of the pool's slots owns at most one connection and at most one
in-flight request. A slot's behavior is decided by the pure state
machine in package slot, which coordinates the four asynchronous
signals of an HTTP/1.1 exchange (connection lifecycle, request
entity completion, response head arrival, and response entity
subscription and completion) without performing any I/O itself. The
pool routes requests to eligible slots, keeps a configurable number
of connections warm, and re-enqueues failed requests that are safe to
retry.

For control over which failures are retried and how long to back off,
plug components from package retry into Settings:

	settings := hostpool.Settings{
		RetryDecider: retry.HasAttemptsLeft.And(retry.TransientErr),
		RetryWaiter:  retry.NewFixedWaiter(time.Second),
	}

For streaming consumption of every completed exchange, receive from
the merged output stream instead of awaiting individual promises:

	out := pool.Responses()
	go func() {
		for rc := range out {
			...
		}
	}()

The pool does not pipeline requests: a second request is never queued
behind a first on the same connection, because another slot may be
idle or may become idle sooner.
*/
package hostpool
