// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"bufio"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/gogama/hostpool/request"
	"github.com/gogama/hostpool/slot"
)

// connection wraps one established transport session. It is owned
// exclusively by a slot runtime; the state machine never sees it.
//
// Every event a connection produces carries the generation number the
// connection was created with. The runtime drops events whose
// generation does not match its current one, so signals from a
// previous connection can never leak into a state belonging to a
// newer one.
type connection struct {
	rt     *slotRuntime
	nc     net.Conn
	br     *bufio.Reader
	gen    uint64
	born   time.Time
	broken atomic.Bool
	closed atomic.Bool
	once   sync.Once
}

func newConnection(rt *slotRuntime, nc net.Conn, gen uint64) *connection {
	return &connection{
		rt:   rt,
		nc:   nc,
		br:   bufio.NewReader(nc),
		gen:  gen,
		born: time.Now(),
	}
}

// push hands the request to the connection: one goroutine streams the
// request head and entity, another reads the response head. The two
// run concurrently, so the response may arrive before the request
// entity has been fully written; the state machine's ReqEntityPending
// flag tracks exactly this.
func (c *connection) push(rc *request.Context) {
	hr, err := rc.Request.ToHTTP(rc.Request.Context())
	if err != nil {
		c.deliver(slot.RequestEntityFailed{Cause: err})
		return
	}

	p := c.rt.pool
	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		if err := hr.Write(c.nc); err != nil {
			c.markBroken()
			c.deliver(slot.RequestEntityFailed{Cause: err})
			return
		}
		c.deliver(slot.RequestEntityCompleted{})
	}()
	go func() {
		defer p.wg.Done()
		resp, err := http.ReadResponse(c.br, hr)
		if err != nil {
			c.markBroken()
			c.deliver(slot.ConnectionFailed{Cause: err})
			return
		}
		r := c.toResponse(hr, resp)
		c.deliver(slot.ResponseReceived{Response: r})
		c.watchEntity(r.Entity)
	}()
}

func (c *connection) toResponse(hr *http.Request, resp *http.Response) *request.Response {
	return &request.Response{
		Status:        resp.Status,
		StatusCode:    resp.StatusCode,
		Proto:         resp.Proto,
		ProtoMajor:    resp.ProtoMajor,
		ProtoMinor:    resp.ProtoMinor,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Close:         willCloseAfter(hr, resp),
		Entity:        request.NewEntity(resp.Body),
	}
}

// watchEntity translates entity stream progress into slot events,
// preserving the guarantee that a subscription signal always precedes
// the completion or failure signal.
func (c *connection) watchEntity(e *request.Entity) {
	done := c.rt.pool.ctx.Done()
	select {
	case <-e.Subscribed():
		c.deliver(slot.ResponseEntitySubscribed{})
	case <-e.Finished():
		c.entityEnd(e)
		return
	case <-done:
		e.Abort(ErrPoolClosed)
		return
	}
	select {
	case <-e.Finished():
		c.entityEnd(e)
	case <-done:
		e.Abort(ErrPoolClosed)
	}
}

func (c *connection) entityEnd(e *request.Entity) {
	if err := e.Err(); err != nil {
		c.markBroken()
		c.deliver(slot.ResponseEntityFailed{Cause: err})
		return
	}
	c.deliver(slot.ResponseEntityCompleted{})
}

func (c *connection) deliver(ev slot.Event) {
	c.rt.send(slotEvent{gen: c.gen, ev: ev})
}

func (c *connection) markBroken() {
	c.broken.Store(true)
}

func (c *connection) isClosed() bool {
	return c.closed.Load() || c.broken.Load()
}

func (c *connection) close() {
	c.once.Do(func() {
		c.closed.Store(true)
		_ = c.nc.Close()
	})
}

func (c *connection) age() time.Duration {
	return time.Since(c.born)
}

// willCloseAfter reports whether the connection must be closed after
// delivering resp, per HTTP/1.1 connection semantics: either side sent
// "Connection: close", the request demanded closure, or the peer is
// HTTP/1.0 without keep-alive.
func willCloseAfter(hr *http.Request, resp *http.Response) bool {
	if hr.Close || resp.Close {
		return true
	}
	if httpguts.HeaderValuesContainsToken(hr.Header["Connection"], "close") {
		return true
	}
	if httpguts.HeaderValuesContainsToken(resp.Header["Connection"], "close") {
		return true
	}
	if resp.ProtoMajor == 1 && resp.ProtoMinor == 0 &&
		!httpguts.HeaderValuesContainsToken(resp.Header["Connection"], "keep-alive") {
		return true
	}
	return false
}
