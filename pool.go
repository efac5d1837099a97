// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/gogama/hostpool/request"
	"github.com/gogama/hostpool/slot"
)

// ErrPoolClosed is the failure cause settled into every request still
// outstanding when the pool shuts down, and the error returned by
// Submit after shutdown.
var ErrPoolClosed = errors.New("hostpool: pool closed")

// ErrSubscriptionTimeout is the entity failure cause observed by a
// receiver whose response entity was force-abandoned because it was
// not subscribed within the configured window.
var ErrSubscriptionTimeout = errors.New("hostpool: response entity not subscribed in time")

// warmCheckInterval is how often the router re-examines the
// warm-connection floor and retries failed pre-connects.
const warmCheckInterval = 500 * time.Millisecond

// A Pool is a bounded pool of HTTP/1.1 connections to a single host.
//
// Each of its MaxConnections slots owns at most one connection and at
// most one in-flight request, driven by the slot state machine in
// package slot. The pool routes each submitted request to an eligible
// slot (a connected idle slot if one exists, otherwise a slot that
// will dial for it), keeps MinConnections slots warm, re-enqueues
// failed retryable requests, and merges the per-slot results into one
// output stream.
//
// Create a Pool with New and release it with Shutdown. A Pool is safe
// for concurrent use by multiple goroutines.
type Pool struct {
	dialer   Dialer
	settings Settings
	log      *zap.SugaredLogger

	slots   []*slotRuntime
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	intake    chan *request.Context
	retries   chan *request.Context
	avail     chan int
	responses chan *request.ResponseContext
	streaming atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool
	once   sync.Once
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a pool of connections to the host reached by dialer.
// The settings are validated; see Settings for the defaults applied
// to zero fields.
func New(dialer Dialer, settings Settings) (*Pool, error) {
	if dialer == nil {
		return nil, errors.New("hostpool: nil dialer")
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	s := settings.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		dialer:    dialer,
		settings:  s,
		log:       s.Logger.Sugar(),
		sem:       semaphore.NewWeighted(int64(s.MaxConnections)),
		intake:    make(chan *request.Context),
		retries:   make(chan *request.Context),
		avail:     make(chan int, 4*s.MaxConnections),
		responses: make(chan *request.ResponseContext),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if s.DialRate > 0 {
		p.limiter = rate.NewLimiter(s.DialRate, s.DialBurst)
	} else {
		p.limiter = rate.NewLimiter(rate.Inf, 0)
	}
	p.slots = make([]*slotRuntime, s.MaxConnections)
	for i := range p.slots {
		p.slots[i] = newSlotRuntime(p, i)
	}
	p.wg.Add(len(p.slots) + 1)
	for _, rt := range p.slots {
		go rt.run()
	}
	go p.route()
	return p, nil
}

// Submit hands a request context to the pool. It blocks while
// MaxConnections submitted requests are still awaiting their final
// result (backpressure) and returns when the request has been
// accepted for routing, not when it completes; await the request's
// promise for the result.
//
// Submit returns ErrPoolClosed after Shutdown, or the context's error
// if ctx ends first.
func (p *Pool) Submit(ctx context.Context, rc *request.Context) error {
	if rc == nil {
		panic("hostpool: nil request context")
	}
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	select {
	case p.intake <- rc:
		return nil
	case <-ctx.Done():
		p.sem.Release(1)
		return ctx.Err()
	case <-p.ctx.Done():
		p.sem.Release(1)
		return ErrPoolClosed
	}
}

// Do submits req with the pool's configured retry allowance and
// blocks until the result is in. On success the caller receives the
// response head; it must Subscribe to the response entity within the
// configured subscription window and read or close the body.
//
// If ctx ends before the result is in, the in-flight request is not
// interrupted; an eventually dispatched response entity is reaped by
// the subscription timeout.
func (p *Pool) Do(ctx context.Context, req *request.Request) (*request.Response, error) {
	rc := request.NewContext(req, p.settings.Retries)
	if err := p.Submit(ctx, rc); err != nil {
		return nil, err
	}
	res, err := rc.Promise().Await(ctx)
	if err != nil {
		return nil, err
	}
	return res.Response, res.Err
}

// Fetch is Do followed by subscribing to the response entity and
// buffering it fully. It returns the buffered body and the response
// head.
func (p *Pool) Fetch(ctx context.Context, req *request.Request) ([]byte, *request.Response, error) {
	resp, err := p.Do(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	body := resp.Entity.Subscribe()
	b, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return nil, resp, err
	}
	return b, resp, nil
}

// Responses returns the pool's merged output stream. Every logical
// request that reaches a final result appears on it exactly once;
// results from one slot appear in order, with no ordering guarantee
// across slots. The channel is closed by Shutdown.
//
// The stream is enabled by the first call; call Responses before
// submitting work, and keep receiving, or slots will block waiting
// for the output port. Promise-style consumers that never call
// Responses are unaffected.
func (p *Pool) Responses() <-chan *request.ResponseContext {
	p.streaming.Store(true)
	return p.responses
}

// Shutdown closes the pool: it stops routing, delivers a shutdown
// event to every slot, closes every connection, and settles every
// outstanding promise with ErrPoolClosed. It blocks until the pool
// has quiesced or ctx ends.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.once.Do(func() {
		p.closed.Store(true)
		p.cancel()
		for _, rt := range p.slots {
			go func(rt *slotRuntime) {
				rt.events <- slotEvent{gen: genAny, ev: slot.Shutdown{}}
			}(rt)
		}
		go func() {
			p.wg.Wait()
			close(p.responses)
			close(p.done)
		}()
	})
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// route is the pool's single routing goroutine. It owns the pending
// queue and the per-slot assignability bookkeeping; no other
// goroutine routes requests, which is what makes check-then-assign
// against the published slot statuses safe.
func (p *Pool) route() {
	defer p.wg.Done()
	n := len(p.slots)
	assignable := make([]bool, n)
	dialing := make([]bool, n)
	for i := range assignable {
		assignable[i] = true
	}
	var pending []*request.Context

	ticker := time.NewTicker(warmCheckInterval)
	defer ticker.Stop()

	for {
		p.maintainWarmFloor(dialing)
		pending = p.assign(pending, assignable)

		select {
		case rc := <-p.intake:
			pending = append(pending, rc)
		case rc := <-p.retries:
			pending = append(pending, rc)
		case id := <-p.avail:
			assignable[id] = true
			dialing[id] = false
		case <-ticker.C:
			// Failed warm dials become eligible again at tick
			// cadence rather than in a tight loop.
			for i := range dialing {
				if dialing[i] && p.slots[i].status.Load() == statusUnconnected {
					dialing[i] = false
				}
			}
		case <-p.ctx.Done():
			for _, rc := range pending {
				p.failShutdown(rc)
			}
			p.drainIntake()
			return
		}
	}
}

// assign routes as many pending requests as there are eligible slots,
// preferring connected idle slots, then slots already dialing warm
// connections, then unconnected slots (which dial on demand).
func (p *Pool) assign(pending []*request.Context, assignable []bool) []*request.Context {
	for len(pending) > 0 {
		id := p.pickSlot(assignable)
		if id < 0 {
			break
		}
		rc := pending[0]
		pending = pending[1:]
		assignable[id] = false
		p.log.Debugw("routing request to slot",
			"slot", id,
			"method", rc.Request.Method,
			"url", rc.Request.URL.String(),
			"attempt", rc.Attempt)
		if !p.slots[id].send(slotEvent{gen: genAny, ev: slot.NewRequest{Req: rc}}) {
			p.failShutdown(rc)
		}
	}
	return pending
}

func (p *Pool) pickSlot(assignable []bool) int {
	best := -1
	var bestStatus int32 = -1
	for i, ok := range assignable {
		if !ok {
			continue
		}
		switch st := p.slots[i].status.Load(); st {
		case statusIdle:
			return i
		case statusPreConnecting, statusUnconnected:
			// Prefer a dial already in flight over starting one.
			if st > bestStatus {
				best, bestStatus = i, st
			}
		}
	}
	return best
}

// maintainWarmFloor issues pre-connects to unconnected slots until
// the number of slots holding or establishing a connection reaches
// MinConnections.
func (p *Pool) maintainWarmFloor(dialing []bool) {
	min := p.settings.MinConnections
	if min == 0 {
		return
	}
	warm := 0
	for i := range p.slots {
		if p.slots[i].status.Load() != statusUnconnected || dialing[i] {
			warm++
		}
	}
	for i := range p.slots {
		if warm >= min {
			return
		}
		if p.slots[i].status.Load() == statusUnconnected && !dialing[i] {
			p.log.Debugw("pre-connecting slot to maintain warm floor", "slot", i)
			if p.slots[i].send(slotEvent{gen: genAny, ev: slot.PreConnect{}}) {
				dialing[i] = true
				warm++
			}
		}
	}
}

func (p *Pool) notifyAvail(id int) {
	select {
	case p.avail <- id:
	default:
		// The router rescans on its ticker; a dropped notification
		// only delays assignment by one tick.
	}
}

// handleResult receives every result a slot determines, successful or
// failed. A failed request that is still safe to re-send, and that
// the retry decider accepts, is re-enqueued after the retry waiter's
// backoff; everything else is final.
func (p *Pool) handleResult(rt *slotRuntime, rc *request.Context, res request.Result) {
	if !res.IsSuccess() && rc.CanBeRetried() && p.settings.RetryDecider.Decide(rc, res.Err) {
		wait := p.settings.RetryWaiter.Wait(rc)
		next := rc.WithRetry()
		p.log.Debugw("request attempt failed, re-enqueueing",
			"slot", rt.id,
			"cause", res.Err,
			"retriesLeft", next.RetriesLeft,
			"wait", wait)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-t.C:
			case <-p.ctx.Done():
				p.failShutdown(next)
				return
			}
			select {
			case p.retries <- next:
			case <-p.ctx.Done():
				p.failShutdown(next)
			}
		}()
		return
	}
	p.finish(rc, res)
}

// finish settles a request's promise with its final result and, when
// the output stream is enabled, reports the result there as well.
func (p *Pool) finish(rc *request.Context, res request.Result) {
	if !rc.Settle(res) {
		p.log.Warnw("discarding result for already settled request",
			"method", rc.Request.Method,
			"url", rc.Request.URL.String())
		return
	}
	p.sem.Release(1)
	if p.streaming.Load() {
		select {
		case p.responses <- &request.ResponseContext{Request: rc, Result: res}:
		case <-p.ctx.Done():
		}
	}
}

// failShutdown settles an outstanding request with the shutdown
// failure. Settling is idempotent across the retry chain, so a
// request observed on two shutdown paths is only settled once.
func (p *Pool) failShutdown(rc *request.Context) {
	if rc.Settle(request.Failure(ErrPoolClosed)) {
		p.sem.Release(1)
		p.log.Debugw("settled outstanding request with shutdown failure",
			"method", rc.Request.Method,
			"url", rc.Request.URL.String())
	}
}

// drainIntake takes any request still being offered on the intake
// and retry channels after shutdown so no submitted request is left
// with a pending promise.
func (p *Pool) drainIntake() {
	for {
		select {
		case rc := <-p.intake:
			p.failShutdown(rc)
		case rc := <-p.retries:
			p.failShutdown(rc)
		default:
			return
		}
	}
}
