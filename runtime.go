// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/gogama/hostpool/request"
	"github.com/gogama/hostpool/slot"
)

// Coarse slot status published for the pool router. The router only
// needs to know whether a slot can take a request and whether it
// counts toward the warm-connection floor; everything finer belongs
// to the state machine.
const (
	statusUnconnected int32 = iota
	statusPreConnecting
	statusBusy
	statusIdle
)

// genAny marks events that are not tied to a connection generation:
// routing instructions from the pool and shutdown.
const genAny = ^uint64(0)

// errStaleResponse aborts a response entity whose slot moved on before
// the response head could be delivered.
var errStaleResponse = errors.New("hostpool: connection no longer owned by its slot")

// A slotEvent is one entry in a slot's serialized event queue. gen
// ties connection-scoped events to the connection they came from;
// timerSeq ties timer-fired events to the timer arming they came
// from. Either mismatch means the event is stale and is dropped.
type slotEvent struct {
	gen      uint64
	timerSeq uint64
	ev       slot.Event
	conn     *connection
}

// A slotRuntime owns one slot: its state value, its connection (at
// most one), its timer (at most one), and its event queue. All state
// transitions for the slot happen on the runtime's single goroutine,
// so events are totally ordered and the state machine never runs
// concurrently with itself.
//
// slotRuntime implements slot.Context; it passes itself to every
// Apply call.
type slotRuntime struct {
	pool   *Pool
	id     int
	log    *zap.SugaredLogger
	events chan slotEvent
	status atomic.Int32

	// The fields below are owned by the run goroutine.
	state    slot.State
	conn     *connection
	gen      uint64
	timer    *time.Timer
	timerSeq uint64
}

func newSlotRuntime(p *Pool, id int) *slotRuntime {
	return &slotRuntime{
		pool:   p,
		id:     id,
		log:    p.log.With("slot", id),
		events: make(chan slotEvent, 32),
		state:  slot.Unconnected{},
	}
}

// send enqueues an event for the slot, giving up if the pool shuts
// down while the queue is full. It reports whether the event was
// accepted.
func (rt *slotRuntime) send(e slotEvent) bool {
	select {
	case rt.events <- e:
		return true
	case <-rt.pool.ctx.Done():
		return false
	}
}

func (rt *slotRuntime) run() {
	defer rt.pool.wg.Done()
	for e := range rt.events {
		if rt.stale(e) {
			rt.dropStale(e)
			continue
		}
		if e.conn != nil {
			rt.conn = e.conn
		}
		prev := rt.state
		next, err := slot.Apply(prev, e.ev, rt)
		if err != nil {
			rt.abort(prev, err)
			if _, down := e.ev.(slot.Shutdown); !down {
				continue
			}
			return
		}
		rt.transition(prev, e.ev, next)
		if _, down := e.ev.(slot.Shutdown); down {
			rt.shutdown(prev)
			return
		}
	}
}

func (rt *slotRuntime) stale(e slotEvent) bool {
	if e.gen != genAny && e.gen != rt.gen {
		return true
	}
	if e.timerSeq != 0 && e.timerSeq != rt.timerSeq {
		return true
	}
	// A pre-connect instruction racing a state change at the router is
	// dropped here rather than treated as a slot bug.
	if _, ok := e.ev.(slot.PreConnect); ok {
		if _, unconnected := rt.state.(slot.Unconnected); !unconnected {
			return true
		}
	}
	return false
}

// dropStale discards an event from a previous connection generation
// or timer arming, releasing any resources it carried.
func (rt *slotRuntime) dropStale(e slotEvent) {
	rt.log.Debugw("dropping stale event", "event", e.ev.Name())
	if e.conn != nil {
		e.conn.close()
	}
	if rr, ok := e.ev.(slot.ResponseReceived); ok {
		rr.Response.Entity.Abort(errStaleResponse)
	}
}

// transition performs the runtime's share of a state change: timers,
// connection teardown, entity force-closure, self-delivered events,
// and router bookkeeping.
func (rt *slotRuntime) transition(prev slot.State, ev slot.Event, next slot.State) {
	rt.stopTimer()

	// A subscription timeout abandons the dispatched entity before
	// the connection goes down with it.
	if st, ok := prev.(slot.WaitingForResponseEntitySubscription); ok {
		if _, timedOut := ev.(slot.Timeout); timedOut {
			st.Response.Entity.Abort(ErrSubscriptionTimeout)
		}
	}

	rt.state = next

	switch next.(type) {
	case slot.Unconnected:
		rt.teardownConn()
	case slot.WaitingForResponseDispatch:
		// The slot has determined a result; tell the machine the
		// output port is ready once there is a single determined
		// result to report. Entity-progress events may interleave
		// before this lands, which only flips the pending flag.
		if !sameKind(prev, next) {
			rt.send(slotEvent{gen: rt.gen, ev: slot.ResponseDispatchable{}})
		}
	case slot.Idle:
		rt.armIdleTimer()
	}

	if d := next.Deadline(); d > 0 {
		rt.armTimer(d, slot.Timeout{})
	}

	rt.status.Store(coarse(next))
	if canAssign(next) {
		rt.pool.notifyAvail(rt.id)
	}
}

// shutdown finishes a slot after the machine processed the Shutdown
// event: any request the machine dropped gets its promise settled by
// the pool's shutdown path, any undelivered or in-flight entity is
// aborted, and the connection is closed.
func (rt *slotRuntime) shutdown(prev slot.State) {
	rt.stopTimer()
	abortEntity(prev, ErrPoolClosed)
	if rc := slot.OngoingRequest(prev); rc != nil {
		rt.pool.failShutdown(rc)
	}
	rt.teardownConn()
}

// abort tears the slot down after an illegal event, which indicates a
// bug rather than an I/O condition. The slot is reset to Unconnected
// so the pool keeps its full complement of slots.
func (rt *slotRuntime) abort(prev slot.State, err error) {
	rt.log.Errorw("slot aborted", "error", err, "state", prev.Name())
	rt.stopTimer()
	abortEntity(prev, err)
	if rc := slot.OngoingRequest(prev); rc != nil {
		if rc.Settle(request.Failure(err)) {
			rt.pool.sem.Release(1)
		}
	}
	rt.teardownConn()
	rt.state = slot.Unconnected{}
	rt.status.Store(statusUnconnected)
	rt.pool.notifyAvail(rt.id)
}

func (rt *slotRuntime) teardownConn() {
	if rt.conn != nil {
		rt.conn.close()
		rt.conn = nil
	}
	// Anything still in flight for the old connection is now stale.
	rt.gen++
}

func (rt *slotRuntime) stopTimer() {
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
	rt.timerSeq++
}

func (rt *slotRuntime) armTimer(d time.Duration, ev slot.Event) {
	rt.timerSeq++
	seq := rt.timerSeq
	gen := rt.gen
	rt.timer = time.AfterFunc(d, func() {
		rt.send(slotEvent{gen: gen, timerSeq: seq, ev: ev})
	})
}

// armIdleTimer schedules orderly closure of an idle connection per the
// pool's idle and lifetime limits.
func (rt *slotRuntime) armIdleTimer() {
	if rt.conn == nil {
		return
	}
	s := &rt.pool.settings
	var d time.Duration
	if s.ConnectionIdleTimeout > 0 {
		d = s.ConnectionIdleTimeout
	}
	if s.ConnectionLifetime > 0 {
		remaining := s.ConnectionLifetime - rt.conn.age()
		if remaining <= 0 {
			rt.send(slotEvent{gen: rt.gen, ev: slot.ConnectionCompleted{}})
			return
		}
		if d == 0 || remaining < d {
			d = remaining
		}
	}
	if d > 0 {
		rt.armTimer(d, slot.ConnectionCompleted{})
	}
}

// abortEntity force-closes any response entity the given state still
// references, so a receiver blocked on the stream observes the cause.
func abortEntity(s slot.State, cause error) {
	switch st := s.(type) {
	case slot.WaitingForResponseDispatch:
		if st.Result.IsSuccess() {
			st.Result.Response.Entity.Abort(cause)
		}
	case slot.WaitingForResponseEntitySubscription:
		st.Response.Entity.Abort(cause)
	case slot.WaitingForEndOfResponseEntity:
		st.Response.Entity.Abort(cause)
	}
}

func sameKind(a, b slot.State) bool {
	return a.Name() == b.Name()
}

func canAssign(s slot.State) bool {
	switch s.(type) {
	case slot.Idle, slot.Unconnected:
		return true
	default:
		return false
	}
}

func coarse(s slot.State) int32 {
	switch s.(type) {
	case slot.Unconnected:
		return statusUnconnected
	case slot.PreConnecting:
		return statusPreConnecting
	case slot.Idle:
		return statusIdle
	default:
		return statusBusy
	}
}

// OpenConnection implements slot.Context. The dial happens on its own
// goroutine, paced by the pool's dial limiter; the outcome is
// delivered back into the slot's event queue tagged with the new
// connection generation.
func (rt *slotRuntime) OpenConnection() {
	rt.gen++
	gen := rt.gen
	p := rt.pool
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.limiter.Wait(p.ctx); err != nil {
			rt.send(slotEvent{gen: gen, ev: slot.ConnectionAttemptFailed{Cause: err}})
			return
		}
		nc, err := p.dialer.DialContext(p.ctx)
		if err != nil {
			rt.send(slotEvent{gen: gen, ev: slot.ConnectionAttemptFailed{Cause: err}})
			return
		}
		c := newConnection(rt, nc, gen)
		if !rt.send(slotEvent{gen: gen, ev: slot.ConnectionAttemptSucceeded{}, conn: c}) {
			c.close()
		}
	}()
}

// PushRequest implements slot.Context.
func (rt *slotRuntime) PushRequest(rc *request.Context, next slot.State) slot.State {
	rt.conn.push(rc)
	return next
}

// DispatchResult implements slot.Context.
func (rt *slotRuntime) DispatchResult(rc *request.Context, res request.Result) {
	rt.pool.handleResult(rt, rc, res)
}

// IsConnectionClosed implements slot.Context.
func (rt *slotRuntime) IsConnectionClosed() bool {
	return rt.conn == nil || rt.conn.isClosed()
}

// WillCloseAfter implements slot.Context. The verdict is computed by
// the connection when the response head is read and carried on the
// response, so the machine sees a stable answer.
func (rt *slotRuntime) WillCloseAfter(resp *request.Response) bool {
	return resp.Close
}

// SubscriptionTimeout implements slot.Context.
func (rt *slotRuntime) SubscriptionTimeout() time.Duration {
	return rt.pool.settings.ResponseEntitySubscriptionTimeout
}

// Log implements slot.Context.
func (rt *slotRuntime) Log() *zap.SugaredLogger {
	return rt.log
}
