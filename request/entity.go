// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"errors"
	"io"
	"sync"
)

// ErrDiscarded is the entity failure cause recorded when the receiver
// closes the entity reader before reaching end of stream. A discarded
// entity leaves unread bytes on the wire, so the connection that
// produced it cannot be reused.
var ErrDiscarded = errors.New("hostpool/request: response entity discarded before end of stream")

// An Entity is the handle to a response entity stream.
//
// The receiver of a Response must Subscribe to obtain the body reader.
// Subscription, completion and failure of the stream are observable
// through the Subscribed and Finished channels; the pool uses these
// signals to decide when the underlying connection can be recycled.
//
// An Entity is safe for concurrent use by the receiver reading the
// body and the pool observing the stream's progress.
type Entity struct {
	rc         io.ReadCloser
	subOnce    sync.Once
	subscribed chan struct{}
	finOnce    sync.Once
	finished   chan struct{}
	err        error
	reader     *entityReader
}

// NewEntity wraps the given body reader in an entity stream handle.
// It is intended for connection implementations delivering responses
// into the pool; receivers obtain entities from Response.Entity.
func NewEntity(rc io.ReadCloser) *Entity {
	e := &Entity{
		rc:         rc,
		subscribed: make(chan struct{}),
		finished:   make(chan struct{}),
	}
	e.reader = &entityReader{e: e}
	return e
}

// Subscribe marks the entity as subscribed and returns the body
// reader. The first call signals the subscription; subsequent calls
// return the same reader.
//
// The returned reader must be read to end of stream, or closed, by
// the receiver. Closing before end of stream records ErrDiscarded as
// the entity failure cause.
func (e *Entity) Subscribe() io.ReadCloser {
	e.subOnce.Do(func() {
		close(e.subscribed)
	})
	return e.reader
}

// Subscribed returns a channel that is closed when the entity has been
// subscribed.
func (e *Entity) Subscribed() <-chan struct{} {
	return e.subscribed
}

// Finished returns a channel that is closed when the entity stream has
// ended, successfully or not. Use Err to distinguish.
func (e *Entity) Finished() <-chan struct{} {
	return e.finished
}

// Err returns the entity failure cause. It is nil if the stream ended
// at a clean end of stream, and must only be consulted after Finished
// is closed.
func (e *Entity) Err() error {
	select {
	case <-e.finished:
		return e.err
	default:
		return nil
	}
}

// Abort force-terminates the entity stream with the given cause,
// closing the underlying reader. Reads issued after Abort fail with
// the cause. On an already finished entity Abort keeps the recorded
// outcome and only closes the underlying reader.
func (e *Entity) Abort(cause error) {
	e.finish(cause)
	_ = e.rc.Close()
}

func (e *Entity) finish(cause error) {
	e.finOnce.Do(func() {
		e.err = cause
		close(e.finished)
	})
}

type entityReader struct {
	e *Entity
}

func (r *entityReader) Read(p []byte) (int, error) {
	e := r.e
	select {
	case <-e.finished:
		if e.err != nil {
			return 0, e.err
		}
	default:
	}
	n, err := e.rc.Read(p)
	if err != nil {
		if err == io.EOF {
			e.finish(nil)
		} else {
			e.finish(err)
		}
		if e.err != nil {
			err = e.err
		}
	}
	return n, err
}

func (r *entityReader) Close() error {
	e := r.e
	select {
	case <-e.finished:
	default:
		e.finish(ErrDiscarded)
	}
	return e.rc.Close()
}
