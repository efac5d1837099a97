// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"net/http"
)

// A Result is the outcome of one logical request: either a response
// head (success) or the error that ended the request (failure).
// Exactly one of Response and Err is set.
//
// Note that success means a response head was received and dispatched;
// the response entity stream may still fail after the result is
// delivered, in which case the failure is observed on the entity
// reader, not on the Result.
type Result struct {
	Response *Response
	Err      error
}

// Success returns a successful result carrying resp.
func Success(resp *Response) Result {
	return Result{Response: resp}
}

// Failure returns a failed result carrying err.
func Failure(err error) Result {
	return Result{Err: err}
}

// IsSuccess reports whether the result carries a response rather than
// an error.
func (r Result) IsSuccess() bool {
	return r.Err == nil
}

// A ResponseContext pairs a settled request context with its final
// result. It is the element type of the pool's merged output stream.
type ResponseContext struct {
	Request *Context
	Result  Result
}

// A Response is the head of an HTTP response received from the pool's
// host, plus the entity stream handle.
//
// The entity is not consumed eagerly. The receiver must call
// Entity.Subscribe to obtain the body reader and must read it to the
// end (or close it) so the pool can recycle or discard the underlying
// connection.
type Response struct {
	// Status is the full status line text, e.g. "200 OK".
	Status string

	// StatusCode is the numeric status code, e.g. 200.
	StatusCode int

	// Proto, ProtoMajor and ProtoMinor identify the response protocol
	// version, e.g. "HTTP/1.1", 1, 1.
	Proto      string
	ProtoMajor int
	ProtoMinor int

	// Header contains the response header fields.
	Header http.Header

	// ContentLength records the declared length of the entity, or -1
	// if unknown (chunked transfer encoding).
	ContentLength int64

	// Close reports that the connection that produced this response
	// cannot be used for another exchange, per HTTP/1.1 connection
	// semantics ("Connection: close", an HTTP/1.0 peer without
	// keep-alive, or a request that demanded closure).
	Close bool

	// Entity is the response entity stream handle. It is never nil;
	// a response with no body carries an entity that is already at
	// end of stream.
	Entity *Entity
}
