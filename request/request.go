// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package request

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	urlpkg "net/url"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const nilCtxMsg = "hostpool/request: nil context"

// A Request contains a logical HTTP request for execution by a host
// connection pool.
//
// The logical request described by a Request will typically result in
// one wire-level request attempt being made, but may result in multiple
// attempts, for example if a failed attempt is retried on a fresh
// connection.
//
// The field structure mirrors the lower-level http.Request with the
// following differences. Server-only fields are removed. The body is
// split into a one-shot stream (Body) and an optional restart function
// (GetBody); a request whose entity cannot be replayed is never
// retried.
//
// Like the http.Request structure, a Request has a context. The pool
// attaches it to the lower-level request written onto the connection;
// the pool itself does not watch it, so its ending does not cancel an
// in-flight request.
type Request struct {
	// Method specifies the HTTP method (GET, POST, PUT, etc.).
	// An empty string means GET.
	Method string

	// URL specifies the URL to access. The URL's Host names the server
	// the pool is connected to, while the Request's Host field
	// optionally specifies the Host header value to send.
	URL *urlpkg.URL

	// Header contains the request header fields to be sent.
	Header http.Header

	// Body is the request entity stream. A nil Body means the request
	// has no entity, for example a GET or DELETE request.
	//
	// Body is consumed when the request is pushed onto a connection.
	// A request whose Body is non-nil and whose GetBody is nil is a
	// one-shot request: it can be sent at most once and is not
	// eligible for retry.
	Body io.Reader

	// GetBody produces a fresh copy of the entity stream. It is set
	// automatically for strict bodies built by NewRequest (string,
	// []byte) and may be set by the caller for restartable streams.
	// A non-nil GetBody makes the entity replayable.
	GetBody func() (io.ReadCloser, error)

	// ContentLength records the length of the entity. Zero with a nil
	// Body means no entity; zero with a non-nil Body means the length
	// is unknown and the entity will be sent chunked.
	ContentLength int64

	// Close stipulates whether the connection must be closed after
	// this exchange, preventing its re-use by a later request.
	Close bool

	// Host optionally overrides the Host header to send. If empty, the
	// value of URL.Host will be sent.
	Host string

	// ctx controls the request lifetime. It should only be modified by
	// copying the whole Request using WithContext.
	ctx context.Context
}

// NewRequest wraps NewRequestWithContext using the background context.
//
// Parameter body may be nil (no entity), or it may be a string, []byte,
// io.Reader, or io.ReadCloser. String and []byte bodies are strict and
// replayable; plain readers are one-shot unless the caller also sets
// GetBody on the returned Request.
func NewRequest(method, url string, body interface{}) (*Request, error) {
	return NewRequestWithContext(context.Background(), method, url, body)
}

// NewRequestWithContext returns a new Request given a method, URL, and
// optional body.
//
// Parameter body may be nil (no entity), or it may be a string, []byte,
// io.Reader, or io.ReadCloser. String and []byte bodies are strict and
// replayable; plain readers are one-shot unless the caller also sets
// GetBody on the returned Request.
func NewRequestWithContext(ctx context.Context, method, url string, body interface{}) (*Request, error) {
	if ctx == nil {
		return nil, errors.New(nilCtxMsg)
	}
	if method == "" {
		method = "GET"
	}
	if !validMethod(method) {
		return nil, fmt.Errorf("hostpool/request: invalid method %q", method)
	}
	u, err := urlpkg.Parse(url)
	if err != nil {
		return nil, err
	}
	u.Host = removeEmptyPort(u.Host)
	r := &Request{
		ctx:    ctx,
		Method: method,
		URL:    u,
		Header: make(http.Header),
		Host:   u.Host,
	}
	if err = r.setBody(body); err != nil {
		return nil, err
	}
	return r, nil
}

const badBodyTypeMsg = "hostpool/request: invalid type (for body use nil, " +
	"string, []byte, io.Reader or io.ReadCloser)"

func (r *Request) setBody(body interface{}) error {
	switch x := body.(type) {
	case nil:
		return nil
	case string:
		return r.setStrictBody([]byte(x))
	case []byte:
		return r.setStrictBody(x)
	case io.Reader:
		r.Body = x
		return nil
	default:
		return errors.New(badBodyTypeMsg)
	}
}

func (r *Request) setStrictBody(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	r.Body = bytes.NewReader(b)
	r.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(b)), nil
	}
	r.ContentLength = int64(len(b))
	return nil
}

// Context returns the request's context. It is the context given to
// the lower-level request by ToHTTP. To change the context, use
// WithContext.
//
// The returned context is always non-nil; it defaults to the
// background context.
func (r *Request) Context() context.Context {
	if r.ctx != nil {
		return r.ctx
	}
	return context.Background()
}

// WithContext returns a shallow copy of r with its context changed to
// ctx, which must be non-nil.
//
// The pool passes the context to ToHTTP when it pushes the request onto
// a connection. Waiting for a pool slot, dialing, sending the request
// and receiving the response head are not cancelled when it ends.
func (r *Request) WithContext(ctx context.Context) *Request {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	r2 := new(Request)
	*r2 = *r
	r2.ctx = ctx
	return r2
}

// IsIdempotent reports whether the request method is idempotent per
// RFC 7231 §4.2.2 (GET, HEAD, OPTIONS, TRACE, PUT, and DELETE).
//
// Idempotency is a necessary condition for a request to be eligible
// for retry after a failed attempt: a non-idempotent request may have
// had a partial effect on the server even though no response was
// received.
func (r *Request) IsIdempotent() bool {
	switch r.Method {
	case "GET", "HEAD", "OPTIONS", "TRACE", "PUT", "DELETE", "":
		return true
	default:
		return false
	}
}

// IsReplayable reports whether the request entity can be sent again
// from the beginning: either the request has no entity, or a restart
// function (GetBody) is available.
func (r *Request) IsReplayable() bool {
	return r.Body == nil || r.GetBody != nil
}

// SetBasicAuth sets the request's Authorization header to use HTTP
// Basic Authentication with the provided username and password.
//
// With HTTP Basic Authentication the provided username and password
// are not encrypted.
func (r *Request) SetBasicAuth(username, password string) {
	r.Header.Set("Authorization", "Basic "+basicAuth(username, password))
}

// AddCookie adds a cookie to the request. Per RFC 6265 section 5.4,
// AddCookie does not attach more than one Cookie header field. That
// means all cookies, if any, are written into the same line,
// separated by semicolons.
func (r *Request) AddCookie(c *http.Cookie) {
	c2 := &http.Cookie{Name: c.Name, Value: c.Value}
	s := c2.String()
	if h := r.Header.Get("Cookie"); h != "" {
		r.Header.Set("Cookie", h+"; "+s)
	} else {
		r.Header.Set("Cookie", s)
	}
}

// ToHTTP creates a lower-level HTTP request corresponding to this
// request, for serialization onto a connection. The context of the new
// request is set to ctx, which may not be nil.
//
// Each call produces a request with a fresh entity stream: if GetBody
// is set it is invoked, otherwise the one-shot Body is used directly.
// Calling ToHTTP twice on a one-shot request hands the same consumed
// reader out twice; the pool never does this because a one-shot
// request is not replayable.
func (r *Request) ToHTTP(ctx context.Context) (*http.Request, error) {
	if ctx == nil {
		panic(nilCtxMsg)
	}
	body := r.Body
	if r.Body != nil && r.GetBody != nil {
		b, err := r.GetBody()
		if err != nil {
			return nil, err
		}
		body = b
	}
	hr, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Header {
		hr.Header[k] = v
	}
	hr.ContentLength = r.ContentLength
	hr.Close = r.Close
	hr.Host = r.Host
	hr.GetBody = r.GetBody
	return hr, nil
}

// basicAuth is lifted verbatim from net/http/client.go.
//
// See 2 (end of page 4) https://www.ietf.org/rfc/rfc2617.txt
// "To receive authorization, the client sends the userid and password,
// separated by a single colon (":") character, within a base64
// encoded string in the credentials."
// It is not meant to be urlencoded.
func basicAuth(username, password string) string {
	auth := username + ":" + password
	return base64.StdEncoding.EncodeToString([]byte(auth))
}

// validMethod reports whether method is a valid HTTP token per RFC 7230
// §3.2.6. The token grammar for header field names is identical to the
// method grammar, so httpguts does the character-class work.
func validMethod(method string) bool {
	return httpguts.ValidHeaderFieldName(method)
}

// hasPort is lifted verbatim from net/http/http.go
//
// Given a string of the form "host", "host:port", or "[ipv6::address]:port",
// return true if the string includes a port.
func hasPort(s string) bool { return strings.LastIndex(s, ":") > strings.LastIndex(s, "]") }

// removeEmptyPort is lifted verbatim from net/http/http.go
//
// removeEmptyPort strips the empty port in ":port" to ""
// as mandated by RFC 3986 Section 6.2.3.
func removeEmptyPort(host string) string {
	if hasPort(host) {
		return strings.TrimSuffix(host, ":")
	}
	return host
}
