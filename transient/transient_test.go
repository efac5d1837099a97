// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct {
	timeout bool
}

func (e *timeoutErr) Error() string { return "timeout error" }
func (e *timeoutErr) Timeout() bool { return e.timeout }

func TestCategorize(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Category
	}{
		{"nil", nil, Not},
		{"plain error", errors.New("unrecognizable"), Not},
		{"timeout", &timeoutErr{timeout: true}, Timeout},
		{"timeout false is not transient", &timeoutErr{timeout: false}, Not},
		{"wrapped timeout", fmt.Errorf("attempt: %w", &timeoutErr{timeout: true}), Timeout},
		{"url error timeout", &url.Error{Op: "Get", URL: "http://example.com", Err: &timeoutErr{timeout: true}}, Timeout},
		{"conn reset", syscall.ECONNRESET, ConnReset},
		{"wrapped conn reset", os.NewSyscallError("read", syscall.ECONNRESET), ConnReset},
		{"conn refused", syscall.ECONNREFUSED, ConnRefused},
		{"wrapped conn refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), ConnRefused},
		{"broken pipe", syscall.EPIPE, ClosedEarly},
		{"eof", io.EOF, ClosedEarly},
		{"unexpected eof", io.ErrUnexpectedEOF, ClosedEarly},
		{"wrapped eof", fmt.Errorf("read response: %w", io.ErrUnexpectedEOF), ClosedEarly},
		{"other errno", syscall.EINVAL, Not},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Categorize(c.err))
		})
	}
}

func TestTimeoutWinsOverErrno(t *testing.T) {
	// An error that both times out and wraps a reset classifies as a
	// timeout: the Timeout check runs first.
	err := fmt.Errorf("%w: %w", &timeoutErr{timeout: true}, syscall.ECONNRESET)
	assert.Equal(t, Timeout, Categorize(err))
}
