// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gogama/hostpool/retry"
)

// Default values applied by Settings.withDefaults for fields left at
// their zero value.
const (
	DefaultMaxConnections        = 4
	DefaultRetries               = 5
	DefaultSubscriptionTimeout   = 1 * time.Second
	DefaultConnectionIdleTimeout = 30 * time.Second
)

// Settings configures a Pool. The zero value is a valid configuration:
// it yields a pool of DefaultMaxConnections slots with no warm floor,
// default retry policy, unthrottled dialing, and a no-op logger.
type Settings struct {
	// MaxConnections is the number of slots in the pool, i.e. the
	// maximum number of concurrently open connections. Zero means
	// DefaultMaxConnections. Negative values are invalid.
	MaxConnections int

	// MinConnections is the warm floor: the pool pre-connects idle
	// slots until this many slots hold (or are establishing) a
	// connection. Must satisfy 0 <= MinConnections <= MaxConnections.
	MinConnections int

	// PipeliningLimit is the number of in-flight requests allowed per
	// connection. This pool does not pipeline: the only accepted
	// values are 0 (meaning 1) and 1. Pipelining a second request
	// behind a first would hold it hostage to the first response while
	// another slot might be idle.
	PipeliningLimit int

	// Retries is the retry allowance given to requests submitted
	// through the convenience methods (Do, Fetch). Zero means
	// DefaultRetries; negative means no retries. Requests submitted
	// directly carry their own allowance.
	Retries int

	// ResponseEntitySubscriptionTimeout is the window within which the
	// receiver of a dispatched response must subscribe to its entity
	// stream. If the window expires the connection is force-closed and
	// the entity stream fails. Zero means
	// DefaultSubscriptionTimeout; negative means unbounded.
	ResponseEntitySubscriptionTimeout time.Duration

	// ConnectionIdleTimeout is how long an idle connection is kept
	// before being closed. Zero means DefaultConnectionIdleTimeout;
	// negative means idle connections are kept indefinitely.
	ConnectionIdleTimeout time.Duration

	// ConnectionLifetime is the maximum age of a connection. A
	// connection older than this is closed when it next goes idle.
	// Zero means no limit.
	ConnectionLifetime time.Duration

	// DialRate and DialBurst throttle connection attempts, both
	// demand dials and warm-floor pre-connects. A zero DialRate means
	// unthrottled. DialBurst defaults to 1 when a rate is set.
	DialRate  rate.Limit
	DialBurst int

	// RetryDecider decides whether a failed request that is eligible
	// for retry (request.Context.CanBeRetried) is actually
	// re-enqueued. Nil means retry.DefaultDecider.
	RetryDecider retry.Decider

	// RetryWaiter sets the backoff before a retry is re-enqueued. Nil
	// means retry.DefaultWaiter.
	RetryWaiter retry.Waiter

	// Logger receives the pool's structured debug and warning output.
	// Nil means no logging.
	Logger *zap.Logger
}

// Validate checks the settings for contradictions. It does not apply
// defaults; a zero field that has a default is valid.
func (s *Settings) Validate() error {
	if s.MaxConnections < 0 {
		return fmt.Errorf("hostpool: MaxConnections must be >= 1, got %d", s.MaxConnections)
	}
	max := s.MaxConnections
	if max == 0 {
		max = DefaultMaxConnections
	}
	if s.MinConnections < 0 || s.MinConnections > max {
		return fmt.Errorf("hostpool: MinConnections must satisfy 0 <= min <= %d, got %d", max, s.MinConnections)
	}
	if s.PipeliningLimit != 0 && s.PipeliningLimit != 1 {
		return fmt.Errorf("hostpool: PipeliningLimit must be 1, got %d", s.PipeliningLimit)
	}
	if s.DialRate < 0 {
		return fmt.Errorf("hostpool: DialRate must be >= 0, got %v", s.DialRate)
	}
	if s.DialBurst < 0 {
		return fmt.Errorf("hostpool: DialBurst must be >= 0, got %d", s.DialBurst)
	}
	return nil
}

// withDefaults returns a copy of s with defaults applied to zero
// fields, normalized for internal use.
func (s *Settings) withDefaults() Settings {
	c := *s
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.PipeliningLimit == 0 {
		c.PipeliningLimit = 1
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	} else if c.Retries < 0 {
		c.Retries = 0
	}
	if c.ResponseEntitySubscriptionTimeout == 0 {
		c.ResponseEntitySubscriptionTimeout = DefaultSubscriptionTimeout
	} else if c.ResponseEntitySubscriptionTimeout < 0 {
		c.ResponseEntitySubscriptionTimeout = 0 // unbounded
	}
	if c.ConnectionIdleTimeout == 0 {
		c.ConnectionIdleTimeout = DefaultConnectionIdleTimeout
	} else if c.ConnectionIdleTimeout < 0 {
		c.ConnectionIdleTimeout = 0 // unbounded
	}
	if c.RetryDecider == nil {
		c.RetryDecider = retry.DefaultDecider
	}
	if c.RetryWaiter == nil {
		c.RetryWaiter = retry.DefaultWaiter
	}
	if c.DialRate > 0 && c.DialBurst == 0 {
		c.DialBurst = 1
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
