// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package hostpool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/gogama/hostpool/retry"
)

func TestSettingsValidate(t *testing.T) {
	t.Run("zero value is valid", func(t *testing.T) {
		s := Settings{}
		assert.NoError(t, s.Validate())
	})
	t.Run("negative max connections", func(t *testing.T) {
		s := Settings{MaxConnections: -1}
		assert.Error(t, s.Validate())
	})
	t.Run("min above max", func(t *testing.T) {
		s := Settings{MaxConnections: 2, MinConnections: 3}
		assert.Error(t, s.Validate())
	})
	t.Run("min above defaulted max", func(t *testing.T) {
		s := Settings{MinConnections: DefaultMaxConnections + 1}
		assert.Error(t, s.Validate())
	})
	t.Run("min equal to max", func(t *testing.T) {
		s := Settings{MaxConnections: 3, MinConnections: 3}
		assert.NoError(t, s.Validate())
	})
	t.Run("negative min connections", func(t *testing.T) {
		s := Settings{MinConnections: -1}
		assert.Error(t, s.Validate())
	})
	t.Run("pipelining is not supported", func(t *testing.T) {
		s := Settings{PipeliningLimit: 2}
		assert.Error(t, s.Validate())
		s.PipeliningLimit = 1
		assert.NoError(t, s.Validate())
	})
	t.Run("negative dial rate", func(t *testing.T) {
		s := Settings{DialRate: -1}
		assert.Error(t, s.Validate())
	})
}

func TestSettingsDefaults(t *testing.T) {
	s := Settings{}
	c := s.withDefaults()
	assert.Equal(t, DefaultMaxConnections, c.MaxConnections)
	assert.Equal(t, 0, c.MinConnections)
	assert.Equal(t, 1, c.PipeliningLimit)
	assert.Equal(t, DefaultRetries, c.Retries)
	assert.Equal(t, DefaultSubscriptionTimeout, c.ResponseEntitySubscriptionTimeout)
	assert.Equal(t, DefaultConnectionIdleTimeout, c.ConnectionIdleTimeout)
	assert.NotNil(t, c.RetryDecider)
	assert.NotNil(t, c.RetryWaiter)
	assert.NotNil(t, c.Logger)
}

func TestSettingsNegativeMeansUnbounded(t *testing.T) {
	s := Settings{
		Retries:                           -1,
		ResponseEntitySubscriptionTimeout: -1,
		ConnectionIdleTimeout:             -1,
	}
	c := s.withDefaults()
	assert.Equal(t, 0, c.Retries)
	assert.Zero(t, c.ResponseEntitySubscriptionTimeout)
	assert.Zero(t, c.ConnectionIdleTimeout)
}

func TestSettingsExplicitValuesKept(t *testing.T) {
	decider := retry.Never
	waiter := retry.NewFixedWaiter(time.Second)
	s := Settings{
		MaxConnections:                    8,
		MinConnections:                    2,
		Retries:                           3,
		ResponseEntitySubscriptionTimeout: 2 * time.Second,
		ConnectionIdleTimeout:             time.Minute,
		ConnectionLifetime:                time.Hour,
		DialRate:                          rate.Limit(10),
		RetryDecider:                      decider,
		RetryWaiter:                       waiter,
	}
	c := s.withDefaults()
	assert.Equal(t, 8, c.MaxConnections)
	assert.Equal(t, 2, c.MinConnections)
	assert.Equal(t, 3, c.Retries)
	assert.Equal(t, 2*time.Second, c.ResponseEntitySubscriptionTimeout)
	assert.Equal(t, time.Minute, c.ConnectionIdleTimeout)
	assert.Equal(t, time.Hour, c.ConnectionLifetime)
	assert.Equal(t, rate.Limit(10), c.DialRate)
	assert.Equal(t, 1, c.DialBurst, "burst defaults to 1 when a rate is set")
	assert.NotNil(t, c.RetryDecider)
	assert.NotNil(t, c.RetryWaiter)
}
