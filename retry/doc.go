// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package retry provides the decision and timing components the host
// connection pool consults before re-enqueueing a failed request:
// composable deciders answering "should this request be sent again?"
// and waiters answering "after how long?".
//
// The request's own eligibility predicate (request.Context.CanBeRetried)
// is a hard precondition the pool always enforces; a Decider can only
// narrow it further, for example by retrying only transient failures.
package retry
