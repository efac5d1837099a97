// Copyright 2021 The hostpool Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package slot implements the per-slot connection state machine at the
heart of the host connection pool.

A slot is one logical outbound connection position within the pool. Its
state machine is a pure value: given the current State, an Event, and a
Context through which side effects are requested, Apply returns the
next State. The machine performs no I/O and reads no clocks; the slot
runtime in the parent package owns the connection, the timers, and the
event ordering, and drives the machine one event at a time.

Four independent asynchronous signals meet in this machine: the
connection lifecycle (dialing, open, closed, failed), completion of the
request entity stream, arrival of the response head, and subscription
plus completion of the response entity stream. The states encode every
legal interleaving; an event that is not legal in the current state is
a programming error, reported as an IllegalEventError so the runtime
can tear the slot down.

States are a flat tagged union; there is deliberately no state
hierarchy. Behavior shared between states, such as the failure policy
for states holding an undispatched request, lives in helper functions
called from the relevant transition arms.
*/
package slot
