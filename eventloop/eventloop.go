// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package eventloop implements the single-threaded cooperative scheduler
// the event loop contract (§6) describes: posted callbacks, fd
// readiness notification, and delayed callbacks. conn, endpoint, legacy,
// and object never depend on which Loop implementation is running them.
package eventloop

import "time"

// Timer is a handle returned by Loop.CallLater; Cancel prevents its
// callback from firing if it hasn't already.
type Timer interface {
	Cancel()
}

// Loop is the event loop contract of §6: a single-threaded, cooperative
// scheduler that never blocks its caller.
type Loop interface {
	// Post schedules fn to run on the loop's own goroutine at the next
	// opportunity, in FIFO order with other posted callbacks.
	Post(fn func())

	// RegisterEvent arms fn to run whenever fd becomes ready for any of
	// events (ReadableEvent/WritableEvent, or'd together).
	RegisterEvent(fd int, events EventMask, fn func()) error

	// DeregisterEvent disarms a previously registered fd.
	DeregisterEvent(fd int) error

	// CallLater arms fn to run once, after d has elapsed.
	CallLater(d time.Duration, fn func()) Timer

	// Run drives the loop until Stop is called or done is closed.
	Run(done <-chan struct{})

	// Stop asks a running loop to return from Run once its current pass
	// over posted callbacks and ready fds completes.
	Stop()

	// Close releases the loop's own resources (its poller fd and wake
	// pipe). Call it after Run has returned.
	Close() error
}

// EventMask selects which fd readiness conditions RegisterEvent reacts
// to; ReadableEvent and WritableEvent may be or'd together.
type EventMask uint8

const (
	ReadableEvent EventMask = 1 << iota
	WritableEvent
)
