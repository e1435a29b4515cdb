// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package status provides the result/error vocabulary shared by every
// component of the Fibre connection core.
//
// Every non-blocking write/on_write_done boundary in the core (fifo, conn,
// endpoint, legacy, object) returns a Status, never a blocking call and
// never a panic on a well-formed peer. RichStatus amends a Status with the
// call site and a human-readable message, preserving the chain across
// layers so a connection-level failure can be traced back to the fifo or
// wire-framing bug that caused it.
package status

import (
	"fmt"
	"runtime"
)

// Status is the result of a non-blocking operation in the core (§5, §7).
type Status int

const (
	// Ok means the operation progressed fully.
	Ok Status = iota
	// Busy means the callee cannot accept more work right now; the caller
	// must retry after being invited via the symmetric on_write_done.
	Busy
	// Closed means orderly termination; the caller should stop writing.
	Closed
	// Cancelled means the application or peer requested cancellation.
	Cancelled
	// InvalidArgument means the caller passed malformed arguments.
	InvalidArgument
	// InternalError means a local implementation bug was detected.
	InternalError
	// ProtocolError means the remote peer violated the wire contract.
	ProtocolError
	// HostUnreachable means the transport reported the peer as lost.
	HostUnreachable
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "ok"
	case Busy:
		return "busy"
	case Closed:
		return "closed"
	case Cancelled:
		return "cancelled"
	case InvalidArgument:
		return "invalid argument"
	case InternalError:
		return "internal error"
	case ProtocolError:
		return "protocol error"
	case HostUnreachable:
		return "host unreachable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// IsOk reports whether s represents successful, complete progress.
func (s Status) IsOk() bool { return s == Ok }

// IsBusy reports whether the caller should retry later instead of treating
// this as a failure.
func (s Status) IsBusy() bool { return s == Busy }

// RichStatus carries a Status plus the call site and message of the
// innermost failure, amended as it propagates up through layers.
//
// A nil *RichStatus is a valid, successful result (Status() reports Ok);
// callers are not required to allocate on the hot path.
type RichStatus struct {
	status Status
	file   string
	line   int
	msg    string
	inner  error
}

// New creates a RichStatus for s, capturing the caller's source location.
// If s is Ok, New returns nil so callers can write:
//
//	if rs := status.New(status.Busy, "fifo full"); rs != nil { return rs }
func New(s Status, msg string) *RichStatus {
	if s == Ok {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &RichStatus{status: s, file: file, line: line, msg: msg}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(s Status, format string, args ...any) *RichStatus {
	if s == Ok {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &RichStatus{status: s, file: file, line: line, msg: fmt.Sprintf(format, args...)}
}

// Wrap amends inner with an additional call site and message, preserving
// the original status and chain. Wrap(nil, ...) returns nil.
func Wrap(inner *RichStatus, msg string) *RichStatus {
	if inner == nil {
		return nil
	}
	_, file, line, _ := runtime.Caller(1)
	return &RichStatus{status: inner.status, file: file, line: line, msg: msg, inner: inner}
}

// Status returns the status kind, treating a nil receiver as Ok.
func (rs *RichStatus) Status() Status {
	if rs == nil {
		return Ok
	}
	return rs.status
}

// Error implements the error interface so a *RichStatus can be returned
// wherever idiomatic Go code expects an error.
func (rs *RichStatus) Error() string {
	if rs == nil {
		return "ok"
	}
	msg := fmt.Sprintf("%s:%d: %s: %s", shortFile(rs.file), rs.line, rs.status, rs.msg)
	if rs.inner != nil {
		return msg + "\n\tamends: " + rs.inner.Error()
	}
	return msg
}

// Unwrap supports errors.Is/errors.As across the amendment chain.
func (rs *RichStatus) Unwrap() error {
	if rs == nil || rs.inner == nil {
		return nil
	}
	return rs.inner
}

// Is makes errors.Is match a *RichStatus target by status kind alone
// (message and location are ignored).
func (rs *RichStatus) Is(target error) bool {
	if rs == nil {
		return target == nil
	}
	if other, ok := target.(*RichStatus); ok {
		return rs.status == other.status
	}
	return false
}

func shortFile(f string) string {
	// Keep the last two path segments; full build paths add noise.
	slash := -1
	count := 0
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '/' {
			count++
			if count == 2 {
				slash = i
				break
			}
		}
	}
	if slash >= 0 {
		return f[slash+1:]
	}
	return f
}
