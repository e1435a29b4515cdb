// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package framesink implements the frame sink contract and multiplexer of
// §4.3: the transport-facing side of a connection's output slots, and the
// arbitration between however many output slots currently have data to
// send onto one physical sink.
package framesink

import "github.com/samuelsadok/fibre/chunk"

// NodeID addresses a destination on whatever transport a Sink implements
// (e.g. a CAN node id, §4.7). It is a plain 16-byte value here rather than
// an import of package domain, which this package must not depend on: a
// Sink only needs to route by NodeID, not resolve it to a Node.
type NodeID [16]byte

// SlotID identifies a back-end slot a Sink has allocated, e.g. a CAN TX
// mailbox index. Its meaning is entirely up to the Sink implementation.
type SlotID uint32

// Source is anything the Multiplexer can pull send tasks from: a
// connection's output slot (conn.OutputSlot satisfies this without conn
// ever importing framesink) or any other producer of wire-layered chunks.
//
// A source remains the owner of the BufChain returned by GetTask until
// ReleaseTask reports back how much of it the Sink actually consumed; this
// zero-copy convention is load-bearing (§4.3): the Sink never copies
// payload, only re-layers it at transmit time.
type Source interface {
	HasData() bool
	GetTask() chunk.BufChain
	ReleaseTask(end chunk.End)
}

// Sink is the transport-facing frame sink contract of §4.3/§6: it owns
// back-end slots (e.g. CAN TX mailboxes) addressed to a destination NodeID,
// and commits one source's task to the wire at a time per slot.
//
// StartWrite returns false if the sink cannot currently accept a write
// (e.g. a mailbox is still busy with a previous, unacknowledged frame);
// the Multiplexer retries later rather than treating this as an error.
// Once a write the sink accepted has actually gone out (or definitively
// failed), the sink reports back via the Multiplexer's OnSent, not via a
// return value here — the two are decoupled exactly as in the original
// write/on_write_done split (§5).
type Sink interface {
	OpenOutputSlot(dest NodeID) (SlotID, bool)
	CloseOutputSlot(slot SlotID) bool
	StartWrite(slot SlotID, task chunk.BufChain) bool
	CancelWrite(slot SlotID)
}
