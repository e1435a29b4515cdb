// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"encoding/binary"

	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/conn"
	"github.com/samuelsadok/fibre/status"
)

type serverState uint8

const (
	stateHeader serverState = iota
	stateEp0Offset
	stateEp0Boundary
	stateForwarding
	stateSwallow
)

// responder produces response bytes for one completed call. CallSocket
// satisfies this (its ReadOutput method is a superset), as does the
// endpoint-0 JSON handler's own lightweight responder.
type responder interface {
	ReadOutput(b *chunk.Builder) (done bool, rs *status.RichStatus)
}

// EndpointServerConnection plays the role of a connection's on_rx handler
// (§4.4 "Server variant"): it parses the 4-byte (endpoint_id, trailer)
// header of each call arriving on the connection's layer-0 application
// stream, dispatches by endpoint kind, and streams responses back out
// through the connection's Tx in the order calls arrived.
type EndpointServerConnection struct {
	conn  *conn.Connection
	table Table
	json  JSONSource
	bind  Binder
	mtu   int

	state      serverState
	hdr        []byte
	endpointID uint16
	exchange   bool

	ep0Offset []byte
	socket    CallSocket

	outputQueue []responder
	pending     chunk.BufChain
}

// NewEndpointServerConnection constructs a server bound to c. Wire its
// OnRx method in as c's RxFunc via conn.WithOnRx, and call Pump
// periodically (and after OnRx returns) to drain queued responses into
// c.Tx.
func NewEndpointServerConnection(c *conn.Connection, table Table, json JSONSource, bind Binder, mtu int) *EndpointServerConnection {
	return &EndpointServerConnection{conn: c, table: table, json: json, bind: bind, mtu: mtu}
}

// OnRx implements conn.RxFunc.
func (e *EndpointServerConnection) OnRx(data chunk.BufChain) (chunk.End, bool) {
	chain := data
	for chain.NChunks() > 0 {
		front := chain.Front()
		switch e.state {
		case stateHeader:
			chain = e.feedHeader(chain, front)
		case stateEp0Offset:
			chain = e.feedEp0Offset(chain, front)
		case stateEp0Boundary:
			chain = e.feedEp0Boundary(chain, front)
		case stateForwarding:
			chain = e.feedForwarding(chain, front)
		case stateSwallow:
			chain = e.feedSwallow(chain, front)
		}
	}
	e.Pump()
	return chunk.EndOfChain(data), false
}

func (e *EndpointServerConnection) feedHeader(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		room := 4 - len(e.hdr)
		n := front.Len()
		if n > room {
			n = room
		}
		e.hdr = append(e.hdr, front.Bytes()[:n]...)
		chain = chain.SkipBytes(n)
		if len(e.hdr) == 4 {
			e.dispatchHeader()
		}
		return chain
	}
	// A boundary arrived without a complete 4-byte header: terminate and
	// stay in sync by still emitting an outgoing boundary (§4.4).
	e.hdr = e.hdr[:0]
	e.outputQueue = append(e.outputQueue, boundaryOnlyResponder{})
	return chain.SkipChunks(1)
}

func (e *EndpointServerConnection) dispatchHeader() {
	raw := binary.LittleEndian.Uint16(e.hdr[0:2])
	trailer := binary.LittleEndian.Uint16(e.hdr[2:4])
	e.endpointID = raw & 0x3fff
	e.exchange = raw&0x4000 != 0
	e.hdr = e.hdr[:0]

	expected := e.json.Trailer()
	if e.endpointID == 0 {
		expected = ProtocolVersion
	}
	if trailer != expected {
		e.state = stateSwallow
		return
	}

	if e.endpointID == 0 {
		e.state = stateEp0Offset
		return
	}

	entry, ok := e.table.Lookup(e.endpointID)
	if !ok {
		e.state = stateSwallow
		return
	}
	socket, rs := e.bind.Bind(entry)
	if rs != nil {
		e.state = stateSwallow
		return
	}
	e.socket = socket

	switch entry.Kind {
	case KindRoProperty:
		if e.exchange {
			// A read-only property never accepts input: report the
			// size-mismatch by swallowing whatever payload follows and
			// closing the call without invoking the read function (§8
			// scenario f).
			e.socket = nil
			e.state = stateSwallow
			e.outputQueue = append(e.outputQueue, boundaryOnlyResponder{})
			return
		}
		e.writeObjectID(entry.ObjectID)
	case KindFunctionTrigger, KindRwProperty:
		e.writeObjectID(entry.ObjectID)
	default:
		e.state = stateSwallow
	}
}

// writeObjectID forwards object_id as the bound call's first argument
// (§4.4). If that alone completes the call's expected in-arguments (a
// RoProperty read, or a FunctionTrigger with no arguments), the call is
// finished immediately and no further bytes on this connection belong to
// it; otherwise forwarding continues for subsequent incoming bytes.
func (e *EndpointServerConnection) writeObjectID(id uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], id)
	done, _ := e.socket.WriteArg(b[:], true)
	if done {
		e.finishCall()
		return
	}
	e.state = stateForwarding
}

func (e *EndpointServerConnection) feedForwarding(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		done, _ := e.socket.WriteArg(front.Bytes(), false)
		chain = chain.SkipBytes(front.Len())
		if done {
			e.finishCall()
		}
		return chain
	}
	done, _ := e.socket.WriteArg(nil, true)
	chain = chain.SkipChunks(1)
	if done {
		e.finishCall()
	}
	return chain
}

func (e *EndpointServerConnection) finishCall() {
	e.outputQueue = append(e.outputQueue, e.socket)
	e.socket = nil
	e.state = stateHeader
}

func (e *EndpointServerConnection) feedSwallow(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		return chain.SkipBytes(front.Len())
	}
	e.state = stateHeader
	return chain.SkipChunks(1)
}

func (e *EndpointServerConnection) feedEp0Offset(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		room := 4 - len(e.ep0Offset)
		n := front.Len()
		if n > room {
			n = room
		}
		e.ep0Offset = append(e.ep0Offset, front.Bytes()[:n]...)
		chain = chain.SkipBytes(n)
		if len(e.ep0Offset) == 4 {
			e.dispatchEp0()
		}
		return chain
	}
	e.ep0Offset = e.ep0Offset[:0]
	e.state = stateHeader
	e.outputQueue = append(e.outputQueue, boundaryOnlyResponder{})
	return chain.SkipChunks(1)
}

func (e *EndpointServerConnection) feedEp0Boundary(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		// Unexpected bytes where only the offset argument's terminating
		// boundary was expected; resynchronize on the next boundary.
		e.state = stateSwallow
		return chain.SkipBytes(front.Len())
	}
	e.state = stateHeader
	return chain.SkipChunks(1)
}

func (e *EndpointServerConnection) dispatchEp0() {
	offset := binary.LittleEndian.Uint32(e.ep0Offset)
	e.ep0Offset = e.ep0Offset[:0]
	e.state = stateEp0Boundary

	var resp []byte
	if offset == 0xFFFFFFFF {
		resp = make([]byte, 4)
		binary.LittleEndian.PutUint32(resp, e.json.VersionID())
	} else if data := e.json.JSON(); int(offset) < len(data) {
		end := len(data)
		if e.mtu > 0 && int(offset)+e.mtu < end {
			end = int(offset) + e.mtu
		}
		resp = data[offset:end]
	}
	e.outputQueue = append(e.outputQueue, &ep0Responder{data: resp})
}

// Pump drives the TX side (§4.4 "tx_logic"): if a response is pending,
// offer it to the connection's Tx; once accepted, pull the next chunk of
// output from the front of the response queue. Call this after OnRx and
// whenever the embedding event loop believes more TX room may have opened
// up (e.g. after an output slot's ReleaseTask).
func (e *EndpointServerConnection) Pump() {
	for {
		if e.pending.NChunks() > 0 {
			before := e.pending.NChunks()
			e.pending = e.conn.Tx(e.pending)
			if e.pending.NChunks() == before {
				return // TX FIFO is full; retry on the next Pump call
			}
			if e.pending.NChunks() > 0 {
				return
			}
		}

		if len(e.outputQueue) == 0 {
			return
		}
		b := chunk.NewBuilder(0)
		done, rs := e.outputQueue[0].ReadOutput(b)
		e.pending = b.Chain()
		if rs != nil && rs.Status() == status.Busy {
			return
		}
		if done {
			e.outputQueue = e.outputQueue[1:]
		}
	}
}

type ep0Responder struct {
	data []byte
	sent bool
}

func (r *ep0Responder) ReadOutput(b *chunk.Builder) (bool, *status.RichStatus) {
	if r.sent {
		return true, nil
	}
	if len(r.data) > 0 && !b.Append(chunk.Buf(0, r.data)) {
		return false, status.New(status.Busy, "builder full")
	}
	if !b.Append(chunk.Boundary(0)) {
		return false, status.New(status.Busy, "builder full")
	}
	r.sent = true
	return true, nil
}

type boundaryOnlyResponder struct{}

func (boundaryOnlyResponder) ReadOutput(b *chunk.Builder) (bool, *status.RichStatus) {
	if !b.Append(chunk.Boundary(0)) {
		return false, status.New(status.Busy, "builder full")
	}
	return true, nil
}
