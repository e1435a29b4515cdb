// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"encoding/binary"

	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/conn"
)

// Call is one in-flight endpoint call started via
// EndpointClientConnection.StartCall. Its header and argument bytes sit in
// pending until conn.Tx has accepted all of it, after which the call moves
// onto the connection's response queue; onOutput/onDone then fire as the
// matching response bytes arrive.
type Call struct {
	pending            chunk.BufChain
	expectedOutputArgs int
	argsSeen           int
	onOutput           func(data []byte, boundary bool)
	onDone             func()
}

// EndpointClientConnection is the calling side of §4.4: it serializes
// concurrent StartCall requests onto the connection's single layer-0
// stream (tx_queue_) and demultiplexes responses back to the right Call in
// the order calls were sent (rx_queue_), since the connection carries only
// one byte stream and the server replies in arrival order.
type EndpointClientConnection struct {
	conn *conn.Connection
	json JSONSource

	txQueue []*Call
	rxQueue []*Call
}

func NewEndpointClientConnection(c *conn.Connection, json JSONSource) *EndpointClientConnection {
	return &EndpointClientConnection{conn: c, json: json}
}

// StartCall queues a call to endpointID. args are the already-encoded
// in-argument byte slices, one per expected argument, each becoming its own
// layer-0-delimited chunk on the wire. expectedOutputArgs must match the
// bound function's (or property's) output arity; it's how the client
// recognizes where this call's response ends and the next queued call's
// response begins, since the wire carries no explicit end-of-call marker
// beyond the last output argument's boundary.
//
// onOutput is invoked once per output byte slice and once more (with data
// nil, boundary true) per completed output argument; onDone fires once the
// call's full response has arrived. Either may be nil.
func (c *EndpointClientConnection) StartCall(endpointID uint16, exchange bool, args [][]byte, expectedOutputArgs int, onOutput func(data []byte, boundary bool), onDone func()) *Call {
	b := chunk.NewBuilder(0)

	raw := endpointID & 0x3fff
	if exchange {
		raw |= 0x4000
	}
	trailer := c.json.Trailer()
	if endpointID == 0 {
		trailer = ProtocolVersion
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:2], raw)
	binary.LittleEndian.PutUint16(hdr[2:4], trailer)
	b.Append(chunk.Buf(0, hdr[:]))

	for _, a := range args {
		if len(a) > 0 {
			b.Append(chunk.Buf(0, a))
		}
		b.Append(chunk.Boundary(0))
	}

	call := &Call{
		pending:            b.Chain(),
		expectedOutputArgs: expectedOutputArgs,
		onOutput:           onOutput,
		onDone:             onDone,
	}
	c.txQueue = append(c.txQueue, call)
	c.Pump()
	return call
}

// Pump drains queued calls' header/argument bytes into the connection's
// Tx, in the order StartCall was invoked. A call moves from the tx queue to
// the rx queue only once every one of its bytes has been accepted, so
// responses never get demultiplexed to a call whose request is still being
// sent.
func (c *EndpointClientConnection) Pump() {
	for len(c.txQueue) > 0 {
		call := c.txQueue[0]
		if call.pending.NChunks() > 0 {
			before := call.pending.NChunks()
			call.pending = c.conn.Tx(call.pending)
			if call.pending.NChunks() == before || call.pending.NChunks() > 0 {
				return
			}
		}
		c.txQueue = c.txQueue[1:]
		c.rxQueue = append(c.rxQueue, call)
	}
}

// OnRx implements conn.RxFunc, demultiplexing response bytes to the call at
// the front of the rx queue.
func (c *EndpointClientConnection) OnRx(data chunk.BufChain) (chunk.End, bool) {
	chain := data
	for chain.NChunks() > 0 && len(c.rxQueue) > 0 {
		front := chain.Front()
		call := c.rxQueue[0]

		if front.IsBuf() {
			if call.onOutput != nil {
				call.onOutput(front.Bytes(), false)
			}
			chain = chain.SkipBytes(front.Len())
			continue
		}

		if call.onOutput != nil {
			call.onOutput(nil, true)
		}
		call.argsSeen++
		chain = chain.SkipChunks(1)
		if call.argsSeen >= call.expectedOutputArgs {
			c.rxQueue = c.rxQueue[1:]
			if call.onDone != nil {
				call.onDone()
			}
		}
	}
	return chunk.EndOfChain(data), false
}
