// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/fifo"
	"github.com/samuelsadok/fibre/log"
	"github.com/samuelsadok/fibre/status"
)

// AckPolicy controls how a Connection reacts to an ack that reports a
// position ahead of what it has actually sent yet (§9, Open Question 1).
type AckPolicy uint8

const (
	// AckPolicyLenient logs the discrepancy and re-homes the dangling
	// output slot cursor at the new TX head rather than clamping past
	// fsck-detected corruption. This matches the original implementation's
	// log-and-continue behavior.
	AckPolicyLenient AckPolicy = iota
	// AckPolicyStrict surfaces a status.ProtocolError instead, for callers
	// that would rather drop a misbehaving connection than silently absorb
	// a confused or malicious peer.
	AckPolicyStrict
)

// RxFunc delivers newly-received application-layer data (the connection's
// layer-payload stream, already stripped of call-id and position/ack
// control traffic) to the upper layer. It returns how much of data was
// consumed and whether the upper layer is applying backpressure (busy);
// if busy, DrainRx must be retried later via ResumeRx once the upper layer
// can accept more.
type RxFunc func(data chunk.BufChain) (consumed chunk.End, busy bool)

// Option configures a Connection at construction time.
type Option func(*Connection)

// WithAckPolicy sets the connection's ack-ahead-of-cursor policy. The
// default is AckPolicyLenient.
func WithAckPolicy(p AckPolicy) Option {
	return func(c *Connection) { c.ackPolicy = p }
}

// WithOnRx registers the callback that receives application data drained
// from the RX Fifo. A Connection with no RxFunc leaves received data in
// its RX Fifo; the RxFunc can only be supplied at construction.
func WithOnRx(fn RxFunc) Option {
	return func(c *Connection) { c.onRx = fn }
}

// WithFifoCapacity overrides the default TX/RX Fifo capacity, in blocks.
func WithFifoCapacity(blocks int) Option {
	return func(c *Connection) { c.fifoCapacity = blocks }
}

// WithCallID sets the 16-byte call-id this connection identifies itself
// with on new output slots. The zero call-id is used if never set.
func WithCallID(id [16]byte) Option {
	return func(c *Connection) { c.callID = id }
}

// WithProtocol sets the single-byte protocol selector sent as part of the
// one-shot output-slot header, identifying which call/object protocol (§5)
// runs on top of this connection.
func WithProtocol(selector byte) Option {
	return func(c *Connection) { c.protocol = selector }
}

const defaultFifoCapacity = 256

// Connection is the reliable, ordered, multi-layer delivery endpoint of
// §4: a TX Fifo and RX Fifo, a shared per-layer position cursor on each
// side (rxTail, used to build outbound acks; txHead, the last position the
// peer has acknowledged), and zero or more input/output slots attaching it
// to physical frame sources and sinks.
type Connection struct {
	ackPolicy    AckPolicy
	onRx         RxFunc
	fifoCapacity int
	callID       [16]byte
	protocol     byte

	txFifo *fifo.Fifo
	rxFifo *fifo.Fifo

	rxTail  ConnectionPos // position up to which rxFifo has been filled
	txHead  ConnectionPos // position the peer has last acknowledged
	sendAck bool

	rxBusy bool

	inputSlots  []*InputSlot
	outputSlots []*OutputSlot
}

// New constructs a Connection ready to exchange data once wired to input
// and output slots.
func New(opts ...Option) *Connection {
	c := &Connection{fifoCapacity: defaultFifoCapacity}
	for _, opt := range opts {
		opt(c)
	}
	c.txFifo = fifo.New(c.fifoCapacity)
	c.rxFifo = fifo.New(c.fifoCapacity)
	return c
}

// OpenInputSlot creates a new input slot reading into this connection.
// Each physical path feeding the connection (e.g. a redundant link) gets
// its own slot so retransmissions and reordering on one path don't corrupt
// another path's independent per-layer cursor.
func (c *Connection) OpenInputSlot() *InputSlot {
	s := &InputSlot{conn: c}
	c.inputSlots = append(c.inputSlots, s)
	return s
}

// CloseInputSlot removes a previously opened input slot.
func (c *Connection) CloseInputSlot(s *InputSlot) {
	for i, v := range c.inputSlots {
		if v == s {
			c.inputSlots = append(c.inputSlots[:i], c.inputSlots[i+1:]...)
			return
		}
	}
}

// OpenOutputSlot creates a new output slot, which a frame sink's
// multiplexer can then pull send tasks from (polling HasData). Multiple
// output slots let the same connection fan its TX Fifo content out over
// several physical links simultaneously.
func (c *Connection) OpenOutputSlot() *OutputSlot {
	s := &OutputSlot{conn: c, txIt: c.txFifo.ReadBegin()}
	c.outputSlots = append(c.outputSlots, s)
	return s
}

// CloseOutputSlot removes a previously opened output slot.
func (c *Connection) CloseOutputSlot(s *OutputSlot) {
	for i, v := range c.outputSlots {
		if v == s {
			c.outputSlots = append(c.outputSlots[:i], c.outputSlots[i+1:]...)
			return
		}
	}
}

// OutputSlots returns the connection's currently open output slots, for a
// frame sink multiplexer to poll.
func (c *Connection) OutputSlots() []*OutputSlot { return c.outputSlots }

// Tx enqueues application data for transmission. data is expected to be
// layered at 0, the application's own base layer (§4.4); it is stored
// internally at Fifo-layer layerPayload, the same convention the RX Fifo
// uses, so a peer's ack (tracked per ConnectionPos layer index) maps
// directly onto the bytes actually sitting in the Fifo.
//
// Tx returns the suffix of data that didn't fit in the TX Fifo; callers
// should retry with exactly that suffix once an output slot has drained
// more room (same contract as fifo.Fifo.Append).
func (c *Connection) Tx(data chunk.BufChain) chunk.BufChain {
	rest := c.txFifo.Append(data.Elevate(layerPayload))
	return rest.Elevate(-layerPayload)
}

// DrainRx delivers RX Fifo content to the registered RxFunc until the
// Fifo runs dry or the upper layer applies backpressure. It is a no-op if
// the connection is already waiting on a previous busy response; call
// ResumeRx once the upper layer is ready again.
func (c *Connection) DrainRx() {
	if c.rxBusy || c.onRx == nil {
		return
	}
	for c.rxFifo.HasData() {
		b := chunk.NewBuilder(0)
		c.rxFifo.Read(c.rxFifo.ReadBegin(), b)
		// The RX Fifo stores payload at Fifo-layer 2 (wire layer 3, minus
		// one per §8 invariant 4). Renumber it down to layer 0 here, the
		// application-facing stream the endpoint-addressed protocol (§4.4)
		// expects.
		chain := b.Chain().Elevate(-2)

		consumed, busy := c.onRx(chain)
		if busy {
			c.rxBusy = true
			return
		}
		if consumed.ChunkIndex == 0 && consumed.ByteOffset == 0 {
			// Nothing was consumed even though the upper layer isn't busy;
			// stop rather than loop forever re-delivering the same data.
			return
		}

		it := c.rxFifo.AdvanceItBy(c.rxFifo.ReadBegin(), chain, consumed)
		c.rxFifo.DropUntil(it)
	}
}

// ResumeRx clears the busy flag set by a previous DrainRx and retries
// delivery. Call this once the upper layer (the RxFunc) is ready to accept
// more data after having returned busy.
func (c *Connection) ResumeRx() {
	c.rxBusy = false
	c.DrainRx()
}

// OnAck applies a position the peer has acknowledged: data up to pos is
// known to have arrived, so it can be dropped from the TX Fifo. Acks are
// parsed out of layerControl records by InputSlot.ProcessSync.
func (c *Connection) OnAck(pos ConnectionPos) *status.RichStatus {
	var nFrames, nBytes [numLayers]int

	for i := 0; i < numLayers; i++ {
		diff := int16(pos.FrameIDs[i] - c.txHead.FrameIDs[i])
		switch {
		case diff < 0:
			nFrames[i], nBytes[i] = 0, 0
		case diff == 0:
			nFrames[i] = 0
			off := int(pos.Offsets[i]) - int(c.txHead.Offsets[i])
			if off < 0 {
				off = 0
			}
			nBytes[i] = off
		default:
			nFrames[i] = int(diff)
			nBytes[i] = int(pos.Offsets[i])
		}
	}

	var fifoFrames, fifoBytes [fifo.NumLayers]int
	copy(fifoFrames[:], nFrames[:])
	copy(fifoBytes[:], nBytes[:])

	it := c.txFifo.AdvanceIt(c.txFifo.ReadBegin(), fifoFrames, fifoBytes)
	c.txFifo.DropUntil(it)
	c.txHead = pos

	for _, slot := range c.outputSlots {
		if !c.txFifo.Fsck(slot.txIt) {
			if c.ackPolicy == AckPolicyStrict {
				return status.New(status.ProtocolError, "ack ahead of TX send cursor")
			}
			// Lenient: an ack ahead of what this slot has actually sent
			// leaves its cursor dangling on a dropped region. Re-home it
			// at the new TX head so the slot resumes at a consistent
			// position rather than reading stale/overwritten blocks.
			log.Warn("conn: ack ahead of send cursor on output slot, re-homing at TX head (pos=%+v)", pos)
			slot.txIt = c.txFifo.ReadBegin()
		}
	}

	return nil
}
