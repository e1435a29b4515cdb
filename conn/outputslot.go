// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import (
	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/fifo"
)

// wireLayerCallID, wireLayerControl and wireLayerPayload are the layer tags
// an OutputSlot actually puts on the wire, one higher than the
// corresponding internal layer* index (layer 0 is reserved).
const (
	wireLayerCallID  = layerCallID + 1
	wireLayerControl = layerControl + 1
	wireLayerPayload = layerPayload + 1
)

// OutputSlot is one physical path a Connection sends on. It tracks how far
// into the TX Fifo it has successfully delivered data (txIt), and whether
// it currently owes the peer a fresh copy of the one-shot call-id/position
// header (sentHeaderRecently).
type OutputSlot struct {
	conn *Connection
	txIt fifo.Iterator

	sending            bool
	sentHeaderRecently bool

	sendingTxIt         fifo.Iterator
	sendingPayload      chunk.BufChain
	sendingStorageBegin int
}

// HasData reports whether calling GetTask would produce a non-empty task:
// either the one-shot header hasn't been sent yet, there is unsent TX Fifo
// content, or an ack is owed.
func (o *OutputSlot) HasData() bool {
	return !o.sending &&
		(!o.sentHeaderRecently || o.txIt != o.conn.txFifo.ReadEnd() || o.conn.sendAck)
}

// GetTask builds the next chunk of wire data this slot should send: the
// one-shot protocol-selector/call-id and position header (only the first
// time the slot is used), an ack record (if one is owed), and as much of
// the TX Fifo's content as fits, elevated onto wireLayerPayload. The
// caller must eventually call ReleaseTask with how much of the returned
// chain it actually managed to send.
func (o *OutputSlot) GetTask() chunk.BufChain {
	c := o.conn
	b := chunk.NewBuilder(0)

	if !o.sentHeaderRecently {
		o.sentHeaderRecently = true
		rec := encodeControlRecord(controlKindPosition, c.txHead)

		b.Append(chunk.Buf(wireLayerCallID, []byte{c.protocol}))
		b.Append(chunk.Buf(wireLayerCallID, c.callID[:]))
		b.Append(chunk.Boundary(wireLayerCallID))
		b.Append(chunk.Buf(wireLayerControl, rec[:]))
		b.Append(chunk.Boundary(wireLayerControl))
	}

	if c.sendAck {
		c.sendAck = false
		rec := encodeControlRecord(controlKindAck, c.rxTail)
		b.Append(chunk.Buf(wireLayerControl, rec[:]))
		b.Append(chunk.Boundary(wireLayerControl))
	}

	o.sendingStorageBegin = b.Len()

	payloadBuilder := chunk.NewBuilder(0)
	o.sendingTxIt = c.txFifo.Read(o.txIt, payloadBuilder)
	// The TX Fifo stores payload at Fifo-layer layerPayload already (see
	// Connection.Tx); only the final +1 step onto wireLayerPayload remains.
	o.sendingPayload = payloadBuilder.Chain().Elevate(wireLayerPayload - layerPayload)
	for _, ch := range o.sendingPayload {
		b.Append(ch)
	}

	o.sending = true

	return b.Chain()
}

// ReleaseTask reports that the slot's sink consumed the previously
// returned task up to end, and updates the slot's TX Fifo cursor
// accordingly.
func (o *OutputSlot) ReleaseTask(end chunk.End) {
	o.sending = false

	if end.ChunkIndex < o.sendingStorageBegin {
		// Only some (but not all) of the header/ack chunks were sent;
		// txIt is untouched since none of the payload went out.
		return
	}

	relEnd := chunk.End{ChunkIndex: end.ChunkIndex - o.sendingStorageBegin, ByteOffset: end.ByteOffset}
	if relEnd.ChunkIndex >= o.sendingPayload.NChunks() {
		o.txIt = o.sendingTxIt
		return
	}
	o.txIt = o.conn.txFifo.AdvanceItBy(o.txIt, o.sendingPayload, relEnd)
}
