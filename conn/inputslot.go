// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package conn

import "github.com/samuelsadok/fibre/chunk"

const callIDRecordSize = 1 + 16 // protocol-selector byte + 16-byte call-id

// InputSlot is one physical path feeding a Connection. It owns its own
// per-layer position cursor (pos) so that reordering or retransmission on
// this path alone never corrupts state shared with other paths feeding
// the same connection.
type InputSlot struct {
	conn *Connection
	pos  ConnectionPos

	callIDCache  []byte
	peerProtocol byte
	peerCallID   [16]byte
	controlCache []byte
}

// ProcessSync synchronously processes every chunk of chain, updating the
// slot's position cursor, applying any position declarations or acks
// found in layerControl records, forwarding new payload bytes into the
// connection's RX Fifo, and triggering delivery to the registered RxFunc.
func (s *InputSlot) ProcessSync(chain chunk.BufChain) {
	for chain.NChunks() > 0 {
		front := chain.Front()
		layer := front.Layer()

		if layer == 0 {
			// Reserved; this protocol version never sends on wire layer 0.
			chain = chain.SkipChunks(1)
			continue
		}

		switch int(layer) - 1 {
		case layerCallID:
			chain = s.processCallID(chain, front)
		case layerControl:
			chain = s.processControl(chain, front)
		case layerPayload:
			chain = s.processPayload(chain, front)
		default:
			chain = chain.SkipChunks(1)
		}
	}

	s.conn.DrainRx()
}

func (s *InputSlot) processCallID(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		room := callIDRecordSize - len(s.callIDCache)
		n := front.Len()
		if n > room {
			n = room
		}
		s.callIDCache = append(s.callIDCache, front.Bytes()[:n]...)
		return chain.SkipBytes(n)
	}

	if len(s.callIDCache) >= callIDRecordSize {
		s.peerProtocol = s.callIDCache[0]
		copy(s.peerCallID[:], s.callIDCache[1:callIDRecordSize])
	}
	s.callIDCache = s.callIDCache[:0]
	return chain.SkipChunks(1)
}

func (s *InputSlot) processControl(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	if front.IsBuf() {
		room := controlRecordSize - len(s.controlCache)
		n := front.Len()
		if n > room {
			n = room
		}
		s.controlCache = append(s.controlCache, front.Bytes()[:n]...)
		return chain.SkipBytes(n)
	}

	if len(s.controlCache) >= controlRecordSize {
		kind, pos := decodeControlRecord(s.controlCache)
		if kind == controlKindPosition {
			s.pos = pos
		} else {
			s.conn.OnAck(pos)
		}
	}
	s.controlCache = s.controlCache[:0]
	return chain.SkipChunks(1)
}

// processPayload implements the retransmit-aware forwarding described in
// §4.2 "Inbound": data behind the connection's rxTail is a retransmit and
// is skipped (triggering an ack so the peer stops resending it); data
// exactly at rxTail is new and is appended to the RX Fifo, advancing
// rxTail; data ahead of rxTail would be a gap and is treated the same as
// new data once reached in order (gaps cannot occur: chunks arrive in the
// order the peer's single TX Fifo cursor produced them).
func (s *InputSlot) processPayload(chain chunk.BufChain, front chunk.Chunk) chunk.BufChain {
	c := s.conn
	const idx = layerPayload

	if s.pos.FrameIDs[idx] == c.rxTail.FrameIDs[idx] &&
		c.rxTail.Offsets[idx] > s.pos.Offsets[idx] && front.IsBuf() {
		skip := int(c.rxTail.Offsets[idx]) - int(s.pos.Offsets[idx])
		if skip > front.Len() {
			skip = front.Len()
		}
		s.pos.Offsets[idx] += uint16(skip)
		c.sendAck = true
		return chain.SkipBytes(skip)
	}

	if s.pos.FrameIDs[idx] == c.rxTail.FrameIDs[idx] &&
		s.pos.Offsets[idx] == c.rxTail.Offsets[idx] {
		elevated := front.Elevate(-1) // wire layer 3 -> RX Fifo layer 2 (§8 invariant 4)
		if rest := c.rxFifo.Append(chunk.From(elevated)); rest.NChunks() == 0 {
			if front.IsBuf() {
				c.rxTail.Offsets[idx] += uint16(front.Len())
			} else {
				c.rxTail.FrameIDs[idx]++
				c.rxTail.Offsets[idx] = 0
			}
		}
	}

	if front.IsBuf() {
		s.pos.Offsets[idx] += uint16(front.Len())
	} else {
		s.pos.FrameIDs[idx]++
		s.pos.Offsets[idx] = 0
	}

	c.sendAck = true
	return chain.SkipChunks(1)
}
