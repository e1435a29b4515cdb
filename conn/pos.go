// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package conn implements the connection endpoint (§4): reliable,
// ordered, multi-layer delivery over an unreliable, possibly
// reordering, possibly duplicating frame transport.
package conn

import "encoding/binary"

// numLayers mirrors fifo.NumLayers: a connection tracks an independent
// per-layer (frame id, byte offset) cursor for each of the wire layers it
// exchanges control and payload on.
const numLayers = 3

// Layer indices within a ConnectionPos / the RX and TX Fifo. Wire layer 0
// is reserved and carries no traffic; wire layers 1..3 map to these three
// tracked layers (§8 invariant 4: Fifo layer = wire layer - 1).
const (
	layerCallID  = 0 // one-shot protocol-selector + call-id handshake
	layerControl = 1 // position declarations and acks
	layerPayload = 2 // application data, the only layer exposed to on_rx
)

// ConnectionPos is a per-layer cursor: for each of the three tracked
// layers, the id of the frame currently in progress and the number of
// bytes of that frame already accounted for. Two connections exchange
// ConnectionPos values (as 13-byte control records, §4.2) to declare where
// their send cursor currently stands and to acknowledge what has been
// received.
type ConnectionPos struct {
	FrameIDs [numLayers]uint16
	Offsets  [numLayers]uint16
}

// controlRecordSize is the wire size of a position declaration or ack
// record: one discriminator byte plus 3*(2-byte frame id + 2-byte offset).
const controlRecordSize = 1 + 4*numLayers

const (
	controlKindPosition byte = 0
	controlKindAck      byte = 1
)

func encodeControlRecord(kind byte, pos ConnectionPos) [controlRecordSize]byte {
	var buf [controlRecordSize]byte
	buf[0] = kind
	for i := 0; i < numLayers; i++ {
		binary.LittleEndian.PutUint16(buf[1+4*i:], pos.FrameIDs[i])
		binary.LittleEndian.PutUint16(buf[3+4*i:], pos.Offsets[i])
	}
	return buf
}

func decodeControlRecord(buf []byte) (kind byte, pos ConnectionPos) {
	kind = buf[0]
	for i := 0; i < numLayers; i++ {
		pos.FrameIDs[i] = binary.LittleEndian.Uint16(buf[1+4*i:])
		pos.Offsets[i] = binary.LittleEndian.Uint16(buf[3+4*i:])
	}
	return kind, pos
}
