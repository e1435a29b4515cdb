// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package legacy implements the legacy packet protocol (§4.5): a
// byte-stream packet framing (Wrap/PacketUnwrapper) carrying a
// request/response protocol that addresses individual endpoints per
// packet rather than through a persistent connection's byte stream.
package legacy

import (
	"bytes"
	"encoding/binary"

	"github.com/samuelsadok/fibre/status"
)

const (
	preamble      = 0xAA
	maxPayloadLen = 127 // top bit of the length byte is reserved
)

// Wrap encodes payload into one framed packet:
//
//	0xAA  len:u8  crc8(preamble,len)  payload  crc16-be(payload)
func Wrap(payload []byte) ([]byte, *status.RichStatus) {
	if len(payload) > maxPayloadLen {
		return nil, status.New(status.InvalidArgument, "legacy packet payload exceeds 127 bytes")
	}
	out := make([]byte, 0, 3+len(payload)+2)
	out = append(out, preamble, byte(len(payload)))
	out = append(out, crc8(out))
	out = append(out, payload...)
	c16 := crc16(payload)
	out = append(out, byte(c16>>8), byte(c16))
	return out, nil
}

// PacketUnwrapper recovers framed packets from a byte stream, resyncing
// on corruption per §4.5: a bad header CRC drops exactly one byte and
// rescans for the next preamble; a bad payload CRC abandons the whole
// claimed packet and returns to header sync.
type PacketUnwrapper struct {
	buf []byte
}

// Feed appends data to the unwrapper's internal buffer and invokes
// onPacket once per successfully decoded packet it can now extract.
// Packets with a header CRC that never validates are silently resynced
// past; onPacket only ever sees payloads whose CRC-16 matched.
func (u *PacketUnwrapper) Feed(data []byte, onPacket func(payload []byte)) {
	u.buf = append(u.buf, data...)
	for {
		idx := bytes.IndexByte(u.buf, preamble)
		if idx < 0 {
			u.buf = u.buf[:0]
			return
		}
		if idx > 0 {
			u.buf = u.buf[idx:]
		}
		if len(u.buf) < 3 {
			return
		}

		length := int(u.buf[1])
		if length&0x80 != 0 || u.buf[2] != crc8(u.buf[0:2]) {
			u.buf = u.buf[1:]
			continue
		}

		total := 3 + length + 2
		if len(u.buf) < total {
			return
		}

		payload := u.buf[3 : 3+length]
		got := binary.BigEndian.Uint16(u.buf[3+length : total])
		if got == crc16(payload) {
			out := make([]byte, length)
			copy(out, payload)
			onPacket(out)
		}
		u.buf = u.buf[total:]
	}
}

// Reset discards any partially-accumulated packet data.
func (u *PacketUnwrapper) Reset() { u.buf = u.buf[:0] }
