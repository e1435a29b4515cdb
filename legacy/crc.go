// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package legacy

// CRC parameters are fixed by the wire format (§4.5, §6) and must match
// exactly: CRC-8 poly 0x37 init 0x42 over the two header bytes, CRC-16
// poly 0x3d65 init 0x1337 over the payload (and, with the same
// parameters re-seeded at PROTOCOL_VERSION, over the embedded JSON
// descriptor to produce each non-zero endpoint's expected trailer).
const (
	crc8Poly  = 0x37
	crc8Init  = 0x42
	crc16Poly = 0x3d65
	crc16Init = 0x1337
)

var crc8Table [256]byte
var crc16Table [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		c := byte(i)
		for b := 0; b < 8; b++ {
			if c&0x80 != 0 {
				c = c<<1 ^ crc8Poly
			} else {
				c <<= 1
			}
		}
		crc8Table[i] = c
	}
	for i := 0; i < 256; i++ {
		c := uint16(i) << 8
		for b := 0; b < 8; b++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ crc16Poly
			} else {
				c <<= 1
			}
		}
		crc16Table[i] = c
	}
}

func crc8(data []byte) byte {
	c := byte(crc8Init)
	for _, b := range data {
		c = crc8Table[c^b]
	}
	return c
}

func crc16(data []byte) uint16 {
	return CRC16Seeded(data, crc16Init)
}

// CRC16Seeded runs the same CRC-16 (poly 0x3d65) used throughout §4.5/§6
// with a caller-supplied initial value, so other packages can compute
// the JSON descriptor's CRC (seeded with PROTOCOL_VERSION per §6)
// without duplicating the table.
func CRC16Seeded(data []byte, init uint16) uint16 {
	c := init
	for _, b := range data {
		c = c<<8 ^ crc16Table[byte(c>>8)^b]
	}
	return c
}
