// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package chunk implements the layer-tagged buffer chain that every other
// package in this module passes data around in (§3, GLOSSARY "Chunk").
//
// A Chunk is either a slice of payload bytes tagged with a layer, or a
// zero-length frame-boundary marker on a layer. Chunks never own their
// bytes: a BufChain is handed between components by reference, and the
// zero-copy convention documented on framesink.Source is what lets the core
// re-layer bytes (via Elevate) without ever copying a payload.
package chunk

import "fmt"

// MaxLayers is the number of framing layers the wire header can express
// (kMaxLayers in the spec; the header uses 3 bits, 0..=4 in practice).
const MaxLayers = 4

// Chunk is a tagged value: either a buf chunk (layer-tagged payload bytes)
// or a frame boundary (a zero-length marker terminating a logical frame on
// a layer). The zero Chunk is a frame boundary on layer 0.
type Chunk struct {
	layer    uint8
	boundary bool
	buf      []byte
}

// Buf returns a buf chunk carrying bytes on the given layer. It panics if
// layer exceeds MaxLayers, mirroring the wire format's 3-bit field.
func Buf(layer uint8, bytes []byte) Chunk {
	if layer > MaxLayers {
		panic(fmt.Sprintf("chunk: layer %d exceeds MaxLayers %d", layer, MaxLayers))
	}
	return Chunk{layer: layer, buf: bytes}
}

// Boundary returns a frame-boundary marker on the given layer.
func Boundary(layer uint8) Chunk {
	if layer > MaxLayers {
		panic(fmt.Sprintf("chunk: layer %d exceeds MaxLayers %d", layer, MaxLayers))
	}
	return Chunk{layer: layer, boundary: true}
}

// Layer returns the chunk's layer tag.
func (c Chunk) Layer() uint8 { return c.layer }

// IsFrameBoundary reports whether c is a frame-boundary marker.
func (c Chunk) IsFrameBoundary() bool { return c.boundary }

// IsBuf reports whether c carries payload bytes.
func (c Chunk) IsBuf() bool { return !c.boundary }

// Bytes returns the chunk's payload. It is empty for a frame boundary.
func (c Chunk) Bytes() []byte { return c.buf }

// Len returns the number of payload bytes carried by a buf chunk, or 0 for
// a frame boundary.
func (c Chunk) Len() int { return len(c.buf) }

// Elevate returns a copy of c with its layer tag shifted by delta. Used
// when a lower layer wraps (or unwraps) bytes from a higher layer into its
// own payload: RX decreases by one (new data moves down a layer as it is
// unwrapped), TX increases by three (application payload becomes layer-3
// on the wire). Panics if the resulting layer would be negative or exceed
// MaxLayers.
func (c Chunk) Elevate(delta int) Chunk {
	nl := int(c.layer) + delta
	if nl < 0 || nl > MaxLayers {
		panic(fmt.Sprintf("chunk: elevate(%d) on layer %d out of range", delta, c.layer))
	}
	c.layer = uint8(nl)
	return c
}

// SkipBytes returns c with the first n payload bytes dropped. It panics if
// n exceeds the chunk's length or c is a frame boundary with n > 0.
func (c Chunk) SkipBytes(n int) Chunk {
	if n == 0 {
		return c
	}
	if c.boundary || n > len(c.buf) {
		panic("chunk: SkipBytes out of range")
	}
	c.buf = c.buf[n:]
	return c
}

// Head returns the first n payload bytes of c as a new buf chunk on the
// same layer; c must not be a frame boundary and n must not exceed its
// length.
func (c Chunk) Head(n int) Chunk {
	if c.boundary || n > len(c.buf) {
		panic("chunk: Head out of range")
	}
	return Chunk{layer: c.layer, buf: c.buf[:n:n]}
}
