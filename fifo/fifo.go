// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fifo implements the chunked FIFO described in §2: a
// fixed-capacity ring buffer of fixed-size blocks holding a sequence of
// header+payload records, used as the connection's per-direction transmit
// and receive queues (§4.1, §4.2).
//
// Every record occupies a whole number of blocks: one header block
// (frame-boundary flag, layer, payload length) followed by zero or more
// payload blocks. A record's payload is never split across the physical
// end of the ring; when there isn't room to fit a chunk's bytes before
// wrapping, append writes a short (possibly zero-length) record instead,
// padding out to the physical end so the next record starts back at the
// beginning of the ring, uncomplicated by wraparound.
package fifo

import (
	"encoding/binary"

	"github.com/samuelsadok/fibre/chunk"
)

// blockSize is the size in bytes of a single ring block: 1 byte of flags
// (the frame-boundary bit and the 3-bit layer tag packed together), a
// 2-byte little-endian payload length, and one reserved/padding byte.
const blockSize = 4

// NumLayers is the number of distinct layers a Fifo tracks simultaneously
// (§8 invariant 4: RX FIFO carries layers 0..2 of a connection's traffic).
const NumLayers = 3

type header struct {
	boundary bool
	layer    uint8
	length   int
}

// Fifo is a fixed-capacity ring buffer of chunked records. The zero value
// is not usable; construct one with New.
type Fifo struct {
	buf       []byte
	numBlocks int
	readIdx   int
	readOff   int
	writeIdx  int
}

// New returns a Fifo with room for capacityBlocks blocks of bookkeeping and
// payload combined. New panics below 2 blocks. Append needs at least two
// free blocks and one block always stays unused, so a Fifo of 2 blocks
// accepts nothing and at least 3 are needed for Append to store data.
func New(capacityBlocks int) *Fifo {
	if capacityBlocks < 2 {
		panic("fifo: capacity too small")
	}
	return &Fifo{
		buf:       make([]byte, capacityBlocks*blockSize),
		numBlocks: capacityBlocks,
	}
}

func (f *Fifo) writeHeader(idx int, h header) {
	off := idx * blockSize
	flags := h.layer << 1
	if h.boundary {
		flags |= 1
	}
	f.buf[off] = flags
	binary.LittleEndian.PutUint16(f.buf[off+1:off+3], uint16(h.length))
}

func (f *Fifo) readHeader(idx int) header {
	off := idx * blockSize
	flags := f.buf[off]
	return header{
		boundary: flags&1 != 0,
		layer:    flags >> 1,
		length:   int(binary.LittleEndian.Uint16(f.buf[off+1 : off+3])),
	}
}

func (f *Fifo) payloadBlocks(h header) int {
	if h.boundary {
		return 0
	}
	return (h.length + blockSize - 1) / blockSize
}

func (f *Fifo) payloadOffset(idx int) int { return (idx + 1) * blockSize }

// slack returns the number of free blocks between the write cursor and the
// read cursor, reserving at least one block so the write cursor never
// catches up with the read cursor (which would make the ring
// indistinguishable from empty).
func (f *Fifo) slack() int {
	return floorMod(f.numBlocks+f.readIdx-f.writeIdx-1, f.numBlocks)
}

func floorMod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Append writes as much of chain into the Fifo as fits, and returns the
// unconsumed remainder. A non-empty remainder means the Fifo is full;
// callers should treat that as backpressure (status.Busy in the caller's
// terms) rather than an error.
func (f *Fifo) Append(chain chunk.BufChain) chunk.BufChain {
	for chain.NChunks() > 0 {
		if f.slack() < 2 {
			return chain
		}

		front := chain.Front()
		payloadBlocks := 0

		if front.IsBuf() {
			maxDataBlocks := f.maxDataBlocks()
			nCopy := maxDataBlocks * blockSize
			if b := front.Len(); b < nCopy {
				nCopy = b
			}

			f.writeHeader(f.writeIdx, header{layer: front.Layer(), length: nCopy})
			copy(f.buf[f.payloadOffset(f.writeIdx):], front.Bytes()[:nCopy])

			chain = chain.SkipBytes(nCopy)
			payloadBlocks = (nCopy + blockSize - 1) / blockSize
		} else {
			f.writeHeader(f.writeIdx, header{boundary: true, layer: front.Layer()})
			chain = chain.SkipChunks(1)
		}

		f.writeIdx = (f.writeIdx + 1 + payloadBlocks) % f.numBlocks
	}

	// Coalescing adjacent same-layer records would save RAM at the cost of
	// more bookkeeping; not implemented (see DESIGN.md).
	return chain
}

// maxDataBlocks returns the number of whole payload blocks available for
// the current write position without wrapping the physical buffer and
// without writing over the read cursor. It can be 0, in which case append
// still writes a (possibly zero-length) header block — padding the ring
// out to its physical end.
func (f *Fifo) maxDataBlocks() int {
	toPhysicalEnd := f.numBlocks - f.writeIdx - 1
	toReadCursor := floorMod(f.readIdx+f.numBlocks-f.writeIdx-2, f.numBlocks)
	if toPhysicalEnd < toReadCursor {
		return toPhysicalEnd
	}
	return toReadCursor
}

// Iterator is a read cursor into a Fifo: a block index plus a byte offset
// into that block's payload (0 for a frame-boundary record, or when
// positioned exactly at the start of a buf record).
type Iterator struct {
	f   *Fifo
	idx int
	off int
}

// ReadBegin returns an iterator at the Fifo's oldest unconsumed record.
func (f *Fifo) ReadBegin() Iterator { return Iterator{f: f, idx: f.readIdx, off: f.readOff} }

// ReadEnd returns an iterator just past the newest record (the write
// cursor). It never compares equal to a "real" record position while the
// Fifo holds unread data.
func (f *Fifo) ReadEnd() Iterator { return Iterator{f: f, idx: f.writeIdx} }

// HasData reports whether any unread records remain.
func (f *Fifo) HasData() bool { return f.ReadBegin() != f.ReadEnd() }

// Chunk returns the chunk this iterator currently points at.
func (it Iterator) Chunk() chunk.Chunk {
	h := it.f.readHeader(it.idx)
	if h.boundary {
		return chunk.Boundary(h.layer)
	}
	start := it.f.payloadOffset(it.idx) + it.off
	end := it.f.payloadOffset(it.idx) + h.length
	return chunk.Buf(h.layer, it.f.buf[start:end])
}

// Next returns the iterator advanced past the current record in its
// entirety (not byte by byte).
func (it Iterator) Next() Iterator {
	h := it.f.readHeader(it.idx)
	idx := (it.idx + 1 + it.f.payloadBlocks(h)) % it.f.numBlocks
	return Iterator{f: it.f, idx: idx}
}

// Read drains chunks from it into b until b refuses more or the end of the
// Fifo's written data is reached, and returns the resulting iterator.
func (f *Fifo) Read(it Iterator, b *chunk.Builder) Iterator {
	end := f.ReadEnd()
	for b.HasFreeSpace() && it != end {
		b.Append(it.Chunk())
		it = it.Next()
	}
	return it
}

// AdvanceIt walks it forward by nFrames[layer] frame boundaries and, once a
// layer's frame quota is exhausted, nBytes[layer] further payload bytes on
// that layer, for each of the NumLayers layers independently. It is used to
// translate a ConnectionPos (frames-and-bytes-since-some-reference) into a
// Fifo position, e.g. to drop data a peer has acknowledged.
//
// If it reaches the end of written data before a layer's counts are
// exhausted, the excess is simply dropped; callers that care should
// validate the counts against what's actually in the Fifo first.
func (f *Fifo) AdvanceIt(it Iterator, nFrames, nBytes [NumLayers]int) Iterator {
	end := f.ReadEnd()
	for it != end {
		c := it.Chunk()
		l := int(c.Layer())
		switch {
		case c.IsFrameBoundary():
			if nFrames[l] > 0 {
				nFrames[l]--
			} else {
				return it
			}
		case nFrames[l] > 0:
			// A frame boundary is still pending on this layer: walk over
			// the whole chunk regardless of its length.
		default:
			if nBytes[l] >= c.Len() {
				nBytes[l] -= c.Len()
			} else {
				return Iterator{f: f, idx: it.idx, off: it.off + nBytes[l]}
			}
		}
		it = it.Next()
	}
	return it
}

// AdvanceItBy walks it forward by the position end describes within
// consumed, a BufChain that was built by draining this same Fifo starting
// at it (typically via Read). It is the range-based counterpart to
// AdvanceIt, used when a caller partially consumed a chain built from the
// Fifo and needs to report back how far it actually got.
func (f *Fifo) AdvanceItBy(it Iterator, consumed chunk.BufChain, end chunk.End) Iterator {
	for i := 0; i < end.ChunkIndex; i++ {
		it = it.Next()
	}
	if end.ChunkIndex < consumed.NChunks() {
		it.off += end.ByteOffset
	}
	return it
}

// DropUntil discards every record before it, making it the new read cursor.
func (f *Fifo) DropUntil(it Iterator) {
	f.readIdx = it.idx
	f.readOff = it.off
}

// Consume drops the next nChunks whole records (ignoring any partial byte
// offset within the current one) from the front of the Fifo.
func (f *Fifo) Consume(nChunks int) {
	for ; nChunks > 0; nChunks-- {
		h := f.readHeader(f.readIdx)
		f.readIdx = (f.readIdx + 1 + f.payloadBlocks(h)) % f.numBlocks
	}
	f.readOff = 0
}

// Fsck walks every record between the read and write cursors and verifies
// the ring is internally consistent (no record claims a layer past
// chunk.MaxLayers, no record's payload would run past the physical end of
// the buffer, and non-boundary records have non-zero length unless they
// are padding at the very end of the ring). It also reports whether it is
// a position that Fsck actually passed through, which callers use to
// sanity-check a cursor they've been tracking independently.
func (f *Fifo) Fsck(it Iterator) bool {
	if f.readIdx >= f.numBlocks || f.writeIdx >= f.numBlocks {
		return false
	}

	found := false
	idx := f.readIdx
	for idx != f.writeIdx {
		h := f.readHeader(idx)
		blocks := f.payloadBlocks(h)

		valid := (idx+1)*blockSize+h.length <= len(f.buf) &&
			int(h.layer) < chunk.MaxLayers &&
			((h.length == 0) == h.boundary || idx == f.numBlocks-1)
		if !valid {
			return false
		}

		if it.idx == idx {
			found = true
		}

		idx = (idx + 1 + blocks) % f.numBlocks
	}

	return found || it.idx == idx
}
