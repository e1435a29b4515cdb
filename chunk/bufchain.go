// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunk

// BufChain is an ordered sequence of chunks, handed between components
// without copying payload bytes.
type BufChain []Chunk

// From builds a BufChain from individual chunks.
func From(chunks ...Chunk) BufChain { return BufChain(chunks) }

// NChunks returns the number of chunks remaining in the chain.
func (c BufChain) NChunks() int { return len(c) }

// Front returns the first chunk of the chain. It panics on an empty chain;
// callers must check NChunks() first, same as the C++ front() precondition.
func (c BufChain) Front() Chunk { return c[0] }

// SkipChunks returns the chain with the first n chunks dropped whole.
func (c BufChain) SkipChunks(n int) BufChain { return c[n:] }

// SkipBytes returns the chain with the first n payload bytes dropped,
// splitting the front chunk if n falls in its middle. Frame boundaries
// count as zero bytes and are only consumed by SkipChunks.
func (c BufChain) SkipBytes(n int) BufChain {
	for n > 0 && len(c) > 0 {
		front := c[0]
		if front.IsFrameBoundary() {
			// A frame boundary contributes no bytes; it must be skipped
			// explicitly via SkipChunks by the caller.
			break
		}
		if front.Len() <= n {
			n -= front.Len()
			c = c[1:]
			continue
		}
		c = append(BufChain{front.SkipBytes(n)}, c[1:]...)
		n = 0
	}
	return c
}

// Elevate returns a new chain with every chunk's layer shifted by delta.
func (c BufChain) Elevate(delta int) BufChain {
	out := make(BufChain, len(c))
	for i, ch := range c {
		out[i] = ch.Elevate(delta)
	}
	return out
}

// End identifies a byte-precise position within a BufChain: the index of
// the chunk it falls in, plus a byte offset into that chunk (0 if it lands
// exactly on a chunk boundary). It is the Go analogue of the C++ CBufIt's
// {chunk pointer, byte pointer} pair, expressed as indices instead of raw
// pointers since a BufChain is a plain slice here.
type End struct {
	ChunkIndex int
	ByteOffset int
}

// EndOfChain is the position just past the last chunk of any chain.
func EndOfChain(c BufChain) End { return End{ChunkIndex: len(c)} }

// Until returns the prefix of c described by end, splitting the chunk at
// end.ChunkIndex if end.ByteOffset is non-zero.
func (c BufChain) Until(end End) BufChain {
	if end.ChunkIndex >= len(c) {
		return c
	}
	if end.ByteOffset == 0 {
		return c[:end.ChunkIndex]
	}
	out := make(BufChain, end.ChunkIndex+1)
	copy(out, c[:end.ChunkIndex])
	out[end.ChunkIndex] = c[end.ChunkIndex].Head(end.ByteOffset)
	return out
}

// From returns the suffix of c starting at end, splitting the chunk at
// end.ChunkIndex if end.ByteOffset is non-zero.
func (c BufChain) From(end End) BufChain {
	if end.ChunkIndex >= len(c) {
		return nil
	}
	if end.ByteOffset == 0 {
		return c[end.ChunkIndex:]
	}
	return c[end.ChunkIndex:].SkipBytes(end.ByteOffset)
}

// FindLayer0Bound returns the End of the first frame boundary on layer 0,
// and true if one was found.
func (c BufChain) FindLayer0Bound() (End, bool) {
	for i, ch := range c {
		if ch.IsFrameBoundary() && ch.Layer() == 0 {
			return End{ChunkIndex: i}, true
		}
	}
	return End{}, false
}

// TotalBytes sums the payload length of every buf chunk in the chain.
func (c BufChain) TotalBytes() int {
	n := 0
	for _, ch := range c {
		n += ch.Len()
	}
	return n
}
