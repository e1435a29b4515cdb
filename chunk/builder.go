// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunk

// Builder accumulates chunks into a bounded BufChain, refusing further
// writes once a configured chunk limit is reached. It is the Go analogue
// of the C++ write_iterator/BufChainBuilder pair used wherever a component
// drains an upstream iterator "until the builder refuses more" (§4.1).
type Builder struct {
	chunks []Chunk
	limit  int // 0 means unlimited
}

// NewBuilder returns a Builder that accepts at most limit chunks. A limit
// of 0 means unlimited (bounded only by available memory).
func NewBuilder(limit int) *Builder {
	return &Builder{limit: limit}
}

// HasFreeSpace reports whether the builder will accept another chunk.
func (b *Builder) HasFreeSpace() bool {
	return b.limit == 0 || len(b.chunks) < b.limit
}

// Append adds c to the builder. It returns false without modifying the
// builder if HasFreeSpace is false.
func (b *Builder) Append(c Chunk) bool {
	if !b.HasFreeSpace() {
		return false
	}
	b.chunks = append(b.chunks, c)
	return true
}

// Chain returns the accumulated chain. The returned BufChain aliases the
// builder's internal slice; callers must not keep using the builder to
// append more chunks while still reading the returned chain's tail, same
// zero-copy convention as the rest of the package.
func (b *Builder) Chain() BufChain { return BufChain(b.chunks) }

// Len returns the number of chunks accumulated so far.
func (b *Builder) Len() int { return len(b.chunks) }

// Reset empties the builder for reuse.
func (b *Builder) Reset() { b.chunks = b.chunks[:0] }
