// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fifo_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/fifo"
)

func drain(t *testing.T, f *fifo.Fifo) chunk.BufChain {
	t.Helper()
	b := chunk.NewBuilder(0)
	f.Read(f.ReadBegin(), b)
	return b.Chain()
}

func TestAppendAndReadRoundTrip(t *testing.T) {
	f := fifo.New(64)
	chain := chunk.From(chunk.Buf(0, []byte("hello")), chunk.Boundary(0))
	rest := f.Append(chain)
	require.Equal(t, 0, rest.NChunks())
	require.True(t, f.HasData())

	got := drain(t, f)
	require.Equal(t, 2, got.NChunks())
	require.Equal(t, []byte("hello"), got.Front().Bytes())
	require.True(t, got.SkipChunks(1).Front().IsFrameBoundary())
}

func TestAppendRefusesWhenFull(t *testing.T) {
	f := fifo.New(2) // one header block plus one free block: no room for payload
	chain := chunk.From(chunk.Buf(0, []byte("abcdefgh")))
	rest := f.Append(chain)
	require.Equal(t, chain.NChunks(), rest.NChunks())
	require.Equal(t, chain.Front().Bytes(), rest.Front().Bytes())
}

func TestAppendSplitsAcrossMultipleCalls(t *testing.T) {
	f := fifo.New(4)
	chain := chunk.From(chunk.Buf(0, []byte("abcdefghijklmnop")))
	rest := f.Append(chain)
	require.Greater(t, rest.TotalBytes(), 0)
	require.Less(t, rest.TotalBytes(), chain.TotalBytes())

	// Simulate a reader draining everything written so far and freeing the
	// space, then keep feeding the remainder until it is all accepted.
	for i := 0; i < 8 && rest.NChunks() > 0; i++ {
		f.DropUntil(f.ReadEnd())
		rest = f.Append(rest)
	}
	require.Equal(t, 0, rest.NChunks())
}

func TestDropUntilCollapsesAckedData(t *testing.T) {
	f := fifo.New(64)
	f.Append(chunk.From(
		chunk.Buf(0, []byte("one")),
		chunk.Boundary(0),
		chunk.Buf(0, []byte("two")),
		chunk.Boundary(0),
	))

	var nFrames, nBytes [fifo.NumLayers]int
	nFrames[0] = 1 // drop exactly the first framed record

	it := f.AdvanceIt(f.ReadBegin(), nFrames, nBytes)
	f.DropUntil(it)

	got := drain(t, f)
	require.Equal(t, 2, got.NChunks())
	require.Equal(t, []byte("two"), got.Front().Bytes())
}

func TestAdvanceItPartialBytes(t *testing.T) {
	f := fifo.New(64)
	f.Append(chunk.From(chunk.Buf(1, []byte("abcdef"))))

	var nFrames, nBytes [fifo.NumLayers]int
	nBytes[1] = 2

	it := f.AdvanceIt(f.ReadBegin(), nFrames, nBytes)
	require.Equal(t, []byte("cdef"), it.Chunk().Bytes())
}

func TestFsckFindsCursor(t *testing.T) {
	f := fifo.New(64)
	f.Append(chunk.From(chunk.Buf(0, []byte("x")), chunk.Boundary(0)))
	require.True(t, f.Fsck(f.ReadBegin()))
	require.True(t, f.Fsck(f.ReadEnd()))
}

func TestConsumeDropsWholeRecords(t *testing.T) {
	f := fifo.New(64)
	f.Append(chunk.From(chunk.Buf(0, []byte("a")), chunk.Buf(0, []byte("b"))))
	f.Consume(1)
	got := drain(t, f)
	require.Equal(t, 1, got.NChunks())
	require.Equal(t, []byte("b"), got.Front().Bytes())
}
