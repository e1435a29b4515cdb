// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package chunk_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samuelsadok/fibre/chunk"
)

func TestBufAndBoundary(t *testing.T) {
	b := chunk.Buf(2, []byte("hi"))
	require.True(t, b.IsBuf())
	require.False(t, b.IsFrameBoundary())
	require.Equal(t, uint8(2), b.Layer())
	require.Equal(t, 2, b.Len())

	fb := chunk.Boundary(1)
	require.True(t, fb.IsFrameBoundary())
	require.Equal(t, 0, fb.Len())
}

func TestElevate(t *testing.T) {
	b := chunk.Buf(1, []byte("x"))
	e := b.Elevate(3)
	require.Equal(t, uint8(4), e.Layer())

	require.Panics(t, func() { b.Elevate(-5) })
}

func TestSkipBytesSplitsChunk(t *testing.T) {
	c := chunk.From(chunk.Buf(1, []byte("hello")), chunk.Boundary(1))
	rest := c.SkipBytes(2)
	require.Equal(t, 2, rest.NChunks())
	require.Equal(t, []byte("llo"), rest.Front().Bytes())
}

func TestSkipBytesAcrossChunks(t *testing.T) {
	c := chunk.From(chunk.Buf(1, []byte("ab")), chunk.Buf(1, []byte("cd")))
	rest := c.SkipBytes(3)
	require.Equal(t, 1, rest.NChunks())
	require.Equal(t, []byte("d"), rest.Front().Bytes())
}

func TestFindLayer0Bound(t *testing.T) {
	c := chunk.From(
		chunk.Buf(1, []byte("a")),
		chunk.Boundary(1),
		chunk.Buf(0, []byte("b")),
		chunk.Boundary(0),
	)
	end, ok := c.FindLayer0Bound()
	require.True(t, ok)
	require.Equal(t, 3, end.ChunkIndex)

	before := c.Until(end)
	require.Equal(t, 3, before.NChunks())
	after := c.From(end)
	require.Equal(t, 1, after.NChunks())
	require.True(t, after.Front().IsFrameBoundary())
}

func TestUntilSplitsPartialChunk(t *testing.T) {
	c := chunk.From(chunk.Buf(1, []byte("abcdef")))
	before := c.Until(chunk.End{ChunkIndex: 0, ByteOffset: 3})
	require.Equal(t, []byte("abc"), before.Front().Bytes())
	after := c.From(chunk.End{ChunkIndex: 0, ByteOffset: 3})
	require.Equal(t, []byte("def"), after.Front().Bytes())
}

func TestBuilderRefusesPastLimit(t *testing.T) {
	b := chunk.NewBuilder(2)
	require.True(t, b.Append(chunk.Buf(0, []byte("a"))))
	require.True(t, b.Append(chunk.Buf(0, []byte("b"))))
	require.False(t, b.HasFreeSpace())
	require.False(t, b.Append(chunk.Buf(0, []byte("c"))))
	require.Equal(t, 2, b.Len())
}

func TestTotalBytes(t *testing.T) {
	c := chunk.From(chunk.Buf(0, []byte("ab")), chunk.Boundary(0), chunk.Buf(0, []byte("c")))
	require.Equal(t, 3, c.TotalBytes())
}
