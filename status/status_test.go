// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package status_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samuelsadok/fibre/status"
)

func TestNewOkIsNil(t *testing.T) {
	require.Nil(t, status.New(status.Ok, "fine"))
}

func TestNewCapturesStatus(t *testing.T) {
	rs := status.New(status.Busy, "fifo full")
	require.NotNil(t, rs)
	require.Equal(t, status.Busy, rs.Status())
	require.Contains(t, rs.Error(), "busy")
	require.Contains(t, rs.Error(), "fifo full")
}

func TestWrapPreservesStatusAndChains(t *testing.T) {
	inner := status.New(status.ProtocolError, "bad crc")
	outer := status.Wrap(inner, "depacketize failed")
	require.Equal(t, status.ProtocolError, outer.Status())
	require.Contains(t, outer.Error(), "depacketize failed")
	require.Contains(t, outer.Error(), "bad crc")
	require.True(t, errors.Is(outer, inner))
}

func TestWrapNilIsNil(t *testing.T) {
	require.Nil(t, status.Wrap(nil, "whatever"))
}

func TestNilReceiverIsOk(t *testing.T) {
	var rs *status.RichStatus
	require.Equal(t, status.Ok, rs.Status())
	require.Equal(t, "ok", rs.Error())
}
