// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package legacy

import (
	"io"

	"code.hybscloud.com/iox"

	"github.com/samuelsadok/fibre/status"
)

// WriteFrame wraps payload and writes it to w in one non-blocking pass:
// a write that returns iox.ErrWouldBlock or iox.ErrMore is propagated
// unchanged along with the number of wire bytes already written, so the
// caller can retry with the remainder later instead of blocking the
// event loop.
func WriteFrame(w io.Writer, payload []byte) (int, *status.RichStatus) {
	pkt, rs := Wrap(payload)
	if rs != nil {
		return 0, rs
	}
	off := 0
	for off < len(pkt) {
		n, err := w.Write(pkt[off:])
		off += n
		if err != nil {
			if err == iox.ErrWouldBlock || err == iox.ErrMore {
				return off, status.New(status.Busy, "legacy: underlying transport would block")
			}
			return off, status.New(status.InternalError, err.Error())
		}
	}
	return off, nil
}

// ReadFrames reads whatever bytes r currently has available and feeds
// them through a PacketUnwrapper, invoking onPacket once per decoded
// packet. An iox.ErrWouldBlock/iox.ErrMore from r simply means no more
// bytes are available right now; it is not an error from the caller's
// point of view.
func ReadFrames(r io.Reader, u *PacketUnwrapper, onPacket func(payload []byte)) *status.RichStatus {
	var buf [256]byte
	for {
		n, err := r.Read(buf[:])
		if n > 0 {
			u.Feed(buf[:n], onPacket)
		}
		if err != nil {
			if err == iox.ErrWouldBlock || err == iox.ErrMore || err == io.EOF {
				return nil
			}
			return status.New(status.InternalError, err.Error())
		}
		if n == 0 {
			return nil
		}
	}
}
