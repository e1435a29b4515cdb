// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package can

import (
	"encoding/binary"
	"net"

	"golang.org/x/sys/unix"

	"github.com/samuelsadok/fibre/status"
)

// frame layout is Linux's classic struct can_frame: a 4-byte LE can_id,
// a 1-byte length, 3 reserved/padding bytes, and up to 8 data bytes —
// 16 bytes total. §4.7 only ever moves 16-byte payloads (acquisition
// seeds, Fibre Node IDs), always split across two 8-byte frames; Bus
// itself sends one frame of at most 8 data bytes per WriteFrame call, and
// BusTransport (adapter.go) issues the two WriteFrame calls for each
// 16-byte payload.
const frameSize = 16

const (
	effFlag = 0x80000000
	errFlag = 0x20000000
	errMask = 0x1FFFFFFF

	canErrLostArb = 0x00000002
	canErrProt    = 0x00000008
	canErrAck     = 0x00000020
)

// Bus is a raw SocketCAN transport for one network interface, grounded
// on the AF_CAN/SOCK_RAW/CAN_RAW socket setup pattern used throughout
// the CANopen stacks in the reference pack (bind a raw socket to a
// specific ifindex, then read/write fixed 16-byte struct can_frame
// records directly).
type Bus struct {
	fd int
}

// OpenBus binds a raw CAN_RAW socket to the named interface (e.g.
// "can0") with error-frame reporting enabled, so arbitration loss and
// protocol errors surface as readable frames (§4.7's "arbitration loss"
// / "data collision" outcomes).
func OpenBus(ifaceName string) (*Bus, *status.RichStatus) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, status.New(status.InternalError, "can: socket: "+err.Error())
	}
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		unix.Close(fd)
		return nil, status.New(status.InternalError, "can: "+err.Error())
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_ERR_FILTER, canErrLostArb|canErrProt|canErrAck); err != nil {
		unix.Close(fd)
		return nil, status.New(status.InternalError, "can: setsockopt CAN_RAW_ERR_FILTER: "+err.Error())
	}
	addr := &unix.SockaddrCAN{Ifindex: iface.Index}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, status.New(status.InternalError, "can: bind: "+err.Error())
	}
	return &Bus{fd: fd}, nil
}

func (b *Bus) Close() error {
	return unix.Close(b.fd)
}

// Fd returns the underlying socket descriptor, so a caller can register
// it with an eventloop.Loop instead of blocking a goroutine in
// ReadFrame.
func (b *Bus) Fd() int {
	return b.fd
}

// WriteFrame sends one classic CAN frame with the given 29-bit extended
// id and up to 8 data bytes.
func (b *Bus) WriteFrame(id uint32, data []byte) *status.RichStatus {
	var raw [frameSize]byte
	binary.LittleEndian.PutUint32(raw[0:4], (id&errMask)|effFlag)
	raw[4] = uint8(len(data))
	copy(raw[8:8+len(data)], data)
	if _, err := unix.Write(b.fd, raw[:]); err != nil {
		return status.New(status.InternalError, "can: write: "+err.Error())
	}
	return nil
}

// ReadFrame blocks for the next frame or error notification on the bus.
func (b *Bus) ReadFrame() (RawEvent, *status.RichStatus) {
	var raw [frameSize]byte
	n, err := unix.Read(b.fd, raw[:])
	if err != nil {
		return RawEvent{}, status.New(status.InternalError, "can: read: "+err.Error())
	}
	if n < frameSize {
		return RawEvent{}, status.New(status.ProtocolError, "can: short frame read")
	}
	id := binary.LittleEndian.Uint32(raw[0:4])
	length := raw[4]

	if id&errFlag != 0 {
		class := id & errMask
		ev := RawEvent{IsError: true}
		switch {
		case class&canErrLostArb != 0:
			ev.Outcome = OutcomeArbitrationLost
		case class&canErrProt != 0:
			ev.Outcome = OutcomeDataCollision
		case class&canErrAck != 0:
			ev.Outcome = OutcomeNack
		default:
			ev.Outcome = OutcomeAck
		}
		return ev, nil
	}

	return RawEvent{ID: id & errMask, Data: append([]byte{}, raw[8:8+length]...)}, nil
}
