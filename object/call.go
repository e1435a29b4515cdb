// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package object

import (
	"encoding/binary"

	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/status"
)

// Arg describes one function argument (§4.6): its name and wire codec.
// A nil Codec marks a plain argument, streamed through verbatim rather
// than transcoded.
type Arg struct {
	Name  string
	Codec Codec
}

// Function is one callable member of an Interface (§4.6 "Interface
// descriptor").
type Function struct {
	Name    string
	Inputs  []Arg
	Outputs []Arg
	Start   func(objectID uint32, inputs []any) (outputs []any, rs *status.RichStatus)
}

// Attribute names a child object reachable from a parent without any
// wire traffic (§4.6).
type Attribute struct {
	Name string
	Type *Interface
}

// Interface is a named collection of attributes and functions (§4.6).
type Interface struct {
	Name       string
	Attributes []Attribute
	Functions  []Function
}

// GetAttribute navigates the object graph without any wire traffic,
// mirroring the original's Interface::get_attribute (§4.6).
func (i *Interface) GetAttribute(attrID int) (*Attribute, bool) {
	if attrID < 0 || attrID >= len(i.Attributes) {
		return nil, false
	}
	return &i.Attributes[attrID], true
}

// outState tracks where ReadOutput is within the current output
// argument: outPending means encoding hasn't started yet, outDataSent
// means the data chunk went out and only the boundary remains — needed
// so a Busy retry doesn't re-encode (and double-emit) the argument.
type outState int

const (
	outPending outState = iota
	outDataSent
)

// callSocket is the two-sided call state machine of §4.6: it receives
// the object handle (always the call's first argument group, written by
// the endpoint layer's EndpointServerConnection.writeObjectID), then
// streams the remaining declared inputs — transcoding each with its
// Codec if one is set, passing plain arguments through verbatim — until
// a layer-0 boundary closes each group. Once every input has arrived it
// invokes fn synchronously and streams the transcoded outputs back the
// same way.
type callSocket struct {
	fn      Function
	objectID uint32
	gotObjectID bool

	argIdx int
	buf    []byte
	inputs []any

	outs   []any
	outIdx int
	outSt  outState

	rs *status.RichStatus
}

// NewCallSocket returns a CallSocket bound to fn, suitable as the return
// value of a Binder's Bind method.
func NewCallSocket(fn Function) endpoint.CallSocket {
	return &callSocket{fn: fn, inputs: make([]any, 0, len(fn.Inputs))}
}

func (s *callSocket) WriteArg(data []byte, boundary bool) (bool, *status.RichStatus) {
	if s.rs != nil {
		return true, s.rs
	}

	if !s.gotObjectID {
		s.buf = append(s.buf, data...)
		if !boundary {
			return false, nil
		}
		if len(s.buf) != 4 {
			s.rs = status.New(status.ProtocolError, "object: object handle must be exactly 4 bytes")
			return true, s.rs
		}
		s.objectID = binary.LittleEndian.Uint32(s.buf)
		s.buf = s.buf[:0]
		s.gotObjectID = true
		if len(s.fn.Inputs) == 0 {
			return s.invoke(), s.rs
		}
		return false, nil
	}

	if s.argIdx >= len(s.fn.Inputs) {
		return boundary, nil
	}

	s.buf = append(s.buf, data...)
	if !boundary {
		return false, nil
	}

	arg := s.fn.Inputs[s.argIdx]
	var v any
	if arg.Codec != nil {
		decoded, rs := arg.Codec.Decode(s.buf)
		if rs != nil {
			s.rs = rs
			return true, rs
		}
		v = decoded
	} else {
		v = append([]byte{}, s.buf...)
	}
	s.inputs = append(s.inputs, v)
	s.buf = s.buf[:0]
	s.argIdx++

	if s.argIdx == len(s.fn.Inputs) {
		return s.invoke(), s.rs
	}
	return false, nil
}

func (s *callSocket) invoke() bool {
	outs, rs := s.fn.Start(s.objectID, s.inputs)
	if rs != nil {
		s.rs = rs
		return true
	}
	s.outs = outs
	return true
}

func (s *callSocket) ReadOutput(b *chunk.Builder) (bool, *status.RichStatus) {
	if s.rs != nil && s.rs.Status() != status.Ok {
		return true, s.rs
	}
	for s.outIdx < len(s.fn.Outputs) {
		if s.outSt == outPending {
			arg := s.fn.Outputs[s.outIdx]
			var encoded []byte
			var v any
			if s.outIdx < len(s.outs) {
				v = s.outs[s.outIdx]
			}
			if arg.Codec != nil {
				var rs *status.RichStatus
				encoded, rs = arg.Codec.Encode(nil, v)
				if rs != nil {
					s.rs = rs
					return true, rs
				}
			} else if raw, ok := v.([]byte); ok {
				encoded = raw
			}
			if len(encoded) > 0 {
				if !b.Append(chunk.Buf(0, encoded)) {
					return false, status.New(status.Busy, "builder full")
				}
			}
			s.outSt = outDataSent
		}
		if !b.Append(chunk.Boundary(0)) {
			return false, status.New(status.Busy, "builder full")
		}
		s.outIdx++
		s.outSt = outPending
	}
	return true, nil
}
