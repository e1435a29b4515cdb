// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package object implements the call dispatcher and object model (§4.6):
// interface/function descriptors, the built-in wire codecs, and the
// two-sided call state machine that streams transcoded arguments between
// a caller and a function implementation.
package object

import (
	"encoding/binary"
	"math"

	"github.com/samuelsadok/fibre/status"
)

// Codec converts between a typed Go value and its fixed-width
// little-endian wire representation (§4.6 "Codecs").
type Codec interface {
	// Name is the wire codec name used to look up this codec (e.g.
	// "uint32", "endpoint_ref").
	Name() string
	// Size is the codec's fixed wire width in bytes.
	Size() int
	// Encode appends value's wire bytes to dst and returns the result.
	Encode(dst []byte, value any) ([]byte, *status.RichStatus)
	// Decode parses exactly Size() bytes from src into a typed value.
	Decode(src []byte) (any, *status.RichStatus)
}

type intCodec struct {
	name       string
	size       int
	signed     bool
	toUint64   func(v any) (uint64, bool)
	fromUint64 func(u uint64) any
}

func (c intCodec) Name() string { return c.name }
func (c intCodec) Size() int    { return c.size }

func (c intCodec) Encode(dst []byte, value any) ([]byte, *status.RichStatus) {
	u, ok := c.toUint64(value)
	if !ok {
		return nil, status.New(status.InvalidArgument, "object: value has wrong type for codec "+c.name)
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], u)
	return append(dst, b[:c.size]...), nil
}

func (c intCodec) Decode(src []byte) (any, *status.RichStatus) {
	if len(src) != c.size {
		return nil, status.New(status.InvalidArgument, "object: short buffer for codec "+c.name)
	}
	var b [8]byte
	copy(b[:c.size], src)
	u := binary.LittleEndian.Uint64(b[:])
	return c.fromUint64(u), nil
}

func newIntCodec(name string, size int, signed bool, toUint64 func(any) (uint64, bool), fromUint64 func(uint64) any) Codec {
	return intCodec{name: name, size: size, signed: signed, toUint64: toUint64, fromUint64: fromUint64}
}

// Built-in fixed-width codecs (§4.6): little-endian integers (bool
// reduced to uint8), and IEEE-754 float reinterpreted as its u32 bit
// pattern on the wire.
var (
	Int8 = newIntCodec("int8", 1, true,
		func(v any) (uint64, bool) { x, ok := v.(int8); return uint64(uint8(x)), ok },
		func(u uint64) any { return int8(uint8(u)) })
	Int16 = newIntCodec("int16", 2, true,
		func(v any) (uint64, bool) { x, ok := v.(int16); return uint64(uint16(x)), ok },
		func(u uint64) any { return int16(uint16(u)) })
	Int32 = newIntCodec("int32", 4, true,
		func(v any) (uint64, bool) { x, ok := v.(int32); return uint64(uint32(x)), ok },
		func(u uint64) any { return int32(uint32(u)) })
	Int64 = newIntCodec("int64", 8, true,
		func(v any) (uint64, bool) { x, ok := v.(int64); return uint64(x), ok },
		func(u uint64) any { return int64(u) })

	Uint8 = newIntCodec("uint8", 1, false,
		func(v any) (uint64, bool) { x, ok := v.(uint8); return uint64(x), ok },
		func(u uint64) any { return uint8(u) })
	Uint16 = newIntCodec("uint16", 2, false,
		func(v any) (uint64, bool) { x, ok := v.(uint16); return uint64(x), ok },
		func(u uint64) any { return uint16(u) })
	Uint32 = newIntCodec("uint32", 4, false,
		func(v any) (uint64, bool) { x, ok := v.(uint32); return uint64(x), ok },
		func(u uint64) any { return uint32(u) })
	Uint64 = newIntCodec("uint64", 8, false,
		func(v any) (uint64, bool) { x, ok := v.(uint64); return x, ok },
		func(u uint64) any { return u })

	Bool = newIntCodec("bool", 1, false,
		func(v any) (uint64, bool) {
			x, ok := v.(bool)
			if !ok {
				return 0, false
			}
			if x {
				return 1, true
			}
			return 0, true
		},
		func(u uint64) any { return u != 0 })

	Float32 = newIntCodec("float32", 4, false,
		func(v any) (uint64, bool) { x, ok := v.(float32); return uint64(math.Float32bits(x)), ok },
		func(u uint64) any { return math.Float32frombits(uint32(u)) })
)

// EnumCodec reduces an enum value to its integer underlying codec, per
// §4.6 ("enums, reduced to their integer underlying type").
type EnumCodec struct {
	name      string
	Underlying Codec
}

func NewEnumCodec(name string, underlying Codec) EnumCodec {
	return EnumCodec{name: name, Underlying: underlying}
}

func (c EnumCodec) Name() string { return c.name }
func (c EnumCodec) Size() int    { return c.Underlying.Size() }
func (c EnumCodec) Encode(dst []byte, value any) ([]byte, *status.RichStatus) {
	return c.Underlying.Encode(dst, value)
}
func (c EnumCodec) Decode(src []byte) (any, *status.RichStatus) {
	return c.Underlying.Decode(src)
}

// EndpointRef is the local, pointer-equivalent value an endpoint_ref
// codec decodes to and encodes from (§4.6): on the wire it is
// (endpoint_id, json_crc); locally it identifies a known remote object.
type EndpointRef struct {
	EndpointID uint16
	JSONCRC    uint16
}

// Resolver looks up the known local object matching an (endpoint_id,
// json_crc) pair on decode, and the (endpoint_id, json_crc) pair that
// identifies a known local object on encode — the "transcoder" §4.6
// describes for endpoint_ref.
type Resolver interface {
	ResolveRef(ref EndpointRef) (obj any, ok bool)
	RefFor(obj any) (ref EndpointRef, ok bool)
}

// EndpointRefCodec implements the endpoint_ref wire codec (§4.6).
type EndpointRefCodec struct {
	Resolver Resolver
}

func (c EndpointRefCodec) Name() string { return "endpoint_ref" }
func (c EndpointRefCodec) Size() int    { return 4 }

func (c EndpointRefCodec) Encode(dst []byte, value any) ([]byte, *status.RichStatus) {
	ref, ok := c.Resolver.RefFor(value)
	if !ok {
		return nil, status.New(status.InvalidArgument, "object: no endpoint_ref known for value")
	}
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:2], ref.EndpointID)
	binary.LittleEndian.PutUint16(b[2:4], ref.JSONCRC)
	return append(dst, b[:]...), nil
}

func (c EndpointRefCodec) Decode(src []byte) (any, *status.RichStatus) {
	if len(src) != 4 {
		return nil, status.New(status.InvalidArgument, "object: short buffer for endpoint_ref")
	}
	ref := EndpointRef{
		EndpointID: binary.LittleEndian.Uint16(src[0:2]),
		JSONCRC:    binary.LittleEndian.Uint16(src[2:4]),
	}
	obj, ok := c.Resolver.ResolveRef(ref)
	if !ok {
		return nil, status.New(status.ProtocolError, "object: unresolvable endpoint_ref")
	}
	return obj, nil
}

// Registry maps wire codec names (e.g. "uint32") to their Codec
// implementation (§4.6's "named wire codec … maps to an
// application-visible codec name").
type Registry map[string]Codec

// NewRegistry returns a registry preloaded with every built-in codec.
func NewRegistry() Registry {
	r := Registry{}
	for _, c := range []Codec{Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64, Bool, Float32} {
		r[c.Name()] = c
	}
	return r
}

func (r Registry) Lookup(name string) (Codec, bool) {
	c, ok := r[name]
	return c, ok
}
