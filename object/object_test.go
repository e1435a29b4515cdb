// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package object

import (
	"encoding/binary"
	"testing"

	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/status"
)

func TestIntCodecRoundTrip(t *testing.T) {
	cases := []struct {
		codec Codec
		value any
	}{
		{Int8, int8(-5)},
		{Uint8, uint8(200)},
		{Int16, int16(-1000)},
		{Uint16, uint16(60000)},
		{Int32, int32(-100000)},
		{Uint32, uint32(4000000000)},
		{Int64, int64(-1)},
		{Uint64, uint64(1) << 63},
		{Bool, true},
		{Bool, false},
		{Float32, float32(3.5)},
	}
	for _, c := range cases {
		encoded, rs := c.codec.Encode(nil, c.value)
		if rs != nil {
			t.Fatalf("%s: Encode(%v) error: %v", c.codec.Name(), c.value, rs)
		}
		if len(encoded) != c.codec.Size() {
			t.Fatalf("%s: Encode produced %d bytes, want %d", c.codec.Name(), len(encoded), c.codec.Size())
		}
		decoded, rs := c.codec.Decode(encoded)
		if rs != nil {
			t.Fatalf("%s: Decode error: %v", c.codec.Name(), rs)
		}
		if decoded != c.value {
			t.Fatalf("%s: round trip = %v, want %v", c.codec.Name(), decoded, c.value)
		}
	}
}

func TestEnumCodecReducesToUnderlying(t *testing.T) {
	type Color uint8
	enum := NewEnumCodec("Color", Uint8)
	encoded, rs := enum.Encode(nil, uint8(2))
	if rs != nil {
		t.Fatalf("Encode error: %v", rs)
	}
	if len(encoded) != 1 || encoded[0] != 2 {
		t.Fatalf("encoded = %v, want [2]", encoded)
	}
	decoded, rs := enum.Decode(encoded)
	if rs != nil || decoded.(uint8) != 2 {
		t.Fatalf("Decode = %v, %v", decoded, rs)
	}
}

type fakeResolver struct {
	byRef map[EndpointRef]any
	byObj map[any]EndpointRef
}

func (r fakeResolver) ResolveRef(ref EndpointRef) (any, bool) {
	v, ok := r.byRef[ref]
	return v, ok
}
func (r fakeResolver) RefFor(obj any) (EndpointRef, bool) {
	v, ok := r.byObj[obj]
	return v, ok
}

func TestEndpointRefCodecRoundTrip(t *testing.T) {
	ref := EndpointRef{EndpointID: 7, JSONCRC: 0xbeef}
	resolver := fakeResolver{
		byRef: map[EndpointRef]any{ref: "the-object"},
		byObj: map[any]EndpointRef{"the-object": ref},
	}
	codec := EndpointRefCodec{Resolver: resolver}

	encoded, rs := codec.Encode(nil, "the-object")
	if rs != nil {
		t.Fatalf("Encode error: %v", rs)
	}
	if len(encoded) != 4 {
		t.Fatalf("encoded length = %d, want 4", len(encoded))
	}
	decoded, rs := codec.Decode(encoded)
	if rs != nil {
		t.Fatalf("Decode error: %v", rs)
	}
	if decoded != "the-object" {
		t.Fatalf("decoded = %v, want the-object", decoded)
	}
}

func TestEndpointRefCodecUnresolvableRefIsProtocolError(t *testing.T) {
	codec := EndpointRefCodec{Resolver: fakeResolver{byRef: map[EndpointRef]any{}}}
	_, rs := codec.Decode([]byte{1, 0, 2, 0})
	if rs == nil || rs.Status() != status.ProtocolError {
		t.Fatalf("expected ProtocolError, got %v", rs)
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	c, ok := r.Lookup("uint32")
	if !ok || c.Name() != "uint32" {
		t.Fatalf("Lookup(uint32) = %v, %v", c, ok)
	}
	if _, ok := r.Lookup("nonexistent"); ok {
		t.Fatalf("Lookup(nonexistent) unexpectedly found something")
	}
}

func writeAll(t *testing.T, s endpoint.CallSocket, objectID uint32, args [][]byte) bool {
	t.Helper()
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], objectID)
	done, rs := s.WriteArg(b[:], true)
	if rs != nil {
		t.Fatalf("WriteArg(object handle) error: %v", rs)
	}
	for i, a := range args {
		last := i == len(args)-1
		if len(a) > 0 {
			d, rs := s.WriteArg(a, false)
			if rs != nil {
				t.Fatalf("WriteArg error: %v", rs)
			}
			done = d
		}
		d, rs := s.WriteArg(nil, true)
		if rs != nil {
			t.Fatalf("WriteArg(boundary) error: %v", rs)
		}
		done = d
		_ = last
	}
	return done
}

func readAll(t *testing.T, s endpoint.CallSocket) [][]byte {
	t.Helper()
	var outputs [][]byte
	var cur []byte
	for {
		b := chunk.NewBuilder(0)
		done, rs := s.ReadOutput(b)
		if rs != nil && rs.Status() != status.Ok && rs.Status() != status.Busy {
			t.Fatalf("ReadOutput error: %v", rs)
		}
		chain := b.Chain()
		for chain.NChunks() > 0 {
			front := chain.Front()
			if front.IsBuf() {
				cur = append(cur, front.Bytes()...)
			} else {
				outputs = append(outputs, cur)
				cur = nil
			}
			chain = chain.SkipChunks(1)
		}
		if done {
			return outputs
		}
	}
}

func TestCallSocketFunctionTriggerRoundTrip(t *testing.T) {
	fn := Function{
		Name:    "Add",
		Inputs:  []Arg{{Name: "a", Codec: Uint32}, {Name: "b", Codec: Uint32}},
		Outputs: []Arg{{Name: "sum", Codec: Uint32}},
		Start: func(objectID uint32, inputs []any) ([]any, *status.RichStatus) {
			a := inputs[0].(uint32)
			b := inputs[1].(uint32)
			return []any{a + b}, nil
		},
	}
	socket := NewCallSocket(fn)

	aBytes, _ := Uint32.Encode(nil, uint32(3))
	bBytes, _ := Uint32.Encode(nil, uint32(4))
	done := writeAll(t, socket, 42, [][]byte{aBytes, bBytes})
	if !done {
		t.Fatalf("call did not complete after all inputs arrived")
	}

	outs := readAll(t, socket)
	if len(outs) != 1 {
		t.Fatalf("expected 1 output group, got %d", len(outs))
	}
	sum, rs := Uint32.Decode(outs[0])
	if rs != nil {
		t.Fatalf("Decode output error: %v", rs)
	}
	if sum.(uint32) != 7 {
		t.Fatalf("sum = %v, want 7", sum)
	}
}

func TestCallSocketNoInputsInvokesOnObjectHandleAlone(t *testing.T) {
	invoked := false
	fn := Function{
		Name:    "Ping",
		Outputs: []Arg{{Name: "ok", Codec: Bool}},
		Start: func(objectID uint32, inputs []any) ([]any, *status.RichStatus) {
			invoked = true
			return []any{true}, nil
		},
	}
	socket := NewCallSocket(fn)
	done := writeAll(t, socket, 1, nil)
	if !done || !invoked {
		t.Fatalf("expected immediate completion with no declared inputs")
	}
	outs := readAll(t, socket)
	v, _ := Bool.Decode(outs[0])
	if v.(bool) != true {
		t.Fatalf("output = %v, want true", v)
	}
}

func TestServerBindsByEntryKind(t *testing.T) {
	s := &Server{Functions: []Function{
		{Name: "trigger", Start: func(uint32, []any) ([]any, *status.RichStatus) { return nil, nil }},
		{Name: "getter", Outputs: []Arg{{Codec: Uint32}}, Start: func(uint32, []any) ([]any, *status.RichStatus) {
			return []any{uint32(9)}, nil
		}},
	}}

	socket, rs := s.Bind(endpoint.Entry{Kind: endpoint.KindFunctionTrigger, FunctionID: 0})
	if rs != nil || socket == nil {
		t.Fatalf("Bind(trigger) failed: %v", rs)
	}

	socket, rs = s.Bind(endpoint.Entry{Kind: endpoint.KindRoProperty, ReadFunctionID: 1})
	if rs != nil || socket == nil {
		t.Fatalf("Bind(ro property) failed: %v", rs)
	}

	_, rs = s.Bind(endpoint.Entry{Kind: endpoint.KindFunctionInput})
	if rs == nil {
		t.Fatalf("expected Bind to reject a non-callable entry kind")
	}
}
