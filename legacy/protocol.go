// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package legacy

import (
	"encoding/binary"

	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/status"
)

const (
	reqHeaderLen = 6 // seqno(2) + endpoint_id|expect_response(2) + expected_response_length(2)
	trailerLen   = 2
)

// Exchanger performs one atomic endpoint exchange on behalf of
// LegacyProtocolPacketBased's server side: write in to endpointID
// (object_id, if any, is the server's own concern, same as
// endpoint.EndpointServerConnection's synthesized first argument) and
// read back up to expectedLen response bytes.
type Exchanger interface {
	Exchange(endpointID uint16, in []byte, expectedLen int) (out []byte, rs *status.RichStatus)
}

// LegacyProtocolPacketBased is the server side of §4.5: each inbound
// packet is one self-contained endpoint exchange, addressed and trailer-
// validated exactly like the streaming endpoint protocol's call header,
// but atomic rather than streamed.
type LegacyProtocolPacketBased struct {
	ex   Exchanger
	json endpoint.JSONSource
}

func NewLegacyProtocolPacketBased(ex Exchanger, json endpoint.JSONSource) *LegacyProtocolPacketBased {
	return &LegacyProtocolPacketBased{ex: ex, json: json}
}

// HandleRequest decodes one request packet payload, performs the
// exchange, and returns the response packet payload to send back (nil if
// the request didn't set expect_response). A malformed or trailer-
// mismatched request surfaces status.ProtocolError, matching §7's
// "protocol-version or JSON-CRC mismatch at the call layer" propagation
// policy.
func (p *LegacyProtocolPacketBased) HandleRequest(req []byte) (resp []byte, rs *status.RichStatus) {
	if len(req) < reqHeaderLen+trailerLen {
		return nil, status.New(status.ProtocolError, "legacy request packet too short")
	}

	seqno := binary.LittleEndian.Uint16(req[0:2])
	rawEndpoint := binary.LittleEndian.Uint16(req[2:4])
	endpointID := rawEndpoint &^ 0x8000
	expectResponse := rawEndpoint&0x8000 != 0
	expectedLen := int(binary.LittleEndian.Uint16(req[4:6]))
	payload := req[reqHeaderLen : len(req)-trailerLen]
	trailer := binary.LittleEndian.Uint16(req[len(req)-trailerLen:])

	expected := p.json.Trailer()
	if endpointID == 0 {
		expected = endpoint.ProtocolVersion
	}
	if trailer != expected {
		return nil, status.New(status.ProtocolError, "legacy request trailer mismatch")
	}

	out, rs := p.ex.Exchange(endpointID, payload, expectedLen)
	if rs != nil {
		return nil, rs
	}
	if !expectResponse {
		return nil, nil
	}

	resp = make([]byte, 2+len(out))
	binary.LittleEndian.PutUint16(resp[0:2], seqno|0x8000)
	copy(resp[2:], out)
	return resp, nil
}

// LegacyClient is the calling side of §4.5: it builds request packets,
// tracks outbound_seq_no_ modulo 2^15, and matches responses back to
// their request by seqno.
type LegacyClient struct {
	json endpoint.JSONSource
	send func(packet []byte)

	seq     uint16
	pending map[uint16]func(resp []byte)
}

func NewLegacyClient(json endpoint.JSONSource, send func(packet []byte)) *LegacyClient {
	return &LegacyClient{json: json, send: send, pending: map[uint16]func(resp []byte){}}
}

// Request sends one legacy-protocol request packet. onResponse fires
// once a matching response packet reaches OnResponse; it is never called
// if expectResponse is false.
func (c *LegacyClient) Request(endpointID uint16, payload []byte, expectedResponseLen int, expectResponse bool, onResponse func(resp []byte)) {
	seqno := c.seq
	c.seq = (c.seq + 1) % 0x8000

	raw := endpointID
	if expectResponse {
		raw |= 0x8000
	}
	trailer := c.json.Trailer()
	if endpointID == 0 {
		trailer = endpoint.ProtocolVersion
	}

	pkt := make([]byte, reqHeaderLen+len(payload)+trailerLen)
	binary.LittleEndian.PutUint16(pkt[0:2], seqno)
	binary.LittleEndian.PutUint16(pkt[2:4], raw)
	binary.LittleEndian.PutUint16(pkt[4:6], uint16(expectedResponseLen))
	copy(pkt[reqHeaderLen:], payload)
	binary.LittleEndian.PutUint16(pkt[len(pkt)-trailerLen:], trailer)

	if expectResponse {
		c.pending[seqno] = onResponse
	}
	c.send(pkt)
}

// OnResponse matches a decoded response packet payload back to its
// Request call by seqno and invokes the registered callback.
func (c *LegacyClient) OnResponse(resp []byte) {
	if len(resp) < 2 {
		return
	}
	tag := binary.LittleEndian.Uint16(resp[0:2])
	seqno := tag &^ 0x8000
	cb, ok := c.pending[seqno]
	if !ok {
		return
	}
	delete(c.pending, seqno)
	cb(resp[2:])
}

// CallSpec names the endpoint ids a composed legacy call touches (§4.5):
// each input's own endpoint, the trigger that absorbs the first input
// (if any) and, when hasOutput is set, itself yields the call's first
// output, and any further output endpoints read afterward.
type CallSpec struct {
	InputEndpoints   []uint16
	TriggerEndpoint  uint16
	HasOutput        bool
	RemainingOutputs []uint16
}

// ComposeCall issues the full exchange sequence §4.5 describes for one
// logical call, strictly one request in flight at a time (the legacy
// protocol is one-request-per-packet, so there is no streaming overlap to
// exploit here): each input's bytes are written to its own endpoint,
// then the trigger endpoint is exchanged with the first input's bytes
// (if any) for its own output, then each remaining output endpoint is
// read in turn. onDone receives one byte slice per output the call
// declares, in order (the trigger's own output first, if any).
func (c *LegacyClient) ComposeCall(spec CallSpec, inputs [][]byte, onDone func(outputs [][]byte)) {
	n := len(spec.RemainingOutputs)
	if spec.HasOutput {
		n++
	}
	st := &composeState{client: c, spec: spec, inputs: inputs, outputs: make([][]byte, n), onDone: onDone}
	st.advance()
}

type composeState struct {
	client  *LegacyClient
	spec    CallSpec
	inputs  [][]byte
	outputs [][]byte
	step    int
	onDone  func(outputs [][]byte)
}

func (st *composeState) advance() {
	c := st.client
	nInputs := len(st.spec.InputEndpoints)

	if st.step < nInputs {
		idx := st.step
		st.step++
		c.Request(st.spec.InputEndpoints[idx], st.inputs[idx], 0, false, nil)
		st.advance()
		return
	}

	if st.step == nInputs {
		st.step++
		var triggerIn []byte
		if nInputs > 0 {
			triggerIn = st.inputs[0]
		}
		if !st.spec.HasOutput {
			c.Request(st.spec.TriggerEndpoint, triggerIn, 0, true, func(resp []byte) { st.advance() })
			return
		}
		c.Request(st.spec.TriggerEndpoint, triggerIn, maxPayloadLen, true, func(resp []byte) {
			st.outputs[0] = resp
			st.advance()
		})
		return
	}

	base := 0
	if st.spec.HasOutput {
		base = 1
	}
	k := st.step - nInputs - 1 // index into RemainingOutputs
	if k >= 0 && k < len(st.spec.RemainingOutputs) {
		st.step++
		outIdx := base + k
		c.Request(st.spec.RemainingOutputs[k], nil, maxPayloadLen, true, func(resp []byte) {
			st.outputs[outIdx] = resp
			st.advance()
		})
		return
	}

	st.onDone(st.outputs)
}
