// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package endpoint

import (
	"github.com/samuelsadok/fibre/chunk"
	"github.com/samuelsadok/fibre/status"
)

// CallSocket is the bound function's call socket (§4.4): where a
// FunctionTrigger/RoProperty/RwProperty call forwards its decoded
// argument bytes, and where it later drains encoded output argument
// bytes from. Package object provides the concrete implementation that
// bridges this into a typed function call; endpoint only needs the byte
// interface, so the two packages don't import each other.
type CallSocket interface {
	// WriteArg forwards the next slice of the argument currently being
	// streamed in. boundary marks that this argument is now complete,
	// per the wire's one-boundary-per-argument framing. WriteArg reports
	// allDone once every expected in-argument has arrived and the
	// underlying function has been invoked (or, for an RoProperty/
	// RwProperty access, once the synthesized call's arguments are
	// complete).
	WriteArg(data []byte, boundary bool) (allDone bool, rs *status.RichStatus)

	// ReadOutput drains as many ready output bytes (and argument
	// boundaries) as fit into b. It returns done once the call's own
	// terminating condition has been appended (every output argument
	// including its final boundary).
	ReadOutput(b *chunk.Builder) (done bool, rs *status.RichStatus)
}

// Binder resolves an endpoint table entry plus its object id into a
// CallSocket ready to receive WriteArg calls. object.Server
// implements Binder.
type Binder interface {
	Bind(e Entry) (CallSocket, *status.RichStatus)
}

// JSONSource supplies the embedded JSON interface descriptor served on
// endpoint 0 (§6 "Endpoint-0 JSON descriptor"), plus the values used to
// validate and build call headers. domain.Domain implements this.
type JSONSource interface {
	// JSON returns the full descriptor byte stream.
	JSON() []byte
	// VersionID is the 4-byte little-endian value returned for the
	// special offset 0xFFFFFFFF.
	VersionID() uint32
	// Trailer is the CRC-16 (poly 0x3d65, with PROTOCOL_VERSION=1 as the
	// initial value in place of the packet CRC's 0x1337) over the JSON
	// byte stream, used as the expected trailer for every non-zero
	// endpoint.
	Trailer() uint16
}

// ProtocolVersion is both the initial seed of the JSON descriptor CRC
// and the expected trailer value for calls to endpoint 0 (§6).
const ProtocolVersion uint16 = 1
