// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package object

import (
	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/status"
)

// Server implements endpoint.Binder atop a flat function table: each
// endpoint.Entry names the Function to invoke by index, the same way the
// original's endpoint map resolves an endpoint id to a concrete
// function's local_function_id (§4.6). A KindRoProperty entry dispatches
// through ReadFunctionID (a zero-input, one-output getter); a
// KindRwProperty entry dispatches through ExchangeFunctionID (a
// one-input, one-output getter-or-setter, matching the wire protocol's
// single "exchange" bit rather than separate read/write endpoints).
type Server struct {
	Functions []Function
}

func (s *Server) Bind(e endpoint.Entry) (endpoint.CallSocket, *status.RichStatus) {
	var id uint32
	switch e.Kind {
	case endpoint.KindFunctionTrigger:
		id = e.FunctionID
	case endpoint.KindRoProperty:
		id = e.ReadFunctionID
	case endpoint.KindRwProperty:
		id = e.ExchangeFunctionID
	default:
		return nil, status.New(status.InvalidArgument, "object: endpoint kind is not independently callable")
	}
	if int(id) >= len(s.Functions) {
		return nil, status.New(status.InvalidArgument, "object: unknown function id")
	}
	return NewCallSocket(s.Functions[id]), nil
}
