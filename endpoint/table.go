// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package endpoint implements the endpoint-addressed call protocol of
// §4.4: a small (endpoint_id, trailer_crc) header framing one function
// call or property access per call, layered directly on a connection's
// application-facing byte stream (conn.Connection's layer-0 RxFunc/Tx).
package endpoint

// Kind discriminates the variants an endpoint table entry can be (§3).
type Kind uint8

const (
	KindFunctionTrigger Kind = iota
	KindFunctionInput
	KindFunctionOutput
	KindRoProperty
	KindRwProperty
)

// Entry is one endpoint table slot. Not every field is meaningful for
// every Kind; the comment above each field names the Kinds it applies to.
type Entry struct {
	Kind Kind

	// FunctionTrigger, RoProperty, RwProperty
	ObjectID uint32

	// FunctionTrigger
	FunctionID uint32

	// FunctionInput, FunctionOutput
	Size int

	// RoProperty, RwProperty
	ReadFunctionID uint32
	// RwProperty
	ExchangeFunctionID uint32
}

// Table is the constant array of endpoint table entries: Table[i] holds
// endpoint_id i+1, since endpoint_id 0 is reserved for the JSON descriptor
// handler and never present in Table itself. Table.Lookup does that
// translation and the range check.
type Table []Entry

// Lookup returns the entry for endpointID (1-based on the wire; endpoint 0
// is handled separately by the JSON descriptor logic and never reaches
// here), and false if endpointID is out of range.
func (t Table) Lookup(endpointID uint16) (Entry, bool) {
	i := int(endpointID) - 1
	if i < 0 || i >= len(t) {
		return Entry{}, false
	}
	return t[i], true
}
