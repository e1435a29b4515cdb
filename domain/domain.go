// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package domain implements the scope within which nodes, endpoints,
// and objects are named (§3 "Domain"): the process-level object table,
// the table of known peer nodes, per-node open calls, and the discovery
// channel list, plus the JSON descriptor service endpoint 0 relies on.
package domain

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/legacy"
	"github.com/samuelsadok/fibre/object"
)

// NodeId identifies a Node (§3). It is a raw 16-byte value, not an
// RFC-4122 UUID (no version/variant bits are reserved), but
// uuid.NewRandom's CSPRNG-backed byte source is a fine way to mint one.
type NodeId [16]byte

// NewNodeId mints a fresh random NodeId.
func NewNodeId() (NodeId, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return NodeId{}, err
	}
	var id NodeId
	copy(id[:], u[:])
	return id, nil
}

// Export is a resource a Node's object-interface export may need to
// release when the node is lost (§4.7's on_lost_node).
type Export interface {
	Close() error
}

// Node is identified by a 16-byte NodeId and hosts zero or more
// object-interface exports (§3).
type Node struct {
	ID      NodeId
	Exports []Export
}

// OpenCall is a live call-id → handler association (§3 "per-node open
// calls (keyed by a 16-byte call-id)"), registered with Domain.OpenCall
// and found again with Domain.LookupCall. No adapter in this module
// (can.Dispatcher included) looks calls up through it.
type OpenCall struct {
	Node   *Node
	Socket endpoint.CallSocket
}

// Domain is the scope within which nodes, endpoints, and objects are
// named (§3). It implements endpoint.JSONSource so an
// EndpointServerConnection can serve the embedded JSON descriptor
// directly off it.
type Domain struct {
	mu sync.Mutex

	jsonDescriptor []byte
	versionID      uint32
	trailer        uint16

	server            *object.Server
	nodes             map[NodeId]*Node
	openCalls         map[[16]byte]*OpenCall
	discoveryChannels []string
}

// New builds a Domain serving jsonDescriptor (the embedded JSON
// interface descriptor, §6) under versionID, dispatching local calls
// through server.
func New(jsonDescriptor []byte, versionID uint32, server *object.Server) *Domain {
	return &Domain{
		jsonDescriptor: jsonDescriptor,
		versionID:      versionID,
		trailer:        legacy.CRC16Seeded(jsonDescriptor, endpoint.ProtocolVersion),
		server:         server,
		nodes:          map[NodeId]*Node{},
		openCalls:      map[[16]byte]*OpenCall{},
	}
}

func (d *Domain) JSON() []byte      { return d.jsonDescriptor }
func (d *Domain) VersionID() uint32 { return d.versionID }
func (d *Domain) Trailer() uint16   { return d.trailer }

// Server returns the endpoint.Binder dispatching local calls, so a
// connection or legacy protocol handler can bind endpoint table entries
// against it.
func (d *Domain) Server() *object.Server { return d.server }

// DiscoveryChannels returns the configured discovery spec strings
// (§6 "Connection spec string", e.g. "usb:idVendor=0x1209,idProduct=
// 0x0d32" or "can:if=can0").
func (d *Domain) DiscoveryChannels() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string{}, d.discoveryChannels...)
}

// AddDiscoveryChannel registers one discovery backend's spec string.
func (d *Domain) AddDiscoveryChannel(spec string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.discoveryChannels = append(d.discoveryChannels, spec)
}

// OnFoundNode records a newly discovered peer, returning its Node
// (creating one if this NodeId hasn't been seen before).
func (d *Domain) OnFoundNode(id NodeId) *Node {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n, ok := d.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id}
	d.nodes[id] = n
	return n
}

// LookupNode returns the Node known for id, if any.
func (d *Domain) LookupNode(id NodeId) (*Node, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.nodes[id]
	return n, ok
}

// OnLostNode tears a peer down: it is removed from the node table,
// every open call addressed to it is dropped, and its exports are
// closed. Export teardown errors are combined rather than stopping at
// the first one, so one broken export doesn't mask another's cleanup.
func (d *Domain) OnLostNode(id NodeId) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	n, ok := d.nodes[id]
	if !ok {
		return nil
	}
	delete(d.nodes, id)

	for callID, oc := range d.openCalls {
		if oc.Node == n {
			delete(d.openCalls, callID)
		}
	}

	var err error
	for _, export := range n.Exports {
		err = multierr.Append(err, export.Close())
	}
	return err
}

// OpenCall associates callID with socket for the duration of one
// streamed call (§3, §4.6).
func (d *Domain) OpenCall(callID [16]byte, node *Node, socket endpoint.CallSocket) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openCalls[callID] = &OpenCall{Node: node, Socket: socket}
}

// CloseCall removes callID's association once the call completes.
func (d *Domain) CloseCall(callID [16]byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.openCalls, callID)
}

// LookupCall resolves callID to its open call, if any.
func (d *Domain) LookupCall(callID [16]byte) (*OpenCall, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	oc, ok := d.openCalls[callID]
	return oc, ok
}

// EncodeVersionID returns the 4-byte little-endian encoding endpoint 0
// serves for offset 0xFFFFFFFF (§4.4, §6).
func EncodeVersionID(versionID uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], versionID)
	return b[:]
}
