// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package can

import "github.com/samuelsadok/fibre/status"

// frameSender is the subset of Bus that BusTransport needs; kept as an
// interface so tests can substitute a recording double instead of a
// real socket.
type frameSender interface {
	WriteFrame(id uint32, data []byte) *status.RichStatus
}

// BusTransport implements Transport by splitting each 16-byte §4.7
// payload (acquisition seed or Fibre Node ID) across two consecutive
// 8-byte classic CAN frames sharing the same id.
type BusTransport struct {
	bus frameSender
}

func NewBusTransport(bus frameSender) *BusTransport {
	return &BusTransport{bus: bus}
}

func (t *BusTransport) SendAcquisition(candidateID uint8, payload [16]byte) {
	id := EncodeAcquisitionID(candidateID)
	t.bus.WriteFrame(id, payload[:8])
	t.bus.WriteFrame(id, payload[8:])
}

func (t *BusTransport) SendGuard(ownedID uint8) {
	t.bus.WriteFrame(EncodeGuardID(ownedID), nil)
}

func (t *BusTransport) SendHeartbeat(ownerID uint8, fibreID [16]byte) {
	id := EncodeHeartbeatID(ownerID)
	t.bus.WriteFrame(id, fibreID[:8])
	t.bus.WriteFrame(id, fibreID[8:])
}

// RawEvent is one decoded bus read: either a data frame (ID/Data) or an
// error notification translated to an AcquisitionOutcome via
// IsError/Outcome. It is platform-independent so Dispatcher (and its
// tests) don't need the Linux-only Bus to exercise the routing logic;
// Bus.ReadFrame (bus_linux.go) is what produces these from a real
// socket.
type RawEvent struct {
	ID      uint32
	Data    []byte
	IsError bool
	Outcome AcquisitionOutcome
}

// Dispatcher turns decoded bus frames into calls on a Node and keeps a
// PeerTable up to date from heartbeats (§4.7). It assembles the two
// 8-byte halves of a 16-byte acquisition/heartbeat payload before
// handing the payload to the Node, since a single RawEvent only carries
// one 8-byte half.
type Dispatcher struct {
	node  *Node
	peers *PeerTable

	// pendingID/pendingFirst accumulate the first 8-byte half of a
	// 16-byte payload (acquisition seed or heartbeat Fibre ID) until its
	// matching second half arrives. Frames from more than one sender
	// interleaving on the same id between halves would misassemble; real
	// deployments keep acquisition/heartbeat traffic rare enough that
	// this doesn't come up in practice.
	pendingID    uint32
	pendingFirst []byte
}

func NewDispatcher(node *Node, peers *PeerTable) *Dispatcher {
	return &Dispatcher{node: node, peers: peers}
}

// HandleEvent feeds one decoded RawEvent (from Bus.ReadFrame, or an
// equivalent test double) into the state machine.
func (d *Dispatcher) HandleEvent(ev RawEvent) {
	if ev.IsError {
		d.node.OnOutcome(ev.Outcome)
		return
	}

	if ownerID, ok := DecodeHeartbeatID(ev.ID); ok {
		d.onHalfFrame(ev.ID, ev.Data, func(payload [16]byte) {
			d.peers.OnHeartbeat(ownerID, payload) // reports a torn-down association via its own return value
		})
		return
	}

	// Acquisition/guard frames only need the candidate id carried in the
	// CAN ID itself, not the trailing payload, so both 8-byte halves of
	// one logical message are handled identically here — reacting twice
	// to the same message is redundant but harmless (SendGuard is
	// idempotent), so no half-frame assembly is needed on this path.
	if targetID, isAcquisition, ok := DecodeNodeIDMessage(ev.ID); ok {
		if isAcquisition {
			d.node.OnGuardTarget(targetID)
			d.node.OnFrameSeen(targetID)
		} else if ownedID, operational := d.node.OwnedID(); operational && targetID == ownedID {
			d.node.OnForeignFrame()
		}
		return
	}

	if dest, _, sender, ok := DecodeID(ev.ID); ok {
		if ownedID, operational := d.node.OwnedID(); operational && (dest == ownedID || sender == ownedID) {
			// an application frame claiming to be from/to our own id but
			// that we didn't send ourselves is the conflict condition (a)
			d.node.OnForeignFrame()
		}
	}
}

// onHalfFrame accumulates two 8-byte halves sharing id into one 16-byte
// payload before invoking onComplete.
func (d *Dispatcher) onHalfFrame(id uint32, half []byte, onComplete func(payload [16]byte)) {
	if d.pendingFirst == nil || d.pendingID != id {
		d.pendingID = id
		d.pendingFirst = append([]byte{}, half...)
		return
	}
	var payload [16]byte
	copy(payload[:8], d.pendingFirst)
	copy(payload[8:], half)
	d.pendingFirst = nil
	onComplete(payload)
}
