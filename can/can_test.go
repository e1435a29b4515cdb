// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package can

import "testing"

func TestEncodeDecodeID(t *testing.T) {
	id := EncodeID(0x12, 0x34, 0x56)
	dest, slot, sender, ok := DecodeID(id)
	if !ok || dest != 0x12 || slot != 0x34 || sender != 0x56 {
		t.Fatalf("DecodeID(EncodeID(...)) = %#x %#x %#x %v", dest, slot, sender, ok)
	}
	if _, _, _, ok := DecodeID(0x00ABCDEF); ok {
		t.Fatalf("DecodeID accepted a frame without the Fibre prefix")
	}
}

func TestEncodeDecodeNodeIDMessage(t *testing.T) {
	acq := EncodeAcquisitionID(0x42)
	target, isAcq, ok := DecodeNodeIDMessage(acq)
	if !ok || !isAcq || target != 0x42 {
		t.Fatalf("acquisition decode = %#x %v %v", target, isAcq, ok)
	}

	guard := EncodeGuardID(0x42)
	target, isAcq, ok = DecodeNodeIDMessage(guard)
	if !ok || isAcq || target != 0x42 {
		t.Fatalf("guard decode = %#x %v %v", target, isAcq, ok)
	}

	hb := EncodeHeartbeatID(0x7)
	owner, ok := DecodeHeartbeatID(hb)
	if !ok || owner != 0x7 {
		t.Fatalf("heartbeat decode = %#x %v", owner, ok)
	}
	if _, _, ok := DecodeNodeIDMessage(hb); ok {
		t.Fatalf("DecodeNodeIDMessage should not accept a heartbeat id")
	}
}

// scriptedPRNG replays a fixed candidate sequence, letting tests drive
// exact collision scenarios deterministically.
type scriptedPRNG struct {
	seq []uint8
	i   int
}

func (p *scriptedPRNG) NextCandidate() uint8 {
	v := p.seq[p.i]
	if p.i < len(p.seq)-1 {
		p.i++
	}
	return v
}

// recordingTransport captures every Send* call a Node makes, in order,
// so a test can hand-trace the exact sequence of bus traffic a state
// transition produced.
type recordingTransport struct {
	acquisitions []uint8
	guards       []uint8
	heartbeats   []uint8
}

func (t *recordingTransport) SendAcquisition(candidateID uint8, payload [16]byte) {
	t.acquisitions = append(t.acquisitions, candidateID)
}
func (t *recordingTransport) SendGuard(ownedID uint8) {
	t.guards = append(t.guards, ownedID)
}
func (t *recordingTransport) SendHeartbeat(ownerID uint8, fibreID [16]byte) {
	t.heartbeats = append(t.heartbeats, ownerID)
}

func TestNodeAcquiresIDAloneOnBus(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10}}, tx)
	n.Start()
	if len(tx.acquisitions) != 1 || tx.acquisitions[0] != 0x10 {
		t.Fatalf("acquisitions = %v, want [0x10]", tx.acquisitions)
	}
	// alone on the bus: the hardware never sets the ACK bit, so the
	// driver reports NACK and the tentative id is accepted immediately.
	n.OnOutcome(OutcomeNack)
	if n.State() != StateOperational {
		t.Fatalf("state = %v, want Operational", n.State())
	}
	id, ok := n.OwnedID()
	if !ok || id != 0x10 {
		t.Fatalf("OwnedID() = %#x, %v, want 0x10, true", id, ok)
	}
}

func TestNodeAcquiresIDWithPeersPresent(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10}}, tx)
	n.Start()

	// other nodes are listening: hardware ACK is set, so the node must
	// confirm with a second message before claiming the id.
	n.OnOutcome(OutcomeAck)
	if n.State() != StateRestrained {
		t.Fatalf("state = %v, want still Restrained pending confirmation", n.State())
	}

	n.Tick() // fires the second acquisition message
	if len(tx.acquisitions) != 2 || tx.acquisitions[1] != 0x10 {
		t.Fatalf("acquisitions = %v, want second message for 0x10", tx.acquisitions)
	}

	n.OnOutcome(OutcomeAck) // second round's outcome also finalizes
	if n.State() != StateOperational {
		t.Fatalf("state = %v, want Operational", n.State())
	}
}

func TestNodeArbitrationLossRetriesSameCandidate(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, tx)
	n.Start()
	n.OnOutcome(OutcomeArbitrationLost)
	if len(tx.acquisitions) != 2 || tx.acquisitions[0] != 0x10 || tx.acquisitions[1] != 0x10 {
		t.Fatalf("acquisitions = %v, want [0x10 0x10] (retry unchanged)", tx.acquisitions)
	}
}

// TestNodeIDCollision runs two Nodes sharing a virtual bus where both
// draw 0x10 first. Node A's seeded PRNG then yields 0x20, Node B's
// yields 0x30, so after the shared first candidate collides, they
// diverge and each claims its own id.
func TestNodeIDCollision(t *testing.T) {
	txA := &recordingTransport{}
	txB := &recordingTransport{}
	a := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, txA)
	b := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x30}}, txB)

	a.Start()
	b.Start()
	if txA.acquisitions[0] != 0x10 || txB.acquisitions[0] != 0x10 {
		t.Fatalf("both nodes should have tried 0x10 first: %v %v", txA.acquisitions, txB.acquisitions)
	}

	// the virtual bus reports the identical-candidate clash as a data
	// collision to both transmitters.
	a.OnOutcome(OutcomeDataCollision)
	b.OnOutcome(OutcomeDataCollision)

	if len(txA.acquisitions) != 2 || txA.acquisitions[1] != 0x20 {
		t.Fatalf("A's acquisitions = %v, want second try 0x20", txA.acquisitions)
	}
	if len(txB.acquisitions) != 2 || txB.acquisitions[1] != 0x30 {
		t.Fatalf("B's acquisitions = %v, want second try 0x30", txB.acquisitions)
	}

	// no further clash: both are alone on their new candidate, accepted
	// immediately via NACK.
	a.OnOutcome(OutcomeNack)
	b.OnOutcome(OutcomeNack)

	idA, okA := a.OwnedID()
	idB, okB := b.OwnedID()
	if !okA || idA != 0x20 {
		t.Fatalf("A OwnedID = %#x, %v, want 0x20, true", idA, okA)
	}
	if !okB || idB != 0x30 {
		t.Fatalf("B OwnedID = %#x, %v, want 0x30, true", idB, okB)
	}
}

func TestNodeFrameSeenWhileWaitingRestartsAcquisition(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, tx)
	n.Start()
	n.OnOutcome(OutcomeAck) // now waiting to send the confirming second message

	n.OnFrameSeen(0x10) // someone else is also using our tentative candidate

	if len(tx.acquisitions) != 2 || tx.acquisitions[1] != 0x20 {
		t.Fatalf("acquisitions = %v, want restart with new candidate 0x20", tx.acquisitions)
	}
	if n.State() != StateRestrained {
		t.Fatalf("state = %v, want still Restrained", n.State())
	}
}

func TestNodeAbandonsOnForeignFrame(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, tx)
	n.Start()
	n.OnOutcome(OutcomeNack)
	if n.State() != StateOperational {
		t.Fatalf("setup: expected Operational")
	}

	n.OnForeignFrame()

	if n.State() != StateRestrained {
		t.Fatalf("state = %v, want Restrained after foreign-frame conflict", n.State())
	}
	if len(tx.acquisitions) != 2 || tx.acquisitions[1] != 0x20 {
		t.Fatalf("acquisitions = %v, want a fresh acquisition attempt after abandoning", tx.acquisitions)
	}
}

func TestNodeAbandonsAfterThreeConsecutiveCollisions(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, tx)
	n.Start()
	n.OnOutcome(OutcomeNack)

	n.OnTxDataCollision()
	n.OnTxDataCollision()
	if n.State() != StateOperational {
		t.Fatalf("should still hold id after only 2 collisions")
	}
	n.OnTxDataCollision()
	if n.State() != StateRestrained {
		t.Fatalf("state = %v, want Restrained after 3 consecutive collisions", n.State())
	}
}

func TestNodeTxSuccessResetsCollisionCounter(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10}}, tx)
	n.Start()
	n.OnOutcome(OutcomeNack)

	n.OnTxDataCollision()
	n.OnTxDataCollision()
	n.OnTxSuccess()
	n.OnTxDataCollision()
	n.OnTxDataCollision()
	if n.State() != StateOperational {
		t.Fatalf("state = %v, want still Operational (counter was reset)", n.State())
	}
}

func TestNodeGuardsOwnedIDOnAcquisitionTargetingIt(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10}}, tx)
	n.Start()
	n.OnOutcome(OutcomeNack)

	n.OnGuardTarget(0x10)
	if len(tx.guards) != 1 || tx.guards[0] != 0x10 {
		t.Fatalf("guards = %v, want [0x10]", tx.guards)
	}

	n.OnGuardTarget(0x99) // not our id, no reply
	if len(tx.guards) != 1 {
		t.Fatalf("guards = %v, want no new reply for an unrelated id", tx.guards)
	}
}

func TestPeerTableTracksAndTearsDownOnFibreIDChange(t *testing.T) {
	table := NewPeerTable()
	var fibreA, fibreB [16]byte
	fibreA[0] = 0xAA
	fibreB[0] = 0xBB

	if changed := table.OnHeartbeat(0x10, fibreA); changed {
		t.Fatalf("first heartbeat for a can id should not report a change")
	}
	got, ok := table.Lookup(0x10)
	if !ok || got != fibreA {
		t.Fatalf("Lookup(0x10) = %v, %v, want fibreA, true", got, ok)
	}

	if changed := table.OnHeartbeat(0x10, fibreA); changed {
		t.Fatalf("repeated heartbeat from the same owner should not report a change")
	}

	if changed := table.OnHeartbeat(0x10, fibreB); !changed {
		t.Fatalf("heartbeat from a new Fibre ID on the same can id should report a change")
	}
	got, ok = table.Lookup(0x10)
	if !ok || got != fibreB {
		t.Fatalf("Lookup(0x10) after change = %v, %v, want fibreB, true", got, ok)
	}
}

func TestDispatcherAssemblesHeartbeatHalvesAndUpdatesPeerTable(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10}}, tx)
	peers := NewPeerTable()
	d := NewDispatcher(n, peers)

	var fibreID [16]byte
	for i := range fibreID {
		fibreID[i] = byte(i + 1)
	}
	id := EncodeHeartbeatID(0x55)
	d.HandleEvent(RawEvent{ID: id, Data: fibreID[:8]})
	if _, ok := peers.Lookup(0x55); ok {
		t.Fatalf("peer table should not update until the second half arrives")
	}
	d.HandleEvent(RawEvent{ID: id, Data: fibreID[8:]})

	got, ok := peers.Lookup(0x55)
	if !ok || got != fibreID {
		t.Fatalf("Lookup(0x55) = %v, %v, want assembled fibreID, true", got, ok)
	}
}

func TestDispatcherRoutesErrorEventsToNodeOutcome(t *testing.T) {
	tx := &recordingTransport{}
	n := NewNode([16]byte{}, &scriptedPRNG{seq: []uint8{0x10, 0x20}}, tx)
	peers := NewPeerTable()
	d := NewDispatcher(n, peers)

	n.Start()
	d.HandleEvent(RawEvent{IsError: true, Outcome: OutcomeDataCollision})
	if len(tx.acquisitions) != 2 || tx.acquisitions[1] != 0x20 {
		t.Fatalf("acquisitions = %v, want a retry with a new candidate", tx.acquisitions)
	}
}
