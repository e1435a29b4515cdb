// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package can

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// NodeState is the Node-ID acquisition state of §4.7: a node starts
// RESTRAINED (no CAN id of its own, may not send application frames)
// and becomes OPERATIONAL once it has claimed one.
type NodeState uint8

const (
	StateRestrained NodeState = iota
	StateOperational
)

// PRNG draws the next candidate id to try during acquisition. The
// production default (NewSeededPRNG) derives its stream from the node's
// seed; tests substitute a scripted sequence to drive specific
// collision scenarios deterministically.
type PRNG interface {
	NextCandidate() uint8
}

type seededPRNG struct{ r *rand.Rand }

// NewSeededPRNG returns the default PRNG, seeded from a node's 16-byte
// seed (§4.7 "seeded PRNG"). It never yields 0: id 0 is reserved.
func NewSeededPRNG(seed [16]byte) PRNG {
	s := int64(binary.LittleEndian.Uint64(seed[:8]))
	return &seededPRNG{r: rand.New(rand.NewSource(s))}
}

func (p *seededPRNG) NextCandidate() uint8 {
	return uint8(1 + p.r.Intn(255))
}

// DeriveSeed computes a node's 16-byte acquisition seed from its Fibre
// Node ID (§4.7 "a 16-byte random seed (derived from its Fibre Node
// ID)"). The exact derivation isn't wire-visible (it only ever feeds a
// local PRNG and the acquisition payload nobody else needs to
// reconstruct), so a SHA-256 truncation is as good as any KDF here.
func DeriveSeed(fibreID [16]byte) [16]byte {
	sum := sha256.Sum256(fibreID[:])
	var seed [16]byte
	copy(seed[:], sum[:16])
	return seed
}

// Transport is what a Node drives to actually put frames on the bus;
// BusTransport (adapter.go), wrapping the SocketCAN Bus of bus_linux.go,
// is the production implementation.
type Transport interface {
	SendAcquisition(candidateID uint8, payload [16]byte)
	SendGuard(ownedID uint8)
	SendHeartbeat(ownerID uint8, fibreID [16]byte)
}

// AcquisitionOutcome is what the transport observed after the most
// recent SendAcquisition call (§4.7). CAN's hardware ACK bit is set by
// ANY listening node, related or not — so OutcomeAck just means "the
// bus is not empty, verify more carefully" (step 3/4's second round),
// while OutcomeNack (no hardware ack at all) means nobody could have
// contested the id, so it's accepted immediately.
type AcquisitionOutcome int

const (
	OutcomeArbitrationLost AcquisitionOutcome = iota
	OutcomeDataCollision
	OutcomeAck
	OutcomeNack
)

// Node runs one bus participant's Node-ID acquisition and maintenance
// state machine (§4.7). It never blocks: every method either completes
// synchronously or arranges for a later call (Tick, OnOutcome) to carry
// the state machine forward, matching the surrounding cooperative event
// loop.
type Node struct {
	rng  PRNG
	seed [16]byte

	state         NodeState
	candidate     uint8
	ownedID       uint8
	waitingSecond bool

	consecutiveCollisions int

	tx Transport
}

// NewNode builds a Node in the RESTRAINED state. seed should be
// DeriveSeed(fibreID) unless the caller has its own derivation.
func NewNode(seed [16]byte, rng PRNG, tx Transport) *Node {
	return &Node{seed: seed, rng: rng, tx: tx}
}

func (n *Node) State() NodeState { return n.state }

// OwnedID returns the node's current CAN id and whether it holds one at
// all (only meaningful once State() == StateOperational).
func (n *Node) OwnedID() (uint8, bool) {
	return n.ownedID, n.state == StateOperational
}

// Start begins acquisition (§4.7 step 1: pick a candidate from the
// PRNG, send the one-shot acquisition message).
func (n *Node) Start() {
	n.beginAcquisition()
}

func (n *Node) beginAcquisition() {
	n.waitingSecond = false
	n.candidate = n.rng.NextCandidate()
	n.tx.SendAcquisition(n.candidate, n.seed)
}

// OnOutcome feeds back what happened to the most recent acquisition
// send (§4.7 steps 2 and 4 — the same transitions apply to both the
// first and the confirming second message, distinguished only by
// waitingSecond).
func (n *Node) OnOutcome(o AcquisitionOutcome) {
	if n.state != StateRestrained {
		return
	}
	switch o {
	case OutcomeArbitrationLost:
		n.tx.SendAcquisition(n.candidate, n.seed) // retry unchanged, per §4.7
	case OutcomeDataCollision:
		n.beginAcquisition() // back to step 1: new candidate
	case OutcomeAck:
		if n.waitingSecond {
			n.acquire()
		} else {
			n.waitingSecond = true // step 3: wait for Tick to send the second message
		}
	case OutcomeNack:
		n.acquire() // nobody else on the bus to contest it
	}
}

// Tick fires the RESTRAINED wait timer (§4.7's "wait 100ms"): if the
// node is waiting to send its confirming second acquisition message, it
// sends it now (step 4). Call roughly every 100ms.
func (n *Node) Tick() {
	if n.state == StateRestrained && n.waitingSecond {
		n.tx.SendAcquisition(n.candidate, n.seed)
	}
}

// OnFrameSeen reports a frame glimpsed carrying observedID while this
// node holds observedID as its own tentative candidate: someone else is
// using it too, so the in-flight confirmation is abandoned and
// acquisition restarts at step 1 (§4.7).
func (n *Node) OnFrameSeen(observedID uint8) {
	if n.state == StateRestrained && n.waitingSecond && observedID == n.candidate {
		n.beginAcquisition()
	}
}

func (n *Node) acquire() {
	n.ownedID = n.candidate
	n.state = StateOperational
	n.waitingSecond = false
	n.consecutiveCollisions = 0
}

// OnGuardTarget reports that another node's acquisition message named
// this node's owned id as its candidate; the owner defends it with a
// NodeID guard reply, which arbitrates ahead of ordinary acquisition
// messages (§4.7).
func (n *Node) OnGuardTarget(candidateID uint8) {
	if n.state == StateOperational && candidateID == n.ownedID {
		n.tx.SendGuard(n.ownedID)
	}
}

// OnForeignFrame reports an application or guard frame seen carrying
// this node's own owned id but sent by someone else — a conflict that
// forces the node to abandon its id and restart acquisition (§4.7
// abandonment condition (a)).
func (n *Node) OnForeignFrame() {
	if n.state == StateOperational {
		n.abandonAndRestart()
	}
}

// OnTxDataCollision reports that the most recent application-frame
// transmission failed to a data collision. Three in a row force
// abandonment (§4.7 abandonment condition (b)).
func (n *Node) OnTxDataCollision() {
	if n.state != StateOperational {
		return
	}
	n.consecutiveCollisions++
	if n.consecutiveCollisions >= 3 {
		n.abandonAndRestart()
	}
}

// OnTxSuccess resets the consecutive-collision counter.
func (n *Node) OnTxSuccess() {
	if n.state == StateOperational {
		n.consecutiveCollisions = 0
	}
}

func (n *Node) abandonAndRestart() {
	n.state = StateRestrained
	n.consecutiveCollisions = 0
	n.beginAcquisition()
}

// SendHeartbeat emits the periodic heartbeat carrying fibreID, the
// node's 16-byte Fibre Node ID (§4.7). A RESTRAINED node has no id to
// heartbeat from, so this is a no-op until OPERATIONAL.
func (n *Node) SendHeartbeat(fibreID [16]byte) {
	if n.state == StateOperational {
		n.tx.SendHeartbeat(n.ownedID, fibreID)
	}
}
