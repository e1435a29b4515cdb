// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package can

import "sync"

// PeerTable tracks the can_id → Fibre Node ID associations learned from
// heartbeats (§4.7). It tears an association down when the Fibre ID
// behind a can_id changes — the previous owner abandoned the id and
// someone new has since acquired it — so callers can drop anything
// addressed to the stale owner.
type PeerTable struct {
	mu    sync.Mutex
	peers map[uint8][16]byte
}

func NewPeerTable() *PeerTable {
	return &PeerTable{peers: map[uint8][16]byte{}}
}

// OnHeartbeat records or updates canID's Fibre Node ID, reporting
// changed=true if a different Fibre ID previously occupied canID (a
// torn-down association the caller should react to).
func (t *PeerTable) OnHeartbeat(canID uint8, fibreID [16]byte) (changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.peers[canID]
	t.peers[canID] = fibreID
	return ok && prev != fibreID
}

// Lookup returns the Fibre Node ID currently associated with canID.
func (t *PeerTable) Lookup(canID uint8) ([16]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.peers[canID]
	return v, ok
}

// Forget removes canID's association, e.g. after a heartbeat timeout.
func (t *PeerTable) Forget(canID uint8) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.peers, canID)
}
