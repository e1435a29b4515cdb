// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package framesink

import "github.com/samuelsadok/fibre/chunk"

// registration pairs a Source with the back-end slot a Sink allocated for
// it, plus the in-flight bookkeeping needed to report ReleaseTask back once
// the Sink confirms the frame went out.
type registration struct {
	src      Source
	slot     SlotID
	inFlight chunk.BufChain // the task currently handed to the Sink, or nil
}

// Multiplexer arbitrates between however many output slots currently have
// data to send onto one physical Sink (§4.3). It drives the same
// cooperative, non-blocking pump idiom as the rest of the core: Pump
// never blocks, and only ever has one frame in flight per slot at a time,
// waiting for OnSent before offering that slot's source another task.
//
// No fairness guarantee is made beyond "eventually a ready source is
// served as long as the sink is live" (§5); Pump scans sources in a
// rotating order so one perpetually-busy source can't starve the rest.
type Multiplexer struct {
	sink Sink
	regs []*registration
	next int // round-robin cursor into regs
}

// NewMultiplexer constructs a Multiplexer driving sink.
func NewMultiplexer(sink Sink) *Multiplexer {
	return &Multiplexer{sink: sink}
}

// AddSource registers src, opening a back-end slot on the sink addressed
// to dest. AddSource is idempotent: re-adding an already-registered src is
// a no-op. It reports false if the sink refused to allocate a slot.
func (m *Multiplexer) AddSource(src Source, dest NodeID) bool {
	for _, r := range m.regs {
		if r.src == src {
			return true
		}
	}
	slot, ok := m.sink.OpenOutputSlot(dest)
	if !ok {
		return false
	}
	m.regs = append(m.regs, &registration{src: src, slot: slot})
	return true
}

// RemoveSource unregisters src and closes its back-end slot. Called once a
// source has run dry for good (e.g. its connection is closing), not merely
// because HasData is momentarily false.
func (m *Multiplexer) RemoveSource(src Source) {
	for i, r := range m.regs {
		if r.src == src {
			m.sink.CloseOutputSlot(r.slot)
			m.regs = append(m.regs[:i], m.regs[i+1:]...)
			if m.next > i {
				m.next--
			}
			return
		}
	}
}

// Pump offers the sink one task from the next ready source it finds,
// starting its scan from where the previous call left off. It returns
// true if it started a write. A source with a frame already in flight
// (awaiting OnSent) is skipped even if HasData is true again in the
// meantime: only one outstanding frame per slot, matching the sink's own
// one-mailbox-at-a-time contract.
func (m *Multiplexer) Pump() bool {
	n := len(m.regs)
	for i := 0; i < n; i++ {
		idx := (m.next + i) % n
		r := m.regs[idx]
		if r.inFlight != nil || !r.src.HasData() {
			continue
		}

		task := r.src.GetTask()
		if !m.sink.StartWrite(r.slot, task) {
			// Sink can't accept right now; leave the task with its source
			// (GetTask didn't consume it) and try another source this
			// round. The same source will be retried next Pump call.
			continue
		}

		r.inFlight = task
		m.next = (idx + 1) % n
		return true
	}
	return false
}

// OnSent is the sink's callback once the frame most recently started on
// slot has been committed to the wire (end == EndOfChain of the task) or
// the send failed partway (end short of that, or zero on outright
// failure). It reports the consumed range back to the task's source via
// ReleaseTask and clears the slot's in-flight state so Pump can offer it
// more work.
func (m *Multiplexer) OnSent(slot SlotID, end chunk.End) {
	for _, r := range m.regs {
		if r.slot != slot || r.inFlight == nil {
			continue
		}
		r.src.ReleaseTask(end)
		r.inFlight = nil
		return
	}
}
