// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package can implements the CAN adapter and distributed Node-ID
// allocation scheme of §4.7: a Fibre frame's 29-bit extended CAN ID
// layout, the RESTRAINED/OPERATIONAL Node-ID acquisition state machine,
// heartbeat-driven peer tracking, and a SocketCAN transport.
package can

// idPrefix occupies the top 5 bits (28-24) of the 29-bit extended CAN
// ID, leaving 24 bits (destination/slot/sender, 8 bits each) for the
// frame's addressing fields (§4.7 "Bit 28 (prefix 0x1E…)").
const idPrefix uint32 = 0x1E

// EncodeID builds the 29-bit extended CAN ID for an application frame
// addressed from sender to dest on the given receive slot (§4.7 "Frame
// mapping").
func EncodeID(dest, slot, sender uint8) uint32 {
	return idPrefix<<24 | uint32(dest)<<16 | uint32(slot)<<8 | uint32(sender)
}

// DecodeID recovers an application frame's addressing fields, reporting
// ok=false if id doesn't carry the Fibre discriminator prefix (i.e. it's
// unrelated bus traffic, §4.7).
func DecodeID(id uint32) (dest, slot, sender uint8, ok bool) {
	if id>>24 != idPrefix {
		return 0, 0, 0, false
	}
	return uint8(id >> 16), uint8(id >> 8), uint8(id), true
}

// The nodeIDSlot* values distinguish the Node-ID negotiation frames on
// the wire: they reuse the prefixed ID space with the whole slot byte as
// a fixed marker (0x80 = acquisition attempt, 0x00 = guard reply, 0x40 =
// heartbeat) and the destination field carrying the candidate/owned id
// (§4.7 "ID prefix + 0b1/0b0 + id").
const (
	nodeIDSlotAcquisition uint8 = 0x80
	nodeIDSlotGuard       uint8 = 0x00
	nodeIDSlotHeartbeat   uint8 = 0x40
)

// EncodeHeartbeatID builds the CAN ID for ownerID's periodic heartbeat.
func EncodeHeartbeatID(ownerID uint8) uint32 {
	return EncodeID(ownerID, nodeIDSlotHeartbeat, 0)
}

// EncodeAcquisitionID builds the CAN ID for a one-shot NodeID
// acquisition message naming candidateID.
func EncodeAcquisitionID(candidateID uint8) uint32 {
	return EncodeID(candidateID, nodeIDSlotAcquisition, 0)
}

// EncodeGuardID builds the CAN ID for a NodeID guard reply defending
// ownedID.
func EncodeGuardID(ownedID uint8) uint32 {
	return EncodeID(ownedID, nodeIDSlotGuard, 0)
}

// DecodeNodeIDMessage recovers the candidate/owned id and whether the
// frame was an acquisition attempt (isAcquisition) or a guard reply,
// reporting ok=false for anything else (application traffic or
// unrelated bus noise).
func DecodeNodeIDMessage(id uint32) (targetID uint8, isAcquisition bool, ok bool) {
	dest, slot, _, ok := DecodeID(id)
	if !ok {
		return 0, false, false
	}
	switch slot {
	case nodeIDSlotAcquisition:
		return dest, true, true
	case nodeIDSlotGuard:
		return dest, false, true
	default:
		return 0, false, false
	}
}

// DecodeHeartbeatID recovers the owner id a heartbeat frame's CAN ID
// names, reporting ok=false for anything else.
func DecodeHeartbeatID(id uint32) (ownerID uint8, ok bool) {
	dest, slot, _, ok := DecodeID(id)
	if !ok || slot != nodeIDSlotHeartbeat {
		return 0, false
	}
	return dest, true
}
