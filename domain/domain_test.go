// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package domain

import (
	"errors"
	"testing"

	"github.com/samuelsadok/fibre/endpoint"
	"github.com/samuelsadok/fibre/legacy"
	"github.com/samuelsadok/fibre/object"
)

var _ endpoint.JSONSource = (*Domain)(nil)

func TestJSONSourceTrailerMatchesProtocolSeededCRC(t *testing.T) {
	descriptor := []byte(`{"interfaces":{}}`)
	d := New(descriptor, 7, &object.Server{})

	if string(d.JSON()) != string(descriptor) {
		t.Fatalf("JSON() = %q, want %q", d.JSON(), descriptor)
	}
	if d.VersionID() != 7 {
		t.Fatalf("VersionID() = %d, want 7", d.VersionID())
	}
	want := legacy.CRC16Seeded(descriptor, endpoint.ProtocolVersion)
	if d.Trailer() != want {
		t.Fatalf("Trailer() = %#x, want %#x", d.Trailer(), want)
	}
}

func TestNodeTableFindsOrCreatesThenForgets(t *testing.T) {
	d := New(nil, 0, &object.Server{})
	var id NodeId
	id[0] = 0x42

	n1 := d.OnFoundNode(id)
	n2 := d.OnFoundNode(id)
	if n1 != n2 {
		t.Fatalf("OnFoundNode should return the same *Node for a known id")
	}

	got, ok := d.LookupNode(id)
	if !ok || got != n1 {
		t.Fatalf("LookupNode = %v, %v, want n1, true", got, ok)
	}

	if err := d.OnLostNode(id); err != nil {
		t.Fatalf("OnLostNode error: %v", err)
	}
	if _, ok := d.LookupNode(id); ok {
		t.Fatalf("node should be forgotten after OnLostNode")
	}
}

type fakeExport struct{ err error }

func (e fakeExport) Close() error { return e.err }

func TestOnLostNodeCombinesExportCloseErrors(t *testing.T) {
	d := New(nil, 0, &object.Server{})
	var id NodeId
	id[0] = 0x1

	n := d.OnFoundNode(id)
	errA := errors.New("export a failed")
	errB := errors.New("export b failed")
	n.Exports = append(n.Exports, fakeExport{err: errA}, fakeExport{err: nil}, fakeExport{err: errB})

	err := d.OnLostNode(id)
	if err == nil {
		t.Fatalf("expected a combined error")
	}
	msg := err.Error()
	if !contains(msg, errA.Error()) || !contains(msg, errB.Error()) {
		t.Fatalf("combined error %q missing one of the export errors", msg)
	}
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func TestOnLostNodeDropsItsOpenCalls(t *testing.T) {
	d := New(nil, 0, &object.Server{})
	var idA, idB NodeId
	idA[0], idB[0] = 0x1, 0x2
	nodeA := d.OnFoundNode(idA)
	d.OnFoundNode(idB)

	var callA, callB [16]byte
	callA[0], callB[0] = 0xA, 0xB
	d.OpenCall(callA, nodeA, nil)
	d.OpenCall(callB, nodeA, nil)

	if err := d.OnLostNode(idA); err != nil {
		t.Fatalf("OnLostNode error: %v", err)
	}
	if _, ok := d.LookupCall(callA); ok {
		t.Fatalf("call A should have been dropped with its node")
	}
	if _, ok := d.LookupCall(callB); ok {
		t.Fatalf("call B should have been dropped with its node")
	}
}

func TestCloseCallRemovesSingleAssociation(t *testing.T) {
	d := New(nil, 0, &object.Server{})
	var call [16]byte
	call[0] = 0x9
	d.OpenCall(call, nil, nil)

	if _, ok := d.LookupCall(call); !ok {
		t.Fatalf("expected the call to be open")
	}
	d.CloseCall(call)
	if _, ok := d.LookupCall(call); ok {
		t.Fatalf("expected the call to be closed")
	}
}

func TestEncodeVersionID(t *testing.T) {
	got := EncodeVersionID(0x04030201)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("EncodeVersionID = %v, want %v", got, want)
		}
	}
}

func TestDiscoveryChannels(t *testing.T) {
	d := New(nil, 0, &object.Server{})
	d.AddDiscoveryChannel("usb:idVendor=0x1209,idProduct=0x0d32")
	d.AddDiscoveryChannel("can:if=can0")

	got := d.DiscoveryChannels()
	if len(got) != 2 || got[0] != "usb:idVendor=0x1209,idProduct=0x0d32" || got[1] != "can:if=can0" {
		t.Fatalf("DiscoveryChannels() = %v", got)
	}
}

func TestNewNodeIdProducesDistinctValues(t *testing.T) {
	a, err := NewNodeId()
	if err != nil {
		t.Fatalf("NewNodeId error: %v", err)
	}
	b, err := NewNodeId()
	if err != nil {
		t.Fatalf("NewNodeId error: %v", err)
	}
	if a == b {
		t.Fatalf("two NewNodeId calls produced the same id")
	}
}
