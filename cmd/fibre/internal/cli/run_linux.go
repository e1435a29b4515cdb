// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

package cli

import (
	"encoding/hex"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samuelsadok/fibre/can"
	"github.com/samuelsadok/fibre/eventloop"
	"github.com/samuelsadok/fibre/log"
)

const heartbeatInterval = 2 * time.Second

// runCAN drives a single Node through acquisition and into steady-state
// heartbeating, registering the raw SocketCAN socket with an
// eventloop.Loop instead of blocking a goroutine in Bus.ReadFrame.
func runCAN(iface string, fibreID, seed [16]byte) error {
	bus, rs := can.OpenBus(iface)
	if rs != nil {
		return rs
	}
	defer bus.Close()

	loop, err := eventloop.New()
	if err != nil {
		return err
	}
	defer loop.Close()

	peers := can.NewPeerTable()
	tx := can.NewBusTransport(bus)
	node := can.NewNode(seed, can.NewSeededPRNG(seed), tx)
	dispatcher := can.NewDispatcher(node, peers)

	if err := loop.RegisterEvent(bus.Fd(), eventloop.ReadableEvent, func() {
		ev, rs := bus.ReadFrame()
		if rs != nil {
			log.Error("can: read failed: %v", rs)
			return
		}
		dispatcher.HandleEvent(ev)
	}); err != nil {
		return err
	}

	var armHeartbeat func()
	armHeartbeat = func() {
		loop.CallLater(heartbeatInterval, func() {
			node.SendHeartbeat(fibreID)
			armHeartbeat()
		})
	}
	armHeartbeat()

	node.Start()
	log.Info("joining %s as %s", iface, hex.EncodeToString(fibreID[:]))

	done := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(done)
		loop.Stop()
	}()

	loop.Run(done)
	return nil
}
