// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package cli

import "fmt"

// runCAN has no non-Linux implementation: SocketCAN is a Linux-specific
// facility (§4.7's Non-goals exclude other concrete physical transports).
func runCAN(iface string, fibreID, seed [16]byte) error {
	return fmt.Errorf("cli: CAN transport requires a Linux build (SocketCAN)")
}
