// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Command fibre is the minimal dev harness that exercises the core end
// to end: it loads a fibre.toml, starts the CAN Node-ID acquisition
// state machine over a real SocketCAN interface, and sends its own
// periodic heartbeats; peer heartbeats update an in-memory peer table and
// are not logged.
package main

import (
	"fmt"
	"os"

	"github.com/samuelsadok/fibre/cmd/fibre/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
