// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package cli

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samuelsadok/fibre/can"
	"github.com/samuelsadok/fibre/domain"
)

var ifaceFlag string

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Join the CAN bus, acquire a Node-ID, and send periodic heartbeats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadConfig()
			if err != nil {
				return err
			}
			iface := ifaceFlag
			if iface == "" {
				iface = f.Can.Interface
			}
			if iface == "" {
				iface = "can0"
			}

			fibreID, seed, err := resolveIdentity(f.Can.Seed)
			if err != nil {
				return err
			}
			fmt.Printf("fibre node id %s\n", hex.EncodeToString(fibreID[:]))

			return runCAN(iface, fibreID, seed)
		},
	}
	cmd.Flags().StringVar(&ifaceFlag, "if", "", "CAN interface name, e.g. can0 (overrides fibre.toml)")
	return cmd
}

// resolveIdentity derives the 16-byte Fibre Node ID a run exposes via
// heartbeats, and the PRNG seed its Node-ID acquisition state machine
// draws candidates from (§4.7). A configured hex seed is reused so a
// node keeps the same identity across restarts; otherwise one is minted.
func resolveIdentity(configuredSeed string) (fibreID [16]byte, seed [16]byte, err error) {
	if configuredSeed != "" {
		b, err := hex.DecodeString(configuredSeed)
		if err != nil || len(b) != 16 {
			return fibreID, seed, fmt.Errorf("cli: can.seed must be 32 hex characters, got %q", configuredSeed)
		}
		copy(fibreID[:], b)
	} else {
		id, err := domain.NewNodeId()
		if err != nil {
			return fibreID, seed, fmt.Errorf("cli: minting a node id: %w", err)
		}
		fibreID = [16]byte(id)
	}
	return fibreID, can.DeriveSeed(fibreID), nil
}
