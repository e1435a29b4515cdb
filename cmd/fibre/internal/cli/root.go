// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package cli wires cobra subcommands for the fibre dev harness,
// following the same command-per-file layout as dh-cli's internal/cmd.
package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/samuelsadok/fibre/config"
	"github.com/samuelsadok/fibre/log"
)

var configPath string

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "fibre",
		Short:         "Dev harness for the Fibre connection core",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "fibre.toml", "path to fibre.toml")

	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func Execute() error {
	return NewRootCmd().Execute()
}

func loadConfig() (config.File, error) {
	f, err := config.Load(configPath)
	if err != nil {
		return config.File{}, err
	}

	level, err := logrus.ParseLevel(f.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetDefault(log.New(logOutput(), level, f.Log.Format == "json"))

	return f, nil
}
