// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// File is the contents of fibre.toml: the domain-level settings that
// don't belong in a single spec string (§6).
type File struct {
	Discovery []string `toml:"discovery,omitempty"`
	Ack       Ack      `toml:"ack,omitempty"`
	Can       Can      `toml:"can,omitempty"`
	Log       Log      `toml:"log,omitempty"`
}

// Ack holds the acknowledgement-policy name from fibre.toml (Default sets
// "immediate"). The string is stored as given; nothing in this module
// reads or interprets it.
type Ack struct {
	Policy string `toml:"policy,omitempty"`
}

// Can holds the local CAN interface name and, in Seed, the hex-encoded
// 16-byte Fibre Node ID; cmd/fibre derives §4.7's acquisition seed from
// that ID via can.DeriveSeed.
type Can struct {
	Interface string `toml:"interface,omitempty"`
	Seed      string `toml:"seed,omitempty"`
}

// Log holds the logging facade's level/format.
type Log struct {
	Level  string `toml:"level,omitempty"`
	Format string `toml:"format,omitempty"`
}

// Default returns a File populated with cmd/fibre's out-of-the-box
// settings.
func Default() File {
	return File{
		Ack: Ack{Policy: "immediate"},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads and parses a fibre.toml file at path. A missing file is not
// an error: Default() is returned instead, so cmd/fibre runs without
// requiring one.
func Load(path string) (File, error) {
	f := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return File{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	return f, nil
}

// Save writes f to path in TOML form.
func Save(path string, f File) error {
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("config: marshaling %s: %w", path, err)
	}
	return os.WriteFile(path, data, 0o644)
}
