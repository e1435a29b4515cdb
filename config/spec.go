// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config implements the connection spec string grammar (§6) and
// the fibre.toml settings file used by cmd/fibre.
package config

import (
	"fmt"
	"strings"
)

// Spec is a parsed "key=value,key=value,..." discovery/connection
// string (§6), e.g. "usb:idVendor=0x1209,idProduct=0x0d32" or
// "can:if=can0".
type Spec struct {
	Scheme string
	Params map[string]string
}

// Get returns Params[key] and whether it was present.
func (s Spec) Get(key string) (string, bool) {
	v, ok := s.Params[key]
	return v, ok
}

// ParseSpec parses a connection spec string of the form
// "scheme:key=value,key=value,...". The scheme is mandatory; the
// parameter list may be empty ("scheme:"). No third-party dependency
// fits this bespoke grammar, so it's hand-rolled (see DESIGN.md).
func ParseSpec(s string) (Spec, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Spec{}, fmt.Errorf("config: spec %q missing scheme prefix", s)
	}
	if scheme == "" {
		return Spec{}, fmt.Errorf("config: spec %q has empty scheme", s)
	}

	params := map[string]string{}
	if rest != "" {
		for _, pair := range strings.Split(rest, ",") {
			if pair == "" {
				return Spec{}, fmt.Errorf("config: spec %q has an empty parameter", s)
			}
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				return Spec{}, fmt.Errorf("config: spec %q has a malformed parameter %q", s, pair)
			}
			params[key] = value
		}
	}

	return Spec{Scheme: scheme, Params: params}, nil
}

// String reconstructs the canonical spec string for s, with parameters
// in the order given.
func (s Spec) String(order ...string) string {
	var b strings.Builder
	b.WriteString(s.Scheme)
	b.WriteByte(':')
	for i, key := range order {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(s.Params[key])
	}
	return b.String()
}
