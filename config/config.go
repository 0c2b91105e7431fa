// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"

	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/output"
)

type StartType int

const (
	// Tells way2kms to start a repl in parallel for interacting with it
	START_REPL = StartType(iota)
	// Tells way2kms to execute a specific command on startup
	START_SINGLE_COMMAND
	// Tells way2kms to start without any specific targets
	START_NONE
)

// Per-output overrides, matched by connector name (e.g. "HDMI-A-1")
type OutputConfig struct {
	Name string `envconfig:"NAME,omitempty" toml:"name"`
	// Mode in "WIDTHxHEIGHT@REFRESH" form. Empty picks the preferred mode
	Mode string `envconfig:"MODE,omitempty" toml:"mode,omitempty"`
	// Top-left corner in the global layout. Outputs without a position are
	// placed side by side after the positioned ones
	X *int `envconfig:"X,omitempty" toml:"x,omitempty"`
	Y *int `envconfig:"Y,omitempty" toml:"y,omitempty"`
	// Output scale factor, 0 means 1.0
	Scale float64 `envconfig:"SCALE,omitempty" toml:"scale,omitempty"`
}

type Config struct {
	StartType StartType `envconfig:"START_TYPE,omitempty" toml:"start_type,omitempty"`
	// What command to execute on start. Only matters if StartType is set to START_SINGLE_COMMAND
	StartCommand *string `envconfig:"START_COMMAND,omitempty" toml:"start_command,omitempty"`
	// Canonical device path of the GPU that should render client buffers.
	// Empty means autodetect (boot_vga)
	PrimaryGPU string `envconfig:"PRIMARY_GPU,omitempty" toml:"primary_gpu,omitempty"`

	Outputs []OutputConfig `toml:"outputs,omitempty"`
}

// Loads the config from the given path, or from the xdg default location if
// the path is empty. A missing file yields the zero config
func LoadConfig(path string) (*Config, error) {
	conf := &Config{}

	if path == "" {
		resolved, err := xdg.ConfigFile("way2kms/config.toml")
		if err != nil {
			return nil, fmt.Errorf("resolving config location: %w", err)
		}
		path = resolved
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(raw, conf); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		logrus.WithField("path", path).Debugln("No config file, using defaults")
	default:
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := envconfig.Process("W2K", conf); err != nil {
		return nil, fmt.Errorf("applying env overrides: %w", err)
	}
	return conf, nil
}

func (c *Config) outputConfig(name string) *OutputConfig {
	for i := range c.Outputs {
		if c.Outputs[i].Name == name {
			return &c.Outputs[i]
		}
	}
	return nil
}

// Scale factor for a named output. Unconfigured outputs run at 1.0
func (c *Config) OutputScale(name string) float64 {
	oc := c.outputConfig(name)
	if oc == nil || oc.Scale <= 0 {
		return 1.0
	}
	return oc.Scale
}

// The mode selection policy handed to the display backend. Configured modes
// must exist; an output without config gets the first mode the kernel
// lists, which the resolver orders preferred-first
func (c *Config) ChooseMode(outputName string, modes []generaldata.Mode) (int, error) {
	if len(modes) == 0 {
		return 0, fmt.Errorf("output %s reports no modes", outputName)
	}
	oc := c.outputConfig(outputName)
	if oc != nil && oc.Mode != "" {
		want, err := ParseMode(oc.Mode)
		if err != nil {
			return 0, fmt.Errorf("output %s: %w", outputName, err)
		}
		for i, m := range modes {
			if m.Size == want.Size && (want.Refresh == 0 || m.Refresh == want.Refresh) {
				return i, nil
			}
		}
		return 0, fmt.Errorf("output %s does not support mode %s", outputName, oc.Mode)
	}
	return 0, nil
}

// Parses "WIDTHxHEIGHT" or "WIDTHxHEIGHT@REFRESH" (refresh in Hz) into a
// mode. Refresh 0 means any
func ParseMode(s string) (generaldata.Mode, error) {
	var mode generaldata.Mode
	dims, refresh, hasRefresh := strings.Cut(s, "@")
	w, h, ok := strings.Cut(dims, "x")
	if !ok {
		return mode, fmt.Errorf("malformed mode %q", s)
	}
	width, err := strconv.Atoi(w)
	if err != nil {
		return mode, fmt.Errorf("malformed mode %q: %w", s, err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return mode, fmt.Errorf("malformed mode %q: %w", s, err)
	}
	mode.Size = generaldata.Vector2i{X: width, Y: height}
	if hasRefresh {
		hz, err := strconv.Atoi(refresh)
		if err != nil {
			return mode, fmt.Errorf("malformed mode %q: %w", s, err)
		}
		mode.Refresh = hz * 1000
	}
	return mode, nil
}

// The arrangement policy handed to the output map: configured outputs sit at
// their explicit positions, everything else goes side by side to the right
// of them
func (c *Config) ArrangeOutputs(outputs []*output.Output) []output.Placement {
	placements := make([]output.Placement, 0, len(outputs))
	endX := 0
	for i, o := range outputs {
		oc := c.outputConfig(o.Name())
		if oc == nil || oc.X == nil || oc.Y == nil {
			continue
		}
		loc := generaldata.Vector2i{X: *oc.X, Y: *oc.Y}
		placements = append(placements, output.Placement{Index: i, Location: loc})
		if right := loc.X + o.Size().X; right > endX {
			endX = right
		}
	}

	for i, o := range outputs {
		oc := c.outputConfig(o.Name())
		if oc != nil && oc.X != nil && oc.Y != nil {
			continue
		}
		placements = append(placements, output.Placement{
			Index:    i,
			Location: generaldata.Vector2i{X: endX, Y: 0},
		})
		endX += o.Size().X
	}
	return placements
}
