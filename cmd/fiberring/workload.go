// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Workload describes a ring benchmark: every carrier runs Fibers fibers that
// each yield Yields times.
type Workload struct {
	Carriers  int  `toml:"carriers"`
	Fibers    int  `toml:"fibers"`
	Yields    int  `toml:"yields"`
	StackSize int  `toml:"stack_size"`
	Debug     bool `toml:"debug"`
}

func defaultWorkload() Workload {
	return Workload{Carriers: 2, Fibers: 4, Yields: 100}
}

// loadWorkload reads path over the defaults. An empty path keeps the defaults.
func loadWorkload(path string) (Workload, error) {
	w := defaultWorkload()
	if path == "" {
		return w, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return w, fmt.Errorf("read workload: %w", err)
	}
	if err := toml.Unmarshal(data, &w); err != nil {
		return w, fmt.Errorf("parse workload: %w", err)
	}
	return w, w.validate()
}

func (w Workload) validate() error {
	switch {
	case w.Carriers <= 0:
		return errors.New("carriers must be positive")
	case w.Fibers < 0:
		return errors.New("fibers must not be negative")
	case w.Yields < 0:
		return errors.New("yields must not be negative")
	case w.StackSize < 0:
		return errors.New("stack_size must not be negative")
	}
	return nil
}
