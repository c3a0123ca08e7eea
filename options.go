// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"log/slog"
	"strconv"

	"github.com/ygrebnov/errorc"

	"code.hybscloud.com/fiber/internal/gostack"
	"code.hybscloud.com/fiber/metrics"
)

// config holds carrier configuration.
type config struct {
	// StackSize is the stack size used when Create is given 0.
	// Default: 256 KiB.
	StackSize int

	// ReapCapacity is the capacity of the per-carrier queue of terminated
	// fibers awaiting disposal. Overflow spills into an unbounded slice.
	// Default: 64.
	ReapCapacity int

	// Debug validates the ring after every mutation and aborts on corruption.
	// Default: false.
	Debug bool

	// DumpLimit bounds the number of ring members printed in diagnostics.
	// Default: 32.
	DumpLimit int

	Logger  *slog.Logger
	Metrics metrics.Provider
	Stacks  Stacks
}

func defaultConfig() config {
	return config{
		StackSize:    gostack.DefaultStackSize,
		ReapCapacity: 64,
		Debug:        false,
		DumpLimit:    32,
		Logger:       slog.New(slog.DiscardHandler),
		Metrics:      metrics.NewNoopProvider(),
	}
}

func buildConfig(opts []Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	if cfg.Stacks == nil {
		cfg.Stacks = defaultStacks()
	}
	return cfg, nil
}

// Option configures a carrier.
type Option func(*config) error

// WithStackSize sets the default stack size in bytes (must be > 0).
func WithStackSize(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("stack_size", strconv.Itoa(n)))
		}
		cfg.StackSize = n
		return nil
	}
}

// WithReapCapacity sets the capacity of the terminated-fiber queue (must be > 0).
func WithReapCapacity(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("reap_capacity", strconv.Itoa(n)))
		}
		cfg.ReapCapacity = n
		return nil
	}
}

// WithDebug enables ring validation after every ring mutation.
func WithDebug() Option {
	return func(cfg *config) error { cfg.Debug = true; return nil }
}

// WithDumpLimit bounds ring diagnostics to n members (must be > 0).
func WithDumpLimit(n int) Option {
	return func(cfg *config) error {
		if n <= 0 {
			return errorc.With(ErrInvalidConfig, errorc.String("dump_limit", strconv.Itoa(n)))
		}
		cfg.DumpLimit = n
		return nil
	}
}

// WithLogger sets the carrier logger.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) error {
		if l == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("logger", "nil"))
		}
		cfg.Logger = l
		return nil
	}
}

// WithMetrics sets the metrics provider.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("metrics", "nil"))
		}
		cfg.Metrics = p
		return nil
	}
}

// WithStacks replaces the stack-switch implementation. Carriers that migrate
// fibers between each other must share one Stacks.
func WithStacks(s Stacks) Option {
	return func(cfg *config) error {
		if s == nil {
			return errorc.With(ErrInvalidConfig, errorc.String("stacks", "nil"))
		}
		cfg.Stacks = s
		return nil
	}
}
