// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metrics defines the instruments a fiber carrier records.
package metrics

// Provider constructs instruments used to record metrics.
// Implementations must be safe for concurrent use: carriers run in parallel.
type Provider interface {
	Counter(name string) Counter
	UpDownCounter(name string) UpDownCounter
}

// Counter records monotonic counts.
type Counter interface {
	Add(n int64)
}

// UpDownCounter records values that move both ways, such as live fibers.
type UpDownCounter interface {
	Add(n int64)
}

// Instrument names recorded by carriers.
const (
	FibersCreated  = "fiber_created_total"
	FibersFinished = "fiber_finished_total"
	FibersFailed   = "fiber_failed_total"
	Switches       = "fiber_switches_total"
	FibersReaped   = "fiber_reaped_total"
	FibersLive     = "fiber_live"
)

// NoopProvider discards all measurements. It is the default provider.
type NoopProvider struct{}

// NewNoopProvider returns a provider whose instruments discard every update.
func NewNoopProvider() NoopProvider { return NoopProvider{} }

func (NoopProvider) Counter(string) Counter             { return noop{} }
func (NoopProvider) UpDownCounter(string) UpDownCounter { return noop{} }

type noop struct{}

func (noop) Add(int64) {}
