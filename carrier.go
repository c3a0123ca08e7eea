// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"context"
	"runtime"
	"strconv"

	"github.com/ygrebnov/errorc"
	"golang.org/x/sync/errgroup"
)

// Carrier is an execution context hosting exactly one Scheduler. The
// goroutine that creates a Carrier becomes its anchor fiber.
type Carrier struct {
	id     uint32
	name   string
	cfg    config
	sched  *Scheduler
	closed bool
}

// NewCarrier binds a new carrier to the calling goroutine.
func NewCarrier(name string, opts ...Option) (*Carrier, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	c := &Carrier{id: nextCarrierID(), name: name, cfg: cfg}
	if c.name == "" {
		c.name = "carrier-" + strconv.FormatUint(uint64(c.id), 10)
	}
	c.sched = newScheduler(c, &c.cfg)
	return c, nil
}

// ID returns the carrier's process-wide unique identifier.
func (c *Carrier) ID() uint32 { return c.id }

// Name returns the carrier name used in logs and invariant reports.
func (c *Carrier) Name() string { return c.name }

// Scheduler returns the carrier's scheduler.
func (c *Carrier) Scheduler() *Scheduler { return c.sched }

// Closed reports whether Close has completed.
func (c *Carrier) Closed() bool { return c.closed }

// String returns the carrier name.
func (c *Carrier) String() string { return c.name }

// Current returns the fiber running on the carrier.
func (c *Carrier) Current() *Fiber { return c.sched.current }

// Drain yields from the anchor until every cooperative fiber has finished,
// then disposes the terminated fibers.
func (c *Carrier) Drain() error {
	s := c.sched
	if s.current != s.anchor {
		return illegalState("drain", s.current, "must run on the anchor")
	}
	for s.anchor.next != s.anchor {
		if err := s.Yield(); err != nil {
			return err
		}
	}
	s.Reap()
	return nil
}

// Close stops every fiber still alive on the carrier, disposes them and
// releases the anchor stack. It must run on the anchor. Closing a closed
// carrier is a no-op.
func (c *Carrier) Close() error {
	if c.closed {
		return nil
	}
	s := c.sched
	if err := s.ExitRing(); err != nil {
		return err
	}
	pending := make([]*Fiber, 0, len(s.callables))
	for f := range s.callables {
		if !f.IsFinished() && f.caller == nil {
			pending = append(pending, f)
		}
	}
	for _, f := range pending {
		if err := s.Stop(f); err != nil {
			return err
		}
	}
	s.Reap()
	c.closed = true
	s.stacks.Release(s.anchor.token)
	s.anchor.token = 0
	s.anchor.setState(StateDisposed)
	s.log.Debug("carrier closed")
	return nil
}

// Run locks the calling goroutine to its OS thread, creates a carrier on
// it, runs main on the anchor, drains the ring and closes the carrier.
func Run(name string, main func(c *Carrier) error, opts ...Option) (err error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	c, err := NewCarrier(name, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}()
	if err = main(c); err != nil {
		return err
	}
	return c.Drain()
}

// RunCarriers runs n carriers in parallel, each on its own OS thread. The
// first failing carrier cancels ctx for the others.
func RunCarriers(ctx context.Context, n int, main func(ctx context.Context, c *Carrier) error, opts ...Option) error {
	if n <= 0 {
		return errorc.With(ErrInvalidConfig, errorc.String("carriers", strconv.Itoa(n)))
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		name := "carrier-" + strconv.Itoa(i)
		g.Go(func() error {
			return Run(name, func(c *Carrier) error { return main(gctx, c) }, opts...)
		})
	}
	return g.Wait()
}
