// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"log/slog"

	"code.hybscloud.com/lfq"

	"code.hybscloud.com/fiber/metrics"
)

// Scheduler owns one carrier's ring of cooperative fibers and its
// current-fiber pointer. Every operation updates bookkeeping first and then
// performs at most one stack transfer.
//
// A Scheduler is not safe for concurrent use: only code running on its
// carrier may call its methods.
type Scheduler struct {
	carrier *Carrier
	cfg     *config
	stacks  Stacks
	log     *slog.Logger
	m       instruments

	anchor *Fiber
	// current is the running fiber. scheduled is the ring member that owns
	// the carrier; they differ only while a CallReturn or Continuation fiber
	// runs or during a hand-off.
	current   *Fiber
	scheduled *Fiber
	ringLen   int

	// callables tracks live CallReturn and Continuation fibers so that
	// carrier shutdown can stop the ones nobody finished.
	callables map[*Fiber]struct{}

	// reap holds terminated fibers whose stacks still need disposal.
	reap  lfq.SPSC[*Fiber]
	spill []*Fiber
}

type instruments struct {
	created  metrics.Counter
	finished metrics.Counter
	failed   metrics.Counter
	switches metrics.Counter
	reaped   metrics.Counter
	live     metrics.UpDownCounter
}

func newInstruments(p metrics.Provider) instruments {
	return instruments{
		created:  p.Counter(metrics.FibersCreated),
		finished: p.Counter(metrics.FibersFinished),
		failed:   p.Counter(metrics.FibersFailed),
		switches: p.Counter(metrics.Switches),
		reaped:   p.Counter(metrics.FibersReaped),
		live:     p.UpDownCounter(metrics.FibersLive),
	}
}

func newScheduler(c *Carrier, cfg *config) *Scheduler {
	s := &Scheduler{
		carrier:   c,
		cfg:       cfg,
		stacks:    cfg.Stacks,
		log:       cfg.Logger.With("carrier", c.name),
		m:         newInstruments(cfg.Metrics),
		callables: make(map[*Fiber]struct{}),
	}
	s.reap.Init(ceilPow2(cfg.ReapCapacity))

	a := &Fiber{
		id:     nextFiberID(),
		name:   "anchor:" + c.name,
		kind:   Cooperative,
		sched:  s,
		stacks: s.stacks,
		anchor: true,
	}
	a.token = s.stacks.Bootstrap(a.name)
	a.setState(StateRunning)
	a.next, a.prev, a.linked = a, a, true
	s.anchor, s.current, s.scheduled = a, a, a
	s.ringLen = 1
	return s
}

func ceilPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Carrier returns the carrier hosting s.
func (s *Scheduler) Carrier() *Carrier { return s.carrier }

// Current returns the running fiber.
func (s *Scheduler) Current() *Fiber { return s.current }

// Anchor returns the carrier's own fiber, always a ring member.
func (s *Scheduler) Anchor() *Fiber { return s.anchor }

// Len returns the number of ring members, the anchor included.
func (s *Scheduler) Len() int { return s.ringLen }

// IsFinished reports whether f has finished.
func (s *Scheduler) IsFinished(f *Fiber) bool { return f.IsFinished() }

// Spawn creates a cooperative fiber with the default stack size.
func (s *Scheduler) Spawn(name string, body Body) (*Fiber, error) {
	return s.Create(Cooperative, name, 0, body)
}

// Create allocates a fiber of the given kind. A stackSize of 0 selects the
// configured default. Cooperative fibers are linked into the ring right
// before the scheduled fiber, so they run after every fiber already linked.
// CallReturn and Continuation fibers are never linked; enter them with Call.
func (s *Scheduler) Create(kind Kind, name string, stackSize int, body Body) (*Fiber, error) {
	if s.carrier.closed {
		return nil, ErrCarrierClosed
	}
	f := &Fiber{id: nextFiberID(), name: name, kind: kind, body: body, sched: s, stacks: s.stacks}
	if f.name == "" {
		f.name = "fiber"
	}
	switch {
	case body == nil:
		return nil, illegalArgument("create", f, "nil body")
	case kind > Continuation:
		return nil, illegalArgument("create", f, "unknown kind")
	case stackSize < 0:
		return nil, illegalArgument("create", f, "negative stack size")
	case stackSize == 0:
		stackSize = s.cfg.StackSize
	}

	tok, err := s.stacks.Create(f.name, f.run, stackSize)
	if err != nil {
		return nil, err
	}
	f.token = tok
	f.setState(StateNew)
	if kind == Cooperative {
		s.linkBefore(f, s.scheduled)
	} else {
		s.callables[f] = struct{}{}
	}
	s.m.created.Add(1)
	s.m.live.Add(1)
	s.log.Debug("fiber created", "fiber", f.String(), "kind", kind.String(), "stack_size", stackSize)
	return f, nil
}

// Fork creates a fiber like Create and seeds its local store from the
// running fiber through each inheritable key's transform.
func (s *Scheduler) Fork(kind Kind, name string, stackSize int, body Body) (*Fiber, error) {
	f, err := s.Create(kind, name, stackSize, body)
	if err != nil {
		return nil, err
	}
	if parent := s.current.locals; parent != nil {
		f.locals = parent.fork()
	}
	return f, nil
}

// Yield suspends the running cooperative fiber and resumes its ring
// successor. It is a no-op when the ring holds only the running fiber.
func (s *Scheduler) Yield() error {
	cur := s.current
	if err := s.checkCooperative("yield", cur); err != nil {
		return err
	}
	next := cur.next
	if next == cur {
		return nil
	}
	s.scheduled, s.current = next, next
	s.transfer(cur, next, false)
	s.reapBacklog(cur)
	return nil
}

// YieldTo suspends the running cooperative fiber and resumes target.
// target is moved right before the yielding fiber, so control comes back to
// the yielder as soon as target yields. It is a no-op when target is the
// scheduled fiber.
func (s *Scheduler) YieldTo(target *Fiber) error {
	cur := s.current
	if err := s.checkCooperative("yield_to", cur); err != nil {
		return err
	}
	if err := s.checkRingTarget("yield_to", target); err != nil {
		return err
	}
	if target == s.scheduled {
		return nil
	}
	s.relocate(target)
	s.scheduled, s.current = target, target
	s.transfer(cur, target, false)
	s.reapBacklog(cur)
	return nil
}

// Stop makes target exit.
//
// When target is the running fiber, Stop raises the exit signal in the
// caller's own frame and does not return. A target that never ran is
// released without ever being entered. Otherwise control transfers into
// target, which unwinds with the exit signal and hands control back to the
// caller from its terminate dispatch. Stopping a finished fiber is a no-op.
func (s *Scheduler) Stop(target *Fiber) error {
	if target == nil {
		return illegalArgument("stop", nil, "nil fiber")
	}
	cur := s.current
	if target == cur {
		if cur.anchor {
			return illegalState("stop", cur, "the anchor cannot stop itself")
		}
		s.log.Debug("fiber stopping itself", "fiber", cur.String())
		cur.raiseExit()
	}
	if target.sched != s {
		return illegalArgument("stop", target, "fiber belongs to another scheduler")
	}
	if target.anchor {
		return illegalArgument("stop", target, "the anchor cannot be stopped")
	}
	if target.IsFinished() {
		return nil
	}
	s.checkExiting(cur, "stop")

	switch target.kind {
	case Cooperative:
		if err := s.checkCooperative("stop", cur); err != nil {
			return err
		}
		if !target.linked {
			return illegalArgument("stop", target, "fiber is not linked")
		}
		if !s.stacks.HasAlreadyRun(target.token) {
			s.exitNotRun(target)
			return nil
		}
		s.relocate(target)
		s.scheduled, s.current = target, target
	default:
		if target.caller != nil {
			return illegalState("stop", target, "fiber has an active caller")
		}
		if !s.stacks.HasAlreadyRun(target.token) {
			s.exitNotRun(target)
			return nil
		}
		target.caller = cur
		s.current = target
	}
	s.log.Debug("fiber stopped", "fiber", target.String(), "by", cur.String())
	s.transfer(cur, target, true)
	if !target.IsFinished() {
		s.fatal("stopped fiber " + target.String() + " handed control back without finishing")
	}
	return nil
}

// exitNotRun releases a fiber whose stack was never entered.
func (s *Scheduler) exitNotRun(f *Fiber) {
	if f.kind == Cooperative {
		s.unlink(f)
	} else {
		delete(s.callables, f)
	}
	f.setState(StateFinished)
	s.stacks.ExitHasNotRun(f.token)
	s.m.finished.Add(1)
	s.enqueueReap(f)
	s.log.Debug("fiber released before running", "fiber", f.String())
}

// Call suspends the running fiber and enters target, a CallReturn or
// Continuation fiber. Control comes back when target returns or finishes.
func (s *Scheduler) Call(target *Fiber) error {
	if target == nil {
		return illegalArgument("call", nil, "nil fiber")
	}
	if target.kind == Cooperative {
		return illegalArgument("call", target, "cooperative fibers are entered with yield")
	}
	if target.sched != s {
		return illegalArgument("call", target, "fiber belongs to another scheduler")
	}
	if target.caller != nil {
		return illegalState("call", target, "fiber already has an active caller")
	}
	if target.token == 0 || target.IsFinished() {
		return illegalState("call", target, "fiber is finished")
	}
	cur := s.current
	if target == cur {
		return illegalState("call", target, "fiber cannot call itself")
	}
	s.checkExiting(cur, "call")
	target.caller = cur
	s.current = target
	s.transfer(cur, target, false)
	return nil
}

// Return suspends the running CallReturn or Continuation fiber and resumes
// its caller.
func (s *Scheduler) Return() error {
	return s.returnFrom(s.current)
}

func (s *Scheduler) returnFrom(from *Fiber) error {
	if from != s.current {
		return illegalState("return", from, "fiber is not running")
	}
	if from.kind == Cooperative {
		return illegalState("return", from, "cooperative fibers do not return")
	}
	caller := from.caller
	if caller == nil {
		return illegalState("return", from, "fiber has no active caller")
	}
	s.checkExiting(from, "return")
	from.caller = nil
	s.current = caller
	s.transfer(from, caller, false)
	return nil
}

// ExitRing stops ring members one after another until only the anchor is
// left. It must run on the anchor.
func (s *Scheduler) ExitRing() error {
	if s.current != s.anchor {
		return illegalState("exit_ring", s.current, "must run on the anchor")
	}
	for s.anchor.next != s.anchor {
		if err := s.Stop(s.anchor.next); err != nil {
			return err
		}
	}
	return nil
}

// transfer hands the carrier from from to to. It returns when from is
// resumed again and raises the exit signal if from was resumed by Stop.
func (s *Scheduler) transfer(from, to *Fiber, exit bool) {
	s.m.switches.Add(1)
	from.setState(StateSuspended)
	to.setState(StateRunning)
	var again bool
	if exit {
		again = s.stacks.SwitchToAndExit(from.token, to.token)
	} else {
		again = s.stacks.SwitchTo(from.token, to.token)
	}
	from.resumed(again)
}

func (s *Scheduler) checkCooperative(op string, cur *Fiber) error {
	if cur.kind != Cooperative {
		return illegalState(op, cur, "running fiber is "+cur.kind.String())
	}
	if cur != s.scheduled {
		return illegalState(op, cur, "running fiber is not the scheduled fiber")
	}
	s.checkExiting(cur, op)
	return nil
}

func (s *Scheduler) checkRingTarget(op string, target *Fiber) error {
	switch {
	case target == nil:
		return illegalArgument(op, nil, "nil fiber")
	case target.kind != Cooperative:
		return illegalArgument(op, target, "fiber is "+target.kind.String())
	case target.sched != s:
		return illegalArgument(op, target, "fiber belongs to another scheduler")
	case target.IsFinished() || target.token == 0:
		return illegalArgument(op, target, "fiber is finished")
	case !target.linked:
		return illegalArgument(op, target, "fiber is not linked")
	}
	return nil
}

// checkExiting aborts when a fiber that observed the exit signal tries to
// suspend instead of unwinding to its terminate dispatch.
func (s *Scheduler) checkExiting(f *Fiber, op string) {
	if f.exiting {
		s.fatal("fiber " + f.String() + " swallowed the exit signal and called " + op)
	}
}

// fatal logs a diagnostic dump and aborts with an InvariantError.
func (s *Scheduler) fatal(reason string) {
	err := &InvariantError{Carrier: s.carrier.name, Reason: reason, Dump: s.dump()}
	s.log.Error("scheduler invariant violated", "reason", reason, "dump", err.Dump)
	panic(err)
}
