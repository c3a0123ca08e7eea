// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"code.hybscloud.com/iox"
)

// run is the wrapper every fiber body executes in. It is the entry point
// handed to Stacks.Create and runs on the fiber's own stack.
//
// The deferred dispatch is the only way out: it hands the carrier to the
// next fiber and marks this stack terminated. Returning from run without it
// is caught by the stack implementation as a fatal violation.
func (f *Fiber) run(exit bool) {
	if s := f.sched; s == nil || s.current != f {
		name := ""
		if s != nil {
			name = s.carrier.name
		}
		panic(&InvariantError{Carrier: name, Reason: "fiber " + f.String() + " started outside its own scheduler"})
	}
	defer func() {
		// f.sched is read here: the fiber may have migrated while suspended.
		f.sched.terminate(f)
	}()
	f.finish(f.invoke(exit))
}

// invoke runs the body and converts panics into failures. Exit signals
// surface as an error for which IsExit reports true. Invariant violations
// are never converted.
func (f *Fiber) invoke(exit bool) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if ie, ok := r.(*InvariantError); ok {
			panic(ie)
		}
		if e, ok := r.(error); ok && IsExit(e) {
			err = e
			return
		}
		err = newPanicError(r)
	}()
	if exit {
		f.raiseExit()
	}
	return f.body(f)
}

// finish records the body outcome. Ordinary failures are reported and then
// folded into the normal terminate dispatch.
func (f *Fiber) finish(failure error) {
	s := f.sched
	s.m.finished.Add(1)
	if failure == nil || IsExit(failure) {
		return
	}
	f.err = failure
	s.m.failed.Add(1)
	s.log.Error("fiber body failed", "fiber", f.String(), "kind", f.kind.String(), "err", failure)
}

// terminate picks the next current fiber for f's kind and transfers to it
// while marking f's stack terminated.
func (s *Scheduler) terminate(f *Fiber) {
	if s.current != f {
		s.fatal("terminate dispatched for " + f.String() + " which is not running")
	}
	f.setState(StateFinished)
	var next *Fiber
	switch f.kind {
	case Cooperative:
		next = s.terminateCooperative(f)
	case CallReturn:
		next = s.terminateCallReturn(f)
	case Continuation:
		next = s.terminateContinuation(f)
	}
	s.enqueueReap(f)
	s.m.switches.Add(1)
	next.setState(StateRunning)
	s.stacks.SwitchToAndTerminate(f.token, next.token)
}

func (s *Scheduler) terminateCooperative(f *Fiber) *Fiber {
	if f != s.scheduled {
		s.fatal("finishing cooperative fiber " + f.String() + " is not scheduled")
	}
	next := f.next
	s.scheduled, s.current = next, next
	s.unlink(f)
	return next
}

func (s *Scheduler) terminateCallReturn(f *Fiber) *Fiber {
	caller := f.caller
	if caller == nil {
		s.fatal(f.kind.String() + " fiber " + f.String() + " finished without a caller")
	}
	f.caller = nil
	delete(s.callables, f)
	s.current = caller
	return caller
}

// terminateContinuation returns to the caller like a CallReturn fiber; the
// caller observes completion through the fiber's finished state and result.
func (s *Scheduler) terminateContinuation(f *Fiber) *Fiber {
	f.pending, f.hasPending, f.answer = nil, false, nil
	return s.terminateCallReturn(f)
}

// enqueueReap queues a terminated fiber for disposal. It runs on the carrier
// before the terminating transfer, so producer and consumer never overlap.
func (s *Scheduler) enqueueReap(f *Fiber) {
	if err := s.reap.Enqueue(&f); err != nil {
		s.spill = append(s.spill, f)
	}
}

// ReapNext pops the next terminated fiber awaiting disposal, nil if none.
func (s *Scheduler) ReapNext() *Fiber {
	if f, err := s.reap.Dequeue(); err == nil {
		return f
	}
	if len(s.spill) == 0 {
		return nil
	}
	f := s.spill[0]
	s.spill[0] = nil
	s.spill = s.spill[1:]
	return f
}

// Reap disposes every terminated fiber, waiting with backoff for stacks that
// are still unwinding. It returns the number of fibers disposed.
//
// Drain and Close reap everything. Between them the anchor reaps on its own
// once the backlog outgrows the reap queue (see WithReapCapacity), so a
// long-running carrier keeps at most about one queue of terminated fibers
// and their stacks. Callers that want stacks released sooner call Reap from
// the anchor.
func (s *Scheduler) Reap() int {
	n := 0
	for f := s.ReapNext(); f != nil; f = s.ReapNext() {
		s.dispose(f)
		n++
	}
	return n
}

// reapBacklog runs when cur is resumed after a yield. Only the anchor reaps,
// and only once terminated fibers have spilled past the reap queue.
func (s *Scheduler) reapBacklog(cur *Fiber) {
	if cur.anchor && len(s.spill) > 0 {
		s.Reap()
	}
}

func (s *Scheduler) dispose(f *Fiber) {
	if f.token == 0 {
		s.fatal("double dispose of " + f.String())
	}
	var bo iox.Backoff
	for !s.stacks.IsDisposable(f.token) {
		bo.Wait()
	}
	if err := s.stacks.Dispose(f.token); err != nil {
		s.fatal("dispose " + f.String() + ": " + err.Error())
	}
	f.token = 0
	f.locals = nil
	f.setState(StateDisposed)
	s.m.reaped.Add(1)
	s.m.live.Add(-1)
}
