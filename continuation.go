// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"strconv"

	"code.hybscloud.com/kont"
)

// Outcome reports how control came back from a continuation.
type Outcome uint8

const (
	// Suspended: the continuation returned to its caller and can be
	// continued again.
	Suspended Outcome = iota
	// Finished: the continuation body completed. It can never be entered
	// again.
	Finished
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Suspended:
		return "suspended"
	case Finished:
		return "finished"
	}
	return "outcome(" + strconv.Itoa(int(o)) + ")"
}

// Continue enters the Continuation fiber f from the running fiber and
// reports whether f suspended or finished. A continuation that already has
// a caller is rejected with ErrIllegalState.
func (s *Scheduler) Continue(f *Fiber) (Outcome, error) {
	if f != nil && f.kind != Continuation {
		return Suspended, illegalArgument("continue", f, "fiber is "+f.kind.String())
	}
	if err := s.Call(f); err != nil {
		return Suspended, err
	}
	if f.IsFinished() {
		return Finished, nil
	}
	return Suspended, nil
}

// Perform suspends the Continuation fiber f back to its caller with op and
// returns the value the caller resumes it with. f must be running.
func Perform(f *Fiber, op kont.Operation) (kont.Resumed, error) {
	if f.kind != Continuation {
		return nil, illegalState("perform", f, "fiber is "+f.kind.String())
	}
	if err := f.checkCurrent("perform"); err != nil {
		return nil, err
	}
	f.pending, f.hasPending = op, true
	if err := f.Return(); err != nil {
		f.pending, f.hasPending = nil, false
		return nil, err
	}
	v := f.answer
	f.answer = nil
	return v, nil
}

// Resume enters the Continuation fiber f, answering its pending Perform with
// v. v is ignored on the first entry. It returns the next operation f
// performs, or done once f has finished. op is nil when f suspended with a
// bare Return.
func (s *Scheduler) Resume(f *Fiber, v kont.Resumed) (op kont.Operation, done bool, err error) {
	if f == nil {
		return nil, false, illegalArgument("resume", nil, "nil fiber")
	}
	pending, had := f.pending, f.hasPending
	f.answer, f.pending, f.hasPending = v, nil, false
	out, err := s.Continue(f)
	if err != nil {
		f.answer, f.pending, f.hasPending = nil, pending, had
		return nil, false, err
	}
	if out == Finished {
		return nil, true, nil
	}
	if !f.hasPending {
		return nil, false, nil
	}
	return f.pending, false, nil
}

// Dispatcher interprets effect operations. It has the shape of a kont
// handler: (value, true) resumes the computation, (result, false)
// short-circuits it.
type Dispatcher interface {
	Dispatch(op kont.Operation) (kont.Resumed, bool)
}

// DispatchFunc adapts a function to Dispatcher.
type DispatchFunc func(op kont.Operation) (kont.Resumed, bool)

// Dispatch calls fn(op).
func (fn DispatchFunc) Dispatch(op kont.Operation) (kont.Resumed, bool) { return fn(op) }

// Handle drives the Continuation fiber f to completion, answering every
// operation it performs with h. When h short-circuits, f is stopped and the
// short-circuit value is returned. On completion Handle returns f's result,
// or the body failure.
func Handle(s *Scheduler, f *Fiber, h Dispatcher) (kont.Resumed, error) {
	var v kont.Resumed
	for {
		op, done, err := s.Resume(f, v)
		if err != nil {
			return nil, err
		}
		if done {
			if err := f.Err(); err != nil {
				return nil, err
			}
			return f.result, nil
		}
		if op == nil {
			v = nil
			continue
		}
		r, ok := h.Dispatch(op)
		if !ok {
			if err := s.Stop(f); err != nil {
				return nil, err
			}
			return r, nil
		}
		v = r
	}
}

// RunExpr evaluates m inside the running Continuation fiber f. Every effect
// m suspends on is performed through f, so the fiber's caller acts as the
// handler.
func RunExpr[R any](f *Fiber, m kont.Expr[R]) (R, error) {
	r, susp := kont.StepExpr(m)
	for susp != nil {
		v, err := Perform(f, susp.Op())
		if err != nil {
			susp.Discard()
			var zero R
			return zero, err
		}
		r, susp = susp.Resume(v)
	}
	return r, nil
}

// RunEff is RunExpr for a Cont-world computation.
func RunEff[R any](f *Fiber, m kont.Eff[R]) (R, error) {
	return RunExpr(f, kont.Reify(m))
}

// NewEffect creates a Continuation fiber evaluating m. Drive it with Handle
// or Resume; Result holds the value m completed with.
func NewEffect[R any](s *Scheduler, name string, m kont.Expr[R]) (*Fiber, error) {
	return s.Create(Continuation, name, 0, func(f *Fiber) error {
		r, err := RunExpr(f, m)
		if err != nil {
			return err
		}
		f.result = r
		return nil
	})
}

// Result returns the value a finished effect fiber completed with.
func (f *Fiber) Result() kont.Resumed { return f.result }
