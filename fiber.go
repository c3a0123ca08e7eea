// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"strconv"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/kont"
)

// Kind discriminates how a fiber is entered and left.
type Kind uint8

const (
	// Cooperative fibers live in the carrier's ring and are switched with
	// Yield, YieldTo and Stop.
	Cooperative Kind = iota
	// CallReturn fibers are generator-like: entered with Call, left with Return.
	CallReturn
	// Continuation fibers are single-shot CallReturn fibers whose completion
	// is reported back to the caller.
	Continuation
)

// String returns the kind name used in logs and dumps.
func (k Kind) String() string {
	switch k {
	case Cooperative:
		return "cooperative"
	case CallReturn:
		return "call-return"
	case Continuation:
		return "continuation"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// State is a fiber lifecycle state.
type State uint32

const (
	// StateNew is a created fiber whose body has not been entered.
	StateNew State = iota
	// StateRunning is the fiber currently owning its carrier.
	StateRunning
	// StateSuspended is a fiber parked in a switch, waiting to be resumed.
	StateSuspended
	// StateFinished is a fiber whose body has returned or unwound.
	StateFinished
	// StateDisposed is a finished fiber whose stack has been released.
	StateDisposed
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateSuspended:
		return "suspended"
	case StateFinished:
		return "finished"
	case StateDisposed:
		return "disposed"
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Body is the code a fiber runs. Returning an error that carries the exit
// signal is a normal exit; any other error is reported as a body failure.
type Body func(f *Fiber) error

// Fiber is a fiber handle.
//
// Apart from ID, Name, Kind, State and IsFinished, a Fiber's methods must be
// called from code running on the fiber's carrier.
type Fiber struct {
	id    uint64
	name  string
	kind  Kind
	state atomix.Uint32
	body  Body
	err   error

	sched  *Scheduler
	stacks Stacks
	token  Token
	locals *localTable
	result kont.Resumed

	// ring links, Cooperative only
	next, prev *Fiber
	linked     bool

	// active caller, CallReturn and Continuation only
	caller *Fiber

	// exiting is set once the exit signal has been raised in this fiber.
	exiting bool
	anchor  bool

	// effect slots used by Perform and Resume
	pending    kont.Operation
	hasPending bool
	answer     kont.Resumed
}

// ID returns the fiber's process-wide unique identifier.
func (f *Fiber) ID() uint64 { return f.id }

// Name returns the name given at creation.
func (f *Fiber) Name() string { return f.name }

// Kind returns the fiber's kind. It never changes.
func (f *Fiber) Kind() Kind { return f.kind }

// State returns the lifecycle state. It may be read from any goroutine.
func (f *Fiber) State() State { return State(f.state.Load()) }

func (f *Fiber) setState(s State) { f.state.Store(uint32(s)) }

// IsFinished reports whether the fiber's body has completed.
func (f *Fiber) IsFinished() bool { return f.State() >= StateFinished }

// Err returns the body failure of a finished fiber, nil on a clean or
// signalled exit.
func (f *Fiber) Err() error { return f.err }

// Token returns the native stack token, 0 once disposed.
func (f *Fiber) Token() Token { return f.token }

// Scheduler returns the scheduler that currently owns the fiber.
// It is nil while the fiber is detached for migration.
func (f *Fiber) Scheduler() *Scheduler { return f.sched }

// Carrier returns the carrier that currently owns the fiber.
func (f *Fiber) Carrier() *Carrier {
	if f.sched == nil {
		return nil
	}
	return f.sched.carrier
}

// Caller returns the fiber that called f, nil when f is not being called.
func (f *Fiber) Caller() *Fiber { return f.caller }

// IsAnchor reports whether f is its carrier's anchor fiber.
func (f *Fiber) IsAnchor() bool { return f.anchor }

// String returns "name#id", or "<nil>" for a nil fiber.
func (f *Fiber) String() string {
	if f == nil {
		return "<nil>"
	}
	return f.name + "#" + strconv.FormatUint(f.id, 10)
}

// Yield is shorthand for f.Scheduler().Yield() and must be called by f.
func (f *Fiber) Yield() error {
	if err := f.checkCurrent("yield"); err != nil {
		return err
	}
	return f.sched.Yield()
}

// Return suspends f and resumes its caller. It fails unless f is the
// running fiber.
func (f *Fiber) Return() error {
	if f.sched == nil {
		return illegalState("return", f, "fiber is detached")
	}
	return f.sched.returnFrom(f)
}

// Stop stops f; see Scheduler.Stop.
func (f *Fiber) Stop() error {
	if f.sched == nil {
		return illegalState("stop", f, "fiber is detached")
	}
	return f.sched.Stop(f)
}

func (f *Fiber) checkCurrent(op string) error {
	if f.sched == nil {
		return illegalState(op, f, "fiber is detached")
	}
	if f.sched.current != f {
		return illegalState(op, f, "fiber is not running")
	}
	return nil
}

// raiseExit starts unwinding the running fiber.
func (f *Fiber) raiseExit() {
	f.exiting = true
	panic(&ExitSignal{FiberID: f.id, Fiber: f.name})
}

// resumed runs in f right after a transfer brought control back to it.
func (f *Fiber) resumed(exit bool) {
	if exit {
		f.raiseExit()
	}
}
