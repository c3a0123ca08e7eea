// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package gostack provides goroutine-backed native stacks for fibers.
//
// Every stack other than a bootstrap stack is a goroutine parked on a
// one-slot wake channel. Switching from one stack to another hands the
// baton: the target is woken, the source parks. At most one stack per
// carrier is runnable at any instant.
package gostack

import (
	"errors"
	"fmt"
	"sync"

	"code.hybscloud.com/atomix"
)

// Stack lifecycle words.
const (
	stateNew uint32 = iota
	stateRunning
	stateTerminated
	stateExited
)

// DefaultStackSize is the advisory size recorded for stacks created with size 0.
const DefaultStackSize = 256 << 10

var (
	ErrUnknownToken  = errors.New("gostack: unknown token")
	ErrNotDisposable = errors.New("gostack: stack is not disposable")
	ErrBadStackSize  = errors.New("gostack: negative stack size")
)

// resume is the message delivered to a parked stack.
type resume struct {
	exit bool
	kill bool
}

type stack struct {
	name      string
	size      int
	entry     func(exit bool)
	wake      chan resume
	done      chan struct{}
	state     atomix.Uint32
	bootstrap bool
}

// exited reports whether the goroutine behind st has returned.
// The closed done channel orders everything run did before exiting.
func (st *stack) exited() bool {
	if st.bootstrap {
		return false
	}
	select {
	case <-st.done:
		return true
	default:
		return false
	}
}

// Stacks is a registry of goroutine-backed stacks.
// Tokens are unique for the lifetime of the registry; 0 is never issued.
// Methods are safe for concurrent use by different carriers. Resolving a
// token takes no lock once the token has been registered.
type Stacks struct {
	stacks sync.Map // uint64 -> *stack
	count  atomix.Int64
	serial atomix.Uint64
}

// New creates an empty stack registry.
func New() *Stacks {
	return &Stacks{}
}

var (
	sharedOnce sync.Once
	shared     *Stacks
)

// Shared returns the process-wide registry used when no registry is configured.
func Shared() *Stacks {
	sharedOnce.Do(func() { shared = New() })
	return shared
}

func (s *Stacks) register(st *stack) uint64 {
	t := s.serial.Add(1)
	s.stacks.Store(t, st)
	s.count.Add(1)
	return t
}

func (s *Stacks) find(t uint64) *stack {
	v, ok := s.stacks.Load(t)
	if !ok {
		return nil
	}
	return v.(*stack)
}

func (s *Stacks) lookup(t uint64) *stack {
	st := s.find(t)
	if st == nil {
		panic(fmt.Sprintf("gostack: switch on unknown token %d", t))
	}
	return st
}

func (s *Stacks) forget(t uint64, st *stack) bool {
	if !s.stacks.CompareAndDelete(t, st) {
		return false
	}
	s.count.Add(-1)
	return true
}

// Create allocates a parked stack that will call entry on its first resume.
// entry receives true when the first resume already carries an exit request.
func (s *Stacks) Create(name string, entry func(exit bool), size int) (uint64, error) {
	if size < 0 {
		return 0, ErrBadStackSize
	}
	if size == 0 {
		size = DefaultStackSize
	}
	st := &stack{name: name, size: size, entry: entry, wake: make(chan resume, 1), done: make(chan struct{})}
	t := s.register(st)
	go s.run(st)
	return t, nil
}

func (s *Stacks) run(st *stack) {
	defer close(st.done)
	r := <-st.wake
	if r.kill {
		st.state.Store(stateExited)
		return
	}
	st.state.Store(stateRunning)
	st.entry(r.exit)
	if st.state.Load() != stateTerminated {
		panic(fmt.Sprintf("gostack: stack %q returned without terminate dispatch", st.name))
	}
	st.state.Store(stateExited)
}

// Bootstrap registers the calling goroutine's own stack.
// A bootstrap stack is already running and is never disposable.
func (s *Stacks) Bootstrap(name string) uint64 {
	st := &stack{name: name, wake: make(chan resume, 1), bootstrap: true}
	st.state.Store(stateRunning)
	return s.register(st)
}

// SwitchTo wakes to and parks from until it is resumed again.
// It reports whether the resume carries an exit request for from.
func (s *Stacks) SwitchTo(from, to uint64) bool {
	return s.transfer(from, to, resume{})
}

// SwitchToAndExit wakes to with an exit request and parks from.
func (s *Stacks) SwitchToAndExit(from, to uint64) bool {
	return s.transfer(from, to, resume{exit: true})
}

func (s *Stacks) transfer(from, to uint64, r resume) bool {
	f, t := s.lookup(from), s.lookup(to)
	t.wake <- r
	got := <-f.wake
	return got.exit
}

// SwitchToAndTerminate marks from terminated and wakes to. It returns so the
// caller can unwind; from must not touch shared state afterwards.
func (s *Stacks) SwitchToAndTerminate(from, to uint64) {
	f, t := s.lookup(from), s.lookup(to)
	if !f.state.CompareAndSwap(stateRunning, stateTerminated) {
		panic(fmt.Sprintf("gostack: double terminate of stack %q", f.name))
	}
	t.wake <- resume{}
}

// HasAlreadyRun reports whether the stack's entry has been entered.
func (s *Stacks) HasAlreadyRun(t uint64) bool {
	return s.lookup(t).state.Load() != stateNew
}

// ExitHasNotRun releases a stack whose entry never ran.
func (s *Stacks) ExitHasNotRun(t uint64) {
	st := s.lookup(t)
	if st.state.Load() != stateNew {
		panic(fmt.Sprintf("gostack: stack %q has already run", st.name))
	}
	st.wake <- resume{kill: true}
}

// IsDisposable reports whether the goroutine behind t has exited.
func (s *Stacks) IsDisposable(t uint64) bool {
	st := s.find(t)
	return st != nil && st.exited()
}

// Dispose forgets a disposable stack.
func (s *Stacks) Dispose(t uint64) error {
	st := s.find(t)
	if st == nil {
		return ErrUnknownToken
	}
	if !st.exited() {
		return ErrNotDisposable
	}
	if !s.forget(t, st) {
		return ErrUnknownToken
	}
	return nil
}

// Release forgets a bootstrap stack once its carrier shuts down.
func (s *Stacks) Release(t uint64) {
	if st := s.find(t); st != nil && st.bootstrap {
		s.forget(t, st)
	}
}

// Len returns the number of registered stacks.
func (s *Stacks) Len() int {
	return int(s.count.Load())
}
