// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "code.hybscloud.com/fiber/internal/gostack"

// Token is an opaque native stack handle. Zero means uncreated or disposed.
type Token = uint64

// Stacks is the stack-switch boundary. A Scheduler performs all of its
// bookkeeping first and then delegates exactly one transfer to Stacks.
//
// SwitchTo and SwitchToAndExit park from until some later transfer wakes it;
// the returned flag tells from whether it was resumed with an exit request.
// SwitchToAndTerminate hands control to to and returns immediately so that the
// terminated side can unwind; from is disposable once IsDisposable reports so.
type Stacks interface {
	Create(name string, entry func(exit bool), stackSize int) (Token, error)
	Bootstrap(name string) Token
	SwitchTo(from, to Token) (exit bool)
	SwitchToAndExit(from, to Token) (exit bool)
	SwitchToAndTerminate(from, to Token)
	HasAlreadyRun(t Token) bool
	ExitHasNotRun(t Token)
	IsDisposable(t Token) bool
	Dispose(t Token) error
	Release(t Token)
}

var _ Stacks = (*gostack.Stacks)(nil)

func defaultStacks() Stacks { return gostack.Shared() }
