// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/ygrebnov/errorc"
)

const Namespace = "fiber"

var (
	// ErrIllegalState reports an operation invoked from the wrong context,
	// such as Yield inside a CallReturn fiber or Call on a claimed fiber.
	ErrIllegalState = errors.New(Namespace + ": illegal state")
	// ErrIllegalArgument reports an operation applied to an unsuitable fiber.
	ErrIllegalArgument = errors.New(Namespace + ": illegal argument")
	ErrInvalidConfig   = errors.New(Namespace + ": invalid configuration")
	ErrCarrierClosed   = errors.New(Namespace + ": carrier closed")
)

// illegalState wraps ErrIllegalState with the operation and fiber involved.
func illegalState(op string, f *Fiber, reason string) error {
	return errorc.With(ErrIllegalState,
		errorc.String("op", op),
		errorc.String("fiber", f.String()),
		errorc.String("reason", reason),
	)
}

func illegalArgument(op string, f *Fiber, reason string) error {
	return errorc.With(ErrIllegalArgument,
		errorc.String("op", op),
		errorc.String("fiber", f.String()),
		errorc.String("reason", reason),
	)
}

// PanicError carries a value recovered from a panicking fiber body together
// with the stack trace captured at the point of recovery.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap exposes the panic value when it is itself an error, so a wrapped
// exit signal is still found by IsExit.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// InvariantError is raised (with panic) when scheduling state is structurally
// corrupt: a broken ring, a missing terminate dispatch, a double dispose.
// It is never returned as an ordinary error.
type InvariantError struct {
	Carrier string
	Reason  string
	Dump    string
}

func (e *InvariantError) Error() string {
	if e.Dump == "" {
		return fmt.Sprintf("%s: invariant violated on carrier %q: %s", Namespace, e.Carrier, e.Reason)
	}
	return fmt.Sprintf("%s: invariant violated on carrier %q: %s\n%s", Namespace, e.Carrier, e.Reason, e.Dump)
}
