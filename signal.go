// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "fmt"

// ExitSignal is the fiber-exit signal. Stop raises it with panic, either
// directly in the stopping fiber (self-stop) or in the target when the target
// resumes. It must reach the fiber's body wrapper: code that recovers panics
// broadly has to re-raise any value for which IsExit reports true.
type ExitSignal struct {
	FiberID uint64
	Fiber   string
}

func (e *ExitSignal) Error() string {
	return fmt.Sprintf("%s: exit signal for %s#%d", Namespace, e.Fiber, e.FiberID)
}

// IsExit reports whether err is, wraps, or aggregates an ExitSignal.
// Both single-cause chains (Unwrap() error) and aggregated failures
// (Unwrap() []error, as built by errors.Join) are searched.
func IsExit(err error) bool {
	return ExitCause(err) != nil
}

// ExitCause returns the first ExitSignal found in err's failure tree.
func ExitCause(err error) *ExitSignal {
	switch e := err.(type) {
	case nil:
		return nil
	case *ExitSignal:
		return e
	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			if s := ExitCause(sub); s != nil {
				return s
			}
		}
		return nil
	case interface{ Unwrap() error }:
		return ExitCause(e.Unwrap())
	}
	return nil
}

// Rethrow re-raises err when it carries the exit signal and returns it
// unchanged otherwise. Use it in recover blocks inside fiber bodies:
//
//	defer func() {
//		if r := recover(); r != nil {
//			if err, ok := r.(error); ok {
//				fiber.Rethrow(err)
//			}
//			...
//		}
//	}()
func Rethrow(err error) error {
	if IsExit(err) {
		panic(err)
	}
	return err
}
