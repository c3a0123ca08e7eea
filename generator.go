// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

// Generator produces values from a CallReturn fiber. Each Next calls into
// the fiber, which runs until it yields a value or finishes.
type Generator[T any] struct {
	s     *Scheduler
	f     *Fiber
	value T
	ready bool
}

// NewGenerator creates a generator whose body hands values out through
// yield. yield suspends the generator fiber until the next call to Next.
func NewGenerator[T any](s *Scheduler, name string, body func(yield func(T) error) error) (*Generator[T], error) {
	g := &Generator[T]{s: s}
	f, err := s.Create(CallReturn, name, 0, func(f *Fiber) error {
		return body(func(v T) error {
			g.value, g.ready = v, true
			return f.Return()
		})
	})
	if err != nil {
		return nil, err
	}
	g.f = f
	return g, nil
}

// Fiber returns the generator's fiber.
func (g *Generator[T]) Fiber() *Fiber { return g.f }

// Next resumes the generator and returns the next value. ok is false once
// the body has finished; err is then the body failure, if any.
func (g *Generator[T]) Next() (v T, ok bool, err error) {
	if g.f.IsFinished() {
		return v, false, g.f.Err()
	}
	if err := g.s.Call(g.f); err != nil {
		return v, false, err
	}
	if !g.ready {
		return v, false, g.f.Err()
	}
	v, g.value, g.ready = g.value, *new(T), false
	return v, true, nil
}

// Stop stops the generator fiber if it has not finished.
func (g *Generator[T]) Stop() error { return g.s.Stop(g.f) }
