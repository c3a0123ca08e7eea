// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/fiber"
)

// newCarrier binds a carrier to the test goroutine and closes it when the
// test ends.
func newCarrier(tb testing.TB, opts ...fiber.Option) (*fiber.Carrier, *fiber.Scheduler) {
	tb.Helper()
	c, err := fiber.NewCarrier(tb.Name(), opts...)
	require.NoError(tb, err)
	tb.Cleanup(func() {
		if err := c.Close(); err != nil {
			tb.Errorf("close carrier: %v", err)
		}
	})
	return c, c.Scheduler()
}

// spawn creates a cooperative fiber or fails the test.
func spawn(tb testing.TB, s *fiber.Scheduler, name string, body fiber.Body) *fiber.Fiber {
	tb.Helper()
	f, err := s.Spawn(name, body)
	require.NoError(tb, err)
	return f
}

// yieldLoop yields forever; only Stop ends it.
func yieldLoop(f *fiber.Fiber) error {
	for {
		if err := f.Yield(); err != nil {
			return err
		}
	}
}

// recorder appends to a shared log. Fibers of one carrier never run at the
// same time, so no locking is needed.
type recorder struct{ log []string }

func (r *recorder) add(s string) { r.log = append(r.log, s) }
