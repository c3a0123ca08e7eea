// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"testing"
	"testing/quick"

	"code.hybscloud.com/fiber"
)

// TestPropertyRingIntegrity proves that for any sequence of spawn, yield,
// yieldTo and stop operations issued from the anchor, the ring stays a
// well-formed cycle holding exactly the anchor and the live fibers, and
// control always comes back to the anchor.
func TestPropertyRingIntegrity(t *testing.T) {
	skipRace(t)

	property := func(ops []uint8) bool {
		c, err := fiber.NewCarrier("property", fiber.WithDebug())
		if err != nil {
			return false
		}
		defer c.Close()
		s := c.Scheduler()

		live := 0
		for i, op := range ops {
			ring := s.Ring()
			switch op % 4 {
			case 0:
				if _, err := s.Spawn("p", yieldLoop); err != nil {
					return false
				}
				live++
			case 1:
				if err := s.Yield(); err != nil {
					return false
				}
			case 2:
				if len(ring) > 1 {
					if err := s.YieldTo(ring[1+i%(len(ring)-1)]); err != nil {
						return false
					}
				}
			case 3:
				if len(ring) > 1 {
					if err := s.Stop(ring[1+i%(len(ring)-1)]); err != nil {
						return false
					}
					live--
				}
			}
			if s.Current() != s.Anchor() || s.ValidateRing() != nil || s.Len() != live+1 {
				return false
			}
		}
		return true
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}

// TestPropertyYieldVisitsEachOnce proves that one anchor yield runs every
// ring member exactly once, in ring order.
func TestPropertyYieldVisitsEachOnce(t *testing.T) {
	property := func(n uint8) bool {
		count := int(n%16) + 1
		c, err := fiber.NewCarrier("visits")
		if err != nil {
			return false
		}
		defer c.Close()
		s := c.Scheduler()

		var order []int
		for i := range count {
			if _, err := s.Spawn("v", func(f *fiber.Fiber) error {
				for {
					order = append(order, i)
					if err := f.Yield(); err != nil {
						return err
					}
				}
			}); err != nil {
				return false
			}
		}
		if err := s.Yield(); err != nil {
			return false
		}
		if len(order) != count {
			return false
		}
		for i, v := range order {
			if v != i {
				return false
			}
		}
		return true
	}

	if err := quick.Check(property, nil); err != nil {
		t.Error(err)
	}
}
