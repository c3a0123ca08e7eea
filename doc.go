// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package fiber provides cooperative user-space fibers scheduled on carriers.
//
// A [Carrier] hosts exactly one [Scheduler]. The scheduler keeps a circular
// ring of cooperative fibers and a current-fiber pointer. Switches happen
// only at explicit calls; every operation updates bookkeeping first and then
// delegates at most one native stack transfer to a [Stacks] implementation.
//
// # Architecture
//
//   - Ring: [Scheduler.Yield], [Scheduler.YieldTo] and [Scheduler.Stop] rotate control among [Cooperative] fibers. The anchor fiber is the carrier's own stack and never leaves the ring.
//   - Call/return: [CallReturn] fibers are entered with [Scheduler.Call] and leave with [Scheduler.Return]. [Generator] wraps the pattern.
//   - Continuations: [Continuation] fibers report [Suspended] or [Finished] through [Scheduler.Continue] and carry [code.hybscloud.com/kont] effects via [Perform], [Handle] and [RunExpr].
//   - Exit: [Scheduler.Stop] raises an [ExitSignal] that unwinds the target's body. [IsExit] recognises it through wrapped and joined errors.
//   - Reaping: terminated fibers queue on a per-carrier [code.hybscloud.com/lfq] SPSC queue; [Scheduler.Reap] disposes their stacks.
//   - Locals: [Key] gives each fiber its own value. Keys are held weakly and stale entries are expunged lazily.
//
// # Stacks
//
// The default [Stacks] is goroutine-backed: each fiber stack is a parked
// goroutine and a transfer passes the baton, so exactly one stack per carrier
// runs at a time. A fiber body must therefore not block on another fiber of
// the same carrier by any means other than the scheduler's own operations.
//
// # Example
//
//	err := fiber.Run("main", func(c *fiber.Carrier) error {
//		s := c.Scheduler()
//		for _, name := range []string{"A", "B", "C"} {
//			if _, err := s.Spawn(name, func(f *fiber.Fiber) error {
//				fmt.Println(f.Name())
//				return f.Yield()
//			}); err != nil {
//				return err
//			}
//		}
//		return nil
//	})
package fiber
