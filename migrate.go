// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

// Detach releases a suspended fiber from s so that another carrier can
// Adopt it. Cooperative fibers are unlinked from the ring first. Detach must
// run on s's carrier and must not overlap any other operation on s; the ring
// assumes single-carrier exclusivity and ValidateRing is the tool to catch
// violations.
func (s *Scheduler) Detach(f *Fiber) error {
	switch {
	case f == nil:
		return illegalArgument("detach", nil, "nil fiber")
	case f.sched != s:
		return illegalArgument("detach", f, "fiber belongs to another scheduler")
	case f.anchor:
		return illegalArgument("detach", f, "the anchor cannot migrate")
	case f.IsFinished():
		return illegalArgument("detach", f, "fiber is finished")
	case f == s.current || f == s.scheduled:
		return illegalState("detach", f, "fiber is running")
	case f.caller != nil:
		return illegalState("detach", f, "fiber has an active caller")
	}
	if f.kind == Cooperative {
		s.unlink(f)
	} else {
		delete(s.callables, f)
	}
	f.sched = nil
	s.m.live.Add(-1)
	s.log.Debug("fiber detached", "fiber", f.String())
	return nil
}

// Adopt takes ownership of a fiber released by Detach on another carrier.
// Cooperative fibers are linked right before s's scheduled fiber. Both
// carriers must share the same Stacks.
func (s *Scheduler) Adopt(f *Fiber) error {
	switch {
	case f == nil:
		return illegalArgument("adopt", nil, "nil fiber")
	case f.sched != nil:
		return illegalState("adopt", f, "fiber is still owned by a scheduler")
	case f.IsFinished():
		return illegalArgument("adopt", f, "fiber is finished")
	case f.stacks != s.stacks:
		return illegalArgument("adopt", f, "fiber stack belongs to another stack registry")
	case s.carrier.closed:
		return ErrCarrierClosed
	}
	f.sched = s
	if f.kind == Cooperative {
		s.linkBefore(f, s.scheduled)
	} else {
		s.callables[f] = struct{}{}
	}
	s.m.live.Add(1)
	s.log.Debug("fiber adopted", "fiber", f.String())
	return nil
}
