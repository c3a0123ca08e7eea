// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"fmt"
	"strings"
)

// linkBefore inserts f as the ring predecessor of at.
func (s *Scheduler) linkBefore(f, at *Fiber) {
	f.next = at
	f.prev = at.prev
	at.prev.next = f
	at.prev = f
	f.linked = true
	s.ringLen++
	s.checkRing("link " + f.String())
}

func (s *Scheduler) unlink(f *Fiber) {
	f.prev.next = f.next
	f.next.prev = f.prev
	f.next, f.prev = nil, nil
	f.linked = false
	s.ringLen--
	s.checkRing("unlink " + f.String())
}

// relocate moves f right before the scheduled fiber.
func (s *Scheduler) relocate(f *Fiber) {
	s.unlink(f)
	s.linkBefore(f, s.scheduled)
}

// checkRing validates the ring after a mutation in debug mode.
func (s *Scheduler) checkRing(after string) {
	if !s.cfg.Debug {
		return
	}
	if err := s.ValidateRing(); err != nil {
		s.fatal(after + ": " + err.Error())
	}
}

// Ring returns the ring members in scheduling order starting at the anchor.
func (s *Scheduler) Ring() []*Fiber {
	out := make([]*Fiber, 0, s.ringLen)
	f := s.anchor
	for range s.ringLen {
		out = append(out, f)
		f = f.next
		if f == s.anchor || f == nil {
			break
		}
	}
	return out
}

// RingError describes ring corruption found by ValidateRing.
type RingError struct {
	Reason  string
	Members []string
	// Truncated is set when Members stops short of the full walk.
	Truncated bool
}

func (e *RingError) Error() string {
	var b strings.Builder
	b.WriteString(Namespace)
	b.WriteString(": corrupt ring: ")
	b.WriteString(e.Reason)
	b.WriteString(" [")
	b.WriteString(strings.Join(e.Members, " -> "))
	if e.Truncated {
		b.WriteString(" -> ...")
	}
	b.WriteString("]")
	return b.String()
}

// ValidateRing walks the ring from the anchor and reports a member reachable
// twice before the walk returns to the anchor, a broken back link, a foreign
// or unlinked member, a scheduled fiber outside the ring, or a length that
// disagrees with the recorded count.
func (s *Scheduler) ValidateRing() error {
	seen := make(map[*Fiber]int, s.ringLen)
	var walk []string
	fail := func(format string, args ...any) error {
		e := &RingError{Reason: fmt.Sprintf(format, args...)}
		limit := s.cfg.DumpLimit
		if len(walk) > limit {
			e.Members, e.Truncated = walk[:limit], true
		} else {
			e.Members = walk
		}
		return e
	}

	f := s.anchor
	for i := 0; ; i++ {
		if f == nil {
			return fail("nil link at position %d", i)
		}
		if at, dup := seen[f]; dup {
			if f != s.anchor {
				return fail("%s reachable twice (positions %d and %d)", f, at, i)
			}
			if i != s.ringLen {
				return fail("ring closes after %d members, %d recorded", i, s.ringLen)
			}
			break
		}
		walk = append(walk, f.String())
		seen[f] = i
		switch {
		case f.sched != s:
			return fail("%s belongs to another scheduler", f)
		case !f.linked:
			return fail("%s is not marked linked", f)
		case f.kind != Cooperative:
			return fail("%s is %s", f, f.kind)
		case f.next == nil || f.next.prev != f:
			return fail("broken back link after %s", f)
		}
		f = f.next
	}
	if _, ok := seen[s.scheduled]; !ok {
		return fail("scheduled fiber %s is not in the ring", s.scheduled)
	}
	return nil
}

// dump renders the scheduler state for fatal diagnostics. The walk is
// bounded so that a corrupt ring still prints.
func (s *Scheduler) dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "carrier %q current=%s scheduled=%s ring_len=%d",
		s.carrier.name, s.current, s.scheduled, s.ringLen)
	f := s.anchor
	for i := 0; i < s.cfg.DumpLimit; i++ {
		if f == nil {
			b.WriteString("\n  <nil>")
			return b.String()
		}
		fmt.Fprintf(&b, "\n  [%d] %s %s %s", i, f, f.kind, f.State())
		if f.caller != nil {
			fmt.Fprintf(&b, " caller=%s", f.caller)
		}
		f = f.next
		if f == s.anchor {
			return b.String()
		}
	}
	b.WriteString("\n  ... (truncated)")
	return b.String()
}
