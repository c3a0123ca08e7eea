// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import "weak"

// localInitialCapacity is the initial table size; sizes stay powers of two.
const localInitialCapacity = 16

// keyCore is the identity of a local key. Tables reference it weakly: once
// the owning Key is unreachable the core is collected and every entry for it
// turns stale.
type keyCore struct {
	name    string
	hash    uint32
	inherit func(parent any) any
}

type localEntry struct {
	key   weak.Pointer[keyCore]
	value any
}

// referent returns the entry's key, nil once the key has been collected.
func (e *localEntry) referent() *keyCore { return e.key.Value() }

// localTable is an open-addressed map with linear probing. A nil slot ends a
// probe run; a slot whose key was collected is stale and gets expunged by
// the lookups and stores that walk over it.
type localTable struct {
	entries   []*localEntry
	size      int
	threshold int
}

func newLocalTable() *localTable {
	t := &localTable{entries: make([]*localEntry, localInitialCapacity)}
	t.setThreshold(localInitialCapacity)
	return t
}

// setThreshold keeps the load factor at 2/3.
func (t *localTable) setThreshold(n int) { t.threshold = n * 2 / 3 }

func nextIndex(i, n int) int { return (i + 1) & (n - 1) }
func prevIndex(i, n int) int { return (i - 1) & (n - 1) }

func (t *localTable) get(k *keyCore) (any, bool) {
	i := int(k.hash) & (len(t.entries) - 1)
	e := t.entries[i]
	if e != nil && e.referent() == k {
		return e.value, true
	}
	return t.getAfterMiss(k, i, e)
}

func (t *localTable) getAfterMiss(k *keyCore, i int, e *localEntry) (any, bool) {
	n := len(t.entries)
	for e != nil {
		r := e.referent()
		if r == k {
			return e.value, true
		}
		if r == nil {
			t.expungeStale(i)
		} else {
			i = nextIndex(i, n)
		}
		e = t.entries[i]
	}
	return nil, false
}

func (t *localTable) set(k *keyCore, v any) {
	tab := t.entries
	n := len(tab)
	i := int(k.hash) & (n - 1)
	for e := tab[i]; e != nil; e = tab[i] {
		r := e.referent()
		if r == k {
			e.value = v
			return
		}
		if r == nil {
			t.replaceStale(k, v, i)
			return
		}
		i = nextIndex(i, n)
	}
	tab[i] = &localEntry{key: weak.Make(k), value: v}
	t.size++
	if !t.cleanSomeSlots(i, t.size) && t.size >= t.threshold {
		t.rehash()
	}
}

// replaceStale stores k at staleSlot, or moves k's existing entry there when
// it sits further along the run, and expunges the stale slots of the run.
func (t *localTable) replaceStale(k *keyCore, v any, staleSlot int) {
	tab := t.entries
	n := len(tab)

	slotToExpunge := staleSlot
	for i := prevIndex(staleSlot, n); tab[i] != nil; i = prevIndex(i, n) {
		if tab[i].referent() == nil {
			slotToExpunge = i
		}
	}

	for i := nextIndex(staleSlot, n); tab[i] != nil; i = nextIndex(i, n) {
		e := tab[i]
		r := e.referent()
		if r == k {
			e.value = v
			tab[i] = tab[staleSlot]
			tab[staleSlot] = e
			if slotToExpunge == staleSlot {
				slotToExpunge = i
			}
			t.cleanSomeSlots(t.expungeStale(slotToExpunge), n)
			return
		}
		if r == nil && slotToExpunge == staleSlot {
			slotToExpunge = i
		}
	}

	tab[staleSlot] = &localEntry{key: weak.Make(k), value: v}
	if slotToExpunge != staleSlot {
		t.cleanSomeSlots(t.expungeStale(slotToExpunge), n)
	}
}

// expungeStale clears staleSlot and rehashes the rest of its run, clearing
// every other stale slot met. It returns the index of the nil slot ending
// the run.
func (t *localTable) expungeStale(staleSlot int) int {
	tab := t.entries
	n := len(tab)
	tab[staleSlot] = nil
	t.size--

	i := nextIndex(staleSlot, n)
	for ; tab[i] != nil; i = nextIndex(i, n) {
		e := tab[i]
		r := e.referent()
		if r == nil {
			tab[i] = nil
			t.size--
			continue
		}
		h := int(r.hash) & (n - 1)
		if h != i {
			tab[i] = nil
			for tab[h] != nil {
				h = nextIndex(h, n)
			}
			tab[h] = e
		}
	}
	return i
}

// cleanSomeSlots scans log2(n) slots after i for stale entries, restarting
// the budget whenever one is found. It reports whether any was removed.
func (t *localTable) cleanSomeSlots(i, n int) bool {
	removed := false
	tab := t.entries
	l := len(tab)
	for {
		i = nextIndex(i, l)
		if e := tab[i]; e != nil && e.referent() == nil {
			n = l
			removed = true
			i = t.expungeStale(i)
		}
		n >>= 1
		if n == 0 {
			return removed
		}
	}
}

func (t *localTable) rehash() {
	t.expungeAll()
	if t.size >= t.threshold-t.threshold/4 {
		t.resize()
	}
}

// expungeAll removes every stale entry and returns how many were removed.
func (t *localTable) expungeAll() int {
	before := t.size
	for i, e := range t.entries {
		if e != nil && e.referent() == nil {
			t.expungeStale(i)
		}
	}
	return before - t.size
}

func (t *localTable) resize() {
	n := len(t.entries) * 2
	tab := make([]*localEntry, n)
	count := 0
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		r := e.referent()
		if r == nil {
			continue
		}
		h := int(r.hash) & (n - 1)
		for tab[h] != nil {
			h = nextIndex(h, n)
		}
		tab[h] = e
		count++
	}
	t.entries = tab
	t.size = count
	t.setThreshold(n)
}

func (t *localTable) remove(k *keyCore) bool {
	tab := t.entries
	n := len(tab)
	for i := int(k.hash) & (n - 1); tab[i] != nil; i = nextIndex(i, n) {
		if tab[i].referent() == k {
			t.expungeStale(i)
			return true
		}
	}
	return false
}

// fork builds a child table holding every live entry whose key carries an
// inherit transform, with the transformed value.
func (t *localTable) fork() *localTable {
	n := len(t.entries)
	c := &localTable{entries: make([]*localEntry, n)}
	c.setThreshold(n)
	for _, e := range t.entries {
		if e == nil {
			continue
		}
		k := e.referent()
		if k == nil || k.inherit == nil {
			continue
		}
		h := int(k.hash) & (n - 1)
		for c.entries[h] != nil {
			h = nextIndex(h, n)
		}
		c.entries[h] = &localEntry{key: weak.Make(k), value: k.inherit(e.value)}
		c.size++
	}
	return c
}
