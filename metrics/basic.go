// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package metrics

import (
	"sort"
	"sync"

	"code.hybscloud.com/atomix"
)

// BasicProvider is an in-memory Provider. Instruments are created on demand
// and reused for the same name, so several carriers share one total.
type BasicProvider struct {
	mu       sync.RWMutex
	counters map[string]*BasicCounter
	updowns  map[string]*BasicCounter
}

// NewBasicProvider returns an empty in-memory provider.
func NewBasicProvider() *BasicProvider {
	return &BasicProvider{
		counters: make(map[string]*BasicCounter),
		updowns:  make(map[string]*BasicCounter),
	}
}

// Counter returns the counter registered under name, creating it on first use.
func (p *BasicProvider) Counter(name string) Counter {
	return p.instrument(p.counters, name)
}

// UpDownCounter returns the up-down counter registered under name.
func (p *BasicProvider) UpDownCounter(name string) UpDownCounter {
	return p.instrument(p.updowns, name)
}

func (p *BasicProvider) instrument(m map[string]*BasicCounter, name string) *BasicCounter {
	p.mu.RLock()
	c, ok := m[name]
	p.mu.RUnlock()
	if ok {
		return c
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok = m[name]; ok {
		return c
	}
	c = &BasicCounter{}
	m[name] = c
	return c
}

// Value returns the current value of the named instrument, 0 if unknown.
func (p *BasicProvider) Value(name string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if c, ok := p.counters[name]; ok {
		return c.Snapshot()
	}
	if c, ok := p.updowns[name]; ok {
		return c.Snapshot()
	}
	return 0
}

// Names returns the sorted names of every instrument created so far.
func (p *BasicProvider) Names() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.counters)+len(p.updowns))
	for n := range p.counters {
		names = append(names, n)
	}
	for n := range p.updowns {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// BasicCounter is an atomic counter usable as Counter and UpDownCounter.
type BasicCounter struct {
	v atomix.Int64
}

// Add adds n to the counter.
func (c *BasicCounter) Add(n int64) { c.v.Add(n) }

// Snapshot returns the current value.
func (c *BasicCounter) Snapshot() int64 { return c.v.Load() }
