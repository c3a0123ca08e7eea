// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

// Key identifies a fiber-local value of type T.
//
// Each fiber has its own value per key. Stores hold keys weakly: when a Key
// becomes unreachable, its entries in every fiber turn stale and are
// reclaimed by later stores, lookups and resizes. A value that references
// its own Key keeps that Key alive.
//
// Like the rest of a Fiber, its local store may only be used from the
// fiber's carrier.
type Key[T any] struct {
	core    *keyCore
	initial func() T
}

// NewKey creates a key. initial computes the value that Get stores on first
// access; a nil initial yields the zero value.
func NewKey[T any](name string, initial func() T) *Key[T] {
	return &Key[T]{
		core:    &keyCore{name: name, hash: nextKeyHash()},
		initial: initial,
	}
}

// NewInheritableKey creates a key whose value is copied into fibers created
// with Scheduler.Fork, passed through inherit.
func NewInheritableKey[T any](name string, initial func() T, inherit func(parent T) T) *Key[T] {
	k := NewKey(name, initial)
	if inherit == nil {
		inherit = func(parent T) T { return parent }
	}
	k.core.inherit = func(parent any) any { return inherit(cast[T](parent)) }
	return k
}

// Name returns the key name given at creation.
func (k *Key[T]) Name() string { return k.core.name }

// Get returns f's value for k, computing and storing the initial value when
// none is present.
func (k *Key[T]) Get(f *Fiber) T {
	if v, ok := k.Lookup(f); ok {
		return v
	}
	var v T
	if k.initial != nil {
		v = k.initial()
	}
	k.Set(f, v)
	return v
}

// Lookup returns f's value for k without computing a default.
func (k *Key[T]) Lookup(f *Fiber) (T, bool) {
	if f.locals != nil {
		if v, ok := f.locals.get(k.core); ok {
			return cast[T](v), true
		}
	}
	var zero T
	return zero, false
}

// Set stores v as f's value for k.
func (k *Key[T]) Set(f *Fiber, v T) {
	if f.locals == nil {
		f.locals = newLocalTable()
	}
	f.locals.set(k.core, v)
}

// Remove deletes f's value for k and reports whether one was present.
func (k *Key[T]) Remove(f *Fiber) bool {
	if f.locals == nil {
		return false
	}
	return f.locals.remove(k.core)
}

func cast[T any](v any) T {
	t, _ := v.(T)
	return t
}

// LocalCount returns the number of occupied slots in f's local store,
// stale slots included until they are expunged.
func (f *Fiber) LocalCount() int {
	if f.locals == nil {
		return 0
	}
	return f.locals.size
}

// SweepLocals expunges every stale slot of f's local store and returns how
// many were removed.
func (f *Fiber) SweepLocals() int {
	if f.locals == nil {
		return 0
	}
	return f.locals.expungeAll()
}
