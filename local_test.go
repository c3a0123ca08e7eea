// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"runtime"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/fiber"
)

func TestLocalPerFiberValues(t *testing.T) {
	_, s := newCarrier(t)
	calls := 0
	key := fiber.NewKey("request", func() string {
		calls++
		return "default"
	})

	anchor := s.Anchor()
	assert.Equal(t, "default", key.Get(anchor))
	assert.Equal(t, "default", key.Get(anchor))
	assert.Equal(t, 1, calls)

	key.Set(anchor, "anchor")
	var inFiber string
	var lookedUp bool
	spawn(t, s, "worker", func(f *fiber.Fiber) error {
		_, lookedUp = key.Lookup(f)
		key.Set(f, "worker")
		inFiber = key.Get(f)
		return nil
	})
	require.NoError(t, s.Yield())

	assert.False(t, lookedUp)
	assert.Equal(t, "worker", inFiber)
	assert.Equal(t, "anchor", key.Get(anchor))
}

func TestLocalRemove(t *testing.T) {
	_, s := newCarrier(t)
	key := fiber.NewKey[int]("n", nil)
	anchor := s.Anchor()

	assert.False(t, key.Remove(anchor))
	assert.Equal(t, 0, key.Get(anchor))

	key.Set(anchor, 7)
	v, ok := key.Lookup(anchor)
	require.True(t, ok)
	assert.Equal(t, 7, v)

	assert.True(t, key.Remove(anchor))
	_, ok = key.Lookup(anchor)
	assert.False(t, ok)
	assert.Equal(t, 0, anchor.LocalCount())
}

func TestLocalManyKeys(t *testing.T) {
	_, s := newCarrier(t)
	anchor := s.Anchor()

	keys := make([]*fiber.Key[int], 100)
	for i := range keys {
		keys[i] = fiber.NewKey[int]("k"+strconv.Itoa(i), nil)
		keys[i].Set(anchor, i)
	}
	for i, k := range keys {
		v, ok := k.Lookup(anchor)
		require.Truef(t, ok, "key %d missing", i)
		require.Equal(t, i, v)
	}
	assert.Equal(t, len(keys), anchor.LocalCount())
}

func TestLocalInheritance(t *testing.T) {
	_, s := newCarrier(t)
	anchor := s.Anchor()

	depth := fiber.NewInheritableKey("depth", func() int { return 0 }, func(parent int) int { return parent + 1 })
	plain := fiber.NewKey[string]("plain", nil)
	copied := fiber.NewInheritableKey[string]("copied", nil, nil)

	depth.Set(anchor, 1)
	plain.Set(anchor, "parent only")
	copied.Set(anchor, "shared")

	var childDepth int
	var plainSeen bool
	var copiedValue string
	_, err := s.Fork(fiber.Cooperative, "child", 0, func(f *fiber.Fiber) error {
		childDepth = depth.Get(f)
		_, plainSeen = plain.Lookup(f)
		copiedValue, _ = copied.Lookup(f)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.Yield())

	assert.Equal(t, 2, childDepth)
	assert.False(t, plainSeen)
	assert.Equal(t, "shared", copiedValue)
	assert.Equal(t, 1, depth.Get(anchor))
}

// setTransient stores values under keys that become unreachable on return.
func setTransient(f *fiber.Fiber, n int) {
	for i := range n {
		fiber.NewKey[int]("transient", nil).Set(f, i)
	}
}

func TestLocalStaleEntriesAreReclaimed(t *testing.T) {
	_, s := newCarrier(t)
	anchor := s.Anchor()

	kept := fiber.NewKey[string]("kept", nil)
	kept.Set(anchor, "alive")
	setTransient(anchor, 5)
	stale := anchor.LocalCount() - 1
	require.Positive(t, stale)

	swept := 0
	for range 10 {
		runtime.GC()
		swept += anchor.SweepLocals()
		if anchor.LocalCount() == 1 {
			break
		}
	}
	assert.Equal(t, stale, swept)
	assert.Equal(t, 1, anchor.LocalCount())

	v, ok := kept.Lookup(anchor)
	assert.True(t, ok)
	assert.Equal(t, "alive", v)
	runtime.KeepAlive(kept)
}
