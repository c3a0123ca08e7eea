// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package gostack_test

import (
	"os"
	"os/exec"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/fiber/internal/gostack"
)

func disposable(s *gostack.Stacks, t uint64) func() bool {
	return func() bool { return s.IsDisposable(t) }
}

func TestSwitchAndTerminate(t *testing.T) {
	s := gostack.New()
	main := s.Bootstrap("main")

	var log []string
	var child uint64
	child, err := s.Create("child", func(exit bool) {
		log = append(log, "enter")
		if s.SwitchTo(child, main) {
			log = append(log, "exit requested")
		}
		log = append(log, "again")
		s.SwitchToAndTerminate(child, main)
	}, 0)
	require.NoError(t, err)
	require.NotZero(t, child)
	assert.False(t, s.HasAlreadyRun(child))

	assert.False(t, s.SwitchTo(main, child))
	assert.Equal(t, []string{"enter"}, log)
	assert.True(t, s.HasAlreadyRun(child))
	assert.False(t, s.IsDisposable(child))

	assert.False(t, s.SwitchTo(main, child))
	assert.Equal(t, []string{"enter", "again"}, log)

	require.Eventually(t, disposable(s, child), time.Second, time.Millisecond)
	require.NoError(t, s.Dispose(child))
	assert.ErrorIs(t, s.Dispose(child), gostack.ErrUnknownToken)

	s.Release(main)
	assert.Zero(t, s.Len())
}

func TestSwitchToAndExitDeliversFlag(t *testing.T) {
	s := gostack.New()
	main := s.Bootstrap("main")

	var entered, resumedWithExit bool
	var child uint64
	child, err := s.Create("child", func(exit bool) {
		entered = exit
		resumedWithExit = s.SwitchTo(child, main)
		s.SwitchToAndTerminate(child, main)
	}, 4096)
	require.NoError(t, err)

	assert.False(t, s.SwitchToAndExit(main, child))
	assert.True(t, entered)

	assert.False(t, s.SwitchToAndExit(main, child))
	assert.True(t, resumedWithExit)
	require.Eventually(t, disposable(s, child), time.Second, time.Millisecond)
}

func TestExitHasNotRun(t *testing.T) {
	s := gostack.New()
	ran := false
	tok, err := s.Create("never", func(bool) { ran = true }, 0)
	require.NoError(t, err)

	s.ExitHasNotRun(tok)
	require.Eventually(t, disposable(s, tok), time.Second, time.Millisecond)
	assert.False(t, ran)
	require.NoError(t, s.Dispose(tok))
}

func TestBootstrapIsNeverDisposable(t *testing.T) {
	s := gostack.New()
	main := s.Bootstrap("main")
	assert.True(t, s.HasAlreadyRun(main))
	assert.False(t, s.IsDisposable(main))
	assert.ErrorIs(t, s.Dispose(main), gostack.ErrNotDisposable)
	assert.Equal(t, 1, s.Len())
}

func TestCreateRejectsNegativeSize(t *testing.T) {
	s := gostack.New()
	_, err := s.Create("bad", func(bool) {}, -1)
	assert.ErrorIs(t, err, gostack.ErrBadStackSize)
	assert.Zero(t, s.Len())
}

func TestUnknownTokenPanics(t *testing.T) {
	s := gostack.New()
	main := s.Bootstrap("main")
	assert.Panics(t, func() { s.SwitchTo(main, 999) })
	assert.False(t, s.IsDisposable(999))
}

func TestTokensAreUnique(t *testing.T) {
	s := gostack.New()
	seen := make(map[uint64]bool)
	for range 16 {
		tok := s.Bootstrap("b")
		require.False(t, seen[tok])
		seen[tok] = true
	}
	assert.Same(t, gostack.Shared(), gostack.Shared())
}

func TestDisposeAfterKillHandshake(t *testing.T) {
	s := gostack.New()
	for range 64 {
		tok, err := s.Create("killed", func(bool) {}, 0)
		require.NoError(t, err)
		s.ExitHasNotRun(tok)
		for !s.IsDisposable(tok) {
			runtime.Gosched()
		}
		require.NoError(t, s.Dispose(tok))
	}
	assert.Zero(t, s.Len())
}

func TestConcurrentCarriersShareRegistry(t *testing.T) {
	const carriers, rounds = 4, 200
	s := gostack.New()
	var wg sync.WaitGroup
	for range carriers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			main := s.Bootstrap("main")
			defer s.Release(main)
			var child uint64
			n := 0
			child, err := s.Create("child", func(bool) {
				for range rounds {
					n++
					s.SwitchTo(child, main)
				}
				s.SwitchToAndTerminate(child, main)
			}, 0)
			if !assert.NoError(t, err) {
				return
			}
			for range rounds + 1 {
				s.SwitchTo(main, child)
			}
			assert.Equal(t, rounds, n)
			for !s.IsDisposable(child) {
				runtime.Gosched()
			}
			assert.NoError(t, s.Dispose(child))
		}()
	}
	wg.Wait()
	assert.Zero(t, s.Len())
}

const crashEnv = "GOSTACK_CRASH_CASE"

func TestEntryReturningWithoutTerminateCrashes(t *testing.T) {
	if os.Getenv(crashEnv) != "" {
		s := gostack.New()
		main := s.Bootstrap("main")
		tok, err := s.Create("lazy", func(bool) {}, 0)
		if err != nil {
			os.Exit(3)
		}
		s.SwitchTo(main, tok)
		os.Exit(0)
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestEntryReturningWithoutTerminateCrashes$")
	cmd.Env = append(os.Environ(), crashEnv+"=1")
	out, err := cmd.CombinedOutput()

	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee, "child output:\n%s", out)
	assert.Equal(t, 2, ee.ExitCode())
	assert.Contains(t, string(out), `gostack: stack "lazy" returned without terminate dispatch`)
}
