// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber_test

import (
	"os"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/fiber"
	"code.hybscloud.com/fiber/internal/gostack"
)

// Invariant violations crash the process from a fiber stack, so each case
// re-runs the test binary and inspects the child's output.
const crashEnv = "FIBER_CRASH_CASE"

// crashChild reports whether the current process is the child for test.
func crashChild(t *testing.T) bool {
	return os.Getenv(crashEnv) == t.Name()
}

// runCrashChild re-runs test in a child process and returns its output.
// The child must die with the runtime's panic exit status.
func runCrashChild(t *testing.T) string {
	t.Helper()
	cmd := exec.Command(os.Args[0], "-test.run=^"+t.Name()+"$")
	cmd.Env = append(os.Environ(), crashEnv+"="+t.Name())
	out, err := cmd.CombinedOutput()

	var ee *exec.ExitError
	require.ErrorAs(t, err, &ee, "child output:\n%s", out)
	assert.Equal(t, 2, ee.ExitCode())
	return string(out)
}

func TestSwallowedExitSignalCrashes(t *testing.T) {
	if crashChild(t) {
		_ = fiber.Run("swallow", func(c *fiber.Carrier) error {
			s := c.Scheduler()
			f, err := s.Spawn("swallower", func(f *fiber.Fiber) error {
				defer func() {
					recover()
					_ = f.Yield()
				}()
				return yieldLoop(f)
			})
			if err != nil {
				return err
			}
			if err := s.Yield(); err != nil {
				return err
			}
			return s.Stop(f)
		})
		os.Exit(0)
	}

	out := runCrashChild(t)
	assert.Contains(t, out, `fiber: invariant violated on carrier "swallow"`)
	assert.Contains(t, out, "swallowed the exit signal and called yield")
	assert.Contains(t, out, "ring_len=")
	assert.Contains(t, out, "swallower#")
}

// crossedStacks wakes the second created stack whenever the first is the
// switch target, so a fiber body starts while another fiber is current.
type crossedStacks struct {
	fiber.Stacks
	tokens []fiber.Token
}

func (c *crossedStacks) Create(name string, entry func(exit bool), size int) (fiber.Token, error) {
	t, err := c.Stacks.Create(name, entry, size)
	if err == nil {
		c.tokens = append(c.tokens, t)
	}
	return t, err
}

func (c *crossedStacks) SwitchTo(from, to fiber.Token) bool {
	if len(c.tokens) > 1 && to == c.tokens[0] {
		to = c.tokens[1]
	}
	return c.Stacks.SwitchTo(from, to)
}

func TestFiberStartedOutsideItsSchedulerCrashes(t *testing.T) {
	if crashChild(t) {
		stacks := &crossedStacks{Stacks: gostack.New()}
		_ = fiber.Run("crossed", func(c *fiber.Carrier) error {
			s := c.Scheduler()
			for _, name := range []string{"first", "second"} {
				if _, err := s.Spawn(name, func(*fiber.Fiber) error { return nil }); err != nil {
					return err
				}
			}
			return s.Yield()
		}, fiber.WithStacks(stacks))
		os.Exit(0)
	}

	out := runCrashChild(t)
	assert.Contains(t, out, `fiber: invariant violated on carrier "crossed"`)
	assert.Contains(t, out, "second#")
	assert.Contains(t, out, "started outside its own scheduler")
}
