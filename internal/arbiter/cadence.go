package arbiter

import (
	"context"
	"time"

	"github.com/agent-command/autonomyd/internal/clock"
)

// Cadence repeatedly takes control for ExternalHold and gives it back for
// AgentHold. The robot stays effectively still while still getting short
// autonomous ticks, and every request is cheap to interrupt.
type Cadence struct {
	Control      *Controller
	Clock        clock.Clock
	Armed        func() bool
	ExternalHold time.Duration
	AgentHold    time.Duration
}

// Cycle runs one acquire, hold, release, hold round. The armed flag is
// read only here, at the top of the cycle; when armed, Cycle does nothing
// and reports false.
func (c *Cadence) Cycle(ctx context.Context) (bool, error) {
	if c.Armed != nil && c.Armed() {
		return false, nil
	}
	if err := c.Control.Acquire(ctx); err != nil {
		return true, err
	}
	if err := clock.Sleep(ctx, c.Clock, c.ExternalHold); err != nil {
		return true, err
	}
	if err := c.Control.Release(ctx); err != nil {
		return true, err
	}
	return true, clock.Sleep(ctx, c.Clock, c.AgentHold)
}
