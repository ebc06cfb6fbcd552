package arbiter

import (
	"context"
	"time"

	"github.com/agent-command/autonomyd/internal/clock"
)

type BusyIndicator interface {
	IsBusy(ctx context.Context) (bool, error)
}

// AwaitIdle polls the busy indicator every interval until the robot
// reports it is no longer busy. It has no timeout of its own; the caller's
// context bounds it.
func AwaitIdle(ctx context.Context, busy BusyIndicator, clk clock.Clock, interval time.Duration) error {
	for {
		b, err := busy.IsBusy(ctx)
		if err != nil {
			return err
		}
		if !b {
			return nil
		}
		if err := clock.Sleep(ctx, clk, interval); err != nil {
			return err
		}
	}
}
