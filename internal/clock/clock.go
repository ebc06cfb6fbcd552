// Package clock abstracts time so that the control loops can be driven
// deterministically in tests. Production code uses Real; tests use Fake
// and move time forward with Advance.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time

	// NewTimer returns a timer that delivers the current time on C once d
	// has elapsed. If d <= 0 the timer fires immediately.
	NewTimer(d time.Duration) *Timer
}

// Timer is a one-shot timer. Stop releases it without firing.
type Timer struct {
	C <-chan time.Time

	stop func() bool
}

// Stop prevents the timer from firing. It reports whether the call
// stopped an active timer.
func (t *Timer) Stop() bool { return t.stop() }

// Sleep blocks for d or until ctx is done, whichever comes first. It
// returns ctx.Err() when the wait was cut short.
func Sleep(ctx context.Context, c Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := c.NewTimer(d)
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	}
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTimer(d time.Duration) *Timer {
	t := time.NewTimer(d)
	return &Timer{C: t.C, stop: t.Stop}
}
