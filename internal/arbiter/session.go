package arbiter

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/robot"
	"github.com/agent-command/autonomyd/internal/trigger"
)

const releaseTimeout = 2 * time.Second

var errConnectionClosed = errors.New("connection closed")

type SessionConfig struct {
	// Window bounds how long one connection is supervised before it is torn
	// down and rebuilt.
	Window       time.Duration
	ExternalHold time.Duration
	AgentHold    time.Duration
	Machine      MachineConfig
}

// Session supervises one connection for at most Window.
type Session struct {
	conn   robot.Connection
	clock  clock.Clock
	cfg    SessionConfig
	obs    Observer
	logger *slog.Logger
}

func NewSession(conn robot.Connection, clk clock.Clock, cfg SessionConfig, obs Observer, logger *slog.Logger) *Session {
	if obs == nil {
		obs = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{conn: conn, clock: clk, cfg: cfg, obs: obs, logger: logger}
}

// Run subscribes a fresh state machine to the wake-word stream and drives
// the cadence until the window ends, returning nil. It returns early with
// the connection error if the link drops, with the command error if the
// executing flow fails, and with ctx's error on cancellation. External
// control is released on every return path.
func (s *Session) Run(ctx context.Context) (err error) {
	sessionCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	control := NewController(s.conn, s.obs)
	machine := NewMachine(sessionCtx, control, s.conn, s.clock, s.cfg.Machine, s.obs, s.logger, cancel)

	defer func() {
		cancel(nil)
		machine.Stop()
		releaseCtx, done := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer done()
		if relErr := control.ReleaseIfHeld(releaseCtx); relErr != nil {
			s.logger.Warn("failed to release control on session exit", "error", relErr)
			if err == nil {
				err = relErr
			}
		}
	}()

	if err := s.conn.Subscribe(trigger.StreamWakeWord, machine.Handle); err != nil {
		return err
	}

	go func() {
		select {
		case <-s.conn.Done():
			cause := s.conn.Err()
			if cause == nil {
				cause = &robot.ConnectionError{Op: "session", Err: errConnectionClosed}
			}
			cancel(cause)
		case <-sessionCtx.Done():
		}
	}()

	cadence := &Cadence{
		Control:      control,
		Clock:        s.clock,
		Armed:        machine.Armed,
		ExternalHold: s.cfg.ExternalHold,
		AgentHold:    s.cfg.AgentHold,
	}

	end := s.clock.Now().Add(s.cfg.Window)
	for s.clock.Now().Before(end) {
		if sessionCtx.Err() != nil {
			return context.Cause(sessionCtx)
		}
		ran, err := cadence.Cycle(sessionCtx)
		if err == nil && !ran {
			err = clock.Sleep(sessionCtx, s.clock, s.cfg.AgentHold)
		}
		if err != nil {
			if sessionCtx.Err() != nil {
				return context.Cause(sessionCtx)
			}
			return err
		}
	}
	s.logger.Debug("session window elapsed", "window", s.cfg.Window)
	return nil
}
