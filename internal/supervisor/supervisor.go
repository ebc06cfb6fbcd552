// Package supervisor runs the top-level reconnect loop: check the calendar,
// supervise the robot for one bounded session on supervision days, and
// retry after a fixed delay on anything short of cancellation.
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/agent-command/autonomyd/internal/arbiter"
	"github.com/agent-command/autonomyd/internal/calendar"
	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/journal"
	"github.com/agent-command/autonomyd/internal/metrics"
	"github.com/agent-command/autonomyd/internal/robot"
)

// journalBuffer bounds the entries queued for one session's journal writer.
const journalBuffer = 256

type Intervals struct {
	ExternalHold    time.Duration
	AgentHold       time.Duration
	AnimationCheck  time.Duration
	AwaitQuestion   time.Duration
	ResetSubroutine time.Duration
	Reconnect       time.Duration
	HighAutonomy    time.Duration
}

type Options struct {
	Dialer    robot.Dialer
	Calendar  *calendar.Policy
	Intervals Intervals

	// Optional.
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Journal   *journal.Journal
	Logger    *slog.Logger
	SessionID func() string
}

type Supervisor struct {
	dialer    robot.Dialer
	calendar  *calendar.Policy
	intervals Intervals
	clock     clock.Clock
	metrics   *metrics.Metrics
	journal   *journal.Journal
	logger    *slog.Logger
	sessionID func() string
}

func New(opts Options) (*Supervisor, error) {
	if opts.Dialer == nil {
		return nil, errors.New("supervisor: dialer is required")
	}
	if opts.Calendar == nil {
		return nil, errors.New("supervisor: calendar policy is required")
	}
	s := &Supervisor{
		dialer:    opts.Dialer,
		calendar:  opts.Calendar,
		intervals: opts.Intervals,
		clock:     opts.Clock,
		metrics:   opts.Metrics,
		journal:   opts.Journal,
		logger:    opts.Logger,
		sessionID: opts.SessionID,
	}
	if s.clock == nil {
		s.clock = clock.Real()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.sessionID == nil {
		s.sessionID = func() string { return uuid.New().String() }
	}
	return s, nil
}

// Run loops until ctx is cancelled and then returns ctx's error. Every
// other failure is reported and retried after the reconnect interval.
func (s *Supervisor) Run(ctx context.Context) error {
	for {
		if err := s.iterate(ctx); err != nil {
			kind := Classify(ctx, err)
			if ActionFor(kind) == Terminate {
				return err
			}
			if s.metrics != nil {
				s.metrics.SessionErrors.WithLabelValues(kind.String()).Inc()
			}
			s.logger.Error("session failed, retrying", "kind", kind.String(), "error", err, "retry_in", s.intervals.Reconnect)
		}

		if err := clock.Sleep(ctx, s.clock, s.intervals.Reconnect); err != nil {
			return err
		}
	}
}

func (s *Supervisor) iterate(ctx context.Context) error {
	supervise := s.calendar.IsSupervisionDay(s.clock.Now())
	if s.metrics != nil {
		if supervise {
			s.metrics.SupervisionDay.Set(1)
		} else {
			s.metrics.SupervisionDay.Set(0)
		}
	}
	if !supervise {
		s.logger.Info("high autonomy day", "next_check_in", s.intervals.HighAutonomy)
		return clock.Sleep(ctx, s.clock, s.intervals.HighAutonomy)
	}
	return s.supervise(ctx)
}

// supervise runs one session on a fresh connection. The connection is
// closed on every return path.
func (s *Supervisor) supervise(ctx context.Context) (err error) {
	id := s.sessionID()
	logger := s.logger.With("session", id)

	logger.Info("low autonomy day, connecting to robot")
	conn, err := s.dialer.Dial(ctx)
	if err != nil {
		var connErr *robot.ConnectionError
		if !errors.As(err, &connErr) && ctx.Err() == nil {
			err = &robot.ConnectionError{Op: "dial", Err: err}
		}
		return err
	}

	rec := &recorder{session: id, metrics: s.metrics, clock: s.clock, logger: logger}
	if s.journal != nil {
		rec.journal = journal.NewWriter(s.journal, journalBuffer, logger)
	}
	rec.sessionStarted()
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Debug("failed to close connection", "error", closeErr)
		}
		outcome := "window_elapsed"
		if err != nil {
			outcome = Classify(ctx, err).String()
		}
		rec.sessionEnded(outcome, err)
		if rec.journal != nil {
			rec.journal.Close()
		}
		logger.Info("session ended", "outcome", outcome)
	}()

	session := arbiter.NewSession(conn, s.clock, arbiter.SessionConfig{
		Window:       s.intervals.ResetSubroutine,
		ExternalHold: s.intervals.ExternalHold,
		AgentHold:    s.intervals.AgentHold,
		Machine: arbiter.MachineConfig{
			AnimationCheck: s.intervals.AnimationCheck,
			AwaitQuestion:  s.intervals.AwaitQuestion,
		},
	}, rec, logger)
	return session.Run(ctx)
}
