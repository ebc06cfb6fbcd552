package supervisor

import (
	"log/slog"
	"strconv"

	"github.com/agent-command/autonomyd/internal/arbiter"
	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/journal"
	"github.com/agent-command/autonomyd/internal/metrics"
	"github.com/agent-command/autonomyd/internal/trigger"
)

// recorder feeds one session's transitions into metrics and the journal.
type recorder struct {
	session string
	metrics *metrics.Metrics
	journal *journal.Writer
	clock   clock.Clock
	logger  *slog.Logger
}

var _ arbiter.Observer = (*recorder)(nil)

func (r *recorder) AuthorityChanged(to arbiter.Authority) {
	if r.metrics != nil {
		r.metrics.ControlTransitions.WithLabelValues(to.String()).Inc()
	}
	r.record("authority", map[string]string{"authority": to.String()})
}

func (r *recorder) StateChanged(to arbiter.State) {
	if r.metrics != nil {
		armed := 0.0
		if to != arbiter.Idle {
			armed = 1
		}
		r.metrics.Armed.Set(armed)
	}
	r.logger.Debug("trigger state changed", "state", to.String())
	r.record("state", map[string]string{"state": to.String()})
}

func (r *recorder) TriggerReceived(ev trigger.Event, accepted bool) {
	if r.metrics != nil {
		r.metrics.TriggerEvents.WithLabelValues(ev.Kind.String(), strconv.FormatBool(accepted)).Inc()
	}
	payload := map[string]any{"kind": ev.Kind.String(), "accepted": accepted}
	if ev.Kind == trigger.CueEndWithCommand {
		payload["command"] = ev.Command.String()
		payload["intent"] = ev.Intent
	}
	r.record("trigger", payload)
}

func (r *recorder) sessionStarted() {
	r.record("session_start", nil)
}

func (r *recorder) sessionEnded(outcome string, err error) {
	if r.metrics != nil {
		r.metrics.Sessions.WithLabelValues(outcome).Inc()
		r.metrics.Armed.Set(0)
	}
	payload := map[string]string{"outcome": outcome}
	if err != nil {
		payload["error"] = err.Error()
	}
	r.record("session_end", payload)
}

// record only queues the entry. Observer callbacks run under arbiter
// locks, so the write happens on the journal writer's goroutine.
func (r *recorder) record(entryType string, payload any) {
	if r.journal == nil {
		return
	}
	r.journal.Record(entryType, r.session, r.clock.Now(), payload)
}
