package arbiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/trigger"
)

type State int32

const (
	Idle State = iota
	// Listening: the wake word was heard, the command has not arrived yet.
	Listening
	// Executing: the robot has control and is carrying out the command.
	Executing
)

func (s State) String() string {
	switch s {
	case Listening:
		return "listening"
	case Executing:
		return "executing"
	default:
		return "idle"
	}
}

type MachineConfig struct {
	// AnimationCheck is both the grace period before the first busy check
	// and the busy polling interval.
	AnimationCheck time.Duration
	// AwaitQuestion replaces the grace period when the command is a
	// question, since answering does not show up as busy.
	AwaitQuestion time.Duration
}

// Machine tracks wake-word cues and pauses the cadence while a command is
// in flight. It is the only writer of its state; Handle is safe to call
// from the connection's event dispatch goroutine.
type Machine struct {
	ctx     context.Context
	control *Controller
	busy    BusyIndicator
	clock   clock.Clock
	cfg     MachineConfig
	obs     Observer
	logger  *slog.Logger
	fail    func(error)

	mu      sync.Mutex
	state   State
	stopped bool
	wg      sync.WaitGroup
}

// NewMachine returns an idle machine. Background work stops when ctx is
// done. fail is called with errors from the executing flow.
func NewMachine(ctx context.Context, control *Controller, busy BusyIndicator, clk clock.Clock, cfg MachineConfig, obs Observer, logger *slog.Logger, fail func(error)) *Machine {
	if obs == nil {
		obs = NopObserver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if fail == nil {
		fail = func(error) {}
	}
	return &Machine{
		ctx:     ctx,
		control: control,
		busy:    busy,
		clock:   clk,
		cfg:     cfg,
		obs:     obs,
		logger:  logger,
		fail:    fail,
	}
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Armed reports whether a cue is in progress and the cadence must pause.
func (m *Machine) Armed() bool {
	return m.State() != Idle
}

// Handle applies one trigger event.
func (m *Machine) Handle(ev trigger.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}

	accepted := true
	switch m.state {
	case Idle:
		if ev.Kind == trigger.CueBegin {
			m.setLocked(Listening)
		} else {
			accepted = false
		}
	case Listening:
		switch ev.Kind {
		case trigger.CueBegin:
			accepted = false
		case trigger.CueEndWithCommand:
			m.setLocked(Executing)
			if err := m.control.Release(m.ctx); err != nil {
				m.setLocked(Idle)
				m.obs.TriggerReceived(ev, true)
				m.fail(err)
				return
			}
			m.logger.Info("voice command heard, robot has control",
				"command", ev.Command.String(), "intent", ev.Intent)
			m.wg.Add(1)
			go m.execute(ev.Command)
		default:
			m.setLocked(Idle)
		}
	case Executing:
		accepted = false
	}
	m.obs.TriggerReceived(ev, accepted)
}

// Stop makes the machine ignore further events and waits for an
// executing flow to return. The flow itself ends when ctx is done.
func (m *Machine) Stop() {
	m.mu.Lock()
	m.stopped = true
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Machine) execute(command trigger.CommandKind) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		m.setLocked(Idle)
		m.mu.Unlock()
	}()

	grace := m.cfg.AnimationCheck
	if command == trigger.CommandQuestion {
		grace = m.cfg.AwaitQuestion
	}
	if err := clock.Sleep(m.ctx, m.clock, grace); err != nil {
		return
	}
	if err := AwaitIdle(m.ctx, m.busy, m.clock, m.cfg.AnimationCheck); err != nil {
		if m.ctx.Err() == nil {
			m.fail(err)
		}
		return
	}
	m.logger.Debug("robot finished command")
}

func (m *Machine) setLocked(to State) {
	if m.state == to {
		return
	}
	m.state = to
	m.obs.StateChanged(to)
}
