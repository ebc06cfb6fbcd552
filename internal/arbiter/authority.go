// Package arbiter decides, moment to moment, whether the robot's own
// behavior system or this daemon holds behavior control.
//
// A Session owns one connection for a bounded window. Inside it the
// Cadence toggles control on and off, and the Machine pauses that toggle
// while a wake-word command is heard and executed by the robot.
package arbiter

import (
	"context"
	"sync"

	"github.com/agent-command/autonomyd/internal/robot"
	"github.com/agent-command/autonomyd/internal/trigger"
)

type Authority int

const (
	Agent Authority = iota
	External
)

func (a Authority) String() string {
	if a == External {
		return "external"
	}
	return "agent"
}

// Observer receives every authority and state transition. Implementations
// must be fast and must not call back into the arbiter.
type Observer interface {
	AuthorityChanged(to Authority)
	StateChanged(to State)
	TriggerReceived(ev trigger.Event, accepted bool)
}

type NopObserver struct{}

func (NopObserver) AuthorityChanged(Authority)          {}
func (NopObserver) StateChanged(State)                  {}
func (NopObserver) TriggerReceived(trigger.Event, bool) {}

// Controller is the single path through which control is requested and
// released. It tracks which authority currently holds control; a session
// starts with the robot's own behavior in control.
type Controller struct {
	conn robot.Connection
	obs  Observer

	mu     sync.Mutex
	holder Authority
}

func NewController(conn robot.Connection, obs Observer) *Controller {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Controller{conn: conn, obs: obs, holder: Agent}
}

func (c *Controller) Holder() Authority {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.holder
}

// Acquire takes control for the external authority. A failed request
// leaves the holder unchanged.
func (c *Controller) Acquire(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.RequestControl(ctx); err != nil {
		return err
	}
	c.setLocked(External)
	return nil
}

// Release hands control back to the robot. Releasing while the robot
// already holds control is sent anyway and is harmless.
func (c *Controller) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.ReleaseControl(ctx); err != nil {
		return err
	}
	c.setLocked(Agent)
	return nil
}

// ReleaseIfHeld releases only when the external authority holds control.
func (c *Controller) ReleaseIfHeld(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.holder != External {
		return nil
	}
	if err := c.conn.ReleaseControl(ctx); err != nil {
		return err
	}
	c.setLocked(Agent)
	return nil
}

func (c *Controller) setLocked(to Authority) {
	if c.holder == to {
		return
	}
	c.holder = to
	c.obs.AuthorityChanged(to)
}
