// Package robot is the narrow boundary to the physical robot: acquiring and
// releasing behavior control, subscribing to event streams and reading the
// busy indicator. Everything behind it is opaque to the arbiter.
package robot

import (
	"context"
	"fmt"

	"github.com/agent-command/autonomyd/internal/trigger"
)

// EventHandler is invoked once per decoded event, concurrently with the
// caller's flow.
type EventHandler func(trigger.Event)

type Connection interface {
	RequestControl(ctx context.Context) error
	ReleaseControl(ctx context.Context) error
	Subscribe(stream string, handler EventHandler) error
	// IsBusy reports whether the robot is animating or otherwise executing
	// an action of its own.
	IsBusy(ctx context.Context) (bool, error)
	// Done is closed when the connection is closed or lost.
	Done() <-chan struct{}
	// Err returns why Done was closed, or nil after a clean Close.
	Err() error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Connection, error)
}

// ConnectionError reports that the connection could not be opened, a
// subscription could not be registered, or the link dropped mid-session.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("connection %s: %v", e.Op, e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// ControlError reports a single failed acquire or release.
type ControlError struct {
	Op  string
	Err error
}

func (e *ControlError) Error() string { return fmt.Sprintf("control %s: %v", e.Op, e.Err) }
func (e *ControlError) Unwrap() error { return e.Err }
