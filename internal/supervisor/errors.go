package supervisor

import (
	"context"
	"errors"

	"github.com/agent-command/autonomyd/internal/robot"
)

// Kind classifies an error that reached the reconnect loop.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnection
	KindTransientControl
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindTransientControl:
		return "transient_control"
	case KindCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

type Action int

const (
	Retry Action = iota
	Terminate
)

// policy maps each error kind to what the loop does about it. Only an
// explicit cancellation ends the loop.
var policy = map[Kind]Action{
	KindUnknown:          Retry,
	KindConnection:       Retry,
	KindTransientControl: Retry,
	KindCancellation:     Terminate,
}

// Classify decides the kind of err. Context errors only count as
// cancellation when ctx itself is done; a deadline hit inside a session
// is ordinary.
func Classify(ctx context.Context, err error) Kind {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return KindCancellation
	}
	var connErr *robot.ConnectionError
	if errors.As(err, &connErr) {
		return KindConnection
	}
	var ctlErr *robot.ControlError
	if errors.As(err, &ctlErr) {
		return KindTransientControl
	}
	return KindUnknown
}

func ActionFor(kind Kind) Action {
	if action, ok := policy[kind]; ok {
		return action
	}
	return Retry
}
