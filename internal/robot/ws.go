package robot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/agent-command/autonomyd/internal/trigger"
)

const (
	typeControlRequest = "control.request"
	typeControlRelease = "control.release"
	typeControlGranted = "control.granted"
	typeControlLost    = "control.lost"
	typeRobotState     = "robot_state"

	defaultWriteTimeout = 5 * time.Second
	subscriptionBuffer  = 16
)

var errClosed = errors.New("connection closed")

// WSDialer connects to a websocket bridge in front of the robot.
type WSDialer struct {
	URL    string
	Token  string
	Serial string
	Logger *slog.Logger
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer
}

func (d *WSDialer) Dial(ctx context.Context) (Connection, error) {
	headers := http.Header{}
	if d.Token != "" {
		headers.Set("Authorization", "Bearer "+d.Token)
	}
	if d.Serial != "" {
		headers.Set("X-Robot-Serial", d.Serial)
	}

	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, d.URL, headers)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", Err: err}
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &wsConn{
		conn:   conn,
		logger: logger,
		subs:   make(map[string][]chan trigger.Event),
		done:   make(chan struct{}),
	}
	go c.reader()
	return c, nil
}

type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	writeMu sync.Mutex
	seq     atomic.Int64
	busy    atomic.Bool

	mu      sync.Mutex
	subs    map[string][]chan trigger.Event
	err     error
	closing bool

	done      chan struct{}
	closeOnce sync.Once
}

type envelope struct {
	V       int             `json:"v"`
	Type    string          `json:"type"`
	TS      string          `json:"ts,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (c *wsConn) RequestControl(ctx context.Context) error {
	if err := c.send(ctx, typeControlRequest, map[string]any{"priority": "overrule_behaviors"}); err != nil {
		return &ControlError{Op: "request", Err: err}
	}
	return nil
}

func (c *wsConn) ReleaseControl(ctx context.Context) error {
	if err := c.send(ctx, typeControlRelease, map[string]any{}); err != nil {
		return &ControlError{Op: "release", Err: err}
	}
	return nil
}

func (c *wsConn) IsBusy(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	select {
	case <-c.done:
		return false, &ConnectionError{Op: "status", Err: c.closedErr()}
	default:
	}
	return c.busy.Load(), nil
}

func (c *wsConn) Subscribe(stream string, handler EventHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closing || c.err != nil {
		return &ConnectionError{Op: "subscribe " + stream, Err: c.closedErrLocked()}
	}

	ch := make(chan trigger.Event, subscriptionBuffer)
	c.subs[stream] = append(c.subs[stream], ch)

	// Handlers may block for a long time; run them off the reader.
	go func() {
		for {
			select {
			case <-c.done:
				return
			case ev := <-ch:
				handler(ev)
			}
		}
	}()
	return nil
}

func (c *wsConn) Done() <-chan struct{} { return c.done }

func (c *wsConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *wsConn) Close() error {
	c.mu.Lock()
	c.closing = true
	c.mu.Unlock()

	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
		close(c.done)
	})
	return err
}

func (c *wsConn) send(ctx context.Context, msgType string, payload any) error {
	select {
	case <-c.done:
		return c.closedErr()
	default:
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	data, err := json.Marshal(envelope{
		V:       1,
		Type:    msgType,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Seq:     c.seq.Add(1),
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) reader() {
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(err)
			return
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.logger.Warn("failed to parse robot message", "error", err)
			continue
		}

		switch env.Type {
		case typeRobotState:
			var state struct {
				IsAnimating bool `json:"is_animating"`
			}
			if err := json.Unmarshal(env.Payload, &state); err != nil {
				c.logger.Warn("failed to parse robot state", "error", err)
				continue
			}
			c.busy.Store(state.IsAnimating)
		case typeControlGranted, typeControlLost:
			c.logger.Debug("behavior control update", "type", env.Type)
		default:
			ev, err := trigger.Decode(env.Type, env.Payload)
			if err != nil {
				c.logger.Warn("failed to decode event", "stream", env.Type, "error", err)
			}
			ev.At = time.Now()
			c.dispatch(env.Type, ev)
		}
	}
}

func (c *wsConn) dispatch(stream string, ev trigger.Event) {
	c.mu.Lock()
	subs := c.subs[stream]
	c.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			c.logger.Warn("subscriber backlog full, dropping event", "stream", stream, "kind", ev.Kind)
		}
	}
}

// fail records a read error as the reason the connection went away.
func (c *wsConn) fail(err error) {
	c.mu.Lock()
	if !c.closing && c.err == nil {
		c.err = &ConnectionError{Op: "read", Err: err}
	}
	c.mu.Unlock()

	c.closeOnce.Do(func() {
		_ = c.conn.Close()
		close(c.done)
	})
}

func (c *wsConn) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closedErrLocked()
}

func (c *wsConn) closedErrLocked() error {
	if c.err != nil {
		return c.err
	}
	return errClosed
}
