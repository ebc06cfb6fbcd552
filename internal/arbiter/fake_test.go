package arbiter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agent-command/autonomyd/internal/clock"
	"github.com/agent-command/autonomyd/internal/robot"
	"github.com/agent-command/autonomyd/internal/trigger"
)

var epoch = time.Date(2022, 1, 1, 9, 0, 0, 0, time.UTC)

// fakeConn records control calls against the fake clock.
type fakeConn struct {
	clk clock.Clock

	mu         sync.Mutex
	requests   []time.Time
	releases   []time.Time
	busy       []bool
	busyCalls  int
	requestErr error
	releaseErr error
	subErr     error
	handlers   map[string]robot.EventHandler

	done     chan struct{}
	closeErr error
	once     sync.Once
}

func newFakeConn(clk clock.Clock) *fakeConn {
	return &fakeConn{clk: clk, handlers: make(map[string]robot.EventHandler), done: make(chan struct{})}
}

func (f *fakeConn) RequestControl(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return &robot.ControlError{Op: "request", Err: f.requestErr}
	}
	f.requests = append(f.requests, f.clk.Now())
	return nil
}

func (f *fakeConn) ReleaseControl(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.releaseErr != nil {
		return &robot.ControlError{Op: "release", Err: f.releaseErr}
	}
	f.releases = append(f.releases, f.clk.Now())
	return nil
}

func (f *fakeConn) Subscribe(stream string, handler robot.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.handlers[stream] = handler
	return nil
}

// IsBusy pops the next scripted value; the last one repeats.
func (f *fakeConn) IsBusy(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busyCalls++
	if len(f.busy) == 0 {
		return false, nil
	}
	b := f.busy[0]
	if len(f.busy) > 1 {
		f.busy = f.busy[1:]
	}
	return b, nil
}

func (f *fakeConn) Done() <-chan struct{} { return f.done }

func (f *fakeConn) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeErr
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.done) })
	return nil
}

func (f *fakeConn) drop(err error) {
	f.mu.Lock()
	f.closeErr = err
	f.mu.Unlock()
	f.Close()
}

func (f *fakeConn) emit(t *testing.T, ev trigger.Event) {
	t.Helper()
	f.mu.Lock()
	handler := f.handlers[trigger.StreamWakeWord]
	f.mu.Unlock()
	if handler == nil {
		t.Fatal("no wake_word subscriber")
	}
	handler(ev)
}

func (f *fakeConn) counts() (requests, releases, busyCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests), len(f.releases), f.busyCalls
}

func (f *fakeConn) requestTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.requests...)
}

func (f *fakeConn) subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[trigger.StreamWakeWord] != nil
}

// traceObserver records every authority and state transition.
type traceObserver struct {
	mu          sync.Mutex
	authorities []Authority
	states      []State
	triggers    []bool
}

func (o *traceObserver) AuthorityChanged(to Authority) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.authorities = append(o.authorities, to)
}

func (o *traceObserver) StateChanged(to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, to)
}

func (o *traceObserver) TriggerReceived(_ trigger.Event, accepted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.triggers = append(o.triggers, accepted)
}

func (o *traceObserver) authorityTrace() []Authority {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Authority(nil), o.authorities...)
}

func (o *traceObserver) stateTrace() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.states...)
}

// waitFor polls cond in real time; the goroutines under test run freely
// between fake clock advances.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
