package journal

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type pendingEntry struct {
	entryType string
	session   string
	at        time.Time
	payload   any
}

// Writer feeds a Journal from a background goroutine so callers never wait
// on disk I/O. When the buffer is full new entries are dropped.
type Writer struct {
	journal *Journal
	logger  *slog.Logger
	ch      chan pendingEntry
	done    chan struct{}
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewWriter(j *Journal, buffer int, logger *slog.Logger) *Writer {
	if buffer <= 0 {
		buffer = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		journal: j,
		logger:  logger,
		ch:      make(chan pendingEntry, buffer),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Record queues an entry and reports whether it was accepted. It never
// blocks. The payload must not be modified after the call.
func (w *Writer) Record(entryType, session string, at time.Time, payload any) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.dropped.Add(1)
		return false
	}
	select {
	case w.ch <- pendingEntry{entryType: entryType, session: session, at: at, payload: payload}:
		return true
	default:
		w.dropped.Add(1)
		return false
	}
}

func (w *Writer) Dropped() int64 { return w.dropped.Load() }

// Close stops accepting entries and waits until every queued entry has
// been written. The underlying Journal stays open.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		<-w.done
		return
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()
	<-w.done

	if n := w.Dropped(); n > 0 {
		w.logger.Warn("journal entries dropped", "count", n)
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for p := range w.ch {
		if err := w.journal.Record(p.entryType, p.session, p.at, p.payload); err != nil {
			w.logger.Warn("failed to write journal entry", "type", p.entryType, "error", err)
		}
	}
}
