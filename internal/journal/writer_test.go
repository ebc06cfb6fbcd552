package journal

import (
	"testing"
	"time"
)

func TestWriterDrainsOnClose(t *testing.T) {
	j := openJournal(t, t.TempDir(), 10)
	w := NewWriter(j, 8, nil)

	for _, entryType := range []string{"session_start", "authority", "session_end"} {
		if !w.Record(entryType, "s1", at, nil) {
			t.Fatalf("Record(%s) rejected", entryType)
		}
	}
	w.Close()

	entries := j.Entries()
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i, want := range []string{"session_start", "authority", "session_end"} {
		if entries[i].Type != want || entries[i].Seq != int64(i+1) {
			t.Errorf("entry %d = %+v, want %s", i, entries[i], want)
		}
	}
	if w.Record("late", "s1", at, nil) {
		t.Error("Record accepted after Close")
	}
	w.Close()
}

func TestWriterNeverBlocksOnSlowJournal(t *testing.T) {
	j := openJournal(t, t.TempDir(), 10)
	w := NewWriter(j, 2, nil)

	// Holding the journal lock stalls the background write.
	j.mu.Lock()
	w.Record("first", "s1", at, nil)
	deadline := time.Now().Add(5 * time.Second)
	for len(w.ch) != 0 {
		if time.Now().After(deadline) {
			j.mu.Unlock()
			t.Fatal("writer never picked up the first entry")
		}
		time.Sleep(time.Millisecond)
	}

	accepted := 0
	for i := 0; i < 4; i++ {
		if w.Record("queued", "s1", at, nil) {
			accepted++
		}
	}
	j.mu.Unlock()
	w.Close()

	if accepted != 2 {
		t.Errorf("accepted = %d, want the buffer size", accepted)
	}
	if got := w.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}
	if got := j.Len(); got != 3 {
		t.Errorf("journal holds %d entries, want 3", got)
	}
}
