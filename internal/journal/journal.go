package journal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const fileName = "journal.jsonl"

// Entry is one line of the journal.
type Entry struct {
	Seq     int64           `json:"seq"`
	Type    string          `json:"type"`
	Session string          `json:"session,omitempty"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Journal is a bounded append-only JSONL record of sessions, authority
// transitions and trigger events. It keeps the newest maxSize entries.
type Journal struct {
	path      string
	maxSize   int
	entries   []Entry
	fileLines int
	seq       int64
	mu        sync.Mutex
	append    *os.File
}

func Open(stateDir string, maxSize int) (*Journal, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("journal size must be positive, got %d", maxSize)
	}
	// Ensure directory exists
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	j := &Journal{
		path:    filepath.Join(stateDir, fileName),
		maxSize: maxSize,
	}
	if err := j.load(); err != nil {
		return nil, err
	}
	if err := j.openAppend(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) load() error {
	file, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		j.fileLines++
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue // Skip torn or invalid lines
		}
		j.entries = append(j.entries, entry)
		if entry.Seq > j.seq {
			j.seq = entry.Seq
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if len(j.entries) > j.maxSize {
		j.entries = append([]Entry(nil), j.entries[len(j.entries)-j.maxSize:]...)
	}
	return nil
}

func (j *Journal) openAppend() error {
	if j.append != nil {
		return nil
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open journal for append: %w", err)
	}
	j.append = file
	return nil
}

// Record appends an entry with the next sequence number.
func (j *Journal) Record(entryType, session string, at time.Time, payload any) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload: %w", err)
		}
		raw = data
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	j.seq++
	entry := Entry{Seq: j.seq, Type: entryType, Session: session, At: at.UTC(), Payload: raw}
	j.entries = append(j.entries, entry)
	if len(j.entries) > j.maxSize {
		j.entries = j.entries[1:]
	}

	if err := j.appendEntry(entry); err != nil {
		return err
	}
	// The file may hold up to twice the window before it is rewritten.
	if j.fileLines >= 2*j.maxSize {
		return j.compact()
	}
	return nil
}

func (j *Journal) appendEntry(entry Entry) error {
	if err := j.openAppend(); err != nil {
		return err
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := j.append.Write(data); err != nil {
		return err
	}
	j.fileLines++
	return nil
}

func (j *Journal) compact() error {
	tmpPath := j.path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create journal file: %w", err)
	}
	w := bufio.NewWriter(file)
	for _, entry := range j.entries {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		w.Write(data)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, j.path); err != nil {
		return err
	}
	if j.append != nil {
		_ = j.append.Close()
		j.append = nil
	}
	j.fileLines = len(j.entries)
	return j.openAppend()
}

// Entries returns a copy of the retained entries, oldest first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	result := make([]Entry, len(j.entries))
	copy(result, j.entries)
	return result
}

func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

func (j *Journal) LastSeq() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.seq
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.append == nil {
		return nil
	}
	err := j.append.Close()
	j.append = nil
	return err
}
