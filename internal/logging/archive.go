package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// EventArchive persists log events to a JSON-lines journal on disk so past
// sessions remain reviewable after the in-memory hub rolls over.
type EventArchive struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	writer *bufio.Writer
}

// NewEventArchive creates (or truncates) the journal at path.
func NewEventArchive(path string) (*EventArchive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	return &EventArchive{
		path:   path,
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

// Append writes the event to the journal. Failures are swallowed so logging
// never blocks the pipeline on disk errors.
func (a *EventArchive) Append(evt LogEvent) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.ensureWriter(); err != nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	if _, err := a.writer.Write(payload); err != nil {
		return
	}
	if err := a.writer.WriteByte('\n'); err != nil {
		return
	}
	_ = a.writer.Flush()
}

// ReadSince returns up to limit events with sequence greater than since.
func (a *EventArchive) ReadSince(since uint64, limit int) ([]LogEvent, error) {
	if a == nil {
		return nil, nil
	}
	a.mu.Lock()
	path := a.path
	if a.writer != nil {
		_ = a.writer.Flush()
	}
	a.mu.Unlock()

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var events []LogEvent
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt LogEvent
		if err := json.Unmarshal(line, &evt); err != nil {
			continue
		}
		if evt.Sequence <= since {
			continue
		}
		events = append(events, evt)
		if limit > 0 && len(events) >= limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return events, err
	}
	return events, nil
}

// Path reports the journal location.
func (a *EventArchive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Close flushes and closes the journal.
func (a *EventArchive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var firstErr error
	if a.writer != nil {
		if err := a.writer.Flush(); err != nil {
			firstErr = err
		}
		a.writer = nil
	}
	if a.file != nil {
		if err := a.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		a.file = nil
	}
	return firstErr
}

func (a *EventArchive) ensureWriter() error {
	if a.writer != nil {
		return nil
	}
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	a.file = file
	a.writer = bufio.NewWriter(file)
	return nil
}
