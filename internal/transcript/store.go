// Package transcript handles rolling transcript storage and retrieval
package transcript

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event represents one newly transcribed segment, for live UI streaming.
type Event struct {
	Index int
	Text  string
}

// Entry represents a stored transcript segment.
type Entry struct {
	Index     int
	Timestamp time.Time
	Text      string
}

// Store is the rolling in-memory transcript, mirrored to disk.
// A single writer (the pipeline worker) appends; UI readers snapshot.
type Store struct {
	mu       sync.RWMutex
	dir      string
	entries  []Entry
	words    int
	eventsCh chan Event
}

// NewStore creates a transcript store rooted at dir. The directory is
// created if missing; an empty dir disables the on-disk mirror.
func NewStore(dir string, eventBuffer int) (*Store, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating transcript dir: %w", err)
		}
	}
	return &Store{
		dir:      dir,
		eventsCh: make(chan Event, eventBuffer),
	}, nil
}

// Append stores one segment's transcript text. Empty text still creates an
// entry so segment indices stay aligned with capture order. Disk mirror
// failures are logged, never fatal.
func (s *Store) Append(text string) Entry {
	s.mu.Lock()
	e := Entry{
		Index:     len(s.entries) + 1,
		Timestamp: time.Now(),
		Text:      text,
	}
	s.entries = append(s.entries, e)
	s.words += len(strings.Fields(text))
	s.mu.Unlock()

	s.mirror(e)
	s.emit(Event{Index: e.Index, Text: text})
	return e
}

func (s *Store) mirror(e Entry) {
	if s.dir == "" {
		return
	}

	chunkPath := filepath.Join(s.dir, fmt.Sprintf("chunk_%04d.txt", e.Index))
	if err := os.WriteFile(chunkPath, []byte(e.Text), 0o644); err != nil {
		slog.Warn("failed to write chunk transcript", "path", chunkPath, "error", err)
	}

	fullPath := filepath.Join(s.dir, "full_transcript.txt")
	f, err := os.OpenFile(fullPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Warn("failed to open full transcript", "path", fullPath, "error", err)
		return
	}
	defer f.Close()

	line := fmt.Sprintf("\n[%s] %s", e.Timestamp.Format("15:04:05"), e.Text)
	if _, err := f.WriteString(line); err != nil {
		slog.Warn("failed to append full transcript", "error", err)
	}
}

// Full returns the complete timestamped transcript accumulated so far.
func (s *Store) Full() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, e := range s.entries {
		b.WriteString(fmt.Sprintf("[%s] %s\n", e.Timestamp.Format("15:04:05"), e.Text))
	}
	return b.String()
}

// Recent returns the raw text of the last n segments, space-joined.
func (s *Store) Recent(n int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := len(s.entries) - n
	if start < 0 {
		start = 0
	}
	parts := make([]string, 0, len(s.entries)-start)
	for _, e := range s.entries[start:] {
		if e.Text != "" {
			parts = append(parts, e.Text)
		}
	}
	return strings.Join(parts, " ")
}

// Count returns the number of transcribed segments.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Words returns the total word count across all entries.
func (s *Store) Words() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.words
}

// Entries returns a copy of all entries.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Events returns the channel for transcript events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// emit sends a transcript event without blocking the worker.
func (s *Store) emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
