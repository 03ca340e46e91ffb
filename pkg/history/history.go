// Package history keeps a bounded in-memory log of every request the mock
// server served. Verification runs against this log, so its capacity bounds
// how far back verification can see.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/httpmock/httpmock/pkg/mock"
)

// DefaultLimit is the history capacity used when none is configured.
const DefaultLimit = 100

// Entry is one recorded request with its arrival time and, when a mock
// matched, the ID of that mock.
type Entry struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Request   *mock.Request `json:"request"`
	MatchedID *uint64       `json:"matched_mock_id,omitempty"`
}

// Store is a bounded FIFO request log. When the capacity is reached the
// oldest entry is evicted.
type Store struct {
	mu      sync.RWMutex
	entries []*Entry
	limit   int
}

// NewStore creates a Store with the given capacity. Non-positive values fall
// back to DefaultLimit.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		entries: make([]*Entry, 0, limit),
		limit:   limit,
	}
}

// Add records a request. The request is cloned so later mutation by the
// caller cannot corrupt the log.
func (s *Store) Add(r *mock.Request, matchedID *uint64) *Entry {
	entry := &Entry{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Request:   r.Clone(),
		MatchedID: matchedID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.limit {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
	return entry
}

// Snapshot returns the entries oldest first. The slice is a copy; entries
// themselves are shared and must be treated as read-only.
func (s *Store) Snapshot() []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.limit)
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Limit returns the configured capacity.
func (s *Store) Limit() int {
	return s.limit
}
