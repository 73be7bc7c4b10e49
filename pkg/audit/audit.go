// Package audit records MCP tool invocations so validation history can be
// listed later with `fluxcheck audit`.
package audit

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one recorded tool invocation.
type Event struct {
	ID         string        `json:"id"`
	Tool       string        `json:"tool"`
	Format     string        `json:"format"`
	Valid      bool          `json:"valid"`
	Errors     []string      `json:"errors"`
	Source     string        `json:"source,omitempty"` // file path for path-based calls
	Digest     string        `json:"digest"`           // sha256 of the validated content
	Duration   time.Duration `json:"duration"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Store persists audit events.
type Store interface {
	Record(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
}

// Filter limits List results. A nil Valid matches both outcomes.
type Filter struct {
	Tool  string
	Valid *bool
	Since time.Time
	Limit int
}

func (f Filter) match(ev Event) bool {
	if f.Tool != "" && ev.Tool != f.Tool {
		return false
	}
	if f.Valid != nil && ev.Valid != *f.Valid {
		return false
	}
	if !f.Since.IsZero() && ev.RecordedAt.Before(f.Since) {
		return false
	}
	return true
}

// prepare fills the ID and timestamp of an event about to be stored.
func prepare(ev Event) Event {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = time.Now()
	}
	ev.RecordedAt = ev.RecordedAt.UTC()
	if ev.Errors == nil {
		ev.Errors = []string{}
	}
	return ev
}

// MemoryStore keeps audit events in memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record appends an event.
func (s *MemoryStore) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, prepare(event))
	return nil
}

// List returns matching events oldest first.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, ev := range s.events {
		if !filter.match(ev) {
			continue
		}
		ev.Errors = append([]string(nil), ev.Errors...)
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func encodeErrors(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	return string(raw), err
}

func decodeErrors(raw string) []string {
	out := []string{}
	if raw == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return []string{}
	}
	return out
}
