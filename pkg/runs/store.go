// Package runs is a minimal in-memory run listing store backing the
// inspection surface. State is per-process; persistence is out of scope.
package runs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record describes one agent run for listing purposes.
type Record struct {
	ID        string    `json:"id"`
	AgentID   string    `json:"agentId"`
	Title     string    `json:"title"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a concurrency-safe in-memory run store.
type Store struct {
	mu    sync.Mutex
	runs  map[string]Record
	clock func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		runs:  make(map[string]Record),
		clock: time.Now,
	}
}

// Begin records a new run and returns its generated id.
func (s *Store) Begin(agentID, title string) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", errors.New("runs: agent id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	id := uuid.NewString()
	s.runs[id] = Record{
		ID:        id,
		AgentID:   agentID,
		Title:     strings.TrimSpace(title),
		Status:    "running",
		StartedAt: now,
		UpdatedAt: now,
	}
	return id, nil
}

// SetStatus updates a run's status string.
func (s *Store) SetStatus(id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("runs: unknown run %q", id)
	}
	rec.Status = status
	rec.UpdatedAt = s.clock()
	s.runs[id] = rec
	return nil
}

// Get fetches one run.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	return rec, ok
}

// List returns all runs, most recently started first.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
