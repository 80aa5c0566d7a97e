package tools

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lexandro/ferret/analysis"
)

// DefaultRunLimit is how many completed runs a RunStore keeps.
const DefaultRunLimit = 10

// RunStore keeps recent analysis runs addressable by ID.
type RunStore struct {
	mu    sync.RWMutex
	runs  map[string]*analysis.Run
	order []string // oldest first
	limit int
}

func NewRunStore(limit int) *RunStore {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	return &RunStore{runs: make(map[string]*analysis.Run), limit: limit}
}

// Add stores run under a fresh ID, evicting the oldest run when full.
func (s *RunStore) Add(run *analysis.Run) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[id] = run
	s.order = append(s.order, id)
	for len(s.order) > s.limit {
		delete(s.runs, s.order[0])
		s.order = s.order[1:]
	}
	return id
}

// Get returns the run with id, or the latest run when id is empty.
func (s *RunStore) Get(id string) (string, *analysis.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id == "" {
		if len(s.order) == 0 {
			return "", nil, false
		}
		id = s.order[len(s.order)-1]
	}
	run, ok := s.runs[id]
	return id, run, ok
}

func (s *RunStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}
