package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/google/uuid"
)

// Store is the in-memory pipeline state registry. The registry map is
// guarded by an RWMutex for safe concurrent insertion; mutations of a
// single pipeline are additionally serialized by a per-id mutex so a
// reader never observes a torn multi-field update.
type Store struct {
	mu     sync.RWMutex
	states map[string]*domain.PipelineState
	locks  map[string]*sync.Mutex
}

// NewStore creates an empty state store.
func NewStore() *Store {
	return &Store{
		states: make(map[string]*domain.PipelineState),
		locks:  make(map[string]*sync.Mutex),
	}
}

// Create allocates a pipeline id and stores the initial state. On the
// unlikely id collision it regenerates once, then fails.
func (s *Store) Create(ctx context.Context, state *domain.PipelineState) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	if _, exists := s.states[id]; exists {
		id = uuid.New().String()
		if _, exists := s.states[id]; exists {
			return "", domain.ErrDuplicateID
		}
	}

	now := time.Now()
	stored := state.Clone()
	stored.PipelineID = id
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.states[id] = stored
	s.locks[id] = &sync.Mutex{}

	return id, nil
}

// Get returns a copy of the state for the given id.
func (s *Store) Get(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[pipelineID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, pipelineID)
	}

	return state.Clone(), nil
}

// Update applies mutate atomically. Updates to the same pipeline id are
// serialized. Terminal states reject further mutation, and the overall
// status may never move backward.
func (s *Store) Update(ctx context.Context, pipelineID string, mutate func(*domain.PipelineState) error) error {
	lock, err := s.keyLock(pipelineID)
	if err != nil {
		return err
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.states[pipelineID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, pipelineID)
	}

	if current.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTerminal, pipelineID)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		return err
	}

	if statusRank(next.OverallStatus) < statusRank(current.OverallStatus) {
		return fmt.Errorf("invalid status transition %s -> %s", current.OverallStatus, next.OverallStatus)
	}
	if len(next.StageResults) < len(current.StageResults) {
		return fmt.Errorf("stage results may not shrink for %s", pipelineID)
	}

	next.UpdatedAt = time.Now()

	s.mu.Lock()
	s.states[pipelineID] = next
	s.mu.Unlock()

	return nil
}

// ListActive returns copies of all pending and running states.
func (s *Store) ListActive(ctx context.Context) ([]*domain.PipelineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	active := make([]*domain.PipelineState, 0)
	for _, state := range s.states {
		if state.OverallStatus == domain.StatusPending || state.OverallStatus == domain.StatusRunning {
			active = append(active, state.Clone())
		}
	}

	return active, nil
}

// RequestCancel sets the cancel flag. Returns false without error when
// the pipeline is already terminal.
func (s *Store) RequestCancel(ctx context.Context, pipelineID string) (bool, error) {
	lock, err := s.keyLock(pipelineID)
	if err != nil {
		return false, err
	}

	lock.Lock()
	defer lock.Unlock()

	s.mu.RLock()
	current, ok := s.states[pipelineID]
	s.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrNotFound, pipelineID)
	}

	if current.Terminal() {
		return false, nil
	}

	next := current.Clone()
	next.CancelRequested = true
	next.UpdatedAt = time.Now()

	s.mu.Lock()
	s.states[pipelineID] = next
	s.mu.Unlock()

	return true, nil
}

// keyLock returns the per-pipeline mutex.
func (s *Store) keyLock(pipelineID string) (*sync.Mutex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lock, ok := s.locks[pipelineID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, pipelineID)
	}
	return lock, nil
}

func statusRank(status domain.Status) int {
	switch status {
	case domain.StatusPending:
		return 0
	case domain.StatusRunning:
		return 1
	default:
		return 2
	}
}
