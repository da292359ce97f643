package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/campaignops/campo/pkg/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "campo:pipeline:"

// Store implements the state store on Redis. States are stored as JSON
// with a TTL so terminal pipelines age out. A single executor owns each
// pipeline end to end, so the read-modify-write in Update only needs
// in-process per-key serialization.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewStore creates a Redis-backed state store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	return &Store{
		client: client,
		logger: logger,
		ttl:    ttl,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Create allocates a pipeline id and stores the initial state. SetNX
// detects the (astronomically unlikely) id collision; one regeneration
// is attempted before giving up.
func (s *Store) Create(ctx context.Context, state *domain.PipelineState) (string, error) {
	for attempt := 0; attempt < 2; attempt++ {
		id := uuid.New().String()

		now := time.Now()
		stored := state.Clone()
		stored.PipelineID = id
		stored.CreatedAt = now
		stored.UpdatedAt = now

		data, err := json.Marshal(stored)
		if err != nil {
			return "", fmt.Errorf("failed to marshal state: %w", err)
		}

		ok, err := s.client.SetNX(ctx, getStateKey(id), data, s.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("failed to save state: %w", err)
		}
		if ok {
			return id, nil
		}
	}

	return "", domain.ErrDuplicateID
}

// Get returns the state for the given id.
func (s *Store) Get(ctx context.Context, pipelineID string) (*domain.PipelineState, error) {
	data, err := s.client.Get(ctx, getStateKey(pipelineID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, pipelineID)
		}
		return nil, fmt.Errorf("failed to get state: %w", err)
	}

	var state domain.PipelineState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// Update applies mutate under the per-key lock and writes back with the
// TTL refreshed.
func (s *Store) Update(ctx context.Context, pipelineID string, mutate func(*domain.PipelineState) error) error {
	lock := s.keyLock(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(ctx, pipelineID)
	if err != nil {
		return err
	}

	if current.Terminal() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyTerminal, pipelineID)
	}

	if err := mutate(current); err != nil {
		return err
	}
	current.UpdatedAt = time.Now()

	data, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := s.client.Set(ctx, getStateKey(pipelineID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}

	s.logger.Debug("state saved",
		zap.String("pipeline_id", pipelineID),
		zap.String("status", string(current.OverallStatus)))

	return nil
}

// ListActive scans all stored states and returns the pending and
// running ones.
func (s *Store) ListActive(ctx context.Context) ([]*domain.PipelineState, error) {
	var cursor uint64
	var keys []string

	for {
		var batch []string
		var err error

		batch, cursor, err = s.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		keys = append(keys, batch...)

		if cursor == 0 {
			break
		}
	}

	active := make([]*domain.PipelineState, 0, len(keys))
	for _, key := range keys {
		data, err := s.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var state domain.PipelineState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}

		if state.OverallStatus == domain.StatusPending || state.OverallStatus == domain.StatusRunning {
			active = append(active, &state)
		}
	}

	return active, nil
}

// RequestCancel sets the cancel flag. Returns false without error when
// the pipeline is already terminal.
func (s *Store) RequestCancel(ctx context.Context, pipelineID string) (bool, error) {
	err := s.Update(ctx, pipelineID, func(state *domain.PipelineState) error {
		state.CancelRequested = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// keyLock returns the per-pipeline mutex, creating it on first use.
func (s *Store) keyLock(pipelineID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[pipelineID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[pipelineID] = lock
	}
	return lock
}

// getStateKey returns the Redis key for a pipeline state.
func getStateKey(pipelineID string) string {
	return keyPrefix + pipelineID
}
