package task

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// MemStore implements Store in process memory. It backs tests and single-node
// deployments that run without PostgreSQL.
type MemStore struct {
	mu    sync.RWMutex
	tasks map[uuid.UUID]*types.Task
}

func NewMemStore() *MemStore {
	return &MemStore{tasks: make(map[uuid.UUID]*types.Task)}
}

func (s *MemStore) Create(_ context.Context, t *types.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; ok {
		return fmt.Errorf("task %s already exists", t.ID)
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

func (s *MemStore) Get(_ context.Context, id uuid.UUID) (*types.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, types.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *MemStore) MarkRunning(_ context.Context, id uuid.UUID) (*types.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, types.ErrTaskNotFound
	}
	if t.State != types.TaskQueued {
		return nil, ErrStateConflict
	}
	t.State = types.TaskRunning
	t.UpdatedAt = time.Now()
	cp := *t
	return &cp, nil
}

func (s *MemStore) Complete(_ context.Context, t *types.Task) error {
	if !t.State.Terminal() {
		return fmt.Errorf("%w: complete with non-terminal state %s", ErrStateConflict, t.State)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.ID]
	if !ok {
		return types.ErrTaskNotFound
	}
	if !cur.State.CanTransition(t.State) {
		return ErrStateConflict
	}
	cur.State = t.State
	cur.Verdict = t.Verdict
	cur.ErrorKind = t.ErrorKind
	cur.GeneratedText = t.GeneratedText
	cur.GeneratedImage = t.GeneratedImage
	cur.UpdatedAt = time.Now()
	return nil
}

func (s *MemStore) ReapStale(_ context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, t := range s.tasks {
		if t.State == types.TaskRunning && t.UpdatedAt.Before(cutoff) {
			t.State = types.TaskFailed
			t.ErrorKind = types.ErrKindTaskFailed
			t.UpdatedAt = time.Now()
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *MemStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tasks {
		if t.State.Terminal() && t.UpdatedAt.Before(cutoff) {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}
