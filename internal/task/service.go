package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/telemetry"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Service is the ingress-facing surface of the async layer: submit a request
// as a queued task, poll it later by id.
type Service struct {
	store   Store
	queue   Queue
	metrics *telemetry.Metrics
}

func NewService(store Store, queue Queue, metrics *telemetry.Metrics) *Service {
	return &Service{store: store, queue: queue, metrics: metrics}
}

// Submit persists the request as a queued task and hands its id to the
// workers. The task is durable before the id is enqueued, so a queue crash
// leaves a findable (if stuck) task rather than a lost one.
func (s *Service) Submit(ctx context.Context, req *types.GuardRequest) (*types.Task, error) {
	now := time.Now()
	t := &types.Task{
		ID:           uuid.New(),
		State:        types.TaskQueued,
		Kind:         req.Kind,
		Prompt:       req.Prompt,
		ImageBytes:   req.ImageBytes,
		DeclaredMIME: req.DeclaredMIME,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("persist task: %w", err)
	}
	if err := s.queue.Enqueue(ctx, t.ID); err != nil {
		return nil, fmt.Errorf("enqueue task %s: %w", t.ID, err)
	}

	if s.metrics != nil {
		s.metrics.RecordTaskState(string(types.TaskQueued))
		if depth, err := s.queue.Depth(ctx); err == nil {
			s.metrics.QueueDepth.Set(float64(depth))
		}
	}
	return t, nil
}

// Get returns the task or types.ErrTaskNotFound.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	return s.store.Get(ctx, id)
}
