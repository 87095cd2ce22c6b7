package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// ErrStateConflict is returned when a requested transition is illegal for the
// task's current state (e.g. starting a task that is already terminal).
var ErrStateConflict = errors.New("task state conflict")

// Store persists tasks. Implementations must enforce the task state machine:
// queued -> running -> {succeeded, failed}, no regressions.
type Store interface {
	// Create inserts a new task in the queued state.
	Create(ctx context.Context, t *types.Task) error

	// Get returns the task or types.ErrTaskNotFound.
	Get(ctx context.Context, id uuid.UUID) (*types.Task, error)

	// MarkRunning claims a queued task for execution and returns it.
	// Returns ErrStateConflict if the task is not queued.
	MarkRunning(ctx context.Context, id uuid.UUID) (*types.Task, error)

	// Complete records a terminal outcome. t.State must be succeeded or
	// failed; the stored task must not already be terminal.
	Complete(ctx context.Context, t *types.Task) error

	// ReapStale fails every running task whose last update is older than
	// cutoff and returns their ids.
	ReapStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)

	// DeleteOlderThan removes terminal tasks whose last update is older than
	// cutoff and reports how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
