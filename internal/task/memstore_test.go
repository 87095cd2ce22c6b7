package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

func queuedTask() *types.Task {
	now := time.Now()
	return &types.Task{
		ID:        uuid.New(),
		State:     types.TaskQueued,
		Kind:      types.KindText,
		Prompt:    "a bowl of ramen",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tk := queuedTask()

	if err := s.Create(ctx, tk); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.State != types.TaskQueued {
		t.Errorf("state = %s, want queued", got.State)
	}

	running, err := s.MarkRunning(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if running.State != types.TaskRunning {
		t.Errorf("state = %s, want running", running.State)
	}

	running.State = types.TaskSucceeded
	running.Verdict = &types.Verdict{Decision: types.DecisionAllow, Reason: "keyword_match:ramen"}
	if err := s.Complete(ctx, running); err != nil {
		t.Fatal(err)
	}

	final, err := s.Get(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.State != types.TaskSucceeded {
		t.Errorf("state = %s, want succeeded", final.State)
	}
	if final.Verdict == nil || final.Verdict.Reason != "keyword_match:ramen" {
		t.Errorf("verdict not persisted: %+v", final.Verdict)
	}
}

func TestMemStore_GetMissing(t *testing.T) {
	s := NewMemStore()
	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("expected ErrTaskNotFound, got %v", err)
	}
}

func TestMemStore_DoubleClaim(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tk := queuedTask()
	if err := s.Create(ctx, tk); err != nil {
		t.Fatal(err)
	}

	if _, err := s.MarkRunning(ctx, tk.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MarkRunning(ctx, tk.ID); !errors.Is(err, ErrStateConflict) {
		t.Errorf("second claim: expected ErrStateConflict, got %v", err)
	}
}

func TestMemStore_TerminalIsFinal(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tk := queuedTask()
	if err := s.Create(ctx, tk); err != nil {
		t.Fatal(err)
	}

	running, err := s.MarkRunning(ctx, tk.ID)
	if err != nil {
		t.Fatal(err)
	}
	running.State = types.TaskFailed
	running.ErrorKind = types.ErrKindModelUnavailable
	if err := s.Complete(ctx, running); err != nil {
		t.Fatal(err)
	}

	// Retrying the terminal write must not change the stored outcome.
	running.State = types.TaskSucceeded
	if err := s.Complete(ctx, running); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict, got %v", err)
	}

	got, _ := s.Get(ctx, tk.ID)
	if got.State != types.TaskFailed || got.ErrorKind != types.ErrKindModelUnavailable {
		t.Errorf("terminal outcome mutated: %s/%s", got.State, got.ErrorKind)
	}
}

func TestMemStore_CompleteRejectsNonTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tk := queuedTask()
	if err := s.Create(ctx, tk); err != nil {
		t.Fatal(err)
	}

	tk.State = types.TaskRunning
	if err := s.Complete(ctx, tk); !errors.Is(err, ErrStateConflict) {
		t.Errorf("expected ErrStateConflict, got %v", err)
	}
}

func TestMemStore_ReapStale(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	stale := queuedTask()
	if err := s.Create(ctx, stale); err != nil {
		t.Fatal(err)
	}
	if _, err := s.MarkRunning(ctx, stale.ID); err != nil {
		t.Fatal(err)
	}

	fresh := queuedTask()
	if err := s.Create(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	// Everything updated before this instant counts as stale.
	ids, err := s.ReapStale(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != stale.ID {
		t.Fatalf("reaped %v, want [%s]", ids, stale.ID)
	}

	got, _ := s.Get(ctx, stale.ID)
	if got.State != types.TaskFailed || got.ErrorKind != types.ErrKindTaskFailed {
		t.Errorf("reaped task = %s/%s, want failed/TaskFailed", got.State, got.ErrorKind)
	}

	// Queued tasks are not the reaper's business.
	q, _ := s.Get(ctx, fresh.ID)
	if q.State != types.TaskQueued {
		t.Errorf("queued task touched by reaper: %s", q.State)
	}
}

func TestMemStore_DeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	done := queuedTask()
	if err := s.Create(ctx, done); err != nil {
		t.Fatal(err)
	}
	running, err := s.MarkRunning(ctx, done.ID)
	if err != nil {
		t.Fatal(err)
	}
	running.State = types.TaskSucceeded
	if err := s.Complete(ctx, running); err != nil {
		t.Fatal(err)
	}

	pending := queuedTask()
	if err := s.Create(ctx, pending); err != nil {
		t.Fatal(err)
	}

	n, err := s.DeleteOlderThan(ctx, time.Now().Add(time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
	if _, err := s.Get(ctx, done.ID); !errors.Is(err, types.ErrTaskNotFound) {
		t.Errorf("terminal task should be gone, got %v", err)
	}
	if _, err := s.Get(ctx, pending.ID); err != nil {
		t.Errorf("non-terminal task must survive retention: %v", err)
	}
}
