package types

import (
	"time"

	"github.com/google/uuid"
)

type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// Level returns a numeric position in the task lifecycle. Higher values are
// later; terminal states share the highest level.
func (s TaskState) Level() int {
	switch s {
	case TaskQueued:
		return 0
	case TaskRunning:
		return 1
	case TaskSucceeded, TaskFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether the state admits no further transitions.
func (s TaskState) Terminal() bool {
	return s == TaskSucceeded || s == TaskFailed
}

// CanTransition reports whether next is a legal successor state. A task moves
// queued -> running -> {succeeded, failed} and never regresses. failed is
// also reachable directly from queued (e.g. a task reaped before any worker
// picked it up).
func (s TaskState) CanTransition(next TaskState) bool {
	if s.Terminal() {
		return false
	}
	return next.Level() > s.Level()
}

func ParseTaskState(s string) (TaskState, bool) {
	switch TaskState(s) {
	case TaskQueued, TaskRunning, TaskSucceeded, TaskFailed:
		return TaskState(s), true
	default:
		return "", false
	}
}

// Task is one unit of asynchronous guardrail work. Exactly one worker mutates
// a task during execution; everyone else observes it through the store.
type Task struct {
	ID    uuid.UUID `json:"id"`
	State TaskState `json:"state"`

	Kind         RequestKind `json:"kind"`
	Prompt       string      `json:"prompt"`
	ImageBytes   []byte      `json:"-"`
	DeclaredMIME string      `json:"declared_mime,omitempty"`

	Verdict   *Verdict  `json:"verdict,omitempty"`
	ErrorKind ErrorKind `json:"error_kind,omitempty"`

	// Generation output, populated only for allowed requests whose
	// downstream call succeeded.
	GeneratedText  string `json:"generated_text,omitempty"`
	GeneratedImage string `json:"generated_image,omitempty"` // base64

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Request reconstructs the GuardRequest this task was created from.
func (t *Task) Request() *GuardRequest {
	return &GuardRequest{
		RequestID:    t.ID.String(),
		Kind:         t.Kind,
		Prompt:       t.Prompt,
		ImageBytes:   t.ImageBytes,
		DeclaredMIME: t.DeclaredMIME,
		ReceivedAt:   t.CreatedAt,
	}
}
