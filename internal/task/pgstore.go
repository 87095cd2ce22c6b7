package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/af-corp/foodguard-gateway/internal/types"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, t *types.Task) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO guard_tasks (id, state, kind, prompt, image_bytes, declared_mime, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, t.ID, t.State, t.Kind, t.Prompt, t.ImageBytes, t.DeclaredMIME, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert guard_tasks: %w", err)
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	var t types.Task
	var verdictJSON []byte
	var errorKind, generatedText, generatedImage *string

	err := s.db.QueryRow(ctx, `
		SELECT id, state, kind, prompt, image_bytes, declared_mime, verdict,
		       error_kind, generated_text, generated_image, created_at, updated_at
		FROM guard_tasks
		WHERE id = $1
	`, id).Scan(
		&t.ID, &t.State, &t.Kind, &t.Prompt, &t.ImageBytes, &t.DeclaredMIME,
		&verdictJSON, &errorKind, &generatedText, &generatedImage,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrTaskNotFound
		}
		return nil, fmt.Errorf("query guard_tasks: %w", err)
	}

	if len(verdictJSON) > 0 {
		var v types.Verdict
		if err := json.Unmarshal(verdictJSON, &v); err != nil {
			return nil, fmt.Errorf("decode stored verdict: %w", err)
		}
		t.Verdict = &v
	}
	if errorKind != nil {
		t.ErrorKind = types.ErrorKind(*errorKind)
	}
	if generatedText != nil {
		t.GeneratedText = *generatedText
	}
	if generatedImage != nil {
		t.GeneratedImage = *generatedImage
	}
	return &t, nil
}

func (s *PGStore) MarkRunning(ctx context.Context, id uuid.UUID) (*types.Task, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE guard_tasks
		SET state = 'running', updated_at = NOW()
		WHERE id = $1 AND state = 'queued'
	`, id)
	if err != nil {
		return nil, fmt.Errorf("claim guard_tasks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrStateConflict
	}
	return s.Get(ctx, id)
}

func (s *PGStore) Complete(ctx context.Context, t *types.Task) error {
	if !t.State.Terminal() {
		return fmt.Errorf("%w: complete with non-terminal state %s", ErrStateConflict, t.State)
	}

	var verdictJSON []byte
	if t.Verdict != nil {
		var err error
		verdictJSON, err = json.Marshal(t.Verdict)
		if err != nil {
			return fmt.Errorf("encode verdict: %w", err)
		}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE guard_tasks
		SET state = $2, verdict = $3, error_kind = NULLIF($4, ''),
		    generated_text = NULLIF($5, ''), generated_image = NULLIF($6, ''),
		    updated_at = NOW()
		WHERE id = $1 AND state IN ('queued', 'running')
	`, t.ID, t.State, verdictJSON, string(t.ErrorKind), t.GeneratedText, t.GeneratedImage)
	if err != nil {
		return fmt.Errorf("complete guard_tasks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, t.ID); err != nil {
			return err
		}
		return ErrStateConflict
	}
	return nil
}

func (s *PGStore) ReapStale(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE guard_tasks
		SET state = 'failed', error_kind = $2, updated_at = NOW()
		WHERE state = 'running' AND updated_at < $1
		RETURNING id
	`, cutoff, string(types.ErrKindTaskFailed))
	if err != nil {
		return nil, fmt.Errorf("reap guard_tasks: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan reaped id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PGStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM guard_tasks
		WHERE state IN ('succeeded', 'failed') AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire guard_tasks: %w", err)
	}
	return tag.RowsAffected(), nil
}
