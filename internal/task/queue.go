package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Queue hands task ids from the ingress path to the worker pool. At-least-once
// delivery: a dequeued id stays in flight until acked, so a crashed worker's
// task is still visible to the reaper.
type Queue interface {
	Enqueue(ctx context.Context, id uuid.UUID) error

	// Dequeue blocks up to wait for the next id. The boolean is false when
	// the wait elapsed with nothing available.
	Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error)

	// Ack drops a previously dequeued id from the in-flight set.
	Ack(ctx context.Context, id uuid.UUID) error

	// Depth reports how many ids are waiting (not counting in-flight ones).
	Depth(ctx context.Context) (int64, error)
}

// RedisQueue implements Queue on a Redis list pair: pending ids live in the
// main list, dequeued ids are atomically moved to a processing list until
// acked.
type RedisQueue struct {
	rdb  *redis.Client
	name string
}

func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name}
}

func (q *RedisQueue) processing() string {
	return q.name + ":processing"
}

func (q *RedisQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	if err := q.rdb.LPush(ctx, q.name, id.String()).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error) {
	raw, err := q.rdb.BLMove(ctx, q.name, q.processing(), "RIGHT", "LEFT", wait).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("dequeue: %w", err)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		// Drop garbage entries instead of wedging the worker on them.
		q.rdb.LRem(ctx, q.processing(), 1, raw)
		return uuid.Nil, false, fmt.Errorf("dequeue: malformed id %q: %w", raw, err)
	}
	return id, true, nil
}

func (q *RedisQueue) Ack(ctx context.Context, id uuid.UUID) error {
	if err := q.rdb.LRem(ctx, q.processing(), 1, id.String()).Err(); err != nil {
		return fmt.Errorf("ack %s: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.rdb.LLen(ctx, q.name).Result()
	if err != nil {
		return 0, fmt.Errorf("queue depth: %w", err)
	}
	return n, nil
}

// MemQueue implements Queue on a buffered channel, for tests and
// single-process deployments.
type MemQueue struct {
	ch chan uuid.UUID
}

func NewMemQueue(capacity int) *MemQueue {
	return &MemQueue{ch: make(chan uuid.UUID, capacity)}
}

// Enqueue blocks while the buffer is full; backpressure reaches the caller
// instead of turning into an admission failure.
func (q *MemQueue) Enqueue(ctx context.Context, id uuid.UUID) error {
	select {
	case q.ch <- id:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemQueue) Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case id := <-q.ch:
		return id, true, nil
	case <-timer.C:
		return uuid.Nil, false, nil
	case <-ctx.Done():
		return uuid.Nil, false, ctx.Err()
	}
}

func (q *MemQueue) Ack(context.Context, uuid.UUID) error { return nil }

func (q *MemQueue) Depth(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}
