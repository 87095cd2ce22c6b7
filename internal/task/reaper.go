package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/af-corp/foodguard-gateway/internal/telemetry"
)

// Reaper periodically fails running tasks whose worker disappeared and expires
// terminal tasks past the retention window.
type Reaper struct {
	store     Store
	queue     Queue
	lease     time.Duration
	retention time.Duration
	interval  time.Duration
	metrics   *telemetry.Metrics
	logger    *slog.Logger
}

func NewReaper(store Store, queue Queue, lease, retention, interval time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) *Reaper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:     store,
		queue:     queue,
		lease:     lease,
		retention: retention,
		interval:  interval,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reap-and-expire pass.
func (r *Reaper) Sweep(ctx context.Context) {
	now := time.Now()

	ids, err := r.store.ReapStale(ctx, now.Add(-r.lease))
	if err != nil {
		r.logger.Error("reap pass failed", "error", err)
	} else if len(ids) > 0 {
		r.logger.Warn("reaped stale running tasks", "count", len(ids))
		for _, id := range ids {
			r.queue.Ack(ctx, id)
			if r.metrics != nil {
				r.metrics.RecordTaskState("failed")
			}
		}
	}

	if r.retention > 0 {
		n, err := r.store.DeleteOlderThan(ctx, now.Add(-r.retention))
		if err != nil {
			r.logger.Error("retention pass failed", "error", err)
		} else if n > 0 {
			r.logger.Info("expired terminal tasks", "count", n)
		}
	}

	if r.metrics != nil {
		if depth, err := r.queue.Depth(ctx); err == nil {
			r.metrics.QueueDepth.Set(float64(depth))
		}
	}
}
