package task

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/af-corp/foodguard-gateway/internal/telemetry"
	"github.com/af-corp/foodguard-gateway/internal/types"
)

// Evaluator is the guard pipeline as the worker pool sees it.
type Evaluator interface {
	Evaluate(ctx context.Context, req *types.GuardRequest) (*types.Verdict, error)
}

// Generation is the downstream provider's output for an allowed request.
type Generation struct {
	Text     string
	ImageB64 string
}

// Generator calls the billed generation provider. It is only ever invoked for
// requests the guard pipeline allowed.
type Generator interface {
	Generate(ctx context.Context, req *types.GuardRequest) (*Generation, error)
}

const (
	dequeueWait = 2 * time.Second
	ackTimeout  = 5 * time.Second
)

// Pool runs a fixed number of workers that drain the queue, evaluate each
// task through the guard pipeline, and call the generation provider for
// allowed requests. A worker panic fails its task, never the process.
type Pool struct {
	store   Store
	queue   Queue
	eval    Evaluator
	gen     Generator
	size    int
	timeout time.Duration
	metrics *telemetry.Metrics
	logger  *slog.Logger

	wg sync.WaitGroup
}

func NewPool(store Store, queue Queue, eval Evaluator, gen Generator, size int, taskTimeout time.Duration, metrics *telemetry.Metrics, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		store:   store,
		queue:   queue,
		eval:    eval,
		gen:     gen,
		size:    size,
		timeout: taskTimeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Start launches the workers. They run until ctx is cancelled; Wait blocks
// until all of them have drained.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		p.wg.Add(1)
		go func(worker int) {
			defer p.wg.Done()
			p.run(ctx, worker)
		}(i)
	}
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context, worker int) {
	log := p.logger.With("worker", worker)
	for {
		id, ok, err := p.queue.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", "error", err)
			continue
		}
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		p.process(ctx, log, id)
	}
}

func (p *Pool) process(ctx context.Context, log *slog.Logger, id uuid.UUID) {
	// Task work keeps its own deadline so shutdown does not abandon a task
	// mid-flight.
	taskCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	defer func() {
		// taskCtx may have hit its deadline by now; the ack gets its own,
		// or the id would sit on the processing list until nothing clears it.
		ackCtx, cancel := context.WithTimeout(context.Background(), ackTimeout)
		defer cancel()
		if err := p.queue.Ack(ackCtx, id); err != nil {
			log.Error("ack failed", "task_id", id, "error", err)
		}
	}()

	t, err := p.store.MarkRunning(taskCtx, id)
	if err != nil {
		// Claimed by someone else, reaped, or gone: nothing to do here.
		log.Warn("skipping task", "task_id", id, "error", err)
		return
	}
	p.recordState(types.TaskRunning)

	defer func() {
		if r := recover(); r != nil {
			log.Error("worker panic", "task_id", id, "panic", r)
			t.State = types.TaskFailed
			t.ErrorKind = types.ErrKindTaskFailed
			if err := p.store.Complete(taskCtx, t); err != nil {
				log.Error("failed to record panic outcome", "task_id", id, "error", err)
			}
			p.recordState(types.TaskFailed)
		}
	}()

	p.execute(taskCtx, log, t)
}

func (p *Pool) execute(ctx context.Context, log *slog.Logger, t *types.Task) {
	verdict, err := p.eval.Evaluate(ctx, t.Request())
	if err != nil {
		t.State = types.TaskFailed
		t.ErrorKind = types.KindOf(err)
		log.Warn("pipeline failed", "task_id", t.ID, "error_kind", t.ErrorKind, "error", err)
		p.complete(ctx, log, t)
		return
	}

	t.Verdict = verdict
	if verdict.Allowed() && p.gen != nil {
		gen, err := p.gen.Generate(ctx, t.Request())
		if err != nil {
			t.State = types.TaskFailed
			t.ErrorKind = types.KindOf(err)
			log.Warn("generation failed", "task_id", t.ID, "error_kind", t.ErrorKind, "error", err)
			p.complete(ctx, log, t)
			return
		}
		t.GeneratedText = gen.Text
		t.GeneratedImage = gen.ImageB64
	}

	t.State = types.TaskSucceeded
	p.complete(ctx, log, t)
}

func (p *Pool) complete(ctx context.Context, log *slog.Logger, t *types.Task) {
	if err := p.store.Complete(ctx, t); err != nil {
		log.Error("failed to record task outcome", "task_id", t.ID, "state", t.State, "error", err)
		return
	}
	p.recordState(t.State)
}

func (p *Pool) recordState(state types.TaskState) {
	if p.metrics != nil {
		p.metrics.RecordTaskState(string(state))
	}
}
