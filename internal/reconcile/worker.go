package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	domainagg "github.com/yungbote/trainwatch-backend/internal/domain/aggregates"
	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type ViewRepairer interface {
	Repair(ctx context.Context, req RepairRequest) (views.RecordResult, error)
}

type WorkerConfig struct {
	Concurrency int
	MaxAttempts int
	// PollTimeout bounds one blocking dequeue.
	PollTimeout time.Duration
	// RetryDelay is multiplied by the attempt number before a job is requeued.
	RetryDelay time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 5
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 2 * time.Second
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}

// Worker drains the repair queue.
type Worker struct {
	log      *logger.Logger
	queue    Queue
	repairer ViewRepairer
	metrics  *observability.Metrics
	cfg      WorkerConfig
	wg       sync.WaitGroup
}

func NewWorker(baseLog *logger.Logger, queue Queue, repairer ViewRepairer, metrics *observability.Metrics, cfg WorkerConfig) *Worker {
	return &Worker{
		log:      baseLog.With("component", "RepairWorker"),
		queue:    queue,
		repairer: repairer,
		metrics:  metrics,
		cfg:      cfg.withDefaults(),
	}
}

// Start launches the worker loops. They stop when ctx is done; Wait blocks
// until they have.
func (w *Worker) Start(ctx context.Context) {
	w.log.Info("Starting repair worker", "concurrency", w.cfg.Concurrency, "max_attempts", w.cfg.MaxAttempts)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runLoop(ctx, workerID)
		}()
	}
}

func (w *Worker) Wait() { w.wg.Wait() }

func (w *Worker) runLoop(ctx context.Context, workerID int) {
	for {
		if ctx.Err() != nil {
			w.log.Info("Repair loop stopped", "worker_id", workerID)
			return
		}
		if _, err := w.ProcessOne(ctx); err != nil && ctx.Err() == nil {
			w.log.Warn("repair dequeue failed", "worker_id", workerID, "error", err)
			sleep(ctx, w.cfg.PollTimeout)
		}
	}
}

// ProcessOne handles at most one job. It reports whether a job was taken.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	job, ok, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
	if err != nil || !ok {
		return false, err
	}
	w.handle(ctx, job)
	return true, nil
}

func (w *Worker) handle(ctx context.Context, job Job) {
	view := string(job.View)
	err := w.run(ctx, job)
	if err == nil {
		w.release(ctx, job)
		w.metrics.IncRepair(view, "repaired")
		return
	}

	attempt := job.Attempt + 1
	if domainagg.Permanent(err) || attempt >= w.cfg.MaxAttempts {
		w.release(ctx, job)
		w.metrics.IncRepair(view, "abandoned")
		w.log.Error("repair abandoned", "view", view, "event_id", job.EventID, "attempt", attempt, "error", err)
		return
	}

	w.log.Warn("repair failed; requeueing", "view", view, "event_id", job.EventID, "attempt", attempt, "error", err)
	if !sleep(ctx, time.Duration(attempt)*w.cfg.RetryDelay) {
		// Shutting down: put the job back untouched.
		_ = w.queue.Requeue(context.WithoutCancel(ctx), job)
		return
	}
	job.Attempt = attempt
	if qerr := w.queue.Requeue(ctx, job); qerr != nil {
		w.log.Error("repair requeue failed", "view", view, "event_id", job.EventID, "error", qerr)
		w.release(ctx, job)
		w.metrics.IncRepair(view, "abandoned")
		return
	}
	w.metrics.IncRepair(view, "requeued")
}

func (w *Worker) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error("repair panic", "view", string(job.View), "event_id", job.EventID, "panic", r)
			err = fmt.Errorf("repair panic: %v", r)
		}
	}()
	_, err = w.repairer.Repair(ctx, RepairRequest{View: job.View, EventID: job.EventID})
	return err
}

func (w *Worker) release(ctx context.Context, job Job) {
	if err := w.queue.Done(context.WithoutCancel(ctx), job); err != nil {
		w.log.Warn("repair release failed", "view", string(job.View), "event_id", job.EventID, "error", err)
	}
}

// sleep waits d or until ctx is done, reporting whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
