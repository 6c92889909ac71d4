package reconcile

import (
	"context"
	"time"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
	"github.com/yungbote/trainwatch-backend/internal/observability"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

// QueueScheduler hands failed view writes to a repair queue.
type QueueScheduler struct {
	log     *logger.Logger
	queue   Queue
	metrics *observability.Metrics
	now     func() time.Time
}

func NewQueueScheduler(log *logger.Logger, queue Queue, metrics *observability.Metrics) *QueueScheduler {
	return &QueueScheduler{
		log:     log.With("service", "RepairScheduler"),
		queue:   queue,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *QueueScheduler) Schedule(ctx context.Context, view views.Kind, eventID, reason string) error {
	job := Job{View: view, EventID: eventID, Reason: reason, EnqueuedAt: s.now()}
	queued, err := s.queue.Enqueue(ctx, job)
	if err != nil {
		return err
	}
	if !queued {
		s.log.Debug("repair already pending", "view", string(view), "event_id", eventID)
		return nil
	}
	s.metrics.IncRepair(string(view), "scheduled")
	s.log.Info("repair scheduled", "view", string(view), "event_id", eventID, "reason", reason)
	return nil
}

// LogScheduler only records the gap; drift checks can repair it later.
type LogScheduler struct {
	log *logger.Logger
}

func NewLogScheduler(log *logger.Logger) *LogScheduler {
	return &LogScheduler{log: log.With("service", "RepairScheduler")}
}

func (s *LogScheduler) Schedule(_ context.Context, view views.Kind, eventID, reason string) error {
	s.log.Warn("view left stale; no repair queue configured", "view", string(view), "event_id", eventID, "reason", reason)
	return nil
}
