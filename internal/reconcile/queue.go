package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

// Job asks for one event to be copied from the Trainee-View into View.
type Job struct {
	View       views.Kind `json:"view"`
	EventID    string     `json:"eventId"`
	Reason     string     `json:"reason,omitempty"`
	Attempt    int        `json:"attempt"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

func (j Job) pendingKey() string {
	return "repair:pending:" + string(j.View) + ":" + j.EventID
}

// Queue holds repair jobs. Enqueue collapses a job whose (view, event) pair is
// already pending; Done releases the pair.
type Queue interface {
	Enqueue(ctx context.Context, job Job) (bool, error)
	Requeue(ctx context.Context, job Job) error
	// Dequeue waits up to timeout; ok is false when nothing arrived.
	Dequeue(ctx context.Context, timeout time.Duration) (job Job, ok bool, err error)
	Done(ctx context.Context, job Job) error
}

const (
	DefaultQueueKey = "repair:jobs"
	pendingTTL      = 24 * time.Hour
)

type RedisQueue struct {
	rdb goredis.UniversalClient
	key string
}

func NewRedisQueue(rdb goredis.UniversalClient, key string) *RedisQueue {
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisQueue{rdb: rdb, key: key}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job) (bool, error) {
	claimed, err := q.rdb.SetNX(ctx, job.pendingKey(), job.Reason, pendingTTL).Result()
	if err != nil {
		return false, fmt.Errorf("claim repair job: %w", err)
	}
	if !claimed {
		return false, nil
	}
	if err := q.push(ctx, job); err != nil {
		_ = q.rdb.Del(context.WithoutCancel(ctx), job.pendingKey()).Err()
		return false, err
	}
	return true, nil
}

func (q *RedisQueue) Requeue(ctx context.Context, job Job) error {
	return q.push(ctx, job)
}

func (q *RedisQueue) push(ctx context.Context, job Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("push repair job: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	res, err := q.rdb.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, goredis.Nil) {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, err
	}
	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return Job{}, false, fmt.Errorf("unexpected BRPOP reply of %d items", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return Job{}, false, fmt.Errorf("decode repair job: %w", err)
	}
	return job, true, nil
}

func (q *RedisQueue) Done(ctx context.Context, job Job) error {
	return q.rdb.Del(ctx, job.pendingKey()).Err()
}

// Len reports queued jobs; used by the CLI.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}

// MemoryQueue is a process-local Queue. Jobs are lost on restart.
type MemoryQueue struct {
	mu      sync.Mutex
	jobs    []Job
	pending map[string]bool
	signal  chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{pending: map[string]bool{}, signal: make(chan struct{}, 1)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) (bool, error) {
	q.mu.Lock()
	if q.pending[job.pendingKey()] {
		q.mu.Unlock()
		return false, nil
	}
	q.pending[job.pendingKey()] = true
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.notify()
	return true, nil
}

func (q *MemoryQueue) Requeue(_ context.Context, job Job) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.notify()
	return nil
}

func (q *MemoryQueue) notify() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (Job, bool, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			return job, true, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return Job{}, false, ctx.Err()
		case <-timer.C:
			return Job{}, false, nil
		case <-q.signal:
		}
	}
}

func (q *MemoryQueue) Done(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.pending, job.pendingKey())
	return nil
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
