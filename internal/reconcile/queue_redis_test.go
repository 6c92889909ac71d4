package reconcile

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/trainwatch-backend/internal/domain/views"
)

func TestRedisQueueRoundTrip(t *testing.T) {
	addr := strings.TrimSpace(os.Getenv("TEST_REDIS_ADDR"))
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	ctx := context.Background()
	key := "test:repair:" + t.Name()
	job := Job{View: views.KindProgram, EventID: "e-" + t.Name(), Reason: "write_failed", EnqueuedAt: time.Now().UTC()}
	t.Cleanup(func() { _ = rdb.Del(context.Background(), key, job.pendingKey()).Err() })

	q := NewRedisQueue(rdb, key)
	ok, err := q.Enqueue(ctx, job)
	if err != nil || !ok {
		t.Fatalf("enqueue: ok=%v err=%v", ok, err)
	}
	ok, err = q.Enqueue(ctx, job)
	if err != nil || ok {
		t.Fatalf("duplicate enqueue: ok=%v err=%v", ok, err)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}

	got, ok, err := q.Dequeue(ctx, time.Second)
	if err != nil || !ok {
		t.Fatalf("dequeue: ok=%v err=%v", ok, err)
	}
	if got.EventID != job.EventID || got.View != job.View || got.Reason != job.Reason {
		t.Fatalf("dequeued %+v, want %+v", got, job)
	}
	if err := q.Done(ctx, got); err != nil {
		t.Fatalf("done: %v", err)
	}
	if ok, _ := q.Enqueue(ctx, job); !ok {
		t.Fatal("enqueue after Done should succeed")
	}

	_, _, _ = q.Dequeue(ctx, time.Second)
	_, ok, err = q.Dequeue(ctx, 1100*time.Millisecond)
	if err != nil || ok {
		t.Fatalf("empty dequeue: ok=%v err=%v", ok, err)
	}
}
