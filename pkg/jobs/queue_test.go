package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	done := make(chan string, 2)
	q.Handle("classify", func(ctx context.Context, job Job) error {
		done <- "classify:" + job.ID
		return nil
	})
	q.Handle("generate", func(ctx context.Context, job Job) error {
		done <- "generate:" + job.ID
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "classify"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "generate"}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-done:
			got[v] = true
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}
	assert.True(t, got["classify:1"])
	assert.True(t, got["generate:2"])
}

func TestQueueRejectsUnknownTypeAndUnstarted(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Handle("known", func(ctx context.Context, job Job) error { return nil })

	err := q.Enqueue(Job{ID: "1", Type: "known"})
	require.Error(t, err)

	q.Start(context.Background())
	defer q.Stop()
	err = q.Enqueue(Job{ID: "2", Type: "other"})
	assert.True(t, errors.Is(err, ErrUnknownJobType))
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	q := NewQueue("test", QueueConfig{MaxRetries: 2, RetryDelay: 5 * time.Millisecond})
	var attempts int32
	finished := make(chan struct{})
	q.Handle("flaky", func(ctx context.Context, job Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("transient")
		}
		close(finished)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "flaky"}))
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}
