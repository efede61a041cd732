package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var count int32
	done := make(chan struct{}, 3)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&count, 1)
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())
	defer q.Stop()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j"}))
	}
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.EqualValues(t, 3, atomic.LoadInt32(&count))
}

func TestQueueRetriesThenReportsFailure(t *testing.T) {
	var attempts int32
	var mu sync.Mutex
	var failed *Job
	finished := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	}, QueueConfig{
		MaxRetries:  2,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		OnFailure: func(job Job, err error) {
			mu.Lock()
			failed = &job
			mu.Unlock()
			close(finished)
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "n1", Type: "news_notification"}))
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("failure hook not called")
	}

	assert.EqualValues(t, 3, atomic.LoadInt32(&attempts))
	mu.Lock()
	defer mu.Unlock()
	require.NotNil(t, failed)
	assert.Equal(t, 3, failed.Attempt)
}

func TestQueueRecoversPanics(t *testing.T) {
	finished := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		panic("boom")
	}, QueueConfig{MaxRetries: 0, OnFailure: func(_ Job, err error) { finished <- err }})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "p"}))
	select {
	case err := <-finished:
		assert.Contains(t, err.Error(), "boom")
	case <-time.After(time.Second):
		t.Fatal("panic not reported")
	}
}

func TestBackoffIsCappedWithJitter(t *testing.T) {
	q := NewQueue("test", nil, QueueConfig{BackoffBase: 2 * time.Second, BackoffMax: 60 * time.Second})
	q.jitter = func() float64 { return 0.1 }

	assert.Equal(t, 2200*time.Millisecond, q.Backoff(1))
	assert.Equal(t, 4400*time.Millisecond, q.Backoff(2))
	assert.Equal(t, 8800*time.Millisecond, q.Backoff(3))
	assert.Equal(t, 66*time.Second, q.Backoff(10))

	q.jitter = func() float64 { return 0.3 }
	assert.Equal(t, 2600*time.Millisecond, q.Backoff(1))
}

func TestEnqueueRequiresRunningQueue(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{}), ErrQueueClosed)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{}), ErrQueueClosed)
}
