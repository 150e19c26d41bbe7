package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type poolFixture struct {
	queue     *Queue
	registry  *HandlerRegistry
	store     *StatusStore
	scheduler *RetryScheduler
	pool      *WorkerPool
}

func newPoolFixture(t *testing.T, workers int) *poolFixture {
	t.Helper()
	logger := setupTestLogger()
	queue := NewQueue(5000, logger)
	registry := NewHandlerRegistry()
	store := NewStatusStore(logger)
	scheduler := NewRetryScheduler(queue, store, BackoffConfig{
		BaseDelay: time.Millisecond,
		MaxDelay:  4 * time.Millisecond,
	}, logger)
	pool := NewWorkerPool(queue, registry, store, scheduler, WorkerPoolConfig{
		WorkerCount: workers,
		DequeueWait: 20 * time.Millisecond,
	}, logger)
	return &poolFixture{queue: queue, registry: registry, store: store, scheduler: scheduler, pool: pool}
}

func (f *poolFixture) start(t *testing.T) {
	t.Helper()
	f.registry.Freeze()
	f.pool.Start()
	t.Cleanup(func() {
		f.scheduler.Stop()
		f.pool.Stop()
	})
}

// waitForStatus polls the store until the task reaches the wanted
// status or the deadline passes.
func (f *poolFixture) waitForStatus(t *testing.T, id uuid.UUID, want Status, timeout time.Duration) *Task {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if rec, ok := f.store.Get(id); ok && rec.Status == want {
			return rec
		}
		time.Sleep(5 * time.Millisecond)
	}
	rec, _ := f.store.Get(id)
	t.Fatalf("task %s never reached %s, last record: %+v", id, want, rec)
	return nil
}

func TestWorkerPoolCompletesTask(t *testing.T) {
	f := newPoolFixture(t, 2)
	require.NoError(t, f.registry.Register("greet", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"greeting": "hello " + payload["name"].(string)}, nil
	}))
	f.start(t)

	tk := New("greet", map[string]any{"name": "world"})
	tk.MaxRetries = 3
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	rec := f.waitForStatus(t, tk.ID, StatusCompleted, 2*time.Second)
	assert.Equal(t, "hello world", rec.Result["greeting"])
	assert.Empty(t, rec.Error)
	assert.NotNil(t, rec.StartedAt)
	assert.NotNil(t, rec.CompletedAt)
}

func TestWorkerPoolRetriesThenFailsPermanently(t *testing.T) {
	f := newPoolFixture(t, 2)
	var attempts atomic.Int32
	require.NoError(t, f.registry.Register("flaky", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		attempts.Add(1)
		return nil, errors.New("downstream unavailable")
	}))
	f.start(t)

	tk := New("flaky", nil)
	tk.MaxRetries = 2
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	rec := f.waitForStatus(t, tk.ID, StatusFailedPermanent, 5*time.Second)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Contains(t, rec.Error, "downstream unavailable")
	assert.Nil(t, rec.Result)
	// Initial attempt plus one per retry.
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWorkerPoolRecoversAfterTransientFailure(t *testing.T) {
	f := newPoolFixture(t, 2)
	var attempts atomic.Int32
	require.NoError(t, f.registry.Register("eventually", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		if attempts.Add(1) < 3 {
			return nil, errors.New("not yet")
		}
		return map[string]any{"ok": true}, nil
	}))
	f.start(t)

	tk := New("eventually", nil)
	tk.MaxRetries = 5
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	rec := f.waitForStatus(t, tk.ID, StatusCompleted, 5*time.Second)
	assert.Equal(t, 2, rec.RetryCount)
	assert.Equal(t, true, rec.Result["ok"])
	assert.Empty(t, rec.Error)
}

func TestWorkerPoolUnknownTypeFailsPermanentlyWithoutRetry(t *testing.T) {
	f := newPoolFixture(t, 1)
	f.start(t)

	tk := New("nobody.handles.this", nil)
	tk.MaxRetries = 3
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	rec := f.waitForStatus(t, tk.ID, StatusFailedPermanent, 2*time.Second)
	assert.Contains(t, rec.Error, ErrUnknownTaskType.Error())
	assert.Equal(t, 0, rec.RetryCount, "unknown type must not consume retries")
}

func TestWorkerPoolHandlerPanicIsContained(t *testing.T) {
	f := newPoolFixture(t, 2)
	require.NoError(t, f.registry.Register("panics", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		panic("handler exploded")
	}))
	require.NoError(t, f.registry.Register("fine", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}))
	f.start(t)

	bad := New("panics", nil)
	bad.MaxRetries = 0
	f.store.Put(bad)
	require.NoError(t, f.queue.Enqueue(bad))

	good := New("fine", nil)
	good.MaxRetries = 0
	f.store.Put(good)
	require.NoError(t, f.queue.Enqueue(good))

	// The panicking task fails but the other task and its worker are
	// unaffected.
	badRec := f.waitForStatus(t, bad.ID, StatusFailedPermanent, 2*time.Second)
	assert.Contains(t, badRec.Error, "handler panic")
	f.waitForStatus(t, good.ID, StatusCompleted, 2*time.Second)
}

func TestWorkerPoolSoftTimeoutIsTransientFailure(t *testing.T) {
	f := newPoolFixture(t, 1)
	require.NoError(t, f.registry.Register("slow", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		time.Sleep(60 * time.Millisecond)
		return map[string]any{"done": true}, nil
	}))
	f.start(t)

	tk := New("slow", nil)
	tk.MaxRetries = 0
	tk.Timeout = 10 * time.Millisecond
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	// MaxRetries is zero, so the first overrun goes straight to
	// permanent failure.
	rec := f.waitForStatus(t, tk.ID, StatusFailedPermanent, 2*time.Second)
	assert.Contains(t, rec.Error, ErrTaskTimeout.Error())
}

func TestWorkerPoolDependencyStall(t *testing.T) {
	f := newPoolFixture(t, 2)
	release := make(chan struct{})
	require.NoError(t, f.registry.Register("first", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		<-release
		return map[string]any{"ok": true}, nil
	}))
	require.NoError(t, f.registry.Register("second", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}))
	f.start(t)

	first := New("first", nil)
	first.MaxRetries = 0
	f.store.Put(first)

	second := New("second", nil)
	second.MaxRetries = 0
	second.Dependencies = []uuid.UUID{first.ID}
	f.store.Put(second)

	// Enqueue the dependent first so workers keep seeing it before its
	// dependency completes.
	require.NoError(t, f.queue.Enqueue(second))
	require.NoError(t, f.queue.Enqueue(first))

	// The dependent task must not run while its dependency is pending.
	time.Sleep(100 * time.Millisecond)
	rec, ok := f.store.Get(second.ID)
	require.True(t, ok)
	assert.Equal(t, StatusPending, rec.Status, "dependent task must stay pending")
	assert.Equal(t, 0, rec.RetryCount, "dependency stall must not consume retries")

	close(release)

	f.waitForStatus(t, first.ID, StatusCompleted, 2*time.Second)
	f.waitForStatus(t, second.ID, StatusCompleted, 2*time.Second)
}

// A dependency-stalled task whose re-enqueue hits a momentarily full
// queue must get a second chance after the backoff pause instead of
// spending a retry on a condition that is not a failure.
func TestWorkerPoolDependencyStallFullQueueRetainsRetryBudget(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(1, logger)
	registry := NewHandlerRegistry()
	store := NewStatusStore(logger)
	scheduler := NewRetryScheduler(queue, store, BackoffConfig{
		BaseDelay: time.Millisecond,
		MaxDelay:  4 * time.Millisecond,
	}, logger)
	pool := NewWorkerPool(queue, registry, store, scheduler, WorkerPoolConfig{
		WorkerCount: 1,
		DequeueWait: 20 * time.Millisecond,
	}, logger)

	filler := New("filler", nil)
	require.NoError(t, queue.Enqueue(filler))

	stalled := New("stalled", nil)
	stalled.MaxRetries = 3
	stalled.Dependencies = []uuid.UUID{uuid.New()}
	store.Put(stalled)

	// The first enqueue attempt fails immediately against the full
	// queue; free the slot during the backoff pause so the second
	// attempt lands.
	done := make(chan struct{})
	go func() {
		defer close(done)
		pool.process(stalled, logger)
	}()

	time.Sleep(dependencyBackoff / 2)
	drained, err := queue.Dequeue(time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, filler.ID, drained.ID)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("process never returned")
	}

	assert.Equal(t, 0, stalled.RetryCount, "a full queue during a stall must not consume retries")
	assert.Equal(t, StatusPending, stalled.Status)
	assert.Equal(t, 1, queue.Len(), "the stalled task must be back in the queue")
}

func TestWorkerPoolStopWaitsForInFlightTask(t *testing.T) {
	f := newPoolFixture(t, 1)
	started := make(chan struct{})
	var finished atomic.Bool
	require.NoError(t, f.registry.Register("slow", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		close(started)
		time.Sleep(100 * time.Millisecond)
		finished.Store(true)
		return nil, nil
	}))
	f.registry.Freeze()
	f.pool.Start()
	t.Cleanup(f.scheduler.Stop)

	tk := New("slow", nil)
	f.store.Put(tk)
	require.NoError(t, f.queue.Enqueue(tk))

	<-started
	f.pool.Stop()
	assert.True(t, finished.Load(), "Stop must wait for the in-flight task to finish")
}

func TestWorkerPoolDrainsConcurrentLoad(t *testing.T) {
	const producers = 10
	const perProducer = 100

	f := newPoolFixture(t, 10)
	require.NoError(t, f.registry.Register("load", func(ctx context.Context, payload map[string]any) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	}))
	f.start(t)

	ids := make(chan uuid.UUID, producers*perProducer)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				tk := New("load", nil)
				tk.MaxRetries = 0
				f.store.Put(tk)
				if err := f.queue.Enqueue(tk); err != nil {
					t.Error(err)
					return
				}
				ids <- tk.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	// Every submitted task must end terminal, exactly once each.
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if f.store.Counts()[StatusCompleted] == producers*perProducer {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	counts := f.store.Counts()
	assert.Equal(t, producers*perProducer, counts[StatusCompleted], "all tasks must complete: %v", counts)

	seen := 0
	for id := range ids {
		rec, ok := f.store.Get(id)
		require.True(t, ok, "task %s missing from store", id)
		require.Equal(t, StatusCompleted, rec.Status)
		seen++
	}
	assert.Equal(t, producers*perProducer, seen)
}
