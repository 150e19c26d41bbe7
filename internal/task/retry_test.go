package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, base, cap time.Duration) (*RetryScheduler, *Queue, *StatusStore) {
	t.Helper()
	logger := setupTestLogger()
	queue := NewQueue(100, logger)
	store := NewStatusStore(logger)
	scheduler := NewRetryScheduler(queue, store, BackoffConfig{BaseDelay: base, MaxDelay: cap}, logger)
	t.Cleanup(scheduler.Stop)
	return scheduler, queue, store
}

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	scheduler, _, _ := newTestScheduler(t, 60*time.Second, 300*time.Second)

	assert.Equal(t, 60*time.Second, scheduler.Delay(0))
	assert.Equal(t, 120*time.Second, scheduler.Delay(1))
	assert.Equal(t, 240*time.Second, scheduler.Delay(2))
	assert.Equal(t, 300*time.Second, scheduler.Delay(3))
	assert.Equal(t, 300*time.Second, scheduler.Delay(10))
	assert.Equal(t, 300*time.Second, scheduler.Delay(64))

	// Non-decreasing across the whole range.
	prev := time.Duration(0)
	for i := 0; i < 20; i++ {
		d := scheduler.Delay(i)
		assert.GreaterOrEqual(t, d, prev, "delay must be non-decreasing at retry %d", i)
		assert.LessOrEqual(t, d, 300*time.Second)
		prev = d
	}
}

func TestHandleFailureReEnqueuesAfterDelay(t *testing.T) {
	scheduler, queue, store := newTestScheduler(t, 10*time.Millisecond, 40*time.Millisecond)

	tk := New("demo", nil)
	tk.MaxRetries = 3

	before := time.Now()
	scheduler.HandleFailure(tk, errors.New("boom"))

	rec, ok := store.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, StatusRetrying, rec.Status)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, "boom", rec.Error)

	got, err := queue.Dequeue(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, tk.ID, got.ID)
	assert.Equal(t, StatusPending, got.Status)
	// Delay for retry_count=1 is base*2 = 20ms; re-enqueue happens at
	// or after that.
	assert.GreaterOrEqual(t, time.Since(before), 20*time.Millisecond)
}

func TestHandleFailureExhaustedRetriesIsPermanent(t *testing.T) {
	scheduler, queue, store := newTestScheduler(t, time.Millisecond, 4*time.Millisecond)

	tk := New("demo", nil)
	tk.MaxRetries = 2
	tk.RetryCount = 2

	scheduler.HandleFailure(tk, errors.New("final straw"))

	rec, ok := store.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, StatusFailedPermanent, rec.Status)
	assert.Equal(t, "final straw", rec.Error)
	assert.Nil(t, rec.Result)
	assert.NotNil(t, rec.CompletedAt)
	assert.Equal(t, 2, rec.RetryCount, "retry count never exceeds max retries")

	// Never re-enqueued.
	_, err := queue.Dequeue(30 * time.Millisecond)
	assert.ErrorIs(t, err, ErrDequeueTimeout)
}

func TestRetryCountNeverExceedsMaxRetries(t *testing.T) {
	scheduler, queue, store := newTestScheduler(t, time.Millisecond, 2*time.Millisecond)

	tk := New("demo", nil)
	tk.MaxRetries = 3

	// Drive the task through every retry until exhaustion.
	for {
		rec, ok := store.Get(tk.ID)
		if ok {
			require.LessOrEqual(t, rec.RetryCount, rec.MaxRetries)
			if rec.Status == StatusFailedPermanent {
				break
			}
		}
		scheduler.HandleFailure(tk, errors.New("again"))
		if got, err := queue.Dequeue(time.Second); err == nil {
			assert.Equal(t, tk.ID, got.ID)
		}
	}

	rec, _ := store.Get(tk.ID)
	assert.Equal(t, 3, rec.RetryCount)
	assert.Equal(t, StatusFailedPermanent, rec.Status)
}

func TestSchedulerStopDropsPendingRetries(t *testing.T) {
	logger := setupTestLogger()
	queue := NewQueue(10, logger)
	store := NewStatusStore(logger)
	scheduler := NewRetryScheduler(queue, store, BackoffConfig{
		BaseDelay: time.Hour,
		MaxDelay:  2 * time.Hour,
	}, logger)

	tk := New("demo", nil)
	tk.MaxRetries = 3
	scheduler.HandleFailure(tk, errors.New("boom"))

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not cancel the pending retry timer")
	}
	assert.Equal(t, 0, queue.Len())
}
