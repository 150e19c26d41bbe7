package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// BackoffConfig holds the retry delay parameters.
type BackoffConfig struct {
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps the exponential growth of the delay.
	MaxDelay time.Duration
}

// DefaultBackoffConfig returns the default backoff parameters: 60s base
// doubling up to a 300s cap.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay: 60 * time.Second,
		MaxDelay:  300 * time.Second,
	}
}

// RetryScheduler routes transiently failed tasks back into the queue
// after an exponential backoff delay, and finalizes tasks whose retry
// budget is exhausted.
type RetryScheduler struct {
	queue  *Queue
	store  *StatusStore
	config BackoffConfig
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRetryScheduler creates a scheduler feeding re-enqueued tasks into
// the given queue and recording transitions in the store.
func NewRetryScheduler(queue *Queue, store *StatusStore, config BackoffConfig, logger *slog.Logger) *RetryScheduler {
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBackoffConfig().BaseDelay
	}
	if config.MaxDelay < config.BaseDelay {
		config.MaxDelay = config.BaseDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryScheduler{
		queue:  queue,
		store:  store,
		config: config,
		logger: logger.With("component", "retry_scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Delay computes the backoff delay for the given retry count:
// min(base * 2^retryCount, cap). It is non-decreasing in retryCount.
func (s *RetryScheduler) Delay(retryCount int) time.Duration {
	if retryCount < 0 {
		retryCount = 0
	}
	// Past this many doublings the shift alone exceeds any sane cap.
	if retryCount > 32 {
		return s.config.MaxDelay
	}
	d := s.config.BaseDelay << uint(retryCount)
	if d <= 0 || d > s.config.MaxDelay {
		return s.config.MaxDelay
	}
	return d
}

// HandleFailure processes a transient failure. If the task has retries
// left its retry count is incremented, it transitions to retrying, and
// it is re-enqueued at or after now + Delay(retryCount). Otherwise it
// is finalized as a permanent failure and never re-enqueued.
func (s *RetryScheduler) HandleFailure(t *Task, cause error) {
	logger := s.logger.With("task_id", t.ID, "task_type", t.Type)

	if t.RetryCount >= t.MaxRetries {
		s.finalize(t, cause)
		return
	}

	t.RetryCount++
	t.Status = StatusRetrying
	t.Error = cause.Error()
	s.store.Put(t)

	delay := s.Delay(t.RetryCount)
	logger.Info("scheduling task retry",
		"retry_count", t.RetryCount,
		"max_retries", t.MaxRetries,
		"delay", delay,
		"error", cause)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			// Shutting down; the task stays in retrying state. There
			// is no durable recovery in this in-memory engine.
			logger.Warn("dropping scheduled retry on shutdown", "retry_count", t.RetryCount)
			return
		case <-timer.C:
		}

		t.Status = StatusPending
		t.StartedAt = nil
		s.store.Put(t)

		if err := s.queue.Enqueue(t); err != nil {
			if errors.Is(err, ErrQueueFull) {
				// Queue pressure counts against the retry budget.
				s.HandleFailure(t, err)
				return
			}
			logger.Warn("failed to re-enqueue task for retry", "error", err)
		}
	}()
}

// finalize records a permanent failure. The task is never re-enqueued.
func (s *RetryScheduler) finalize(t *Task, cause error) {
	now := time.Now().UTC()
	t.Status = StatusFailedPermanent
	t.Error = cause.Error()
	t.Result = nil
	t.CompletedAt = &now
	s.store.Put(t)

	s.logger.Error("task failed permanently",
		"task_id", t.ID,
		"task_type", t.Type,
		"retry_count", t.RetryCount,
		"max_retries", t.MaxRetries,
		"error", cause)
}

// Stop cancels pending retry timers and waits for their goroutines.
func (s *RetryScheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}
