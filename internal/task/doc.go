// Package task implements the background task processing engine: a
// priority-ordered task queue, a fixed worker pool, a handler registry,
// retry scheduling with exponential backoff, and an in-memory status
// store with retention-based eviction.
package task
