// Package queue is a durable job queue with at-least-once delivery.
//
// Producers Enqueue JSON payloads; a Consumer runs a fixed number of workers
// that reserve jobs under a lease, gate job starts on a shared rate limiter,
// and retry failures with exponential backoff. Redis backs it in production;
// MemoryBackend gives the same semantics inside one process.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Queue struct {
	name     string
	backend  Backend
	defaults Options
	now      func() time.Time
}

func New(name string, backend Backend, defaults Options) *Queue {
	if defaults.Attempts <= 0 {
		defaults.Attempts = 1
	}
	if defaults.Backoff <= 0 {
		defaults.Backoff = time.Second
	}
	if defaults.RemoveOnComplete == nil {
		t := true
		defaults.RemoveOnComplete = &t
	}
	return &Queue{name: name, backend: backend, defaults: defaults, now: time.Now}
}

func (q *Queue) Name() string      { return q.name }
func (q *Queue) Backend() Backend  { return q.backend }
func (q *Queue) Defaults() Options { return q.defaults }

// Enqueue stores payload as a new waiting job and returns its id.
func (q *Queue) Enqueue(ctx context.Context, payload any, opt Options) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayload, err)
	}
	opt = opt.merge(q.defaults)
	job := Job{
		ID:               uuid.NewString(),
		Payload:          raw,
		MaxAttempts:      opt.Attempts,
		Backoff:          opt.Backoff,
		RemoveOnComplete: *opt.RemoveOnComplete,
		RemoveOnFail:     opt.RemoveOnFail,
		CreatedAt:        q.now().UTC(),
	}
	if err := q.backend.Add(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", q.name, err)
	}
	return job.ID, nil
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) { return q.backend.Stats(ctx) }

func (q *Queue) Failed(ctx context.Context, n int) ([]Job, error) { return q.backend.Failed(ctx, n) }

// Maintain returns expired leases and due delayed jobs to the wait list.
func (q *Queue) Maintain(ctx context.Context) (recovered, promoted int, err error) {
	now := q.now()
	if recovered, err = q.backend.RecoverExpired(ctx, now); err != nil {
		return 0, 0, err
	}
	promoted, err = q.backend.Promote(ctx, now)
	return recovered, promoted, err
}

func (q *Queue) Close() error { return q.backend.Close() }
