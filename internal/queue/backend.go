package queue

import (
	"context"
	"time"
)

// Backend stores jobs and moves them between states. Every transition is
// atomic with respect to other consumers of the same backend.
//
// States: wait (FIFO), delayed (due time), active (lease deadline), failed
// (bounded, newest first), completed (counted, optionally retained).
type Backend interface {
	Add(ctx context.Context, job Job) error
	// Reserve moves the oldest waiting job to active with a lease ending at
	// deadline. ok is false when nothing is waiting.
	Reserve(ctx context.Context, deadline time.Time) (job Job, ok bool, err error)
	Complete(ctx context.Context, job Job) error
	// Retry moves an active job to delayed, due at at.
	Retry(ctx context.Context, job Job, at time.Time) error
	Fail(ctx context.Context, job Job) error
	// Promote moves due delayed jobs to wait.
	Promote(ctx context.Context, now time.Time) (int, error)
	// RecoverExpired moves active jobs whose lease ended to wait.
	RecoverExpired(ctx context.Context, now time.Time) (int, error)
	Stats(ctx context.Context) (Stats, error)
	Failed(ctx context.Context, n int) ([]Job, error)
	Close() error
}
