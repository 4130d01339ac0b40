package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryBackend is the in-process Backend. Jobs do not survive a restart.
type MemoryBackend struct {
	mu        sync.Mutex
	jobs      map[string]Job
	wait      []string
	delayed   map[string]time.Time
	active    map[string]time.Time
	failed    []string
	completed []string
	done      int64
	closed    bool
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		jobs:    map[string]Job{},
		delayed: map[string]time.Time{},
		active:  map[string]time.Time{},
	}
}

func (b *MemoryBackend) Add(ctx context.Context, job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	b.jobs[job.ID] = job
	b.wait = append(b.wait, job.ID)
	return nil
}

func (b *MemoryBackend) Reserve(ctx context.Context, deadline time.Time) (Job, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return Job{}, false, ErrClosed
	}
	for len(b.wait) > 0 {
		id := b.wait[0]
		b.wait = b.wait[1:]
		job, ok := b.jobs[id]
		if !ok {
			continue
		}
		b.active[id] = deadline
		return job, true, nil
	}
	return Job{}, false, nil
}

func (b *MemoryBackend) Complete(ctx context.Context, job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, job.ID)
	b.done++
	if job.RemoveOnComplete {
		delete(b.jobs, job.ID)
		return nil
	}
	b.jobs[job.ID] = job
	b.completed = pushBounded(b.completed, job.ID, completedKeep, b.jobs)
	return nil
}

func (b *MemoryBackend) Retry(ctx context.Context, job Job, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.active[job.ID]; !ok {
		return nil
	}
	delete(b.active, job.ID)
	b.jobs[job.ID] = job
	b.delayed[job.ID] = at
	return nil
}

func (b *MemoryBackend) Fail(ctx context.Context, job Job) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.active, job.ID)
	b.jobs[job.ID] = job
	b.failed = pushBounded(b.failed, job.ID, job.RemoveOnFail, b.jobs)
	return nil
}

// pushBounded prepends id and drops (with their bodies) entries past keep.
// keep <= 0 means unbounded.
func pushBounded(list []string, id string, keep int, jobs map[string]Job) []string {
	list = append([]string{id}, list...)
	if keep > 0 && len(list) > keep {
		for _, old := range list[keep:] {
			delete(jobs, old)
		}
		list = list[:keep]
	}
	return list
}

func (b *MemoryBackend) Promote(ctx context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moveDue(b.delayed, now), nil
}

func (b *MemoryBackend) RecoverExpired(ctx context.Context, now time.Time) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.moveDue(b.active, now), nil
}

func (b *MemoryBackend) moveDue(set map[string]time.Time, now time.Time) int {
	type due struct {
		id string
		at time.Time
	}
	var ready []due
	for id, at := range set {
		if !at.After(now) {
			ready = append(ready, due{id, at})
		}
	}
	sort.Slice(ready, func(i, j int) bool { return ready[i].at.Before(ready[j].at) })
	for _, d := range ready {
		delete(set, d.id)
		b.wait = append(b.wait, d.id)
	}
	return len(ready)
}

func (b *MemoryBackend) Stats(ctx context.Context) (Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Waiting:   int64(len(b.wait)),
		Delayed:   int64(len(b.delayed)),
		Active:    int64(len(b.active)),
		Failed:    int64(len(b.failed)),
		Completed: b.done,
	}, nil
}

func (b *MemoryBackend) Failed(ctx context.Context, n int) ([]Job, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		n = 50
	}
	out := make([]Job, 0, min(n, len(b.failed)))
	for _, id := range b.failed {
		if len(out) == n {
			break
		}
		if job, ok := b.jobs[id]; ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}
