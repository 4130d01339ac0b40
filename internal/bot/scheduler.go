package bot

import (
	"context"
	"sync"
	"time"

	logx "tgcast/pkg/logx"
)

// Scheduler runs one-shot delayed functions. Pending runs are dropped on
// Stop and are not persisted across restarts.
type Scheduler struct {
	log    logx.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timers  map[uint64]*time.Timer
	next    uint64
	stopped bool
	running sync.WaitGroup
}

func NewScheduler(log logx.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{log: log, ctx: ctx, cancel: cancel, timers: map[uint64]*time.Timer{}}
}

// After schedules fn to run once d has elapsed. It returns false after Stop.
func (s *Scheduler) After(d time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.next++
	id := s.next
	s.timers[id] = time.AfterFunc(d, func() {
		s.mu.Lock()
		if _, ok := s.timers[id]; !ok || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, id)
		s.running.Add(1)
		s.mu.Unlock()

		defer s.running.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in delayed task", logx.Any("panic", r))
			}
		}()
		fn(s.ctx)
	})
	return true
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop cancels pending timers and waits for running ones, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	dropped := len(s.timers)
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	if dropped > 0 {
		s.log.Info("dropped pending delayed tasks", logx.Int("count", dropped))
	}

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}
