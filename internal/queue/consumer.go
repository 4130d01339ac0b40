package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"tgcast/internal/runtime/supervisor"
	logx "tgcast/pkg/logx"
)

// Handler processes one job. Returning nil completes it; NoRetry errors fail
// it immediately; any other error schedules a retry while attempts remain.
type Handler func(ctx context.Context, job Job) error

type ConsumerConfig struct {
	Concurrency    int
	RateMax        int
	RateWindow     time.Duration
	LeaseTimeout   time.Duration
	PollInterval   time.Duration
	HandlerTimeout time.Duration
}

func (c ConsumerConfig) normalize() ConsumerConfig {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.LeaseTimeout <= 0 {
		c.LeaseTimeout = 2 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 250 * time.Millisecond
	}
	return c
}

// ConsumerStats are counters since Start.
type ConsumerStats struct {
	Processed uint64 `json:"processed"`
	Completed uint64 `json:"completed"`
	Retried   uint64 `json:"retried"`
	Failed    uint64 `json:"failed"`
	InFlight  int32  `json:"inFlight"`
}

type Consumer struct {
	q       *Queue
	handler Handler
	log     logx.Logger

	mu      sync.Mutex
	cfg     ConsumerConfig
	limiter *rate.Limiter
	sup     *supervisor.Supervisor

	processed atomic.Uint64
	completed atomic.Uint64
	retried   atomic.Uint64
	failed    atomic.Uint64
	inFlight  atomic.Int32
}

func NewConsumer(q *Queue, h Handler, cfg ConsumerConfig, log logx.Logger) *Consumer {
	cfg = cfg.normalize()
	return &Consumer{
		q:       q,
		handler: h,
		log:     log.With(logx.String("comp", "queue"), logx.String("queue", q.Name())),
		cfg:     cfg,
		limiter: newLimiter(cfg.RateMax, cfg.RateWindow),
	}
}

// newLimiter allows max starts per window. Burst 1 spreads starts evenly so
// no window ever sees more than max.
func newLimiter(max int, window time.Duration) *rate.Limiter {
	if max <= 0 || window <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(window/time.Duration(max)), 1)
}

// SetRate changes the start-rate ceiling of a running consumer.
func (c *Consumer) SetRate(max int, window time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.RateMax, c.cfg.RateWindow = max, window
	if max <= 0 || window <= 0 {
		c.limiter.SetLimit(rate.Inf)
		return
	}
	c.limiter.SetLimit(rate.Every(window / time.Duration(max)))
}

func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sup != nil {
		return nil
	}
	c.sup = supervisor.New(ctx, supervisor.WithLogger(c.log))
	for i := 0; i < c.cfg.Concurrency; i++ {
		c.sup.GoRestart(fmt.Sprintf("queue.worker.%d", i), c.work)
	}
	c.log.Info("consumer started", logx.Int("concurrency", c.cfg.Concurrency), logx.Int("rate_max", c.cfg.RateMax), logx.Duration("rate_window", c.cfg.RateWindow))
	return nil
}

// Stop cancels the workers and waits for in-flight jobs, bounded by ctx.
// Jobs interrupted mid-flight keep their lease and are recovered later.
func (c *Consumer) Stop(ctx context.Context) error {
	c.mu.Lock()
	sup := c.sup
	c.sup = nil
	c.mu.Unlock()
	if sup == nil {
		return nil
	}
	return sup.Stop(ctx)
}

func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Processed: c.processed.Load(),
		Completed: c.completed.Load(),
		Retried:   c.retried.Load(),
		Failed:    c.failed.Load(),
		InFlight:  c.inFlight.Load(),
	}
}

func (c *Consumer) snapshot() (ConsumerConfig, *rate.Limiter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg, c.limiter
}

func (c *Consumer) work(ctx context.Context) error {
	backend := c.q.Backend()
	for {
		if ctx.Err() != nil {
			return nil
		}
		cfg, lim := c.snapshot()

		job, ok, err := backend.Reserve(ctx, c.q.now().Add(cfg.LeaseTimeout))
		if errors.Is(err, ErrClosed) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reserve: %w", err)
		}
		if !ok {
			if _, err := backend.Promote(ctx, c.q.now()); err != nil && ctx.Err() == nil {
				c.log.Warn("promote failed", logx.Err(err))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(cfg.PollInterval):
			}
			continue
		}

		if err := lim.Wait(ctx); err != nil {
			// Shutting down; hand the job back without spending an attempt.
			_ = backend.Retry(context.WithoutCancel(ctx), job, c.q.now())
			return nil
		}
		c.process(ctx, cfg, job)
	}
}

func (c *Consumer) process(ctx context.Context, cfg ConsumerConfig, job Job) {
	c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	c.processed.Add(1)

	job.AttemptsMade++
	err := c.run(ctx, cfg, job)

	// State writes must land even when the worker is being canceled.
	wctx := context.WithoutCancel(ctx)
	now := c.q.now()

	switch {
	case err == nil:
		c.completed.Add(1)
		if e := c.q.Backend().Complete(wctx, job); e != nil {
			c.log.Error("complete failed", logx.String("job", job.ID), logx.Err(e))
		}
	case ctx.Err() != nil && errors.Is(err, context.Canceled):
		// Leave the lease in place; recovery returns the job to wait.
		c.log.Debug("job interrupted by shutdown", logx.String("job", job.ID))
	case IsNoRetry(err) || job.AttemptsMade >= job.MaxAttempts:
		c.failed.Add(1)
		job.LastError = err.Error()
		job.FinishedAt = &now
		if e := c.q.Backend().Fail(wctx, job); e != nil {
			c.log.Error("fail failed", logx.String("job", job.ID), logx.Err(e))
		}
		c.log.Warn("job failed", logx.String("job", job.ID), logx.Int("attempts", job.AttemptsMade), logx.Err(err))
	default:
		c.retried.Add(1)
		job.LastError = err.Error()
		delay := RetryDelay(job.Backoff, job.AttemptsMade, err)
		if e := c.q.Backend().Retry(wctx, job, now.Add(delay)); e != nil {
			c.log.Error("retry failed", logx.String("job", job.ID), logx.Err(e))
		}
		c.log.Debug("job retry scheduled", logx.String("job", job.ID), logx.Int("attempt", job.AttemptsMade+1), logx.Duration("delay", delay), logx.Err(err))
	}
}

func (c *Consumer) run(ctx context.Context, cfg ConsumerConfig, job Job) (err error) {
	runCtx := ctx
	if cfg.HandlerTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.HandlerTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			c.log.Error("job panic", logx.String("job", job.ID), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	return c.handler(runCtx, job)
}
