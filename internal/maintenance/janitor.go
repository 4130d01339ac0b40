package maintenance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"tgcast/internal/queue"
	logx "tgcast/pkg/logx"
)

// Queue is the part of the queue the janitor drives.
type Queue interface {
	Name() string
	Maintain(ctx context.Context) (recovered, promoted int, err error)
	Stats(ctx context.Context) (queue.Stats, error)
}

type Config struct {
	Enabled bool
	// Sweep recovers expired leases and promotes due jobs.
	Sweep string
	// Report logs queue depth.
	Report string
	// Timeout bounds a single run.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Sweep == "" {
		c.Sweep = "@every 30s"
	}
	if c.Report == "" {
		c.Report = "@hourly"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Janitor owns a cron instance; Apply swaps the schedules in place.
type Janitor struct {
	q   Queue
	log logx.Logger

	mu  sync.Mutex
	cfg Config
	c   *cron.Cron
	ctx context.Context

	sweeps atomic.Int64
}

func New(q Queue, cfg Config, log logx.Logger) *Janitor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Janitor{q: q, cfg: cfg.withDefaults(), log: log.With(logx.String("comp", "maintenance"))}
}

// Start validates the schedules and begins triggering. A disabled janitor
// starts as a no-op.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.c != nil {
		return nil
	}
	j.ctx = ctx
	if err := j.startLocked(); err != nil {
		j.ctx = nil
		return err
	}
	return nil
}

func (j *Janitor) startLocked() error {
	if !j.cfg.Enabled {
		j.log.Info("maintenance disabled")
		return nil
	}
	sweep, err := NormalizeSchedule(j.cfg.Sweep)
	if err != nil {
		return err
	}
	report, err := NormalizeSchedule(j.cfg.Report)
	if err != nil {
		return err
	}
	sweepAt, err := parser.Parse(sweep)
	if err != nil {
		return err
	}
	reportAt, err := parser.Parse(report)
	if err != nil {
		return err
	}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithChain(cron.Recover(cronLogger{j.log}), cron.SkipIfStillRunning(cronLogger{j.log})),
	)
	c.Schedule(sweepAt, cron.FuncJob(func() { j.run("sweep", j.Sweep) }))
	c.Schedule(reportAt, cron.FuncJob(func() { j.run("report", j.Report) }))
	c.Start()
	j.c = c
	now := time.Now()
	j.log.Info("maintenance started",
		logx.String("sweep", sweep),
		logx.String("report", report),
		logx.Time("next_sweep", sweepAt.Next(now)),
		logx.Time("next_report", reportAt.Next(now)),
	)
	return nil
}

// Apply replaces the config and restarts triggering when running. An
// invalid schedule keeps the previous one active.
func (j *Janitor) Apply(cfg Config) error {
	cfg = cfg.withDefaults()
	if cfg.Enabled {
		if _, err := NormalizeSchedule(cfg.Sweep); err != nil {
			return err
		}
		if _, err := NormalizeSchedule(cfg.Report); err != nil {
			return err
		}
	}
	j.mu.Lock()
	j.cfg = cfg
	running := j.ctx != nil
	old := j.c
	j.c = nil
	j.mu.Unlock()
	if old != nil {
		<-old.Stop().Done()
	}
	if !running {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.ctx == nil || j.c != nil {
		return nil
	}
	return j.startLocked()
}

// Stop halts triggering and waits for running jobs, bounded by ctx.
func (j *Janitor) Stop(ctx context.Context) {
	j.mu.Lock()
	c := j.c
	j.c = nil
	j.ctx = nil
	j.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	j.log.Info("maintenance stopped")
}

func (j *Janitor) run(name string, fn func(context.Context) error) {
	j.mu.Lock()
	parent, timeout := j.ctx, j.cfg.Timeout
	j.mu.Unlock()
	if parent == nil {
		return
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		j.log.Warn("maintenance run failed", logx.String("job", name), logx.Err(err))
	}
}

// Sweep recovers expired leases and promotes due delayed jobs once.
func (j *Janitor) Sweep(ctx context.Context) error {
	recovered, promoted, err := j.q.Maintain(ctx)
	j.sweeps.Add(1)
	if err != nil {
		return err
	}
	if recovered > 0 || promoted > 0 {
		j.log.Info("queue swept",
			logx.String("queue", j.q.Name()),
			logx.Int("recovered", recovered),
			logx.Int("promoted", promoted),
		)
	}
	return nil
}

// Report logs the current queue depth.
func (j *Janitor) Report(ctx context.Context) error {
	st, err := j.q.Stats(ctx)
	if err != nil {
		return err
	}
	j.log.Info("queue stats",
		logx.String("queue", j.q.Name()),
		logx.Int64("waiting", st.Waiting),
		logx.Int64("delayed", st.Delayed),
		logx.Int64("active", st.Active),
		logx.Int64("failed", st.Failed),
		logx.Int64("completed", st.Completed),
	)
	return nil
}

// Sweeps reports how many sweeps have run.
func (j *Janitor) Sweeps() int64 { return j.sweeps.Load() }

// cronLogger adapts logx to cron's logger.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...any) {
	l.log.Debug("cron: "+msg, logx.Any("kv", kv))
}

func (l cronLogger) Error(err error, msg string, kv ...any) {
	l.log.Error("cron: "+msg, logx.Err(err), logx.Any("kv", kv))
}
