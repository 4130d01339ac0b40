package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"tgcast/internal/cache"
	"tgcast/internal/config"
	"tgcast/internal/queue"
	logx "tgcast/pkg/logx"
)

// MemoryRedisURL selects the in-process cache and queue backend.
const MemoryRedisURL = "memory"

// backends is the Redis-or-memory pair shared by the cache and the queue.
type backends struct {
	rdb   redis.UniversalClient
	cache cache.Cache
	queue queue.Backend
}

func (b backends) close() error {
	if b.queue != nil {
		_ = b.queue.Close()
	}
	if b.rdb != nil {
		return b.rdb.Close()
	}
	return nil
}

func openBackends(ctx context.Context, cfg *config.Config, log logx.Logger) (backends, error) {
	url := strings.TrimSpace(cfg.Redis.URL)
	if strings.EqualFold(url, MemoryRedisURL) {
		log.Warn("redis disabled; using in-process cache and queue")
		return backends{cache: cache.NewMemoryCache(), queue: queue.NewMemoryBackend()}, nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return backends{}, fmt.Errorf("redis.url: %w", err)
	}
	rdb := redis.NewClient(opt)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return backends{}, fmt.Errorf("redis ping %s: %w", opt.Addr, err)
	}
	log.Info("redis connected", logx.String("addr", opt.Addr), logx.Int("db", opt.DB))
	return backends{
		rdb:   rdb,
		cache: cache.NewRedisCache(rdb),
		queue: queue.NewRedisBackend(rdb, cfg.Queue.Name),
	}, nil
}

func queueDefaults(cfg *config.Config) queue.Options {
	removeOnComplete := !cfg.Queue.KeepCompleted
	return queue.Options{
		Attempts:         cfg.Queue.Attempts,
		Backoff:          cfg.Resolved.QueueBackoff,
		RemoveOnComplete: &removeOnComplete,
		RemoveOnFail:     cfg.Queue.RemoveOnFail,
	}
}

func consumerConfig(cfg *config.Config) queue.ConsumerConfig {
	return queue.ConsumerConfig{
		Concurrency:    cfg.Broadcast.Concurrency,
		RateMax:        cfg.Broadcast.RateMax,
		RateWindow:     cfg.Resolved.RateWindow,
		LeaseTimeout:   cfg.Resolved.LeaseTimeout,
		PollInterval:   cfg.Resolved.PollInterval,
		HandlerTimeout: cfg.Resolved.HandlerTimeout,
	}
}
