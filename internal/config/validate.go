package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var webhookSecretRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,256}$`)

// Validate checks required values and resolves durations into cfg.Resolved.
// All problems are reported together.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	var errs []error
	add := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	dur := func(path, raw string) time.Duration {
		v, err := ParseDurationField(path, raw)
		add(err)
		return v
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		add(errors.New("telegram.token: required (BOT_TOKEN)"))
	}
	if strings.TrimSpace(cfg.Storage.DSN) == "" {
		add(errors.New("storage.dsn: required (MONGO_URI or DATABASE_URL)"))
	}
	switch cfg.Storage.Driver {
	case "sqlite", "postgres", "mongo":
	default:
		add(fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver))
	}
	if cfg.Telegram.Domain != "" && !strings.HasPrefix(cfg.Telegram.Domain, "http") {
		add(fmt.Errorf("telegram.domain: must be an absolute URL, got %q", cfg.Telegram.Domain))
	}
	if s := cfg.Telegram.WebhookSecret; s != "" && !webhookSecretRe.MatchString(s) {
		add(errors.New("telegram.webhook_secret: 1-256 characters of A-Z, a-z, 0-9, _ and -"))
	}
	if cfg.Queue.Attempts < 1 {
		add(errors.New("queue.attempts: must be >= 1"))
	}
	if cfg.Queue.RemoveOnFail < 0 {
		add(errors.New("queue.remove_on_fail: must be >= 0"))
	}
	if cfg.Broadcast.Concurrency < 1 {
		add(errors.New("broadcast.concurrency: must be >= 1"))
	}
	if cfg.Broadcast.RateMax < 1 {
		add(errors.New("broadcast.rate_max: must be >= 1"))
	}
	if cfg.Broadcast.PageSize < 1 {
		add(errors.New("broadcast.page_size: must be >= 1"))
	}

	r := &cfg.Resolved
	r.PollTimeout = dur("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	r.BusyTimeout = dur("storage.busy_timeout", cfg.Storage.BusyTimeout)
	r.QueueBackoff = dur("queue.backoff", cfg.Queue.Backoff)
	r.LeaseTimeout = dur("queue.lease_timeout", cfg.Queue.LeaseTimeout)
	r.PollInterval = dur("queue.poll_interval", cfg.Queue.PollInterval)
	r.HandlerTimeout = dur("queue.handler_timeout", cfg.Queue.HandlerTimeout)
	r.RateWindow = dur("broadcast.rate_window", cfg.Broadcast.RateWindow)
	r.FileRefTTL = dur("broadcast.file_ref_ttl", cfg.Broadcast.FileRefTTL)
	r.SettingsTTL = dur("settings.cache_ttl", cfg.Settings.CacheTTL)
	r.ReadTimeout = dur("http.read_timeout", cfg.HTTP.ReadTimeout)
	r.WriteTimeout = dur("http.write_timeout", cfg.HTTP.WriteTimeout)
	r.ShutdownTimeout = dur("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	r.SessionTTL = dur("auth.session_ttl", cfg.Auth.SessionTTL)

	if len(errs) == 0 && r.RateWindow <= 0 {
		add(errors.New("broadcast.rate_window: must be > 0"))
	}
	if len(errs) == 0 && r.LeaseTimeout <= 0 {
		add(errors.New("queue.lease_timeout: must be > 0"))
	}
	return errors.Join(errs...)
}
