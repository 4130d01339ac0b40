package config

import "strings"

const (
	DefaultHTTPAddr       = ":4000"
	DefaultRedisURL       = "redis://127.0.0.1:6379"
	DefaultQueueName      = "broadcast-queue"
	DefaultConcurrency    = 20
	DefaultRateMax        = 25
	DefaultRateWindow     = "1s"
	DefaultAttempts       = 3
	DefaultBackoff        = "1s"
	DefaultRemoveOnFail   = 1000
	DefaultSettingsTTL    = "5m"
	DefaultFileRefTTL     = "24h"
	DefaultUploadDir      = "./public/uploads"
	DefaultPollTimeout    = "10s"
	DefaultWebhookPath    = "/telegram/webhook"
	DefaultPageSize       = 500
	DefaultMaxUploadBytes = 20 << 20
)

// Default returns a config with every default applied and no secrets.
func Default() *Config {
	cfg := &Config{}
	cfg.Logging.Console = true
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	def := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	defInt := func(dst *int, v int) {
		if *dst == 0 {
			*dst = v
		}
	}

	def(&cfg.Telegram.PollTimeout, DefaultPollTimeout)
	def(&cfg.Telegram.WebhookPath, DefaultWebhookPath)
	cfg.Telegram.Domain = strings.TrimRight(strings.TrimSpace(cfg.Telegram.Domain), "/")

	def(&cfg.Logging.Level, "info")
	if !cfg.Logging.Console && !cfg.Logging.File.Enabled {
		cfg.Logging.Console = true
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = inferDriver(cfg.Storage.DSN)
	}
	def(&cfg.Storage.Database, "tgcast")
	def(&cfg.Storage.BusyTimeout, "5s")

	def(&cfg.Redis.URL, DefaultRedisURL)

	def(&cfg.Queue.Name, DefaultQueueName)
	defInt(&cfg.Queue.Attempts, DefaultAttempts)
	def(&cfg.Queue.Backoff, DefaultBackoff)
	defInt(&cfg.Queue.RemoveOnFail, DefaultRemoveOnFail)
	def(&cfg.Queue.LeaseTimeout, "2m")
	def(&cfg.Queue.PollInterval, "250ms")
	def(&cfg.Queue.HandlerTimeout, "60s")

	defInt(&cfg.Broadcast.Concurrency, DefaultConcurrency)
	defInt(&cfg.Broadcast.RateMax, DefaultRateMax)
	def(&cfg.Broadcast.RateWindow, DefaultRateWindow)
	defInt(&cfg.Broadcast.PageSize, DefaultPageSize)
	def(&cfg.Broadcast.FileRefTTL, DefaultFileRefTTL)

	def(&cfg.Settings.CacheTTL, DefaultSettingsTTL)

	def(&cfg.HTTP.Addr, DefaultHTTPAddr)
	def(&cfg.HTTP.ReadTimeout, "30s")
	def(&cfg.HTTP.WriteTimeout, "60s")
	def(&cfg.HTTP.ShutdownTimeout, "10s")
	if cfg.HTTP.MaxUploadBytes == 0 {
		cfg.HTTP.MaxUploadBytes = DefaultMaxUploadBytes
	}

	def(&cfg.Auth.SessionTTL, "24h")

	def(&cfg.Uploads.Dir, DefaultUploadDir)
	def(&cfg.Uploads.PublicURL, cfg.Telegram.Domain)
	cfg.Uploads.PublicURL = strings.TrimRight(cfg.Uploads.PublicURL, "/")

	def(&cfg.Maintenance.Promote, "@every 30s")
	def(&cfg.Maintenance.StatsSpec, "@hourly")
}

func inferDriver(dsn string) string {
	d := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(d, "mongodb://"), strings.HasPrefix(d, "mongodb+srv://"):
		return "mongo"
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return "postgres"
	default:
		return "sqlite"
	}
}
