package config

import (
	"time"

	logx "tgcast/pkg/logx"
)

// Config is the full process configuration. Every section may be omitted
// from the file; defaults and environment overrides are applied by Load.
//
// Durations are Go duration strings ("500ms", "10s", "24h").
type Config struct {
	Telegram    TelegramConfig    `json:"telegram"`
	Logging     LoggingConfig     `json:"logging"`
	Storage     StorageConfig     `json:"storage"`
	Redis       RedisConfig       `json:"redis"`
	Queue       QueueConfig       `json:"queue"`
	Broadcast   BroadcastConfig   `json:"broadcast"`
	Settings    SettingsConfig    `json:"settings"`
	HTTP        HTTPConfig        `json:"http"`
	Auth        AuthConfig        `json:"auth"`
	Uploads     UploadsConfig     `json:"uploads"`
	Maintenance MaintenanceConfig `json:"maintenance"`

	Resolved Resolved `json:"-"`
}

type TelegramConfig struct {
	// Token is normally provided through BOT_TOKEN.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// Domain is the public base URL ("https://bot.example.com"). When set the
	// bot receives updates through a webhook mounted on the HTTP server.
	Domain      string `json:"domain,omitempty"`
	WebhookPath string `json:"webhook_path,omitempty"`
	// WebhookSecret is registered with setWebhook and required on every
	// webhook request. A random one is generated at startup when empty.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	File    struct {
		Enabled bool   `json:"enabled"`
		Path    string `json:"path"`
	} `json:"file"`
}

// Logx maps the section onto the logging service config.
func (l LoggingConfig) Logx() logx.Config {
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
	}
}

// StorageConfig selects the document store.
//
// Driver is one of "sqlite", "postgres" or "mongo". When empty it is inferred
// from the DSN scheme.
type StorageConfig struct {
	Driver string `json:"driver,omitempty"`
	DSN    string `json:"dsn,omitempty"`
	// Database is the mongo database name (default "tgcast").
	Database    string `json:"database,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type RedisConfig struct {
	// URL uses the redis:// scheme. The value "memory" selects the
	// in-process cache and queue (single process only).
	URL string `json:"url,omitempty"`
}

type QueueConfig struct {
	Name           string `json:"name,omitempty"`
	Attempts       int    `json:"attempts,omitempty"`
	Backoff        string `json:"backoff,omitempty"`
	RemoveOnFail   int    `json:"remove_on_fail,omitempty"`
	LeaseTimeout   string `json:"lease_timeout,omitempty"`
	PollInterval   string `json:"poll_interval,omitempty"`
	KeepCompleted  bool   `json:"keep_completed,omitempty"`
	HandlerTimeout string `json:"handler_timeout,omitempty"`
}

type BroadcastConfig struct {
	Concurrency int    `json:"concurrency,omitempty"`
	RateMax     int    `json:"rate_max,omitempty"`
	RateWindow  string `json:"rate_window,omitempty"`
	PageSize    int    `json:"page_size,omitempty"`
	FileRefTTL  string `json:"file_ref_ttl,omitempty"`
}

type SettingsConfig struct {
	CacheTTL string `json:"cache_ttl,omitempty"`
}

type HTTPConfig struct {
	Addr            string `json:"addr,omitempty"`
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`
	MaxUploadBytes  int64  `json:"max_upload_bytes,omitempty"`
	// Pprof mounts /debug/pprof/ behind admin auth.
	Pprof bool `json:"pprof,omitempty"`
}

// AuthConfig drives the admin login stub. An empty JWTSecret disables auth.
type AuthConfig struct {
	AdminPassword string `json:"admin_password,omitempty"`
	JWTSecret     string `json:"jwt_secret,omitempty"`
	SessionTTL    string `json:"session_ttl,omitempty"`
}

type UploadsConfig struct {
	Dir string `json:"dir,omitempty"`
	// PublicURL is the base used for returned upload URLs; defaults to
	// telegram.domain.
	PublicURL string `json:"public_url,omitempty"`
}

type MaintenanceConfig struct {
	Enabled   *bool  `json:"enabled,omitempty"`
	Promote   string `json:"promote,omitempty"`
	StatsSpec string `json:"stats,omitempty"`
}

// Resolved holds parsed durations. Validate fills it and callers read
// durations from here.
type Resolved struct {
	PollTimeout     time.Duration
	BusyTimeout     time.Duration
	QueueBackoff    time.Duration
	LeaseTimeout    time.Duration
	PollInterval    time.Duration
	HandlerTimeout  time.Duration
	RateWindow      time.Duration
	FileRefTTL      time.Duration
	SettingsTTL     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	SessionTTL      time.Duration
}

func (m MaintenanceConfig) IsEnabled() bool { return m.Enabled == nil || *m.Enabled }
