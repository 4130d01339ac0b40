package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BOT_TOKEN", "DOMAIN", "WEBHOOK_SECRET", "DATABASE_URL", "MONGO_URI", "STORAGE_DRIVER", "MONGO_DB",
		"REDIS_URL", "PORT", "ADMIN_PASSWORD", "JWT_SECRET", "UPLOAD_DIR", "LOG_LEVEL",
		"BROADCAST_CONCURRENCY", "BROADCAST_RATE_MAX",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestParseEnvOnlyAppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/bot")

	cfg, err := NewConfigManager("").Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Storage.Driver != "mongo" {
		t.Fatalf("driver = %q, want mongo", cfg.Storage.Driver)
	}
	if cfg.HTTP.Addr != ":4000" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Redis.URL != DefaultRedisURL {
		t.Fatalf("redis = %q", cfg.Redis.URL)
	}
	if cfg.Queue.Name != "broadcast-queue" || cfg.Queue.Attempts != 3 || cfg.Queue.RemoveOnFail != 1000 {
		t.Fatalf("queue defaults = %+v", cfg.Queue)
	}
	if cfg.Broadcast.Concurrency != 20 || cfg.Broadcast.RateMax != 25 {
		t.Fatalf("broadcast defaults = %+v", cfg.Broadcast)
	}
	r := cfg.Resolved
	if r.RateWindow != time.Second || r.QueueBackoff != time.Second {
		t.Fatalf("resolved = %+v", r)
	}
	if r.SettingsTTL != 5*time.Minute || r.FileRefTTL != 24*time.Hour {
		t.Fatalf("ttl = %v / %v", r.SettingsTTL, r.FileRefTTL)
	}
}

func TestParseYAMLWithEnvOverride(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "config.yaml", `
telegram:
  token: file-token
  domain: https://bot.example.com/
storage:
  dsn: file:test.db
broadcast:
  concurrency: 4
logging:
  level: debug
`)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("PORT", "8081")

	cfg, err := NewConfigManager(p).Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Telegram.Domain != "https://bot.example.com" {
		t.Fatalf("domain = %q", cfg.Telegram.Domain)
	}
	if cfg.Uploads.PublicURL != "https://bot.example.com" {
		t.Fatalf("public url = %q", cfg.Uploads.PublicURL)
	}
	if cfg.HTTP.Addr != ":8081" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("driver = %q", cfg.Storage.Driver)
	}
	if cfg.Broadcast.Concurrency != 4 {
		t.Fatalf("concurrency = %d", cfg.Broadcast.Concurrency)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	clearEnv(t)
	p := writeFile(t, "config.json", `{"telegram":{"token":"x"},"storage":{"dsn":"a.db"},"bogus":1}`)
	if _, err := NewConfigManager(p).Parse(); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestParseFailsFastOnMissingSecrets(t *testing.T) {
	clearEnv(t)
	_, err := NewConfigManager("").Parse()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"telegram.token", "storage.dsn"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("DATABASE_URL", "postgres://u@localhost/db")
	p := writeFile(t, "config.json", `{"queue":{"backoff":"soon"}}`)
	_, err := NewConfigManager(p).Parse()
	if err == nil || !strings.Contains(err.Error(), "queue.backoff") {
		t.Fatalf("err = %v", err)
	}
}

func TestWebhookSecretFromEnvAndValidated(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("DATABASE_URL", "postgres://u@localhost/db")
	t.Setenv("WEBHOOK_SECRET", "s3cret_token-1")
	cfg, err := NewConfigManager("").Parse()
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Telegram.WebhookSecret != "s3cret_token-1" {
		t.Fatalf("secret = %q", cfg.Telegram.WebhookSecret)
	}

	t.Setenv("WEBHOOK_SECRET", "has spaces!")
	_, err = NewConfigManager("").Parse()
	if err == nil || !strings.Contains(err.Error(), "telegram.webhook_secret") {
		t.Fatalf("err = %v", err)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	m := NewConfigManager("")
	ch := m.Subscribe(1)
	a, b := Default(), Default()
	b.Logging.Level = "debug"
	m.publish(a)
	m.publish(b)
	got := <-ch
	if got.Logging.Level != "debug" {
		t.Fatalf("got level %q, want newest config", got.Logging.Level)
	}
	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatalf("channel not closed")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	a := Default()
	b := Default()
	b.Broadcast.RateMax = 10
	b.Auth.JWTSecret = "s3cret"

	changed, attrs := SummarizeConfigChange(a, b)
	if len(changed) != 2 || changed[0] != "broadcast" || changed[1] != "auth" {
		t.Fatalf("changed = %v", changed)
	}
	if len(attrs) == 0 {
		t.Fatalf("expected attrs")
	}
	if got := RestartRequired(changed); len(got) != 1 || got[0] != "auth" {
		t.Fatalf("restart = %v", got)
	}
}
