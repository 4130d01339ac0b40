package config

import (
	"reflect"

	logx "tgcast/pkg/logx"
)

// SummarizeConfigChange lists the changed sections and returns log fields
// describing them. Secrets (token, DSNs, passwords) never appear; only
// whether they are set.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	changed := make([]string, 0, 8)
	attrs := make([]logx.Field, 0, 16)

	if oldCfg.Telegram != newCfg.Telegram {
		changed = append(changed, "telegram")
		attrs = append(attrs,
			logx.String("telegram.poll_timeout", newCfg.Telegram.PollTimeout),
			logx.Bool("telegram.webhook", newCfg.Telegram.Domain != ""),
			logx.Bool("telegram.token_changed", oldCfg.Telegram.Token != newCfg.Telegram.Token),
			logx.Bool("telegram.webhook_secret_changed", oldCfg.Telegram.WebhookSecret != newCfg.Telegram.WebhookSecret),
		)
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
		)
	}
	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs, logx.String("storage.driver", newCfg.Storage.Driver))
	}
	if oldCfg.Redis != newCfg.Redis {
		changed = append(changed, "redis")
	}
	if oldCfg.Queue != newCfg.Queue {
		changed = append(changed, "queue")
		attrs = append(attrs,
			logx.Int("queue.attempts", newCfg.Queue.Attempts),
			logx.String("queue.backoff", newCfg.Queue.Backoff),
		)
	}
	if oldCfg.Broadcast != newCfg.Broadcast {
		changed = append(changed, "broadcast")
		attrs = append(attrs,
			logx.Int("broadcast.concurrency", newCfg.Broadcast.Concurrency),
			logx.Int("broadcast.rate_max", newCfg.Broadcast.RateMax),
			logx.String("broadcast.rate_window", newCfg.Broadcast.RateWindow),
		)
	}
	if oldCfg.Settings != newCfg.Settings {
		changed = append(changed, "settings")
	}
	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		attrs = append(attrs, logx.String("http.addr", newCfg.HTTP.Addr))
	}
	if oldCfg.Auth != newCfg.Auth {
		changed = append(changed, "auth")
		attrs = append(attrs, logx.Bool("auth.enabled", newCfg.Auth.JWTSecret != ""))
	}
	if oldCfg.Uploads != newCfg.Uploads {
		changed = append(changed, "uploads")
	}
	if !reflect.DeepEqual(oldCfg.Maintenance, newCfg.Maintenance) {
		changed = append(changed, "maintenance")
	}
	return changed, attrs
}

// RestartRequired reports sections that a running process cannot apply
// without a restart. Logging, the dispatcher rate, the settings TTL and
// the maintenance schedules are applied in place.
func RestartRequired(changed []string) []string {
	var out []string
	for _, s := range changed {
		switch s {
		case "logging", "broadcast", "settings", "maintenance":
		default:
			out = append(out, s)
		}
	}
	return out
}
