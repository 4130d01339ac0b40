package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env style files into the process environment. Variables
// already set win over file values; missing files are ignored.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

// applyEnv overlays well-known environment variables on top of the file
// config.
func applyEnv(cfg *Config) error {
	setString(&cfg.Telegram.Token, "BOT_TOKEN")
	setString(&cfg.Telegram.Domain, "DOMAIN")
	setString(&cfg.Telegram.WebhookSecret, "WEBHOOK_SECRET")

	setString(&cfg.Storage.DSN, "DATABASE_URL")
	setString(&cfg.Storage.DSN, "MONGO_URI")
	setString(&cfg.Storage.Driver, "STORAGE_DRIVER")
	setString(&cfg.Storage.Database, "MONGO_DB")

	setString(&cfg.Redis.URL, "REDIS_URL")

	if v := getEnv("PORT", ""); v != "" {
		if _, err := strconv.Atoi(v); err != nil {
			return fmt.Errorf("PORT: invalid port %q", v)
		}
		cfg.HTTP.Addr = ":" + v
	}

	setString(&cfg.Auth.AdminPassword, "ADMIN_PASSWORD")
	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Uploads.Dir, "UPLOAD_DIR")
	setString(&cfg.Logging.Level, "LOG_LEVEL")

	n, err := getEnvInt("BROADCAST_CONCURRENCY", cfg.Broadcast.Concurrency)
	if err != nil {
		return err
	}
	cfg.Broadcast.Concurrency = n
	n, err = getEnvInt("BROADCAST_RATE_MAX", cfg.Broadcast.RateMax)
	if err != nil {
		return err
	}
	cfg.Broadcast.RateMax = n
	return nil
}

func setString(dst *string, key string) {
	if v := getEnv(key, ""); v != "" {
		*dst = v
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}
