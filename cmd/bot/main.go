package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgcast/internal/api"
	"tgcast/internal/app"
	"tgcast/internal/config"
	logx "tgcast/pkg/logx"
	"tgcast/pkg/systemd"
)

func main() {
	var (
		cfgPath string
		envFile string
		grace   time.Duration
		hashPw  string
	)
	flag.StringVar(&cfgPath, "config", os.Getenv("CONFIG_PATH"), "path to config file (json or yaml; optional)")
	flag.StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")
	flag.DurationVar(&grace, "grace", 20*time.Second, "shutdown grace period")
	flag.StringVar(&hashPw, "hash-password", "", "print an argon2id encoding of the given admin password and exit")
	flag.Parse()

	if hashPw != "" {
		enc, err := api.HashPassword(hashPw)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fatal:", err)
			os.Exit(1)
		}
		fmt.Println(enc)
		return
	}

	config.LoadEnv(envFile)
	// Reports failures that happen before or after the configured logger.
	boot := logx.NewConsole(os.Getenv("LOG_LEVEL"))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfgPath)
	if err != nil {
		boot.Error("startup failed", logx.Err(err))
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("start failed", logx.Err(err))
		stopCtx, stopCancel := context.WithTimeout(context.Background(), grace)
		_ = a.Stop(stopCtx)
		stopCancel()
		os.Exit(1)
	}
	_, _ = systemd.Ready()
	go systemd.Watchdog(ctx, func() bool { return a.Err() == nil })

	select {
	case <-ctx.Done():
	case <-a.Done():
	}
	_, _ = systemd.Stopping()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), grace)
	defer stopCancel()
	stopErr := a.Stop(stopCtx)
	if err := a.Err(); err != nil {
		boot.Error("stopped on error", logx.Err(err))
		os.Exit(1)
	}
	if stopErr != nil {
		boot.Warn("shutdown incomplete", logx.Err(stopErr))
	}
}
