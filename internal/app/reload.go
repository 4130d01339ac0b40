package app

import (
	"context"
	"strings"

	"tgcast/internal/config"
	logx "tgcast/pkg/logx"
)

// reloadLoop applies hot-reloadable sections of each committed config and
// warns about the rest.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(4)
	defer a.cfgm.Unsubscribe(sub)
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			a.applyConfig(last, next)
			last = next
		}
	}
}

func (a *App) applyConfig(prev, next *config.Config) {
	changed, attrs := config.SummarizeConfigChange(prev, next)
	if len(changed) == 0 {
		a.log.Debug("config reload without effective changes")
		return
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(changed, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)

	for _, section := range changed {
		switch section {
		case "logging":
			a.logs.Apply(next.Logging.Logx())
		case "broadcast":
			a.consumer.SetRate(next.Broadcast.RateMax, next.Resolved.RateWindow)
			if prev.Broadcast.Concurrency != next.Broadcast.Concurrency || prev.Broadcast.PageSize != next.Broadcast.PageSize {
				a.log.Warn("broadcast concurrency and page size apply after restart")
			}
		case "settings":
			a.settings.SetTTL(next.Resolved.SettingsTTL)
		case "maintenance":
			if err := a.janitor.Apply(janitorConfig(next)); err != nil {
				a.log.Warn("maintenance config rejected", logx.Err(err))
			}
		}
	}
	if restart := config.RestartRequired(changed); len(restart) > 0 {
		a.log.Warn("config changes need a restart", logx.String("sections", strings.Join(restart, ",")))
	}
}
