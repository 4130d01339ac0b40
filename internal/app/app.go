// Package app wires the process: config, logging, storage, the queue and
// its dispatcher, the bot, the admin API and the maintenance janitor.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tgcast/internal/api"
	"tgcast/internal/bot"
	"tgcast/internal/broadcast"
	"tgcast/internal/config"
	"tgcast/internal/maintenance"
	"tgcast/internal/queue"
	"tgcast/internal/runtime/supervisor"
	"tgcast/internal/services/settings"
	"tgcast/internal/storage"
	kit "tgcast/internal/transport"
	telegram "tgcast/internal/transport/telegram/adapter"
	logx "tgcast/pkg/logx"
)

type App struct {
	cfgm *config.ConfigManager
	cfg  *config.Config

	log  logx.Logger
	logs *logx.Service
	sup  *supervisor.Supervisor

	store    storage.Store
	infra    backends
	queue    *queue.Queue
	consumer *queue.Consumer
	producer *broadcast.Producer
	settings *settings.Service

	adapter kit.Adapter
	bot     *bot.Bot
	api     *api.Server
	janitor *maintenance.Janitor

	updates chan kit.Update
}

type Option func(*options)

type options struct {
	adapter kit.Adapter
}

// WithAdapter replaces the Telegram adapter.
func WithAdapter(a kit.Adapter) Option { return func(o *options) { o.adapter = a } }

// New loads the config and builds every component. Nothing runs until
// Start. On error everything opened so far is closed again.
func New(ctx context.Context, cfgPath string, opts ...Option) (_ *App, err error) {
	var o options
	for _, fn := range opts {
		fn(&o)
	}

	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	logs, log := logx.New(cfg.Logging.Logx())
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	a := &App{cfgm: cfgm, cfg: cfg, logs: logs, log: log.With(logx.String("comp", "app"))}
	defer func() {
		if err != nil {
			a.closeResources()
		}
	}()

	a.store, err = storage.Open(ctx, storage.Config{
		Driver:      cfg.Storage.Driver,
		DSN:         cfg.Storage.DSN,
		Database:    cfg.Storage.Database,
		BusyTimeout: cfg.Resolved.BusyTimeout,
	}, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	a.log.Info("storage opened", logx.String("driver", cfg.Storage.Driver))

	a.infra, err = openBackends(ctx, cfg, a.log)
	if err != nil {
		return nil, err
	}

	a.settings = settings.New(a.store, a.infra.cache, cfg.Resolved.SettingsTTL, log)
	a.queue = queue.New(cfg.Queue.Name, a.infra.queue, queueDefaults(cfg))

	a.adapter = o.adapter
	var webhook http.Handler
	if a.adapter == nil {
		tg, err := telegram.New(telegram.Config{
			Token:         cfg.Telegram.Token,
			PollTimeout:   cfg.Resolved.PollTimeout,
			WebhookURL:    webhookURL(cfg),
			WebhookSecret: cfg.Telegram.WebhookSecret,
		}, log.With(logx.String("comp", "telegram")))
		if err != nil {
			return nil, err
		}
		a.adapter = tg
		webhook = tg.WebhookHandler()
	}

	refs := broadcast.NewFileRefs(cfg.Uploads.Dir, a.infra.cache, cfg.Resolved.FileRefTTL, log)
	dispatcher := broadcast.NewDispatcher(a.adapter, a.store, refs, log)
	a.consumer = queue.NewConsumer(a.queue, dispatcher.Handle, consumerConfig(cfg), log)
	a.producer = broadcast.NewProducer(a.store, a.queue, cfg.Broadcast.PageSize, log)

	a.bot = bot.New(bot.Deps{
		Store:    a.store,
		Settings: a.settings,
		Platform: a.adapter,
		Media:    refs,
		Logger:   log,
	})

	a.api = api.NewServer(api.Config{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.Resolved.ReadTimeout,
		WriteTimeout:    cfg.Resolved.WriteTimeout,
		ShutdownTimeout: cfg.Resolved.ShutdownTimeout,
		MaxUploadBytes:  cfg.HTTP.MaxUploadBytes,
		Pprof:           cfg.HTTP.Pprof,
		UploadDir:       cfg.Uploads.Dir,
		PublicURL:       cfg.Uploads.PublicURL,
		AdminPassword:   cfg.Auth.AdminPassword,
		JWTSecret:       cfg.Auth.JWTSecret,
		SessionTTL:      cfg.Resolved.SessionTTL,
		WebhookPath:     cfg.Telegram.WebhookPath,
	}, api.Deps{
		Store:         a.store,
		Settings:      a.settings,
		Broadcaster:   a.producer,
		Queue:         a.queue,
		ConsumerStats: a.consumer.Stats,
		Webhook:       webhook,
		Logger:        log,
	})

	a.janitor = maintenance.New(a.queue, janitorConfig(cfg), log)
	a.updates = make(chan kit.Update, 256)
	return a, nil
}

func webhookURL(cfg *config.Config) string {
	if cfg.Telegram.Domain == "" {
		return ""
	}
	return cfg.Telegram.Domain + cfg.Telegram.WebhookPath
}

func janitorConfig(cfg *config.Config) maintenance.Config {
	return maintenance.Config{
		Enabled: cfg.Maintenance.IsEnabled(),
		Sweep:   cfg.Maintenance.Promote,
		Report:  cfg.Maintenance.StatsSpec,
	}
}

// Config returns the config the app was built with.
func (a *App) Config() *config.Config { return a.cfg }

// Addr reports the bound admin API address once started.
func (a *App) Addr() string { return a.api.Addr() }

// Done is closed when the app stops or a component fails fatally.
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start launches every component. The HTTP listener is bound first so a
// port conflict fails startup.
func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	run := a.sup.Context()

	if err := a.api.Start(run); err != nil {
		return err
	}
	if err := a.consumer.Start(run); err != nil {
		return err
	}
	if err := a.janitor.Start(run); err != nil {
		return err
	}
	if err := a.adapter.Start(run, a.updates); err != nil {
		return err
	}
	a.sup.Go("bot.updates", func(c context.Context) error {
		return a.bot.Run(c, a.updates)
	})
	a.sup.Go0("config.watch", func(c context.Context) {
		if err := a.cfgm.Watch(c); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	})
	a.sup.Go0("config.reload", a.reloadLoop)

	a.log.Info("app started",
		logx.String("http", a.api.Addr()),
		logx.String("queue", a.queue.Name()),
		logx.Bool("webhook", a.cfg.Telegram.Domain != ""),
	)
	return nil
}

// Stop shuts down ingress first, then the workers, then the resources
// they use. Each stage shares the deadline of ctx.
func (a *App) Stop(ctx context.Context) error {
	start := time.Now()
	a.log.Info("stop requested")
	var errs []error
	add := func(stage string, err error) {
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Warn("stop stage failed", logx.String("stage", stage), logx.Err(err))
			errs = append(errs, err)
		}
	}

	add("telegram", a.adapter.Stop(ctx))
	add("http", a.api.Stop(ctx))
	add("producer", a.producer.Stop(ctx))
	add("consumer", a.consumer.Stop(ctx))
	a.janitor.Stop(ctx)
	if a.sup != nil {
		add("supervisor", a.sup.Stop(ctx))
	}
	add("bot", a.bot.Stop(ctx))

	a.log.Info("app stopped", logx.Duration("took", time.Since(start)))
	a.closeResources()
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	_ = a.infra.close()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
}
