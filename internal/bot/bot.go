// Package bot reacts to inbound platform updates: /start, menu button
// texts, block/unblock transitions and channel join requests.
package bot

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"tgcast/internal/runtime/supervisor"
	"tgcast/internal/storage"
	"tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

// Store is the subset of storage the handlers touch.
type Store interface {
	UpsertUser(ctx context.Context, telegramID int64, patch storage.UserPatch) (storage.User, error)
	SetBlocked(ctx context.Context, telegramID int64, blocked bool) error
	FindChannelByChatID(ctx context.Context, chatID string) (storage.Channel, error)
	FindWelcomeMessage(ctx context.Context, channelID string) (storage.WelcomeMessage, error)
}

// Settings serves cached bot configuration.
type Settings interface {
	Get(ctx context.Context) (storage.Settings, error)
	ActiveMenuButtons(ctx context.Context) ([]storage.MenuButton, error)
	FindMenuButton(ctx context.Context, text string) (storage.MenuButton, bool, error)
}

// Platform is what the handlers need from the messaging adapter.
type Platform interface {
	transport.MessageSender
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
}

// MediaRefs reuses platform references for server-local media.
type MediaRefs interface {
	LocalFile(mediaURL string) (name, path string, ok bool)
	Resolve(ctx context.Context, name string, upload func() (string, error)) (string, bool, error)
}

type Deps struct {
	Store    Store
	Settings Settings
	Platform Platform
	Media    MediaRefs
	Logger   logx.Logger
	// Workers bounds concurrent update handling.
	Workers int
	// WriteTimeout bounds background user writes.
	WriteTimeout time.Duration
}

type Bot struct {
	store    Store
	settings Settings
	platform Platform
	resp     *responder
	log      logx.Logger
	workers  int
	writeTO  time.Duration

	welcome *Scheduler
	bg      *supervisor.Supervisor
	now     func() time.Time
}

func New(d Deps) *Bot {
	log := d.Logger.With(logx.String("comp", "bot"))
	if d.Workers <= 0 {
		d.Workers = 8
	}
	if d.WriteTimeout <= 0 {
		d.WriteTimeout = 10 * time.Second
	}
	return &Bot{
		store:    d.Store,
		settings: d.Settings,
		platform: d.Platform,
		resp:     &responder{sender: d.Platform, media: d.Media, log: log},
		log:      log,
		workers:  d.Workers,
		writeTO:  d.WriteTimeout,
		welcome:  NewScheduler(log),
		bg:       supervisor.New(context.Background(), supervisor.WithLogger(log)),
		now:      time.Now,
	}
}

// Run routes updates to handlers on a bounded worker pool until ctx ends
// or updates is closed.
func (b *Bot) Run(ctx context.Context, updates <-chan transport.Update) error {
	jobs := make(chan transport.Update, b.workers*4)
	var wg sync.WaitGroup
	wg.Add(b.workers)
	for i := 0; i < b.workers; i++ {
		go func() {
			defer wg.Done()
			for up := range jobs {
				b.Handle(ctx, up)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
		b.log.Info("update dispatcher stopped")
	}()

	b.log.Info("update dispatcher started", logx.Int("workers", b.workers))
	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			select {
			case jobs <- up:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

// Handle processes one update synchronously. Handler errors are logged,
// never returned; a panic is contained to the update.
func (b *Bot) Handle(ctx context.Context, up transport.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in update handler", logx.String("kind", string(up.Kind)), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
		}
	}()
	switch up.Kind {
	case transport.UpdateStart:
		if up.Message != nil {
			b.onStart(ctx, up.Message)
		}
	case transport.UpdateText:
		if up.Message != nil {
			b.onText(ctx, up.Message)
		}
	case transport.UpdateMemberStatus:
		if up.Member != nil {
			b.onMemberStatus(ctx, up.Member)
		}
	case transport.UpdateJoinRequest:
		if up.JoinRequest != nil {
			b.onJoinRequest(ctx, up.JoinRequest)
		}
	}
}

// PendingWelcomes reports delayed welcome messages not yet sent.
func (b *Bot) PendingWelcomes() int { return b.welcome.Pending() }

// Stop drops pending welcome timers and waits for background writes.
func (b *Bot) Stop(ctx context.Context) error {
	werr := b.welcome.Stop(ctx)
	if err := b.bg.Stop(ctx); err != nil {
		return err
	}
	return werr
}

// background runs a store write detached from the handler. The write gets
// its own timeout and survives the handler's context.
func (b *Bot) background(name string, fn func(ctx context.Context) error) {
	b.bg.Go0(name, func(sctx context.Context) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(sctx), b.writeTO)
		defer cancel()
		if err := fn(ctx); err != nil {
			b.log.Warn("background write failed", logx.String("op", name), logx.Err(err))
		}
	})
}
