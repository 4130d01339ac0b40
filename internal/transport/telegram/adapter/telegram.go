package adapter

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "tgcast/internal/transport"
	rtsup "tgcast/internal/runtime/supervisor"
	logx "tgcast/pkg/logx"
)

// Adapter is the telebot implementation of transport.Adapter.
type Adapter struct {
	cfg Config
	log logx.Logger

	bot     *tele.Bot
	webhook *tele.Webhook

	out     atomic.Value // chan<- kit.Update
	runMu   sync.Mutex
	running bool
	sup     *rtsup.Supervisor

	// droppedUpdates counts updates lost because the consumer lagged; it is
	// reported periodically instead of per update.
	droppedUpdates atomic.Uint64
}

var _ kit.Adapter = (*Adapter)(nil)

const (
	secretHeader   = "X-Telegram-Bot-Api-Secret-Token"
	maxUpdateBytes = 1 << 20
)

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	a := &Adapter{cfg: cfg, log: log}

	settings := tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
		OnError: func(err error, c tele.Context) {
			a.log.Warn("telegram handler error", logx.Err(err))
		},
	}
	if cfg.WebhookURL != "" {
		secret := cfg.WebhookSecret
		if secret == "" {
			var err error
			if secret, err = newWebhookSecret(); err != nil {
				return nil, err
			}
			log.Info("generated webhook secret")
		}
		a.webhook = &tele.Webhook{
			// Empty Listen: no built-in server, WebhookHandler is mounted by the API.
			Endpoint:         &tele.WebhookEndpoint{PublicURL: cfg.WebhookURL},
			AllowedUpdates:   allowedUpdates,
			SecretToken:      secret,
			IgnoreSetWebhook: cfg.Offline,
		}
		settings.Poller = a.webhook
	} else {
		settings.Poller = &tele.LongPoller{Timeout: timeout, AllowedUpdates: allowedUpdates}
	}

	b, err := tele.NewBot(settings)
	if err != nil {
		return nil, normalizeError(err)
	}
	a.bot = b
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func newWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WebhookHandler returns the update endpoint in webhook mode, nil otherwise.
// Requests must carry the secret token registered with setWebhook.
func (a *Adapter) WebhookHandler() http.Handler {
	if a.webhook == nil {
		return nil
	}
	return http.HandlerFunc(a.serveWebhook)
}

func (a *Adapter) serveWebhook(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(secretHeader)
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.webhook.SecretToken)) != 1 {
		a.log.Debug("webhook request rejected", logx.String("remote", r.RemoteAddr))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	a.runMu.Lock()
	running := a.running
	a.runMu.Unlock()
	if !running {
		// Telegram redelivers on non-2xx.
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	var upd tele.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&upd); err != nil {
		a.log.Debug("cannot decode webhook update", logx.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	a.bot.ProcessUpdate(upd)
	w.WriteHeader(http.StatusOK)
}

func (a *Adapter) registerHandlers() {
	a.bot.Handle("/start", func(c tele.Context) error {
		if m := c.Message(); m != nil && m.Chat != nil {
			a.sendUpdate(kit.Update{Kind: kit.UpdateStart, Message: toMessage(m)})
		}
		return nil
	})

	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		m := c.Message()
		if m == nil || m.Chat == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateText, Message: toMessage(m)})
		return nil
	})

	a.bot.Handle(tele.OnMyChatMember, func(c tele.Context) error {
		u := c.ChatMember()
		if u == nil || u.Chat == nil || u.NewChatMember == nil {
			return nil
		}
		mc := &kit.MemberChange{
			ChatID:    u.Chat.ID,
			NewStatus: kit.MemberStatus(u.NewChatMember.Role),
		}
		if u.OldChatMember != nil {
			mc.OldStatus = kit.MemberStatus(u.OldChatMember.Role)
		}
		if u.Sender != nil {
			mc.From = toSender(u.Sender)
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateMemberStatus, Member: mc})
		return nil
	})

	a.bot.Handle(tele.OnChatJoinRequest, func(c tele.Context) error {
		r := c.ChatJoinRequest()
		if r == nil || r.Chat == nil || r.Sender == nil {
			return nil
		}
		a.sendUpdate(kit.Update{Kind: kit.UpdateJoinRequest, JoinRequest: &kit.JoinRequest{
			ChatID:     r.Chat.ID,
			ChatTitle:  r.Chat.Title,
			From:       toSender(r.Sender),
			UserChatID: r.Sender.ID,
		}})
		return nil
	})
}

func toSender(u *tele.User) kit.Sender {
	if u == nil {
		return kit.Sender{}
	}
	return kit.Sender{ID: u.ID, FirstName: u.FirstName, LastName: u.LastName, Username: u.Username}
}

func toMessage(m *tele.Message) *kit.Message {
	return &kit.Message{ID: m.ID, ChatID: m.Chat.ID, From: toSender(m.Sender), Text: m.Text}
}

func (a *Adapter) sendUpdate(up kit.Update) {
	out, _ := a.out.Load().(chan<- kit.Update)
	if out == nil {
		return
	}
	select {
	case out <- up:
	default:
		a.droppedUpdates.Add(1)
	}
}

func (a *Adapter) Start(ctx context.Context, out chan<- kit.Update) error {
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx,
		rtsup.WithLogger(a.log),
		rtsup.WithCancelOnError(false),
	)
	sup := a.sup
	a.runMu.Unlock()

	if a.webhook == nil && !a.cfg.Offline {
		// A webhook left over from an earlier deployment blocks getUpdates.
		if err := a.bot.RemoveWebhook(); err != nil {
			a.log.Warn("remove webhook failed", logx.Err(normalizeError(err)))
		}
	}

	sup.Go0("updates.drop_report", func(c context.Context) {
		t := time.NewTicker(5 * time.Second)
		defer t.Stop()
		report := func() {
			if n := a.droppedUpdates.Swap(0); n > 0 {
				a.log.Warn("incoming updates dropped (channel full)", logx.Int64("count", int64(n)), logx.Int("chan_cap", cap(out)))
			}
		}
		for {
			select {
			case <-c.Done():
				report()
				return
			case <-t.C:
				report()
			}
		}
	})

	// telebot's Start loop can return on its own in some failure modes.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		mode := "polling"
		if a.webhook != nil {
			mode = "webhook"
		}
		a.log.Info("update loop started", logx.String("mode", mode))
		a.bot.Start()
		a.log.Info("update loop stopped", logx.String("mode", mode))
		return nil
	},
		rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second),
		rtsup.WithStopOnCleanExit(false),
	)
	return nil
}

// Stop never blocks shutdown for long on a pending long poll.
func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- kit.Update
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning || sup == nil {
		return nil
	}
	sup.Cancel()
	go a.bot.Stop()

	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()
	if err := sup.Wait(wctx); err != nil {
		a.log.Warn("telegram stop timed out", logx.Err(err))
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.Sent, error) {
	if err := ctx.Err(); err != nil {
		return kit.Sent{}, err
	}
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOptions(opt))
	if err != nil {
		return kit.Sent{}, normalizeError(err)
	}
	return kit.Sent{Ref: kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}}, nil
}

func (a *Adapter) SendMedia(ctx context.Context, to kit.ChatTarget, media kit.Media, caption string, opt *kit.SendOptions) (kit.Sent, error) {
	if err := ctx.Err(); err != nil {
		return kit.Sent{}, err
	}
	file, err := mediaFile(media)
	if err != nil {
		return kit.Sent{}, err
	}

	var what any
	switch media.Kind {
	case kit.MediaAudio:
		what = &tele.Audio{File: file, Caption: caption}
	case kit.MediaPhoto, "":
		what = &tele.Photo{File: file, Caption: caption}
	default:
		return kit.Sent{}, kit.ErrUnsupportedMedia
	}

	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, what, sendOptions(opt))
	if err != nil {
		return kit.Sent{}, normalizeError(err)
	}
	out := kit.Sent{Ref: kit.MessageRef{ChatID: to.ChatID, MessageID: msg.ID}}
	switch {
	case msg.Audio != nil:
		out.FileID = msg.Audio.FileID
	case msg.Photo != nil:
		out.FileID = msg.Photo.FileID
	}
	return out, nil
}

func (a *Adapter) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.bot.ApproveJoinRequest(&tele.Chat{ID: chatID}, &tele.User{ID: userID}); err != nil {
		return normalizeError(err)
	}
	return nil
}

func mediaFile(m kit.Media) (tele.File, error) {
	switch {
	case m.FileID != "":
		return tele.File{FileID: m.FileID}, nil
	case m.Path != "":
		return tele.FromDisk(m.Path), nil
	case m.URL != "":
		return tele.FromURL(m.URL), nil
	default:
		return tele.File{}, kit.ErrUnsupportedMedia
	}
}
