package api

import (
	"context"
	"net/http"
	"net/http/pprof"
	"strings"

	"tgcast/internal/broadcast"
	"tgcast/internal/queue"
	"tgcast/internal/storage"
	logx "tgcast/pkg/logx"
)

// SettingsCache is the read-through cache the API reads from and
// invalidates after writes.
type SettingsCache interface {
	Get(ctx context.Context) (storage.Settings, error)
	InvalidateSettings(ctx context.Context) error
	InvalidateMenu(ctx context.Context) error
}

type Broadcaster interface {
	Start(req broadcast.Request) error
}

type QueueInspector interface {
	Stats(ctx context.Context) (queue.Stats, error)
	Failed(ctx context.Context, n int) ([]queue.Job, error)
}

type Deps struct {
	Store       storage.Store
	Settings    SettingsCache
	Broadcaster Broadcaster
	Queue       QueueInspector
	// ConsumerStats is optional.
	ConsumerStats func() queue.ConsumerStats
	// Webhook receives platform updates in webhook mode.
	Webhook http.Handler
	Logger  logx.Logger
}

type handler struct {
	cfg  Config
	d    Deps
	log  logx.Logger
	auth *authenticator
}

func newHandler(cfg Config, d Deps) *handler {
	log := d.Logger.With(logx.String("comp", "api"))
	return &handler{
		cfg:  cfg,
		d:    d,
		log:  log,
		auth: newAuthenticator(cfg.AdminPassword, cfg.JWTSecret, cfg.SessionTTL),
	}
}

func (h *handler) routes() http.Handler {
	mux := http.NewServeMux()
	p := h.protect

	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("POST /api/auth/login", h.login)

	mux.Handle("POST /api/broadcast", p(h.startBroadcast))
	mux.Handle("GET /api/broadcast/stats", p(h.broadcastStats))
	mux.Handle("GET /api/broadcast/failed", p(h.broadcastFailed))

	mux.Handle("GET /api/settings/welcome", p(h.getWelcomeSettings))
	mux.Handle("POST /api/settings/welcome", p(h.saveWelcomeSettings))

	mux.Handle("GET /api/menu", p(h.listMenu))
	mux.Handle("POST /api/menu", p(h.createMenu))
	mux.Handle("PATCH /api/menu/reorder", p(h.reorderMenu))
	mux.Handle("PUT /api/menu/{id}", p(h.updateMenu))
	mux.Handle("DELETE /api/menu/{id}", p(h.deleteMenu))
	mux.Handle("PATCH /api/menu/{id}/toggle", p(h.toggleMenu))

	mux.Handle("GET /api/channels", p(h.listChannels))
	mux.Handle("POST /api/channels", p(h.createChannel))
	mux.Handle("PUT /api/channels/{id}/toggle", p(h.toggleChannel))
	mux.Handle("DELETE /api/channels/{id}", p(h.deleteChannel))

	mux.Handle("GET /api/welcome-messages", p(h.listWelcomeMessages))
	mux.Handle("GET /api/welcome-messages/channel/{channelId}", p(h.getWelcomeMessage))
	mux.Handle("POST /api/welcome-messages", p(h.upsertWelcomeMessage))
	mux.Handle("PUT /api/welcome-messages/{id}/toggle", p(h.toggleWelcomeMessage))

	mux.Handle("GET /api/users", p(h.listUsers))

	mux.Handle("POST /api/upload", p(h.upload))
	mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", noDirListing(http.FileServer(http.Dir(h.cfg.UploadDir)))))

	if h.d.Webhook != nil {
		mux.Handle("POST "+h.cfg.WebhookPath, h.d.Webhook)
	}
	if h.cfg.Pprof {
		mux.Handle("GET /debug/pprof/", p(pprof.Index))
		mux.Handle("GET /debug/pprof/cmdline", p(pprof.Cmdline))
		mux.Handle("GET /debug/pprof/profile", p(pprof.Profile))
		mux.Handle("GET /debug/pprof/symbol", p(pprof.Symbol))
		mux.Handle("GET /debug/pprof/trace", p(pprof.Trace))
	}

	return h.recoverer(h.accessLog(cors(mux)))
}

func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
