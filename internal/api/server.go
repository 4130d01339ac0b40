// Package api is the admin HTTP surface: thin CRUD over the store, the
// broadcast trigger, uploads, a login stub and the optional webhook mount.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	logx "tgcast/pkg/logx"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxUploadBytes  int64
	Pprof           bool

	UploadDir string
	// PublicURL prefixes returned upload URLs; the request host is used
	// when empty.
	PublicURL string

	AdminPassword string
	JWTSecret     string
	SessionTTL    time.Duration

	// WebhookPath is where Webhook is mounted when set.
	WebhookPath string
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":4000"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = 20 << 20
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.WebhookPath == "" {
		c.WebhookPath = "/telegram/webhook"
	}
	return c
}

// Server owns the listener lifecycle for the admin API.
type Server struct {
	cfg     Config
	log     logx.Logger
	handler http.Handler

	mu   sync.Mutex
	srv  *http.Server
	ln   net.Listener
	addr string
}

func NewServer(cfg Config, d Deps) *Server {
	cfg = cfg.withDefaults()
	h := newHandler(cfg, d)
	return &Server{cfg: cfg, log: h.log, handler: h.routes()}
}

func (s *Server) Handler() http.Handler { return s.handler }

// Start binds the listener and serves in the background. A bind failure is
// returned so startup can fail fast.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.srv, s.ln, s.addr = srv, ln, ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server error", logx.String("addr", s.addr), logx.Err(err))
		}
	}()
	s.log.Info("http server listening", logx.String("addr", s.addr))
	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, addr := s.srv, s.addr
	s.srv, s.ln, s.addr = nil, nil, ""
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped", logx.String("addr", addr))
	return nil
}

// Addr reports the bound address while running.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
