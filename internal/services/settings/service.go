package settings

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"tgcast/internal/cache"
	"tgcast/internal/storage"
	logx "tgcast/pkg/logx"
)

const (
	SettingsKey    = "bot_settings"
	MenuButtonsKey = "menu_buttons:active"
	DefaultTTL     = 5 * time.Minute
)

// Store is the subset of storage the service reads.
type Store interface {
	GetSettings(ctx context.Context) (storage.Settings, error)
	ListMenuButtons(ctx context.Context, activeOnly bool) ([]storage.MenuButton, error)
	FindActiveMenuButton(ctx context.Context, text string) (storage.MenuButton, error)
}

type Service struct {
	store Store
	cache cache.Cache
	log   logx.Logger
	ttl   atomic.Int64
}

func New(store Store, c cache.Cache, ttl time.Duration, log logx.Logger) *Service {
	s := &Service{store: store, cache: c, log: log.With(logx.String("comp", "settings"))}
	s.SetTTL(ttl)
	return s
}

func (s *Service) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.ttl.Store(int64(ttl))
}

func (s *Service) TTL() time.Duration { return time.Duration(s.ttl.Load()) }

// Get returns the welcome settings. Without a stored document it returns
// the defaults and caches nothing, so the first admin write shows up at
// once.
func (s *Service) Get(ctx context.Context) (storage.Settings, error) {
	var st storage.Settings
	if err := cache.GetJSON(ctx, s.cache, SettingsKey, &st); err == nil {
		return withDefaults(st), nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("settings cache read failed", logx.Err(err))
	}

	st, err := s.store.GetSettings(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return storage.DefaultSettings(), nil
	}
	if err != nil {
		return storage.Settings{}, err
	}
	if err := cache.SetJSON(ctx, s.cache, SettingsKey, st, s.TTL()); err != nil {
		s.log.Warn("settings cache write failed", logx.Err(err))
	}
	return withDefaults(st), nil
}

func withDefaults(st storage.Settings) storage.Settings {
	if st.WelcomeMessage == "" {
		st.WelcomeMessage = storage.DefaultWelcomeMessage
	}
	if st.WelcomeMessageButtons == nil {
		st.WelcomeMessageButtons = []storage.LinkButton{}
	}
	return st
}

// ActiveMenuButtons returns active buttons sorted by order.
func (s *Service) ActiveMenuButtons(ctx context.Context) ([]storage.MenuButton, error) {
	var out []storage.MenuButton
	if err := cache.GetJSON(ctx, s.cache, MenuButtonsKey, &out); err == nil {
		return out, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		s.log.Warn("menu cache read failed", logx.Err(err))
	}

	out, err := s.store.ListMenuButtons(ctx, true)
	if err != nil {
		return nil, err
	}
	if err := cache.SetJSON(ctx, s.cache, MenuButtonsKey, out, s.TTL()); err != nil {
		s.log.Warn("menu cache write failed", logx.Err(err))
	}
	return out, nil
}

// FindMenuButton resolves an inbound text to an active button. It scans the
// cached active list and only falls back to a store query when the list is
// unavailable.
func (s *Service) FindMenuButton(ctx context.Context, text string) (storage.MenuButton, bool, error) {
	buttons, err := s.ActiveMenuButtons(ctx)
	if err != nil {
		b, ferr := s.store.FindActiveMenuButton(ctx, text)
		if errors.Is(ferr, storage.ErrNotFound) {
			return storage.MenuButton{}, false, nil
		}
		if ferr != nil {
			return storage.MenuButton{}, false, ferr
		}
		return b, true, nil
	}
	for _, b := range buttons {
		if b.Text == text {
			return b, true, nil
		}
	}
	return storage.MenuButton{}, false, nil
}

func (s *Service) InvalidateSettings(ctx context.Context) error {
	return s.cache.Del(ctx, SettingsKey)
}

func (s *Service) InvalidateMenu(ctx context.Context) error {
	return s.cache.Del(ctx, MenuButtonsKey)
}
