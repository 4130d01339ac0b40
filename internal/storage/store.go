package storage

import "context"

type Users interface {
	// UpsertUser finds the user by platform id, applies the patch and
	// inserts the user when absent.
	UpsertUser(ctx context.Context, telegramID int64, patch UserPatch) (User, error)
	// SetBlocked writes the blocked flag. It is idempotent and succeeds for
	// unknown users without creating them.
	SetBlocked(ctx context.Context, telegramID int64, blocked bool) error
	GetUser(ctx context.Context, telegramID int64) (User, error)
	// ListUsers returns all users, newest first.
	ListUsers(ctx context.Context) ([]User, error)
	// StreamRecipients calls fn for every non-blocked user, newest first,
	// stopping after limit users when limit > 0. At most one page of
	// pageSize users is held in memory.
	StreamRecipients(ctx context.Context, limit, pageSize int, fn func(Recipient) error) error
}

type SettingsStore interface {
	// GetSettings returns ErrNotFound while no document exists.
	GetSettings(ctx context.Context) (Settings, error)
	SaveSettings(ctx context.Context, s Settings) error
}

type MenuButtons interface {
	// ListMenuButtons returns buttons sorted by order ascending.
	ListMenuButtons(ctx context.Context, activeOnly bool) ([]MenuButton, error)
	FindActiveMenuButton(ctx context.Context, text string) (MenuButton, error)
	CreateMenuButton(ctx context.Context, b MenuButton) (MenuButton, error)
	UpdateMenuButton(ctx context.Context, id string, p MenuButtonPatch) (MenuButton, error)
	DeleteMenuButton(ctx context.Context, id string) error
	ToggleMenuButton(ctx context.Context, id string) (MenuButton, error)
	ReorderMenuButtons(ctx context.Context, updates []OrderUpdate) error
}

type Channels interface {
	// ListChannels returns channels newest first.
	ListChannels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, c Channel) (Channel, error)
	ToggleChannel(ctx context.Context, id string) (Channel, error)
	DeleteChannel(ctx context.Context, id string) error
	FindChannelByChatID(ctx context.Context, chatID string) (Channel, error)
}

type WelcomeMessages interface {
	// ListWelcomeMessages returns messages newest first.
	ListWelcomeMessages(ctx context.Context) ([]WelcomeMessage, error)
	FindWelcomeMessage(ctx context.Context, channelID string) (WelcomeMessage, error)
	// UpsertWelcomeMessage creates or replaces the message of w.ChannelID.
	UpsertWelcomeMessage(ctx context.Context, w WelcomeMessage) (WelcomeMessage, error)
	ToggleWelcomeMessage(ctx context.Context, id string) (WelcomeMessage, error)
}

// Store is the full persistence contract.
type Store interface {
	Users
	SettingsStore
	MenuButtons
	Channels
	WelcomeMessages

	Ping(ctx context.Context) error
	Close() error
}
