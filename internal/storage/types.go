package storage

import (
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrInvalid  = errors.New("storage: invalid argument")
	ErrConflict = errors.New("storage: conflict")
)

const DefaultWelcomeMessage = "Welcome to the bot!"

// Config configures storage.
type Config struct {
	Driver string
	DSN    string
	// Database is the mongo database name.
	Database    string
	BusyTimeout time.Duration // sqlite only
}

// LinkButton is a (label, URL) pair rendered as an inline button.
type LinkButton struct {
	Text string `json:"text" bson:"text"`
	URL  string `json:"url" bson:"url"`
}

// CleanButtons drops buttons missing a label or URL.
func CleanButtons(in []LinkButton) []LinkButton {
	out := make([]LinkButton, 0, len(in))
	for _, b := range in {
		if b.Text == "" || b.URL == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

type User struct {
	ID           string     `json:"_id"`
	TelegramID   int64      `json:"telegramId"`
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName,omitempty"`
	Username     string     `json:"username,omitempty"`
	IsBlocked    bool       `json:"isBlocked"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	JoinedFrom   string     `json:"joinedFrom,omitempty"`
	JoinedAt     *time.Time `json:"joinedAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserPatch lists the fields an upsert writes; nil fields are left as is
// (or take their zero value on insert).
type UserPatch struct {
	FirstName    *string
	LastName     *string
	Username     *string
	IsBlocked    *bool
	LastActiveAt *time.Time
	JoinedFrom   *string
	JoinedAt     *time.Time
}

// Recipient is the projection streamed to the broadcast producer.
type Recipient struct {
	TelegramID int64
}

type Settings struct {
	WelcomeMessage         string       `json:"welcomeMessage"`
	WelcomeMessageMediaURL string       `json:"welcomeMessageMediaUrl"`
	WelcomeMessageButtons  []LinkButton `json:"welcomeMessageButtons"`
}

// DefaultSettings is what the bot uses while no settings document exists.
func DefaultSettings() Settings {
	return Settings{WelcomeMessage: DefaultWelcomeMessage, WelcomeMessageButtons: []LinkButton{}}
}

type MenuButton struct {
	ID              string       `json:"_id"`
	Text            string       `json:"text"`
	Order           int          `json:"order"`
	Active          bool         `json:"active"`
	ResponseMessage string       `json:"responseMessage"`
	MediaURL        string       `json:"mediaUrl"`
	ResponseButtons []LinkButton `json:"responseButtons"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// MenuButtonPatch is a partial update; nil fields are untouched.
type MenuButtonPatch struct {
	Text            *string
	Order           *int
	Active          *bool
	ResponseMessage *string
	MediaURL        *string
	ResponseButtons *[]LinkButton
}

type OrderUpdate struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

type Channel struct {
	ID        string    `json:"_id"`
	ChatID    string    `json:"chatId"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type WelcomeMessage struct {
	ID          string    `json:"_id"`
	ChannelID   string    `json:"channelId"`
	MessageText string    `json:"messageText"`
	ButtonText  string    `json:"buttonText,omitempty"`
	ButtonURL   string    `json:"buttonUrl,omitempty"`
	MediaURL    string    `json:"mediaUrl,omitempty"`
	DelaySec    int       `json:"delaySec"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
