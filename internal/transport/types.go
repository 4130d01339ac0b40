package transport

import "context"

type UpdateKind string

const (
	UpdateStart        UpdateKind = "start"
	UpdateText         UpdateKind = "text"
	UpdateMemberStatus UpdateKind = "member_status"
	UpdateJoinRequest  UpdateKind = "join_request"
)

// Update is a platform-neutral inbound event.
type Update struct {
	Kind        UpdateKind
	Message     *Message
	Member      *MemberChange
	JoinRequest *JoinRequest
}

// Sender identifies the platform user behind an update.
type Sender struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

type Message struct {
	ID     int
	ChatID int64
	From   Sender
	Text   string
}

// MemberStatus mirrors the platform's chat member states.
type MemberStatus string

const (
	StatusCreator       MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusKicked        MemberStatus = "kicked"
)

// MemberChange reports the bot's own membership transition in a private
// chat; "kicked" means the user blocked the bot.
type MemberChange struct {
	ChatID    int64
	From      Sender
	OldStatus MemberStatus
	NewStatus MemberStatus
}

type JoinRequest struct {
	ChatID    int64
	ChatTitle string
	From      Sender
	// UserChatID is the private chat usable for a direct message to the
	// requester (0 when the platform did not provide one).
	UserChatID int64
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// LinkButton is an inline button opening a URL.
type LinkButton struct {
	Text string `json:"text" bson:"text"`
	URL  string `json:"url" bson:"url"`
}

// MediaKind selects the send method for a media payload.
type MediaKind string

const (
	MediaPhoto MediaKind = "photo"
	MediaAudio MediaKind = "audio"
)

// Media references a file in exactly one of three ways.
type Media struct {
	Kind MediaKind
	// FileID is a platform-native reference from an earlier upload.
	FileID string
	// URL is fetched by the platform itself.
	URL string
	// Path is a server-local file uploaded with the request.
	Path string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// InlineButtons render one button per row.
	InlineButtons []LinkButton
	// ReplyKeyboard renders a resized reply keyboard, row by row.
	ReplyKeyboard [][]string
}

// Sent is the result of a send; FileID is set when media was sent.
type Sent struct {
	Ref    MessageRef
	FileID string
}

// MessageSender delivers outbound messages. Implemented by the Telegram adapter and by
// test fakes.
type MessageSender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (Sent, error)
	SendMedia(ctx context.Context, to ChatTarget, media Media, caption string, opt *SendOptions) (Sent, error)
}

type Adapter interface {
	MessageSender

	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
}
