package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// WebhookURL switches the adapter to webhook mode; updates then arrive
	// through WebhookHandler, which the HTTP server mounts.
	WebhookURL string
	// WebhookSecret is registered with setWebhook; webhook requests without
	// it are rejected. Generated when empty.
	WebhookSecret string
	// Offline skips the getMe handshake and webhook registration (tests).
	Offline bool
}

var allowedUpdates = []string{"message", "my_chat_member", "chat_join_request"}
