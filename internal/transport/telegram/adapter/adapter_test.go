package adapter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

func TestNormalizeError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		err       error
		wantCode  int
		wantRetry time.Duration
		wantAPI   bool
		wantClass kit.Outcome
	}{
		{
			name:      "typed blocked",
			err:       &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"},
			wantCode:  403,
			wantAPI:   true,
			wantClass: kit.OutcomePermanent,
		},
		{
			name:      "string chat not found",
			err:       errors.New("telegram: Bad Request: chat not found (400)"),
			wantCode:  400,
			wantAPI:   true,
			wantClass: kit.OutcomePermanent,
		},
		{
			name:      "flood",
			err:       errors.New("telegram: Too Many Requests: retry after 7 (429)"),
			wantCode:  429,
			wantRetry: 7 * time.Second,
			wantAPI:   true,
			wantClass: kit.OutcomeRateLimited,
		},
		{
			name:      "network",
			err:       errors.New("Post \"https://api.telegram.org\": dial tcp: i/o timeout"),
			wantClass: kit.OutcomeTransient,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := normalizeError(tt.err)
			var apiErr *kit.APIError
			if errors.As(got, &apiErr) != tt.wantAPI {
				t.Fatalf("APIError = %v, want %v (%v)", apiErr != nil, tt.wantAPI, got)
			}
			if tt.wantAPI {
				if apiErr.Code != tt.wantCode {
					t.Fatalf("code = %d, want %d", apiErr.Code, tt.wantCode)
				}
				if apiErr.RetryAfter != tt.wantRetry {
					t.Fatalf("retry = %v, want %v", apiErr.RetryAfter, tt.wantRetry)
				}
			}
			if c := kit.Classify(got); c != tt.wantClass {
				t.Fatalf("class = %v, want %v", c, tt.wantClass)
			}
		})
	}
}

func TestInlineMarkupSkipsIncompleteButtons(t *testing.T) {
	t.Parallel()
	rm := inlineMarkup([]kit.LinkButton{
		{Text: "Site", URL: "https://example.com"},
		{Text: "", URL: "https://x"},
		{Text: "Docs", URL: "https://example.com/docs"},
	})
	if len(rm.InlineKeyboard) != 2 {
		t.Fatalf("rows = %d, want 2", len(rm.InlineKeyboard))
	}
	if rm.InlineKeyboard[1][0].Text != "Docs" || rm.InlineKeyboard[1][0].URL != "https://example.com/docs" {
		t.Fatalf("row 2 = %+v", rm.InlineKeyboard[1][0])
	}
}

func TestReplyKeyboardIsResized(t *testing.T) {
	t.Parallel()
	rm := replyKeyboard([][]string{{"A", "B"}, {"C"}})
	if !rm.ResizeKeyboard {
		t.Fatalf("keyboard not resized")
	}
	if len(rm.ReplyKeyboard) != 2 || len(rm.ReplyKeyboard[0]) != 2 || rm.ReplyKeyboard[1][0].Text != "C" {
		t.Fatalf("layout = %+v", rm.ReplyKeyboard)
	}
}

func TestMediaFilePrefersFileID(t *testing.T) {
	t.Parallel()
	f, err := mediaFile(kit.Media{FileID: "AgAD", URL: "https://x/y.jpg"})
	if err != nil || f.FileID != "AgAD" {
		t.Fatalf("file = %+v err = %v", f, err)
	}
	if _, err := mediaFile(kit.Media{}); !errors.Is(err, kit.ErrUnsupportedMedia) {
		t.Fatalf("err = %v", err)
	}
}

func TestOfflineAdapterForwardsNothingBeforeStart(t *testing.T) {
	a, err := New(Config{Token: "1:test", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// No output channel yet: updates are discarded without blocking.
	a.sendUpdate(kit.Update{Kind: kit.UpdateText})
	if a.WebhookHandler() != nil {
		t.Fatalf("polling adapter exposes a webhook handler")
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

const kickedUpdate = `{"update_id":1,"my_chat_member":{"chat":{"id":424242,"type":"private"},"from":{"id":424242,"first_name":"X"},"date":1,"old_chat_member":{"status":"member","user":{"id":1}},"new_chat_member":{"status":"kicked","user":{"id":1}}}}`

func TestWebhookRequiresSecretToken(t *testing.T) {
	a, err := New(Config{
		Token:         "1:test",
		WebhookURL:    "https://bot.example.com/telegram/webhook",
		WebhookSecret: "s3cret",
		Offline:       true,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out := make(chan kit.Update, 4)
	if err := a.Start(context.Background(), out); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	h := a.WebhookHandler()
	if h == nil {
		t.Fatalf("no webhook handler")
	}

	post := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(kickedUpdate))
		if secret != "" {
			req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for _, secret := range []string{"", "wrong"} {
		if code := post(secret); code != http.StatusUnauthorized {
			t.Fatalf("secret %q: code = %d, want 401", secret, code)
		}
	}
	select {
	case up := <-out:
		t.Fatalf("forged update delivered: %+v", up)
	case <-time.After(100 * time.Millisecond):
	}

	if code := post("s3cret"); code != http.StatusOK {
		t.Fatalf("code = %d, want 200", code)
	}
	select {
	case up := <-out:
		if up.Kind != kit.UpdateMemberStatus || up.Member.ChatID != 424242 || up.Member.NewStatus != kit.StatusKicked {
			t.Fatalf("update = %+v", up)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("signed update not delivered")
	}
}

func TestWebhookSecretGeneratedWhenUnset(t *testing.T) {
	a, err := New(Config{Token: "1:test", WebhookURL: "https://bot.example.com/hook", Offline: true}, logx.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(a.webhook.SecretToken) != 64 {
		t.Fatalf("secret = %q", a.webhook.SecretToken)
	}
	// Not started: even a correctly signed request is turned away for redelivery.
	req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(kickedUpdate))
	req.Header.Set("X-Telegram-Bot-Api-Secret-Token", a.webhook.SecretToken)
	rec := httptest.NewRecorder()
	a.WebhookHandler().ServeHTTP(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("code = %d, want 503", rec.Code)
	}
}
