package app

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	kit "tgcast/internal/transport"
)

type fakeAdapter struct {
	mu    sync.Mutex
	out   chan<- kit.Update
	texts []sentText
}

type sentText struct {
	chat int64
	text string
}

func (f *fakeAdapter) Start(ctx context.Context, out chan<- kit.Update) error {
	f.mu.Lock()
	f.out = out
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error { return nil }

func (f *fakeAdapter) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error { return nil }

func (f *fakeAdapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, sentText{chat: to.ChatID, text: text})
	return kit.Sent{Ref: kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}}, nil
}

func (f *fakeAdapter) SendMedia(ctx context.Context, to kit.ChatTarget, media kit.Media, caption string, opt *kit.SendOptions) (kit.Sent, error) {
	return f.SendText(ctx, to, caption, opt)
}

func (f *fakeAdapter) push(up kit.Update) {
	f.mu.Lock()
	out := f.out
	f.mu.Unlock()
	out <- up
}

func (f *fakeAdapter) sent(chat int64, text string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.texts {
		if s.chat == chat && s.text == text {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func writeConfig(t *testing.T) string {
	t.Helper()
	for _, k := range []string{"BOT_TOKEN", "DOMAIN", "WEBHOOK_SECRET", "DATABASE_URL", "MONGO_URI", "STORAGE_DRIVER", "REDIS_URL", "PORT", "JWT_SECRET", "ADMIN_PASSWORD", "UPLOAD_DIR", "BROADCAST_CONCURRENCY", "BROADCAST_RATE_MAX"} {
		t.Setenv(k, "")
	}
	dir := t.TempDir()
	cfg := `{
  "telegram": {"token": "123:test"},
  "logging": {"level": "error", "console": true},
  "storage": {"dsn": "` + filepath.ToSlash(filepath.Join(dir, "bot.db")) + `"},
  "redis": {"url": "memory"},
  "http": {"addr": "127.0.0.1:0"},
  "uploads": {"dir": "` + filepath.ToSlash(filepath.Join(dir, "uploads")) + `"},
  "broadcast": {"concurrency": 2, "rate_max": 50}
}`
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestAppStartBroadcastStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeAdapter{}
	a, err := New(ctx, writeConfig(t), WithAdapter(fake))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	base := "http://" + a.Addr()

	fake.push(kit.Update{Kind: kit.UpdateStart, Message: &kit.Message{ChatID: 42, From: kit.Sender{ID: 42, FirstName: "Ana"}, Text: "/start"}})
	waitFor(t, "welcome", func() bool { return fake.sent(42, "Welcome to the bot!") })

	waitFor(t, "user stored", func() bool {
		u, err := a.store.GetUser(ctx, 42)
		return err == nil && u.FirstName == "Ana"
	})

	resp, err := http.Post(base+"/api/broadcast", "application/json", bytes.NewBufferString(`{"message":"hello all"}`))
	if err != nil {
		t.Fatalf("POST broadcast: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("broadcast status = %d", resp.StatusCode)
	}
	waitFor(t, "broadcast delivery", func() bool { return fake.sent(42, "hello all") })

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	select {
	case <-a.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t)
	if err := os.WriteFile(path, []byte(`{"broadcast": {"rate_window": "soon"}}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(context.Background(), path, WithAdapter(&fakeAdapter{})); err == nil {
		t.Fatalf("New accepted invalid config")
	}
}
