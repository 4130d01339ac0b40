package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tgcast/internal/broadcast"
	"tgcast/internal/cache"
	"tgcast/internal/queue"
	"tgcast/internal/services/settings"
	"tgcast/internal/storage"
	logx "tgcast/pkg/logx"
)

type env struct {
	srv   *httptest.Server
	store storage.Store
	queue *queue.Queue
	cfg   Config
}

func newEnv(t *testing.T, mutate func(*Config)) *env {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite", DSN: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	q := queue.New("test", queue.NewMemoryBackend(), queue.Options{Attempts: 3})
	producer := broadcast.NewProducer(st, q, 100, logx.Nop())
	t.Cleanup(func() { _ = producer.Stop(context.Background()) })

	cfg := Config{UploadDir: t.TempDir(), PublicURL: "https://bot.test"}
	if mutate != nil {
		mutate(&cfg)
	}
	s := NewServer(cfg, Deps{
		Store:       st,
		Settings:    settings.New(st, cache.NewMemoryCache(), time.Minute, logx.Nop()),
		Broadcaster: producer,
		Queue:       q,
		Logger:      logx.Nop(),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: st, queue: q, cfg: s.cfg}
}

func (e *env) do(t *testing.T, method, path string, body any, hdr ...string) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func decode[T any](t *testing.T, b []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("decode %s: %v", b, err)
	}
	return v
}

func TestWelcomeSettingsDefaultsAndInvalidation(t *testing.T) {
	e := newEnv(t, nil)

	code, body := e.do(t, "GET", "/api/settings/welcome", nil)
	if code != http.StatusOK || strings.TrimSpace(string(body)) != `{"message":"Welcome to the bot!","mediaUrl":"","buttons":[]}` {
		t.Fatalf("GET defaults = %d %s", code, body)
	}

	code, body = e.do(t, "POST", "/api/settings/welcome", map[string]any{"mediaUrl": "x"})
	if code != http.StatusBadRequest || !strings.Contains(string(body), "Message is required") {
		t.Fatalf("POST empty = %d %s", code, body)
	}

	first := map[string]any{"message": "v1"}
	if code, body = e.do(t, "POST", "/api/settings/welcome", first); code != http.StatusOK {
		t.Fatalf("POST v1 = %d %s", code, body)
	}
	if got := decode[welcomeSettings](t, mustGet(t, e, "/api/settings/welcome")); got.Message != "v1" {
		t.Fatalf("after v1 = %+v", got)
	}
	second := map[string]any{"message": "v2", "mediaUrl": "https://bot.test/uploads/a.jpg", "buttons": []map[string]string{{"text": "Go", "url": "https://go.test"}}}
	code, body = e.do(t, "POST", "/api/settings/welcome", second)
	if code != http.StatusOK || !strings.Contains(string(body), "Welcome message updated") {
		t.Fatalf("POST v2 = %d %s", code, body)
	}
	got := decode[welcomeSettings](t, mustGet(t, e, "/api/settings/welcome"))
	if got.Message != "v2" || got.MediaURL == "" || len(got.Buttons) != 1 {
		t.Fatalf("after v2 = %+v", got)
	}
}

func mustGet(t *testing.T, e *env, path string) []byte {
	t.Helper()
	code, body := e.do(t, "GET", path, nil)
	if code != http.StatusOK {
		t.Fatalf("GET %s = %d %s", path, code, body)
	}
	return body
}

func TestBroadcastEndpoint(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for i := int64(1); i <= 10; i++ {
		if _, err := e.store.UpsertUser(ctx, i, storage.UserPatch{}); err != nil {
			t.Fatalf("UpsertUser: %v", err)
		}
	}

	code, body := e.do(t, "POST", "/api/broadcast", map[string]any{"limit": 5})
	if code != http.StatusBadRequest || !strings.Contains(string(body), "Message is required") {
		t.Fatalf("missing message = %d %s", code, body)
	}
	code, body = e.do(t, "POST", "/api/broadcast", map[string]any{"message": "hi", "limit": 5})
	if code != http.StatusAccepted || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("broadcast = %d %s", code, body)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, _ := e.queue.Stats(ctx)
		if st.Waiting == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue stats = %+v, want 5 waiting", st)
		}
		time.Sleep(5 * time.Millisecond)
	}
	stats := decode[map[string]map[string]int](t, mustGet(t, e, "/api/broadcast/stats"))
	if stats["queue"]["waiting"] != 5 {
		t.Fatalf("stats = %v", stats)
	}
	if got := strings.TrimSpace(string(mustGet(t, e, "/api/broadcast/failed"))); got != "[]" {
		t.Fatalf("failed = %s", got)
	}
}

func TestMenuRoutes(t *testing.T) {
	e := newEnv(t, nil)

	code, body := e.do(t, "POST", "/api/menu", map[string]any{"order": 1})
	if code != http.StatusBadRequest || !strings.Contains(string(body), "Text is required") {
		t.Fatalf("create without text = %d %s", code, body)
	}
	_, body = e.do(t, "POST", "/api/menu", map[string]any{"text": "B", "order": 2, "responseMediaUrl": "https://m.test/b.jpg"})
	b := decode[storage.MenuButton](t, body)
	_, body = e.do(t, "POST", "/api/menu", map[string]any{"text": "A", "order": 1})
	a := decode[storage.MenuButton](t, body)
	if !a.Active || b.MediaURL != "https://m.test/b.jpg" {
		t.Fatalf("created = %+v %+v", a, b)
	}

	list := decode[[]storage.MenuButton](t, mustGet(t, e, "/api/menu"))
	if len(list) != 2 || list[0].Text != "A" {
		t.Fatalf("list = %+v", list)
	}

	if code, body = e.do(t, "PUT", "/api/menu/999", map[string]any{"text": "x"}); code != http.StatusNotFound || !strings.Contains(string(body), "Button not found") {
		t.Fatalf("update missing = %d %s", code, body)
	}
	code, body = e.do(t, "PUT", "/api/menu/"+a.ID, map[string]any{"responseMessage": "About us"})
	if got := decode[storage.MenuButton](t, body); code != http.StatusOK || got.ResponseMessage != "About us" || got.Text != "A" {
		t.Fatalf("update = %d %s", code, body)
	}

	_, body = e.do(t, "PATCH", "/api/menu/"+a.ID+"/toggle", nil)
	if decode[storage.MenuButton](t, body).Active {
		t.Fatalf("toggle did not deactivate: %s", body)
	}
	if code, _ = e.do(t, "PATCH", "/api/menu/999/toggle", nil); code != http.StatusNotFound {
		t.Fatalf("toggle missing = %d", code)
	}

	code, body = e.do(t, "PATCH", "/api/menu/reorder", map[string]any{"updates": []map[string]any{{"id": a.ID, "order": 5}, {"id": b.ID, "order": 0}}})
	if code != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("reorder = %d %s", code, body)
	}
	if list = decode[[]storage.MenuButton](t, mustGet(t, e, "/api/menu")); list[0].ID != b.ID {
		t.Fatalf("order after reorder = %+v", list)
	}

	if code, body = e.do(t, "DELETE", "/api/menu/"+b.ID, nil); code != http.StatusOK || !strings.Contains(string(body), `"success":true`) {
		t.Fatalf("delete = %d %s", code, body)
	}
	if list = decode[[]storage.MenuButton](t, mustGet(t, e, "/api/menu")); len(list) != 1 {
		t.Fatalf("after delete = %+v", list)
	}
}

func TestChannelAndWelcomeMessageRoutes(t *testing.T) {
	e := newEnv(t, nil)

	if code, _ := e.do(t, "POST", "/api/channels", map[string]any{"name": "x"}); code != http.StatusBadRequest {
		t.Fatalf("create invalid = %d", code)
	}
	code, body := e.do(t, "POST", "/api/channels", map[string]any{"chatId": "-100", "name": "News"})
	ch := decode[storage.Channel](t, body)
	if code != http.StatusOK || !ch.Active || ch.ID == "" {
		t.Fatalf("create = %d %s", code, body)
	}
	if code, _ = e.do(t, "POST", "/api/channels", map[string]any{"chatId": "-100", "name": "Dup"}); code != http.StatusConflict {
		t.Fatalf("duplicate = %d", code)
	}
	if code, body = e.do(t, "PUT", "/api/channels/999/toggle", nil); code != http.StatusNotFound || decode[map[string]string](t, body)["error"] != "Channel not found" {
		t.Fatalf("toggle missing = %d %s", code, body)
	}

	if got := strings.TrimSpace(string(mustGet(t, e, "/api/welcome-messages/channel/"+ch.ID))); got != "{}" {
		t.Fatalf("empty welcome = %s", got)
	}
	code, body = e.do(t, "POST", "/api/welcome-messages", map[string]any{"channelId": ch.ID, "messageText": "Hi {first_name}", "delaySec": 5})
	wm := decode[storage.WelcomeMessage](t, body)
	if code != http.StatusOK || !wm.Enabled || wm.DelaySec != 5 {
		t.Fatalf("upsert = %d %s", code, body)
	}
	_, body = e.do(t, "POST", "/api/welcome-messages", map[string]any{"channelId": ch.ID, "buttonText": "Rules", "buttonUrl": "https://r.test"})
	wm2 := decode[storage.WelcomeMessage](t, body)
	if wm2.ID != wm.ID || wm2.MessageText != "Hi {first_name}" || wm2.ButtonText != "Rules" || wm2.DelaySec != 5 {
		t.Fatalf("partial upsert = %+v", wm2)
	}
	_, body = e.do(t, "PUT", "/api/welcome-messages/"+wm.ID+"/toggle", nil)
	if decode[storage.WelcomeMessage](t, body).Enabled {
		t.Fatalf("toggle did not disable: %s", body)
	}
	if code, body = e.do(t, "PUT", "/api/welcome-messages/999/toggle", nil); code != http.StatusNotFound || decode[map[string]string](t, body)["error"] != "Welcome message not found" {
		t.Fatalf("toggle missing = %d %s", code, body)
	}
	if list := decode[[]storage.WelcomeMessage](t, mustGet(t, e, "/api/welcome-messages")); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}

	if code, body = e.do(t, "DELETE", "/api/channels/"+ch.ID, nil); code != http.StatusOK || !strings.Contains(string(body), "Channel deleted") {
		t.Fatalf("delete = %d %s", code, body)
	}
	if got := strings.TrimSpace(string(mustGet(t, e, "/api/channels"))); got != "[]" {
		t.Fatalf("channels after delete = %s", got)
	}
}

func TestUsersNewestFirst(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()
	for _, id := range []int64{1, 2, 3} {
		_, _ = e.store.UpsertUser(ctx, id, storage.UserPatch{})
	}
	users := decode[[]storage.User](t, mustGet(t, e, "/api/users"))
	if len(users) != 3 || users[0].TelegramID != 3 {
		t.Fatalf("users = %+v", users)
	}
}

func multipartBody(t *testing.T, field, name string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		_, _ = fw.Write(data)
	} else {
		_ = mw.WriteField("note", "no file")
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadAndServe(t *testing.T) {
	e := newEnv(t, nil)

	post := func(field, name string, data []byte) (int, []byte) {
		body, ct := multipartBody(t, field, name, data)
		resp, err := http.Post(e.srv.URL+"/api/upload", ct, body)
		if err != nil {
			t.Fatalf("upload: %v", err)
		}
		defer resp.Body.Close()
		out, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, out
	}

	if code, body := post("", "", nil); code != http.StatusBadRequest || !strings.Contains(string(body), "No file uploaded") {
		t.Fatalf("no file = %d %s", code, body)
	}
	if code, _ := post("image", "evil.exe", []byte("MZ")); code != http.StatusBadRequest {
		t.Fatalf("bad ext = %d", code)
	}
	code, body := post("image", "Banner.PNG", []byte("png-bytes"))
	if code != http.StatusOK {
		t.Fatalf("upload = %d %s", code, body)
	}
	url := decode[map[string]string](t, body)["url"]
	if !strings.HasPrefix(url, "https://bot.test/uploads/") || !strings.HasSuffix(url, ".png") {
		t.Fatalf("url = %q", url)
	}

	served := mustGet(t, e, strings.TrimPrefix(url, "https://bot.test"))
	if string(served) != "png-bytes" {
		t.Fatalf("served = %q", served)
	}
	if code, _ := e.do(t, "GET", "/uploads/", nil); code != http.StatusNotFound {
		t.Fatalf("dir listing = %d", code)
	}
}

func TestAuthStub(t *testing.T) {
	e := newEnv(t, func(c *Config) {
		c.JWTSecret = "test-secret"
		c.AdminPassword = "pw"
	})

	if code, _ := e.do(t, "GET", "/api/users", nil); code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated = %d", code)
	}
	if code, _ := e.do(t, "POST", "/api/auth/login", map[string]string{"password": "nope"}); code != http.StatusUnauthorized {
		t.Fatalf("bad password = %d", code)
	}
	code, body := e.do(t, "POST", "/api/auth/login", map[string]string{"password": "pw"})
	if code != http.StatusOK {
		t.Fatalf("login = %d %s", code, body)
	}
	tok := decode[map[string]any](t, body)["token"].(string)
	if code, _ := e.do(t, "GET", "/api/users", nil, "Authorization", "Bearer "+tok); code != http.StatusOK {
		t.Fatalf("with token = %d", code)
	}
	if code, _ := e.do(t, "GET", "/api/users", nil, "Authorization", "Bearer "+tok+"x"); code != http.StatusUnauthorized {
		t.Fatalf("tampered token = %d", code)
	}
	if code, _ := e.do(t, "GET", "/health", nil); code != http.StatusOK {
		t.Fatalf("health must stay public, got %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t, nil)
	req, _ := http.NewRequest(http.MethodOptions, e.srv.URL+"/api/menu", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("OPTIONS: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent || resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight = %d %v", resp.StatusCode, resp.Header)
	}
}

func TestServerStartStop(t *testing.T) {
	st, err := storage.Open(context.Background(), storage.Config{Driver: "sqlite", DSN: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()
	s := NewServer(Config{Addr: "127.0.0.1:0", UploadDir: t.TempDir()}, Deps{Store: st, Logger: logx.Nop()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.Addr() != "" {
		t.Fatalf("Addr after stop = %q", s.Addr())
	}
}
