package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	logx "tgcast/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(context.Background(), Config{Driver: "sqlite", DSN: ":memory:"}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func strp(s string) *string { return &s }
func boolp(b bool) *bool    { return &b }

func seedUsers(t *testing.T, st Store, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 1; i <= n; i++ {
		if _, err := st.UpsertUser(ctx, int64(i), UserPatch{FirstName: strp("u")}); err != nil {
			t.Fatalf("UpsertUser(%d): %v", i, err)
		}
	}
}

func collect(t *testing.T, st Store, limit, page int) []int64 {
	t.Helper()
	var ids []int64
	err := st.StreamRecipients(context.Background(), limit, page, func(r Recipient) error {
		ids = append(ids, r.TelegramID)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamRecipients: %v", err)
	}
	return ids
}

func TestUpsertUserPatchesOnlyGivenFields(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	u, err := st.UpsertUser(ctx, 42, UserPatch{FirstName: strp("Ann"), Username: strp("ann")})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if u.ID == "" || u.CreatedAt.IsZero() || u.IsBlocked {
		t.Fatalf("inserted user = %+v", u)
	}

	now := time.Now()
	u2, err := st.UpsertUser(ctx, 42, UserPatch{IsBlocked: boolp(true), LastActiveAt: &now})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if u2.ID != u.ID || u2.FirstName != "Ann" || u2.Username != "ann" {
		t.Fatalf("update clobbered fields: %+v", u2)
	}
	if !u2.IsBlocked || u2.LastActiveAt == nil {
		t.Fatalf("patch not applied: %+v", u2)
	}
	if !u2.CreatedAt.Equal(u.CreatedAt) {
		t.Fatalf("created_at changed: %v -> %v", u.CreatedAt, u2.CreatedAt)
	}
}

func TestSetBlockedIsIdempotent(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedUsers(t, st, 1)

	for i := 0; i < 2; i++ {
		if err := st.SetBlocked(ctx, 1, true); err != nil {
			t.Fatalf("SetBlocked #%d: %v", i, err)
		}
	}
	u, err := st.GetUser(ctx, 1)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if !u.IsBlocked {
		t.Fatalf("user not blocked")
	}
	// Unknown users are not created.
	if err := st.SetBlocked(ctx, 999, true); err != nil {
		t.Fatalf("SetBlocked unknown: %v", err)
	}
	if _, err := st.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user err = %v, want ErrNotFound", err)
	}

	if err := st.SetBlocked(ctx, 1, false); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	u, _ = st.GetUser(ctx, 1)
	if u.IsBlocked || u.LastActiveAt == nil {
		t.Fatalf("unblock = %+v", u)
	}
}

func TestStreamRecipientsLimitSelectsNewestNonBlocked(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	seedUsers(t, st, 10)
	// Block two of the newest.
	for _, id := range []int64{10, 8} {
		if err := st.SetBlocked(ctx, id, true); err != nil {
			t.Fatalf("SetBlocked: %v", err)
		}
	}

	got := collect(t, st, 5, 2)
	want := []int64{9, 7, 6, 5, 4}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}

	if all := collect(t, st, 0, 3); len(all) != 8 {
		t.Fatalf("limit 0 streamed %d users, want 8", len(all))
	}
	if more := collect(t, st, 50, 500); len(more) != 8 {
		t.Fatalf("limit above population streamed %d, want 8", len(more))
	}
}

func TestStreamRecipientsStopsOnCallbackError(t *testing.T) {
	st := openTestStore(t)
	seedUsers(t, st, 4)
	boom := errors.New("boom")
	n := 0
	err := st.StreamRecipients(context.Background(), 0, 2, func(Recipient) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) || n != 3 {
		t.Fatalf("err = %v after %d calls", err, n)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	if _, err := st.GetSettings(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty settings err = %v", err)
	}
	in := Settings{WelcomeMessage: "hi", WelcomeMessageButtons: []LinkButton{{Text: "a", URL: "https://a"}}}
	if err := st.SaveSettings(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}
	in.WelcomeMessage = "hello"
	if err := st.SaveSettings(ctx, in); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err := st.GetSettings(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.WelcomeMessage != "hello" || len(got.WelcomeMessageButtons) != 1 {
		t.Fatalf("settings = %+v", got)
	}
}

func TestMenuButtons(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	b1, err := st.CreateMenuButton(ctx, MenuButton{Text: "Pricing", Order: 2, Active: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b2, _ := st.CreateMenuButton(ctx, MenuButton{Text: "About", Order: 1, Active: true})
	if _, err := st.CreateMenuButton(ctx, MenuButton{}); !errors.Is(err, ErrInvalid) {
		t.Fatalf("empty text err = %v", err)
	}

	list, _ := st.ListMenuButtons(ctx, true)
	if len(list) != 2 || list[0].ID != b2.ID {
		t.Fatalf("order = %+v", list)
	}

	if err := st.ReorderMenuButtons(ctx, []OrderUpdate{{ID: b1.ID, Order: 0}}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	list, _ = st.ListMenuButtons(ctx, false)
	if list[0].ID != b1.ID {
		t.Fatalf("reorder not applied: %+v", list)
	}

	found, err := st.FindActiveMenuButton(ctx, "Pricing")
	if err != nil || found.ID != b1.ID {
		t.Fatalf("find = %+v, %v", found, err)
	}
	toggled, err := st.ToggleMenuButton(ctx, b1.ID)
	if err != nil || toggled.Active {
		t.Fatalf("toggle = %+v, %v", toggled, err)
	}
	if _, err := st.FindActiveMenuButton(ctx, "Pricing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("inactive button found: %v", err)
	}

	msg := "See pricing page"
	btns := []LinkButton{{Text: "Open", URL: "https://example.com"}}
	upd, err := st.UpdateMenuButton(ctx, b2.ID, MenuButtonPatch{ResponseMessage: &msg, ResponseButtons: &btns})
	if err != nil || upd.ResponseMessage != msg || len(upd.ResponseButtons) != 1 || upd.Text != "About" {
		t.Fatalf("update = %+v, %v", upd, err)
	}
	if _, err := st.UpdateMenuButton(ctx, "nope", MenuButtonPatch{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bad id err = %v", err)
	}

	if err := st.DeleteMenuButton(ctx, b2.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteMenuButton(ctx, b2.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v", err)
	}
}

func TestChannelsAndWelcomeMessages(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	ch, err := st.CreateChannel(ctx, Channel{ChatID: "-1001", Name: "News", Active: true})
	if err != nil {
		t.Fatalf("create channel: %v", err)
	}
	if _, err := st.CreateChannel(ctx, Channel{ChatID: "-1001", Name: "Dup", Active: true}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate chat id err = %v", err)
	}
	got, err := st.FindChannelByChatID(ctx, "-1001")
	if err != nil || got.ID != ch.ID {
		t.Fatalf("find = %+v, %v", got, err)
	}
	off, err := st.ToggleChannel(ctx, ch.ID)
	if err != nil || off.Active {
		t.Fatalf("toggle = %+v, %v", off, err)
	}

	w, err := st.UpsertWelcomeMessage(ctx, WelcomeMessage{ChannelID: ch.ID, MessageText: "Hi {first_name}", DelaySec: 5, Enabled: true})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	w2, err := st.UpsertWelcomeMessage(ctx, WelcomeMessage{ChannelID: ch.ID, MessageText: "Hello", Enabled: true})
	if err != nil || w2.ID != w.ID || w2.MessageText != "Hello" || w2.DelaySec != 0 {
		t.Fatalf("second upsert = %+v, %v", w2, err)
	}
	tw, err := st.ToggleWelcomeMessage(ctx, w.ID)
	if err != nil || tw.Enabled {
		t.Fatalf("toggle welcome = %+v, %v", tw, err)
	}
	list, _ := st.ListWelcomeMessages(ctx)
	if len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
	if err := st.DeleteChannel(ctx, ch.ID); err != nil {
		t.Fatalf("delete channel: %v", err)
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	s := &sqlStore{d: postgresDialect()}
	got := s.rebind("SELECT a FROM t WHERE x = ? AND y = ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y = $2" {
		t.Fatalf("rebind = %q", got)
	}
}

func TestConnectionDatabase(t *testing.T) {
	tests := map[string]string{
		"mongodb://localhost:27017/botdb":            "botdb",
		"mongodb://localhost:27017":                  "",
		"mongodb+srv://u:p@cluster.x/prod?retry=true": "prod",
	}
	for in, want := range tests {
		if got := connectionDatabase(in); got != want {
			t.Fatalf("connectionDatabase(%q) = %q, want %q", in, got, want)
		}
	}
}
