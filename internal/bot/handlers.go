package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"tgcast/internal/storage"
	"tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

const menuPrompt = "Menu:"

func (b *Bot) onStart(ctx context.Context, msg *transport.Message) {
	from := msg.From
	if from.ID != 0 {
		now := b.now().UTC()
		unblocked := false
		patch := storage.UserPatch{
			FirstName:    &from.FirstName,
			LastName:     &from.LastName,
			Username:     &from.Username,
			IsBlocked:    &unblocked,
			LastActiveAt: &now,
		}
		b.background("track_user", func(ctx context.Context) error {
			_, err := b.store.UpsertUser(ctx, from.ID, patch)
			return err
		})
	}

	st, err := b.settings.Get(ctx)
	if err != nil {
		b.log.Warn("settings read failed; using defaults", logx.Err(err))
		st = storage.DefaultSettings()
	}
	buttons, err := b.settings.ActiveMenuButtons(ctx)
	if err != nil {
		b.log.Warn("menu read failed", logx.Err(err))
		buttons = nil
	}

	to := transport.ChatTarget{ChatID: msg.ChatID}
	welcome := reply{Text: st.WelcomeMessage, MediaURL: st.WelcomeMessageMediaURL, Buttons: st.WelcomeMessageButtons}
	if err := b.resp.send(ctx, to, welcome); err != nil {
		b.log.Warn("welcome send failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		return
	}
	if kb := menuKeyboard(buttons); len(kb) > 0 {
		if _, err := b.platform.SendText(ctx, to, menuPrompt, &transport.SendOptions{ReplyKeyboard: kb}); err != nil {
			b.log.Warn("menu send failed", logx.Int64("chat", msg.ChatID), logx.Err(err))
		}
	}
}

// menuKeyboard lays buttons out two per row in order.
func menuKeyboard(buttons []storage.MenuButton) [][]string {
	var rows [][]string
	for i, btn := range buttons {
		if i%2 == 0 {
			rows = append(rows, make([]string, 0, 2))
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], btn.Text)
	}
	return rows
}

func (b *Bot) onText(ctx context.Context, msg *transport.Message) {
	text := msg.Text
	if text == "" || strings.HasPrefix(text, "/") {
		return
	}
	btn, ok, err := b.settings.FindMenuButton(ctx, text)
	if err != nil {
		b.log.Warn("menu lookup failed", logx.Err(err))
		return
	}
	if !ok {
		return
	}
	r := reply{Text: btn.ResponseMessage, MediaURL: btn.MediaURL, Buttons: btn.ResponseButtons}
	if r.Text == "" {
		r.Text = "You selected: " + text
	}
	if err := b.resp.send(ctx, transport.ChatTarget{ChatID: msg.ChatID}, r); err != nil {
		b.log.Warn("menu response failed", logx.Int64("chat", msg.ChatID), logx.String("button", btn.Text), logx.Err(err))
	}
}

func (b *Bot) onMemberStatus(ctx context.Context, ch *transport.MemberChange) {
	user := ch.From.ID
	if user == 0 {
		return
	}
	b.log.Debug("member status changed", logx.Int64("user", user), logx.String("old", string(ch.OldStatus)), logx.String("new", string(ch.NewStatus)))

	switch {
	case ch.NewStatus == transport.StatusKicked:
		if err := b.store.SetBlocked(ctx, user, true); err != nil {
			b.log.Warn("mark blocked failed", logx.Int64("user", user), logx.Err(err))
			return
		}
		b.log.Info("user blocked the bot", logx.Int64("user", user))
	case ch.NewStatus == transport.StatusMember && ch.OldStatus == transport.StatusKicked:
		if err := b.store.SetBlocked(ctx, user, false); err != nil {
			b.log.Warn("unmark blocked failed", logx.Int64("user", user), logx.Err(err))
			return
		}
		b.log.Info("user unblocked the bot", logx.Int64("user", user))
	}
}

func (b *Bot) onJoinRequest(ctx context.Context, jr *transport.JoinRequest) {
	chatID := strconv.FormatInt(jr.ChatID, 10)
	ch, err := b.store.FindChannelByChatID(ctx, chatID)
	if errors.Is(err, storage.ErrNotFound) {
		b.log.Debug("join request for unregistered channel", logx.String("chat", chatID))
		return
	}
	if err != nil {
		b.log.Warn("channel lookup failed", logx.String("chat", chatID), logx.Err(err))
		return
	}
	if !ch.Active {
		b.log.Debug("join request for inactive channel", logx.String("chat", chatID))
		return
	}

	user := jr.From
	if err := b.platform.ApproveJoinRequest(ctx, jr.ChatID, user.ID); err != nil {
		b.log.Warn("approve join request failed", logx.String("chat", chatID), logx.Int64("user", user.ID), logx.Err(err))
		return
	}

	now := b.now().UTC()
	if _, err := b.store.UpsertUser(ctx, user.ID, storage.UserPatch{
		FirstName:  &user.FirstName,
		LastName:   &user.LastName,
		Username:   &user.Username,
		JoinedFrom: &ch.ID,
		JoinedAt:   &now,
	}); err != nil {
		b.log.Warn("join user upsert failed", logx.Int64("user", user.ID), logx.Err(err))
	}

	wm, err := b.store.FindWelcomeMessage(ctx, ch.ID)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		b.log.Warn("welcome message lookup failed", logx.String("channel", ch.ID), logx.Err(err))
		return
	}
	if !wm.Enabled {
		return
	}

	target := jr.UserChatID
	if target == 0 {
		target = user.ID
	}
	r := reply{
		Text:     renderWelcome(wm.MessageText, user.FirstName, ch.Name),
		MediaURL: wm.MediaURL,
	}
	if wm.ButtonText != "" && wm.ButtonURL != "" {
		r.Buttons = []storage.LinkButton{{Text: wm.ButtonText, URL: wm.ButtonURL}}
	}

	deliver := func(ctx context.Context) {
		if err := b.resp.send(ctx, transport.ChatTarget{ChatID: target}, r); err != nil {
			b.log.Warn("join welcome failed", logx.Int64("user", user.ID), logx.String("channel", ch.Name), logx.Err(err))
		}
	}
	delay := time.Duration(wm.DelaySec) * time.Second
	if delay <= 0 {
		deliver(ctx)
		return
	}
	b.welcome.After(delay, deliver)
}

func renderWelcome(tmpl, firstName, channelName string) string {
	return strings.NewReplacer("{first_name}", firstName, "{channel_name}", channelName).Replace(tmpl)
}
