package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	logx "tgcast/pkg/logx"
)

// dialect captures the differences between the SQL drivers.
type dialect struct {
	name string
	// numbered placeholders ($1, $2, ...) instead of "?"
	numbered bool
	timeArg  func(time.Time) any
	// isConflict reports a unique constraint violation.
	isConflict func(error) bool
}

// sqlStore implements Store on database/sql for sqlite and postgres.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
}

func (s *sqlStore) rebind(q string) string {
	if !s.d.numbered {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(q[i])
	}
	return b.String()
}

func (s *sqlStore) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(q), args...)
	return res, s.wrap(err)
}

func (s *sqlStore) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	return rows, s.wrap(err)
}

func (s *sqlStore) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(q), args...)
}

func (s *sqlStore) wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case s.d.isConflict != nil && s.d.isConflict(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	default:
		return err
	}
}

func (s *sqlStore) ts(t time.Time) any { return s.d.timeArg(t.UTC()) }

func (s *sqlStore) tsPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return s.ts(*t)
}

func (s *sqlStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) migrate(ctx context.Context, ddl string) error {
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("migrate %s: %w", s.d.name, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrNotFound
	}
	return n, nil
}

func formatID(n int64) string { return strconv.FormatInt(n, 10) }

func encodeButtons(b []LinkButton) string {
	if len(b) == 0 {
		return "[]"
	}
	out, err := json.Marshal(b)
	if err != nil {
		return "[]"
	}
	return string(out)
}

func decodeButtons(raw string) []LinkButton {
	out := []LinkButton{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// Users

const userCols = `id, telegram_id, first_name, last_name, username, is_blocked, last_active_at, joined_from, joined_at, created_at, updated_at`

func scanUser(r rowScanner) (User, error) {
	var (
		u              User
		id             int64
		la, ja, ca, ua dbTime
	)
	if err := r.Scan(&id, &u.TelegramID, &u.FirstName, &u.LastName, &u.Username, &u.IsBlocked, &la, &u.JoinedFrom, &ja, &ca, &ua); err != nil {
		return User{}, err
	}
	u.ID = formatID(id)
	u.LastActiveAt = la.ptr()
	u.JoinedAt = ja.ptr()
	u.CreatedAt = ca.t
	u.UpdatedAt = ua.t
	return u, nil
}

func (s *sqlStore) UpsertUser(ctx context.Context, telegramID int64, p UserPatch) (User, error) {
	if telegramID == 0 {
		return User{}, ErrInvalid
	}
	now := time.Now().UTC()
	str := func(v *string) string {
		if v == nil {
			return ""
		}
		return *v
	}
	blocked := p.IsBlocked != nil && *p.IsBlocked

	set := make([]string, 0, 8)
	add := func(ok bool, col string) {
		if ok {
			set = append(set, col+" = excluded."+col)
		}
	}
	add(p.FirstName != nil, "first_name")
	add(p.LastName != nil, "last_name")
	add(p.Username != nil, "username")
	add(p.IsBlocked != nil, "is_blocked")
	add(p.LastActiveAt != nil, "last_active_at")
	add(p.JoinedFrom != nil, "joined_from")
	add(p.JoinedAt != nil, "joined_at")
	set = append(set, "updated_at = excluded.updated_at")

	q := `INSERT INTO users (telegram_id, first_name, last_name, username, is_blocked, last_active_at, joined_from, joined_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (telegram_id) DO UPDATE SET ` + strings.Join(set, ", ") + `
		RETURNING ` + userCols
	u, err := scanUser(s.queryRow(ctx, q,
		telegramID, str(p.FirstName), str(p.LastName), str(p.Username), blocked,
		s.tsPtr(p.LastActiveAt), str(p.JoinedFrom), s.tsPtr(p.JoinedAt), s.ts(now), s.ts(now),
	))
	if err != nil {
		return User{}, s.wrap(err)
	}
	return u, nil
}

// SetBlocked also stamps last_active_at when unblocking.
func (s *sqlStore) SetBlocked(ctx context.Context, telegramID int64, blocked bool) error {
	now := time.Now().UTC()
	var err error
	if blocked {
		_, err = s.exec(ctx, `UPDATE users SET is_blocked = ?, updated_at = ? WHERE telegram_id = ?`, true, s.ts(now), telegramID)
	} else {
		_, err = s.exec(ctx, `UPDATE users SET is_blocked = ?, last_active_at = ?, updated_at = ? WHERE telegram_id = ?`, false, s.ts(now), s.ts(now), telegramID)
	}
	return err
}

func (s *sqlStore) GetUser(ctx context.Context, telegramID int64) (User, error) {
	u, err := scanUser(s.queryRow(ctx, `SELECT `+userCols+` FROM users WHERE telegram_id = ?`, telegramID))
	return u, s.wrap(err)
}

func (s *sqlStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.query(ctx, `SELECT `+userCols+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]User, 0, 64)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// StreamRecipients pages with a (created_at, id) keyset so no result set
// stays open while fn runs; sqlite runs on a single connection.
func (s *sqlStore) StreamRecipients(ctx context.Context, limit, pageSize int, fn func(Recipient) error) error {
	if pageSize <= 0 {
		pageSize = 500
	}
	type cursor struct {
		createdAt time.Time
		id        int64
	}
	var (
		after *cursor
		sent  int
	)
	for {
		n := pageSize
		if limit > 0 && limit-sent < n {
			n = limit - sent
		}
		if n <= 0 {
			return nil
		}

		var (
			rows *sql.Rows
			err  error
		)
		if after == nil {
			rows, err = s.query(ctx, `SELECT id, telegram_id, created_at FROM users
				WHERE is_blocked = ? ORDER BY created_at DESC, id DESC LIMIT ?`, false, n)
		} else {
			rows, err = s.query(ctx, `SELECT id, telegram_id, created_at FROM users
				WHERE is_blocked = ? AND (created_at < ? OR (created_at = ? AND id < ?))
				ORDER BY created_at DESC, id DESC LIMIT ?`,
				false, s.ts(after.createdAt), s.ts(after.createdAt), after.id, n)
		}
		if err != nil {
			return err
		}
		page := make([]Recipient, 0, n)
		var last cursor
		for rows.Next() {
			var (
				r  Recipient
				ca dbTime
			)
			if err := rows.Scan(&last.id, &r.TelegramID, &ca); err != nil {
				rows.Close()
				return err
			}
			last.createdAt = ca.t
			page = append(page, r)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}

		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}
		sent += len(page)
		if len(page) < n {
			return nil
		}
		after = &last
	}
}

// Settings

func (s *sqlStore) GetSettings(ctx context.Context) (Settings, error) {
	var (
		st      Settings
		buttons string
	)
	err := s.queryRow(ctx, `SELECT welcome_message, welcome_media_url, welcome_buttons FROM settings WHERE id = 1`).
		Scan(&st.WelcomeMessage, &st.WelcomeMessageMediaURL, &buttons)
	if err != nil {
		return Settings{}, s.wrap(err)
	}
	st.WelcomeMessageButtons = decodeButtons(buttons)
	return st, nil
}

func (s *sqlStore) SaveSettings(ctx context.Context, st Settings) error {
	_, err := s.exec(ctx, `INSERT INTO settings (id, welcome_message, welcome_media_url, welcome_buttons, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET welcome_message = excluded.welcome_message,
			welcome_media_url = excluded.welcome_media_url,
			welcome_buttons = excluded.welcome_buttons,
			updated_at = excluded.updated_at`,
		st.WelcomeMessage, st.WelcomeMessageMediaURL, encodeButtons(st.WelcomeMessageButtons), s.ts(time.Now()))
	return err
}

// Menu buttons

const menuCols = `id, text, sort_order, active, response_message, media_url, response_buttons, created_at`

func scanMenuButton(r rowScanner) (MenuButton, error) {
	var (
		b       MenuButton
		id      int64
		buttons string
		ca      dbTime
	)
	if err := r.Scan(&id, &b.Text, &b.Order, &b.Active, &b.ResponseMessage, &b.MediaURL, &buttons, &ca); err != nil {
		return MenuButton{}, err
	}
	b.ID = formatID(id)
	b.ResponseButtons = decodeButtons(buttons)
	b.CreatedAt = ca.t
	return b, nil
}

func (s *sqlStore) menuList(ctx context.Context, q string, args ...any) ([]MenuButton, error) {
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]MenuButton, 0, 8)
	for rows.Next() {
		b, err := scanMenuButton(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *sqlStore) ListMenuButtons(ctx context.Context, activeOnly bool) ([]MenuButton, error) {
	if activeOnly {
		return s.menuList(ctx, `SELECT `+menuCols+` FROM menu_buttons WHERE active = ? ORDER BY sort_order ASC, id ASC`, true)
	}
	return s.menuList(ctx, `SELECT `+menuCols+` FROM menu_buttons ORDER BY sort_order ASC, id ASC`)
}

func (s *sqlStore) FindActiveMenuButton(ctx context.Context, text string) (MenuButton, error) {
	b, err := scanMenuButton(s.queryRow(ctx, `SELECT `+menuCols+` FROM menu_buttons
		WHERE text = ? AND active = ? ORDER BY sort_order ASC, id ASC LIMIT 1`, text, true))
	return b, s.wrap(err)
}

func (s *sqlStore) CreateMenuButton(ctx context.Context, b MenuButton) (MenuButton, error) {
	if strings.TrimSpace(b.Text) == "" {
		return MenuButton{}, ErrInvalid
	}
	out, err := scanMenuButton(s.queryRow(ctx, `INSERT INTO menu_buttons (text, sort_order, active, response_message, media_url, response_buttons, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING `+menuCols,
		b.Text, b.Order, b.Active, b.ResponseMessage, b.MediaURL, encodeButtons(b.ResponseButtons), s.ts(time.Now())))
	return out, s.wrap(err)
}

func (s *sqlStore) UpdateMenuButton(ctx context.Context, id string, p MenuButtonPatch) (MenuButton, error) {
	n, err := parseID(id)
	if err != nil {
		return MenuButton{}, err
	}
	set := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if p.Text != nil {
		set, args = append(set, "text = ?"), append(args, *p.Text)
	}
	if p.Order != nil {
		set, args = append(set, "sort_order = ?"), append(args, *p.Order)
	}
	if p.Active != nil {
		set, args = append(set, "active = ?"), append(args, *p.Active)
	}
	if p.ResponseMessage != nil {
		set, args = append(set, "response_message = ?"), append(args, *p.ResponseMessage)
	}
	if p.MediaURL != nil {
		set, args = append(set, "media_url = ?"), append(args, *p.MediaURL)
	}
	if p.ResponseButtons != nil {
		set, args = append(set, "response_buttons = ?"), append(args, encodeButtons(*p.ResponseButtons))
	}
	if len(set) == 0 {
		b, err := scanMenuButton(s.queryRow(ctx, `SELECT `+menuCols+` FROM menu_buttons WHERE id = ?`, n))
		return b, s.wrap(err)
	}
	args = append(args, n)
	b, err := scanMenuButton(s.queryRow(ctx, `UPDATE menu_buttons SET `+strings.Join(set, ", ")+` WHERE id = ? RETURNING `+menuCols, args...))
	return b, s.wrap(err)
}

func (s *sqlStore) DeleteMenuButton(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, "menu_buttons", n)
}

func (s *sqlStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) ToggleMenuButton(ctx context.Context, id string) (MenuButton, error) {
	n, err := parseID(id)
	if err != nil {
		return MenuButton{}, err
	}
	b, err := scanMenuButton(s.queryRow(ctx, `UPDATE menu_buttons SET active = NOT active WHERE id = ? RETURNING `+menuCols, n))
	return b, s.wrap(err)
}

func (s *sqlStore) ReorderMenuButtons(ctx context.Context, updates []OrderUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	q := s.rebind(`UPDATE menu_buttons SET sort_order = ? WHERE id = ?`)
	for _, u := range updates {
		n, err := parseID(u.ID)
		if err != nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, q, u.Order, n); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Channels

const channelCols = `id, chat_id, name, active, created_at, updated_at`

func scanChannel(r rowScanner) (Channel, error) {
	var (
		c      Channel
		id     int64
		ca, ua dbTime
	)
	if err := r.Scan(&id, &c.ChatID, &c.Name, &c.Active, &ca, &ua); err != nil {
		return Channel{}, err
	}
	c.ID = formatID(id)
	c.CreatedAt, c.UpdatedAt = ca.t, ua.t
	return c, nil
}

func (s *sqlStore) ListChannels(ctx context.Context) ([]Channel, error) {
	rows, err := s.query(ctx, `SELECT `+channelCols+` FROM channels ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Channel, 0, 8)
	for rows.Next() {
		c, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *sqlStore) CreateChannel(ctx context.Context, c Channel) (Channel, error) {
	if strings.TrimSpace(c.ChatID) == "" || strings.TrimSpace(c.Name) == "" {
		return Channel{}, ErrInvalid
	}
	now := s.ts(time.Now())
	out, err := scanChannel(s.queryRow(ctx, `INSERT INTO channels (chat_id, name, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?) RETURNING `+channelCols, c.ChatID, c.Name, c.Active, now, now))
	return out, s.wrap(err)
}

func (s *sqlStore) ToggleChannel(ctx context.Context, id string) (Channel, error) {
	n, err := parseID(id)
	if err != nil {
		return Channel{}, err
	}
	c, err := scanChannel(s.queryRow(ctx, `UPDATE channels SET active = NOT active, updated_at = ? WHERE id = ? RETURNING `+channelCols, s.ts(time.Now()), n))
	return c, s.wrap(err)
}

func (s *sqlStore) DeleteChannel(ctx context.Context, id string) error {
	n, err := parseID(id)
	if err != nil {
		return err
	}
	return s.deleteByID(ctx, "channels", n)
}

func (s *sqlStore) FindChannelByChatID(ctx context.Context, chatID string) (Channel, error) {
	c, err := scanChannel(s.queryRow(ctx, `SELECT `+channelCols+` FROM channels WHERE chat_id = ?`, chatID))
	return c, s.wrap(err)
}

// Welcome messages

const welcomeCols = `id, channel_id, message_text, button_text, button_url, media_url, delay_sec, enabled, created_at, updated_at`

func scanWelcome(r rowScanner) (WelcomeMessage, error) {
	var (
		w      WelcomeMessage
		id     int64
		ca, ua dbTime
	)
	if err := r.Scan(&id, &w.ChannelID, &w.MessageText, &w.ButtonText, &w.ButtonURL, &w.MediaURL, &w.DelaySec, &w.Enabled, &ca, &ua); err != nil {
		return WelcomeMessage{}, err
	}
	w.ID = formatID(id)
	w.CreatedAt, w.UpdatedAt = ca.t, ua.t
	return w, nil
}

func (s *sqlStore) ListWelcomeMessages(ctx context.Context) ([]WelcomeMessage, error) {
	rows, err := s.query(ctx, `SELECT `+welcomeCols+` FROM welcome_messages ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]WelcomeMessage, 0, 8)
	for rows.Next() {
		w, err := scanWelcome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *sqlStore) FindWelcomeMessage(ctx context.Context, channelID string) (WelcomeMessage, error) {
	w, err := scanWelcome(s.queryRow(ctx, `SELECT `+welcomeCols+` FROM welcome_messages WHERE channel_id = ?`, channelID))
	return w, s.wrap(err)
}

func (s *sqlStore) UpsertWelcomeMessage(ctx context.Context, w WelcomeMessage) (WelcomeMessage, error) {
	if strings.TrimSpace(w.ChannelID) == "" || strings.TrimSpace(w.MessageText) == "" {
		return WelcomeMessage{}, ErrInvalid
	}
	if w.DelaySec < 0 {
		w.DelaySec = 0
	}
	now := s.ts(time.Now())
	out, err := scanWelcome(s.queryRow(ctx, `INSERT INTO welcome_messages
		(channel_id, message_text, button_text, button_url, media_url, delay_sec, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (channel_id) DO UPDATE SET message_text = excluded.message_text,
			button_text = excluded.button_text,
			button_url = excluded.button_url,
			media_url = excluded.media_url,
			delay_sec = excluded.delay_sec,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at
		RETURNING `+welcomeCols,
		w.ChannelID, w.MessageText, w.ButtonText, w.ButtonURL, w.MediaURL, w.DelaySec, w.Enabled, now, now))
	return out, s.wrap(err)
}

func (s *sqlStore) ToggleWelcomeMessage(ctx context.Context, id string) (WelcomeMessage, error) {
	n, err := parseID(id)
	if err != nil {
		return WelcomeMessage{}, err
	}
	w, err := scanWelcome(s.queryRow(ctx, `UPDATE welcome_messages SET enabled = NOT enabled, updated_at = ? WHERE id = ? RETURNING `+welcomeCols, s.ts(time.Now()), n))
	return w, s.wrap(err)
}
