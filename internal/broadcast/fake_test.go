package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tgcast/internal/transport"
)

type sentMsg struct {
	to      int64
	text    string
	media   transport.Media
	buttons []transport.LinkButton
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMsg
	uploads int
	errs    map[int64]error
	delay   time.Duration
}

func (f *fakeSender) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.Sent, error) {
	return f.record(to, text, transport.Media{}, opt)
}

func (f *fakeSender) SendMedia(ctx context.Context, to transport.ChatTarget, m transport.Media, caption string, opt *transport.SendOptions) (transport.Sent, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.record(to, caption, m, opt)
}

func (f *fakeSender) record(to transport.ChatTarget, text string, m transport.Media, opt *transport.SendOptions) (transport.Sent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[to.ChatID]; err != nil {
		return transport.Sent{}, err
	}
	msg := sentMsg{to: to.ChatID, text: text, media: m}
	if opt != nil {
		msg.buttons = opt.InlineButtons
	}
	f.sent = append(f.sent, msg)
	out := transport.Sent{Ref: transport.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}}
	if m.Path != "" {
		f.uploads++
		out.FileID = fmt.Sprintf("file-%d", f.uploads)
	}
	return out, nil
}

func (f *fakeSender) snapshot() ([]sentMsg, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMsg(nil), f.sent...), f.uploads
}
