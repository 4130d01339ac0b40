package bot

import (
	"context"

	"tgcast/internal/storage"
	"tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

// reply is one outbound bot message: text or media with caption, plus
// optional link buttons.
type reply struct {
	Text     string
	MediaURL string
	Buttons  []storage.LinkButton
}

type responder struct {
	sender transport.MessageSender
	media  MediaRefs
	log    logx.Logger
}

// send delivers r. When media delivery fails the text goes out alone.
func (r *responder) send(ctx context.Context, to transport.ChatTarget, rp reply) error {
	opt := &transport.SendOptions{InlineButtons: linkButtons(rp.Buttons)}
	if rp.MediaURL == "" {
		_, err := r.sender.SendText(ctx, to, rp.Text, opt)
		return err
	}
	err := r.sendMedia(ctx, to, rp, opt)
	if err == nil {
		return nil
	}
	if transport.Classify(err) == transport.OutcomePermanent {
		return err
	}
	r.log.Warn("media send failed; falling back to text", logx.Int64("chat", to.ChatID), logx.String("media", rp.MediaURL), logx.Err(err))
	_, err = r.sender.SendText(ctx, to, rp.Text, opt)
	return err
}

func (r *responder) sendMedia(ctx context.Context, to transport.ChatTarget, rp reply, opt *transport.SendOptions) error {
	kind := transport.MediaKindFor(rp.MediaURL)
	if r.media != nil {
		if name, path, ok := r.media.LocalFile(rp.MediaURL); ok {
			id, uploaded, err := r.media.Resolve(ctx, name, func() (string, error) {
				sent, err := r.sender.SendMedia(ctx, to, transport.Media{Kind: kind, Path: path}, rp.Text, opt)
				return sent.FileID, err
			})
			if err != nil || uploaded {
				return err
			}
			_, err = r.sender.SendMedia(ctx, to, transport.Media{Kind: kind, FileID: id}, rp.Text, opt)
			return err
		}
	}
	_, err := r.sender.SendMedia(ctx, to, transport.Media{Kind: kind, URL: rp.MediaURL}, rp.Text, opt)
	return err
}

func linkButtons(in []storage.LinkButton) []transport.LinkButton {
	clean := storage.CleanButtons(in)
	if len(clean) == 0 {
		return nil
	}
	out := make([]transport.LinkButton, len(clean))
	for i, b := range clean {
		out[i] = transport.LinkButton(b)
	}
	return out
}
