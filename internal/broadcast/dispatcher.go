package broadcast

import (
	"context"
	"errors"
	"fmt"

	"tgcast/internal/queue"
	"tgcast/internal/storage"
	"tgcast/internal/transport"
	logx "tgcast/pkg/logx"
)

// BlockMarker records that a user can no longer be messaged.
type BlockMarker interface {
	SetBlocked(ctx context.Context, telegramID int64, blocked bool) error
}

type Dispatcher struct {
	sender transport.MessageSender
	users  BlockMarker
	refs   *FileRefs
	log    logx.Logger
}

func NewDispatcher(sender transport.MessageSender, users BlockMarker, refs *FileRefs, log logx.Logger) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		users:  users,
		refs:   refs,
		log:    log.With(logx.String("comp", "broadcast.dispatcher")),
	}
}

// Handle is the queue handler for broadcast jobs.
//
// Permanent recipient failures mark the user blocked and complete the job.
// Rate limits are retried no sooner than the platform asked. Everything
// else is retried with the queue backoff.
func (d *Dispatcher) Handle(ctx context.Context, job queue.Job) error {
	var p Payload
	if err := job.Decode(&p); err != nil {
		return queue.NoRetry(fmt.Errorf("decode payload: %w", err))
	}
	if p.UserID == 0 {
		return queue.NoRetry(fmt.Errorf("%w: missing user id", queue.ErrPayload))
	}

	err := d.Send(ctx, p)
	if err == nil {
		return nil
	}

	switch transport.Classify(err) {
	case transport.OutcomePermanent:
		if e := d.users.SetBlocked(ctx, p.UserID, true); e != nil {
			return fmt.Errorf("mark user %d blocked: %w", p.UserID, e)
		}
		d.log.Info("user marked blocked", logx.Int64("user", p.UserID), logx.Err(err))
		return nil
	case transport.OutcomeRateLimited:
		var ae *transport.APIError
		if errors.As(err, &ae) {
			return queue.RetryAfter(err, ae.RetryAfter)
		}
		return err
	default:
		d.log.Warn("send failed", logx.Int64("user", p.UserID), logx.Int("attempt", job.AttemptsMade), logx.Err(err))
		return err
	}
}

// Send delivers one broadcast message to one user.
func (d *Dispatcher) Send(ctx context.Context, p Payload) error {
	to := transport.ChatTarget{ChatID: p.UserID}
	opt := &transport.SendOptions{InlineButtons: linkButtons(p.Buttons)}

	if p.MediaURL == "" {
		_, err := d.sender.SendText(ctx, to, p.Message, opt)
		return err
	}

	kind := transport.MediaKindFor(p.MediaURL)
	if d.refs != nil {
		if name, path, ok := d.refs.LocalFile(p.MediaURL); ok {
			id, uploaded, err := d.refs.Resolve(ctx, name, func() (string, error) {
				sent, err := d.sender.SendMedia(ctx, to, transport.Media{Kind: kind, Path: path}, p.Message, opt)
				return sent.FileID, err
			})
			if err != nil || uploaded {
				return err
			}
			_, err = d.sender.SendMedia(ctx, to, transport.Media{Kind: kind, FileID: id}, p.Message, opt)
			return err
		}
	}
	_, err := d.sender.SendMedia(ctx, to, transport.Media{Kind: kind, URL: p.MediaURL}, p.Message, opt)
	return err
}

func linkButtons(in []storage.LinkButton) []transport.LinkButton {
	if len(in) == 0 {
		return nil
	}
	out := make([]transport.LinkButton, 0, len(in))
	for _, b := range storage.CleanButtons(in) {
		out = append(out, transport.LinkButton(b))
	}
	return out
}
