package broadcast

import (
	"context"
	"errors"
	"strings"
	"time"

	"tgcast/internal/queue"
	"tgcast/internal/runtime/supervisor"
	"tgcast/internal/storage"
	logx "tgcast/pkg/logx"
)

var ErrInvalidRequest = errors.New("invalid broadcast request")

// RequestError is a validation failure; Reason is safe to show to the
// caller.
type RequestError struct{ Reason string }

func (e *RequestError) Error() string        { return "broadcast: " + e.Reason }
func (e *RequestError) Is(target error) bool { return target == ErrInvalidRequest }

// Request is one broadcast as submitted by an admin. Limit 0 targets every
// non-blocked user; Limit N targets the N most recently created ones.
type Request struct {
	Message  string               `json:"message"`
	MediaURL string               `json:"mediaUrl,omitempty"`
	Buttons  []storage.LinkButton `json:"buttons,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
}

// Payload is the queue job body for one recipient.
type Payload struct {
	UserID   int64                `json:"userId"`
	Message  string               `json:"message"`
	MediaURL string               `json:"mediaUrl,omitempty"`
	Buttons  []storage.LinkButton `json:"buttons,omitempty"`
}

type Result struct {
	Queued int `json:"queued"`
	Failed int `json:"failed"`
}

type RecipientSource interface {
	StreamRecipients(ctx context.Context, limit, pageSize int, fn func(storage.Recipient) error) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opt queue.Options) (string, error)
}

type Producer struct {
	users    RecipientSource
	q        Enqueuer
	pageSize int
	log      logx.Logger
	sup      *supervisor.Supervisor
}

func NewProducer(users RecipientSource, q Enqueuer, pageSize int, log logx.Logger) *Producer {
	if pageSize <= 0 {
		pageSize = 500
	}
	log = log.With(logx.String("comp", "broadcast.producer"))
	return &Producer{
		users:    users,
		q:        q,
		pageSize: pageSize,
		log:      log,
		sup:      supervisor.New(context.Background(), supervisor.WithLogger(log)),
	}
}

// Validate normalizes req or returns a *RequestError.
func Validate(req Request) (Request, error) {
	if strings.TrimSpace(req.Message) == "" {
		return req, &RequestError{Reason: "Message is required"}
	}
	if req.Limit < 0 {
		return req, &RequestError{Reason: "Limit must be a positive integer"}
	}
	req.MediaURL = strings.TrimSpace(req.MediaURL)
	req.Buttons = storage.CleanButtons(req.Buttons)
	return req, nil
}

// Start validates req and streams it into the queue in the background.
// Only validation errors are returned; enqueue progress is logged.
func (p *Producer) Start(req Request) error {
	req, err := Validate(req)
	if err != nil {
		return err
	}
	p.sup.Go0("broadcast.produce", func(ctx context.Context) {
		_, _ = p.Run(ctx, req)
	})
	return nil
}

// Run enqueues one job per recipient and returns once the stream ends.
// A failed enqueue is logged and counted; the stream continues.
func (p *Producer) Run(ctx context.Context, req Request) (Result, error) {
	req, err := Validate(req)
	if err != nil {
		return Result{}, err
	}
	start := time.Now()
	scope := "all"
	if req.Limit > 0 {
		scope = "latest"
	}
	p.log.Info("broadcast queueing", logx.String("scope", scope), logx.Int("limit", req.Limit), logx.Bool("media", req.MediaURL != ""))

	var res Result
	err = p.users.StreamRecipients(ctx, req.Limit, p.pageSize, func(r storage.Recipient) error {
		if r.TelegramID == 0 {
			return nil
		}
		_, err := p.q.Enqueue(ctx, Payload{
			UserID:   r.TelegramID,
			Message:  req.Message,
			MediaURL: req.MediaURL,
			Buttons:  req.Buttons,
		}, queue.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res.Failed++
			p.log.Warn("enqueue failed", logx.Int64("user", r.TelegramID), logx.Err(err))
			return nil
		}
		res.Queued++
		return nil
	})

	fields := []logx.Field{logx.Int("queued", res.Queued), logx.Int("failed", res.Failed), logx.Duration("dur", time.Since(start))}
	if err != nil {
		p.log.Error("broadcast queueing aborted", append(fields, logx.Err(err))...)
		return res, err
	}
	p.log.Info("broadcast queued", fields...)
	return res, nil
}

// Stop cancels in-flight streams and waits for them, bounded by ctx.
func (p *Producer) Stop(ctx context.Context) error { return p.sup.Stop(ctx) }
