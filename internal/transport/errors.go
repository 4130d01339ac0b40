package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrUnsupportedMedia = errors.New("unsupported media reference")

// APIError is a messaging-platform error normalized by the adapter.
type APIError struct {
	Code        int
	Description string
	// RetryAfter is the platform's flood-control hint (0 when absent).
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("platform error %d: %s (retry after %s)", e.Code, e.Description, e.RetryAfter)
	}
	return fmt.Sprintf("platform error %d: %s", e.Code, e.Description)
}

func (e *APIError) Unwrap() error { return e.Err }

// Outcome classifies a failed send for one recipient.
type Outcome int

const (
	// OutcomeTransient failures are retried by the queue.
	OutcomeTransient Outcome = iota
	// OutcomeRateLimited failures are retried, honoring RetryAfter.
	OutcomeRateLimited
	// OutcomePermanent failures mean the recipient can never be reached:
	// the bot was blocked, the account is deactivated, the user never
	// started the bot or the chat does not exist.
	OutcomePermanent
)

func (o Outcome) String() string {
	switch o {
	case OutcomePermanent:
		return "permanent"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

var permanentMarkers = []string{
	"blocked",
	"deactivated",
	"initiated",
	"initiate conversation",
	"chat not found",
}

// Classify maps a send error to an Outcome. Errors that are not APIError
// (network failures, timeouts) are transient.
func Classify(err error) Outcome {
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) {
		return OutcomeTransient
	}
	if apiErr.Code == http.StatusTooManyRequests || apiErr.RetryAfter > 0 {
		return OutcomeRateLimited
	}
	if apiErr.Code == http.StatusForbidden {
		return OutcomePermanent
	}
	desc := strings.ToLower(apiErr.Description)
	for _, m := range permanentMarkers {
		if strings.Contains(desc, m) {
			return OutcomePermanent
		}
	}
	return OutcomeTransient
}
