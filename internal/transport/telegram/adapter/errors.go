package adapter

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "tgcast/internal/transport"
)

var (
	// telebot renders API errors as "telegram: <description> (<code>)".
	apiErrRe     = regexp.MustCompile(`^telegram: (.*) \((\d{3})\)$`)
	retryAfterRe = regexp.MustCompile(`(?i)retry after (\d+)`)
)

// normalizeError converts telebot errors into *transport.APIError so the
// dispatcher can classify them. Other errors (network, context) pass
// through unchanged.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var existing *kit.APIError
	if errors.As(err, &existing) {
		return err
	}

	out := &kit.APIError{Err: err}
	var te *tele.Error
	if errors.As(err, &te) {
		out.Code = te.Code
		out.Description = te.Description
	} else if m := apiErrRe.FindStringSubmatch(strings.TrimSpace(err.Error())); m != nil {
		out.Code, _ = strconv.Atoi(m[2])
		out.Description = m[1]
	} else {
		return err
	}
	if m := retryAfterRe.FindStringSubmatch(out.Description); m != nil {
		if n, convErr := strconv.Atoi(m[1]); convErr == nil {
			out.RetryAfter = time.Duration(n) * time.Second
		}
	}
	if out.RetryAfter == 0 && out.Code == 429 {
		out.RetryAfter = time.Second
	}
	return out
}
