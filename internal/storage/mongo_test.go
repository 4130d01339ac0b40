package storage

import (
	"errors"
	"regexp"
	"testing"

	logx "tgcast/pkg/logx"
)

func TestTelegramIDPattern(t *testing.T) {
	re := regexp.MustCompile(telegramIDPattern)
	for _, tc := range []struct {
		in   string
		want bool
	}{
		{"42", true},
		{"-1001234567890", true},
		{"9223372036854775807", true},
		{"", false},
		{"0", false},
		{"007", false},
		{"12a", false},
		{" 42", false},
		{"99999999999999999999", false},
	} {
		if got := re.MatchString(tc.in); got != tc.want {
			t.Errorf("match(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	f := recipientFilter()
	if _, ok := f["telegramId"]; !ok {
		t.Fatalf("filter does not constrain telegramId: %v", f)
	}
}

func TestRecipientSinkLimitSkipsBadIDs(t *testing.T) {
	var got []int64
	sink := &recipientSink{limit: 3, log: logx.Nop(), fn: func(r Recipient) error {
		got = append(got, r.TelegramID)
		return nil
	}}
	var done bool
	for _, raw := range []string{"1", "bad", "0", "2", "99999999999999999999", "3", "4"} {
		var err error
		if done, err = sink.push(raw); err != nil {
			t.Fatalf("push(%q): %v", raw, err)
		}
		if done {
			break
		}
	}
	if !done || len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("done = %v, got = %v", done, got)
	}

	boom := errors.New("boom")
	stop := &recipientSink{log: logx.Nop(), fn: func(Recipient) error { return boom }}
	if done, err := stop.push("5"); !done || !errors.Is(err, boom) {
		t.Fatalf("push = %v, %v", done, err)
	}
	unlimited := &recipientSink{log: logx.Nop(), fn: func(Recipient) error { return nil }}
	for i := 0; i < 5; i++ {
		if done, _ := unlimited.push("7"); done {
			t.Fatalf("unlimited sink stopped after %d", i+1)
		}
	}
}
