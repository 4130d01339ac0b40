package api

import (
	"strings"
	"testing"
)

func TestCheckPassword(t *testing.T) {
	hashed, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hashed, hashedPrefix) {
		t.Fatalf("hash = %q", hashed)
	}

	tests := []struct {
		name       string
		input      string
		configured string
		want       bool
	}{
		{"plain match", "pw", "pw", true},
		{"plain mismatch", "pw", "other", false},
		{"empty configured", "", "", false},
		{"hashed match", "s3cret", hashed, true},
		{"hashed mismatch", "nope", hashed, false},
		{"malformed hash", "s3cret", hashedPrefix + "abc", false},
		{"empty hash part", "s3cret", hashedPrefix + "c2FsdA:", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkPassword(tt.input, tt.configured); got != tt.want {
				t.Fatalf("checkPassword(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
