package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// hashedPrefix marks an admin password stored as an argon2id hash
// ("argon2id:<salt>:<hash>", raw base64) instead of plain text.
const hashedPrefix = "argon2id:"

// HashPassword encodes password for use as the configured admin password.
func HashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return fmt.Sprintf("%s%s:%s", hashedPrefix,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// checkPassword compares input against the configured password, which is
// either plain text or a HashPassword encoding. An empty configured
// password never matches.
func checkPassword(input, configured string) bool {
	if configured == "" {
		return false
	}
	encoded, hashed := strings.CutPrefix(configured, hashedPrefix)
	if !hashed {
		return subtle.ConstantTimeCompare([]byte(input), []byte(configured)) == 1
	}
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil || len(want) == 0 {
		return false
	}
	got := argon2.IDKey([]byte(input), salt, 1, 64*1024, 4, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
