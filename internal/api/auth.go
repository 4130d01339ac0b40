package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	sessionCookie = "admin_session"
	adminSubject  = "admin"
)

// authenticator is the admin login stub: one shared password, HS256
// session tokens. Without a secret every request is let through.
type authenticator struct {
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

func newAuthenticator(password, secret string, ttl time.Duration) *authenticator {
	return &authenticator{password: password, secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (a *authenticator) enabled() bool { return len(a.secret) > 0 }

func (a *authenticator) issue() (string, time.Time, error) {
	exp := a.now().Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": adminSubject,
		"iat": a.now().Unix(),
		"exp": exp.Unix(),
	})
	s, err := token.SignedString(a.secret)
	return s, exp, err
}

func (a *authenticator) verify(tokenStr string) error {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub != adminSubject {
		return errors.New("invalid subject")
	}
	return nil
}

func tokenFromRequest(r *http.Request) string {
	if hdr := r.Header.Get("Authorization"); strings.HasPrefix(hdr, "Bearer ") {
		return strings.TrimPrefix(hdr, "Bearer ")
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

func (h *handler) protect(fn http.HandlerFunc) http.Handler {
	if !h.auth.enabled() {
		return fn
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := tokenFromRequest(r)
		if tok == "" {
			writeError(w, http.StatusUnauthorized, "Missing or invalid token")
			return
		}
		if err := h.auth.verify(tok); err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		fn(w, r)
	})
}

type loginBody struct {
	Password string `json:"password"`
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	if !h.auth.enabled() {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "auth": "disabled"})
		return
	}
	var body loginBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if !checkPassword(body.Password, h.cfg.AdminPassword) {
		writeError(w, http.StatusUnauthorized, "Invalid password")
		return
	}
	tok, exp, err := h.auth.issue()
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    tok,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": tok, "expiresAt": exp.UTC()})
}
