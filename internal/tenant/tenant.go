// Package tenant resolves the company a request acts for.
//
// The upstream login flow hands out a signed token "<companyID>.<mac>" in a
// session cookie or the X-Session-Token header. The engine trusts a token
// whose HMAC matches; it does not authenticate users itself.
package tenant

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/diewo77/go-contracts/internal/httpx"
)

type ctxKey string

const (
	CookieName   = "session"
	HeaderName   = "X-Session-Token"
	companyIDKey = ctxKey("companyID")
)

// Verifier reports whether a company still exists and may use the engine.
type Verifier func(ctx context.Context, companyID uint) bool

type Sessions struct {
	secret   []byte
	verifier Verifier
}

// NewSessions returns a resolver signing with secret. verifier may be nil.
func NewSessions(secret string, verifier Verifier) *Sessions {
	return &Sessions{secret: []byte(secret), verifier: verifier}
}

func (s *Sessions) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Token returns the signed token for companyID.
func (s *Sessions) Token(companyID uint) string {
	id := strconv.FormatUint(uint64(companyID), 10)
	return id + "." + s.sign(id)
}

// SetCookie stores the token for companyID in the session cookie.
func (s *Sessions) SetCookie(w http.ResponseWriter, companyID uint) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token(companyID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(14 * 24 * time.Hour),
	})
}

// Parse validates a token and returns its company id.
func (s *Sessions) Parse(token string) (uint, bool) {
	id, sig, ok := strings.Cut(token, ".")
	if !ok || id == "" {
		return 0, false
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return 0, false
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func (s *Sessions) fromRequest(r *http.Request) (uint, bool) {
	if h := r.Header.Get(HeaderName); h != "" {
		return s.Parse(h)
	}
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return 0, false
	}
	return s.Parse(c.Value)
}

func WithCompanyID(ctx context.Context, companyID uint) context.Context {
	return context.WithValue(ctx, companyIDKey, companyID)
}

func CompanyIDFromContext(ctx context.Context) (uint, bool) {
	id, ok := ctx.Value(companyIDKey).(uint)
	return id, ok && id != 0
}

// Middleware attaches the company id to the context when the token is valid.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := s.fromRequest(r); ok {
			r = r.WithContext(WithCompanyID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCompany answers 401 unless Middleware resolved a company that the
// verifier accepts.
func (s *Sessions) RequireCompany(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := CompanyIDFromContext(r.Context())
		if !ok || (s.verifier != nil && !s.verifier(r.Context(), id)) {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
