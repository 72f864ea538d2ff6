package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTokenRoundTrip(t *testing.T) {
	s := NewSessions("secret", nil)
	id, ok := s.Parse(s.Token(42))
	if !ok || id != 42 {
		t.Fatalf("Parse(Token(42)) = %d, %v", id, ok)
	}

	for _, bad := range []string{"", "42", "42.", ".sig", "43." + s.sign("42"), "0." + s.sign("0")} {
		if _, ok := s.Parse(bad); ok {
			t.Errorf("Parse(%q) accepted", bad)
		}
	}
	if _, ok := NewSessions("other", nil).Parse(s.Token(42)); ok {
		t.Error("token accepted under another secret")
	}
}

func TestMiddleware(t *testing.T) {
	s := NewSessions("secret", func(_ context.Context, id uint) bool { return id != 13 })
	var seen uint
	h := s.Middleware(s.RequireCompany(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CompanyIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		want   uint
	}{
		{"header", func(r *http.Request) { r.Header.Set(HeaderName, s.Token(7)) }, http.StatusNoContent, 7},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: s.Token(9)}) }, http.StatusNoContent, 9},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized, 0},
		{"forged", func(r *http.Request) { r.Header.Set(HeaderName, "7.forged") }, http.StatusUnauthorized, 0},
		{"rejected by verifier", func(r *http.Request) { r.Header.Set(HeaderName, s.Token(13)) }, http.StatusUnauthorized, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = 0
			req := httptest.NewRequest(http.MethodGet, "/documents/1", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status || seen != tt.want {
				t.Errorf("status = %d company = %d, want %d %d", rec.Code, seen, tt.status, tt.want)
			}
		})
	}
}

func TestSetCookie(t *testing.T) {
	s := NewSessions("secret", nil)
	rec := httptest.NewRecorder()
	s.SetCookie(rec, 5)
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != CookieName || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	if id, ok := s.Parse(cookies[0].Value); !ok || id != 5 {
		t.Errorf("cookie parses to %d, %v", id, ok)
	}
}
