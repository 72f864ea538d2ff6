package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diewo77/go-contracts/internal/metrics"
	"github.com/google/uuid"
)

const (
	defaultTimeout = 10 * time.Second
	defaultBackoff = 250 * time.Millisecond
	maxErrorBody   = 512

	// defaultTokenLifetime applies when the token response has no expires_in.
	defaultTokenLifetime = time.Hour
)

type authMode int

const (
	authOAuth authMode = iota
	authAPIKey
)

// client is the HTTP transport shared by provider dialects. It owns
// authentication, the per-call timeout and retries.
type client struct {
	cfg     Config
	auth    authMode
	http    *http.Client
	tokens  TokenCache
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func newClient(cfg Config, auth authMode, tokens TokenCache, logger *slog.Logger, m *metrics.Metrics) *client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if tokens == nil {
		tokens = NewMemoryTokenCache()
	}
	return &client{
		cfg:     cfg,
		auth:    auth,
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
		logger:  logger.With("provider", string(cfg.Kind)),
		metrics: m,
		now:     time.Now,
	}
}

func (c *client) tokenKey() string {
	return string(c.cfg.Kind) + ":" + c.cfg.ClientID
}

// do sends one JSON request. 5xx responses, timeouts and network errors are
// retried with exponential backoff; 4xx responses are returned at once. A 401
// drops the cached token and is retried once with a fresh one.
func (c *client) do(ctx context.Context, op, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return &Error{Provider: c.cfg.Kind, Op: op, Permanent: true, Err: fmt.Errorf("encode request: %w", err)}
		}
	}
	idempotencyKey := uuid.NewString()

	var lastErr error
	refreshed := false
	attempt := 0
	for {
		err := c.once(ctx, op, method, path, body, idempotencyKey, out)
		if err == nil {
			c.metrics.ProviderRequest(string(c.cfg.Kind), op, "ok")
			return nil
		}
		lastErr = err

		if c.auth == authOAuth && !refreshed && statusOf(err) == http.StatusUnauthorized {
			refreshed = true
			if ierr := c.tokens.Invalidate(ctx, c.tokenKey()); ierr != nil {
				c.logger.Warn("token invalidation failed", "error", ierr)
			}
			continue
		}
		if !retryable(ctx, err) || attempt >= c.cfg.MaxRetries {
			break
		}
		attempt++
		c.metrics.ProviderRequest(string(c.cfg.Kind), op, "retry")
		c.logger.Warn("provider call failed, retrying", "op", op, "attempt", attempt, "error", err)
		if serr := sleep(ctx, c.cfg.Backoff<<(attempt-1)); serr != nil {
			lastErr = serr
			break
		}
	}
	c.metrics.ProviderRequest(string(c.cfg.Kind), op, "error")
	return lastErr
}

func (c *client) once(ctx context.Context, op, method, path string, body []byte, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return &Error{Provider: c.cfg.Kind, Op: op, Permanent: true, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Provider: c.cfg.Kind, Op: op, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Provider: c.cfg.Kind, Op: op, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode >= 300 {
		return &Error{
			Provider:   c.cfg.Kind,
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
			Permanent:  resp.StatusCode < 500,
		}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return &Error{Provider: c.cfg.Kind, Op: op, Permanent: true, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return nil
}

func (c *client) authorize(ctx context.Context, req *http.Request) error {
	if c.auth == authAPIKey {
		req.Header.Set("X-Api-Key", c.cfg.ClientSecret)
		return nil
	}
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// accessToken returns a cached token or fetches one with client credentials.
func (c *client) accessToken(ctx context.Context) (string, error) {
	key := c.tokenKey()
	if t, ok := c.tokens.Get(ctx, key); ok {
		return t.AccessToken, nil
	}

	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Provider: c.cfg.Kind, Op: "token", Permanent: true, Err: err}
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", &Error{Provider: c.cfg.Kind, Op: "token", Err: err}
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		return "", &Error{
			Provider:   c.cfg.Kind,
			Op:         "token",
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
			Permanent:  resp.StatusCode < 500,
		}
	}
	var tr tokenResponse
	if err := json.Unmarshal(data, &tr); err != nil || tr.AccessToken == "" {
		return "", &Error{Provider: c.cfg.Kind, Op: "token", Permanent: true, Err: errors.New("token response without access_token")}
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	skew := min(30*time.Second, lifetime/2)
	t := Token{AccessToken: tr.AccessToken, ExpiresAt: c.now().Add(lifetime - skew)}
	if err := c.tokens.Set(ctx, key, t); err != nil {
		c.logger.Warn("token cache write failed", "error", err)
	}
	return t.AccessToken, nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var perr *Error
	if !errors.As(err, &perr) {
		return false
	}
	return !perr.Permanent
}

func statusOf(err error) int {
	var perr *Error
	if errors.As(err, &perr) {
		return perr.StatusCode
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
