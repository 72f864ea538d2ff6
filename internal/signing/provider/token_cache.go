package provider

import (
	"context"
	"sync"
	"time"
)

// Token is a provider access token and when it stops being usable.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is still usable at now.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// TokenCache stores access tokens per credential key.
type TokenCache interface {
	// Get returns a token that has not expired.
	Get(ctx context.Context, key string) (Token, bool)
	Set(ctx context.Context, key string, t Token) error
	Invalidate(ctx context.Context, key string) error
}

// MemoryTokenCache keeps tokens in process memory.
type MemoryTokenCache struct {
	mu     sync.RWMutex
	tokens map[string]Token
	now    func() time.Time
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{tokens: make(map[string]Token), now: time.Now}
}

func (c *MemoryTokenCache) Get(_ context.Context, key string) (Token, bool) {
	c.mu.RLock()
	t, ok := c.tokens[key]
	c.mu.RUnlock()

	if !ok || !t.Valid(c.now()) {
		return Token{}, false
	}
	return t, true
}

func (c *MemoryTokenCache) Set(_ context.Context, key string, t Token) error {
	c.mu.Lock()
	c.tokens[key] = t
	c.mu.Unlock()
	return nil
}

// Invalidate drops the token for key, e.g. after a 401.
func (c *MemoryTokenCache) Invalidate(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.tokens, key)
	c.mu.Unlock()
	return nil
}

// InvalidateAll clears every cached token.
func (c *MemoryTokenCache) InvalidateAll() {
	c.mu.Lock()
	c.tokens = make(map[string]Token)
	c.mu.Unlock()
}
