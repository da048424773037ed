package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	slogctx "github.com/veqryn/slog-context"
)

// accessTokenAlgs are the algorithms the backend signs access tokens with.
// Tokens are only decoded for their expiry here, never verified.
var accessTokenAlgs = []jose.SignatureAlgorithm{jose.HS256, jose.RS256, jose.ES256}

type User struct {
	ID           string         `json:"id"`
	Aud          string         `json:"aud,omitempty"`
	Role         string         `json:"role,omitempty"`
	Email        string         `json:"email,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// ExpiresAtTime returns the expiry of the access token, or the zero time when
// it is unknown.
func (s *Session) ExpiresAtTime() time.Time {
	if s.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(s.ExpiresAt, 0)
}

// fillExpiry derives ExpiresAt from ExpiresIn or, failing that, from the exp
// claim of the access token.
func (s *Session) fillExpiry(now time.Time) {
	if s.ExpiresAt != 0 {
		return
	}
	if s.ExpiresIn > 0 {
		s.ExpiresAt = now.Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
		return
	}

	if exp, ok := accessTokenExpiry(s.AccessToken); ok {
		s.ExpiresAt = exp.Unix()
	}
}

func accessTokenExpiry(token string) (time.Time, bool) {
	parsed, err := jwt.ParseSigned(token, accessTokenAlgs)
	if err != nil {
		return time.Time{}, false
	}

	var claims jwt.Claims
	if err := parsed.UnsafeClaimsWithoutVerification(&claims); err != nil || claims.Expiry == nil {
		return time.Time{}, false
	}

	return claims.Expiry.Time(), true
}

func (c *Client) loadSession(ctx context.Context) (*Session, error) {
	if !c.auth.PersistSession {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.current == nil {
			return nil, nil
		}
		s := *c.current
		return &s, nil
	}

	raw, ok, err := c.auth.Storage.GetItem(ctx, c.auth.StorageKey)
	if errors.Is(err, ErrInvalidItem) {
		return nil, c.dropInvalidSession(ctx, err)
	}
	if err != nil {
		return nil, fmt.Errorf("reading session from storage: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, c.dropInvalidSession(ctx, err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}

	return &s, nil
}

// dropInvalidSession removes a stored session that cannot be decoded, so the
// caller sees nobody signed in instead of the same error on every request.
func (c *Client) dropInvalidSession(ctx context.Context, cause error) error {
	slogctx.Warn(ctx, "Removing unreadable stored session", "storage_key", c.auth.StorageKey, "error", cause)

	return c.removeSession(ctx)
}

func (c *Client) saveSession(ctx context.Context, s *Session) error {
	c.mu.Lock()
	cp := *s
	c.current = &cp
	c.mu.Unlock()

	if !c.auth.PersistSession {
		return nil
	}

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	if err := c.auth.Storage.SetItem(ctx, c.auth.StorageKey, string(data)); err != nil {
		return fmt.Errorf("writing session to storage: %w", err)
	}

	return nil
}

func (c *Client) removeSession(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()

	if !c.auth.PersistSession {
		return nil
	}

	if err := c.auth.Storage.RemoveItem(ctx, c.auth.StorageKey); err != nil {
		return fmt.Errorf("removing session from storage: %w", err)
	}

	return nil
}

// dueForRefresh reports whether s expires within the refresh margin.
func (c *Client) dueForRefresh(s *Session) bool {
	exp := s.ExpiresAtTime()
	if exp.IsZero() {
		return false
	}
	margin := expiryMarginTicks * c.auth.RefreshTick
	return exp.Sub(c.now()) < margin
}
