package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

const userCacheKeyPrefix = "user:"

// VerifyUser resolves the user an access token belongs to. The token is
// checked by the backend; when the client's storage is an ExpiringStorage the
// answer is cached for UserCacheTTL, or until the token expires if that comes
// first. The key holds a hash of the token, never the token itself.
func (c *Client) VerifyUser(ctx context.Context, accessToken string, expiresAt time.Time) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}

	cache, ok := c.auth.Storage.(ExpiringStorage)
	if !ok {
		return c.fetchUser(ctx, accessToken)
	}

	key := userCacheKey(accessToken)
	if u := c.cachedUser(ctx, cache, key); u != nil {
		return u, nil
	}

	u, err := c.fetchUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	ttl := c.auth.UserCacheTTL
	if !expiresAt.IsZero() {
		ttl = min(ttl, expiresAt.Sub(c.now()))
	}
	if ttl <= 0 {
		return u, nil
	}

	data, err := json.Marshal(u)
	if err == nil {
		err = cache.SetItemWithTTL(ctx, key, string(data), ttl)
	}
	if err != nil {
		slogctx.Warn(ctx, "Could not cache verified user", "error", err)
	}

	return u, nil
}

func (c *Client) cachedUser(ctx context.Context, cache ExpiringStorage, key string) *User {
	raw, ok, err := cache.GetItem(ctx, key)
	if err != nil {
		slogctx.Warn(ctx, "Could not read the user cache", "error", err)
		return nil
	}
	if !ok {
		return nil
	}

	var u User
	if err := json.Unmarshal([]byte(raw), &u); err != nil || u.ID == "" {
		_ = cache.RemoveItem(ctx, key)
		return nil
	}

	return &u
}

func userCacheKey(accessToken string) string {
	sum := sha256.Sum256([]byte(accessToken))
	return userCacheKeyPrefix + hex.EncodeToString(sum[:])
}
