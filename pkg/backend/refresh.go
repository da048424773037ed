package backend

import (
	"context"
	"errors"
	"time"

	slogctx "github.com/veqryn/slog-context"
)

var ErrAutoRefreshDisabled = errors.New("auto refresh is disabled for this client")

// AutoRefresh refreshes the stored session whenever it gets close to expiry.
// It checks once immediately and then every refresh tick, and returns when ctx
// is cancelled.
func (c *Client) AutoRefresh(ctx context.Context) error {
	if !c.auth.AutoRefreshToken {
		return ErrAutoRefreshDisabled
	}

	ticker := time.NewTicker(c.auth.RefreshTick)
	defer ticker.Stop()

	slogctx.Debug(ctx, "Starting session auto refresh", "tick", c.auth.RefreshTick, "storage_key", c.auth.StorageKey)
	for {
		c.refreshTick(ctx)

		select {
		case <-ticker.C:
			continue
		case <-ctx.Done():
			slogctx.Debug(ctx, "Stopped session auto refresh")
			return nil
		}
	}
}

func (c *Client) refreshTick(ctx context.Context) {
	s, err := c.loadSession(ctx)
	if err != nil {
		slogctx.Warn(ctx, "Could not load session for refresh", "error", err)
		return
	}
	if s == nil || !c.dueForRefresh(s) {
		return
	}

	if _, err := c.refresh(ctx, false); err != nil {
		slogctx.Warn(ctx, "Could not refresh session", "error", err)
	}
}
