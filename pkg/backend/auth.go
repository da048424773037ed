package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	slogctx "github.com/veqryn/slog-context"
)

const (
	tokenPath  = "/auth/v1/token"
	userPath   = "/auth/v1/user"
	logoutPath = "/auth/v1/logout"
	healthPath = "/auth/v1/health"
)

// SignInWithPassword exchanges an email and password for a session and stores it.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	s, err := c.requestToken(ctx, "password", body)
	if err != nil {
		return nil, fmt.Errorf("signing in: %w", err)
	}

	if err := c.saveSession(ctx, s); err != nil {
		return nil, err
	}

	slogctx.Debug(ctx, "Signed in", "user_id", s.User.ID)
	return s, nil
}

// GetSession returns the current session, refreshing it first when it is
// about to expire. It returns nil and no error when nobody is signed in.
func (c *Client) GetSession(ctx context.Context) (*Session, error) {
	s, err := c.loadSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}

	if !c.dueForRefresh(s) {
		return s, nil
	}

	return c.refresh(ctx, false)
}

// RefreshSession exchanges the stored refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) (*Session, error) {
	s, err := c.refresh(ctx, true)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}
	return s, nil
}

func (c *Client) refresh(ctx context.Context, force bool) (*Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another caller may have refreshed while we waited for the lock.
	s, err := c.loadSession(ctx)
	if err != nil || s == nil {
		return nil, err
	}
	if !force && !c.dueForRefresh(s) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return nil, ErrNoSession
	}

	refreshed, err := c.requestToken(ctx, "refresh_token", map[string]string{"refresh_token": s.RefreshToken})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Unauthorized() {
			slogctx.Info(ctx, "Refresh token rejected, removing session", "status", apiErr.Status)
			if rmErr := c.removeSession(ctx); rmErr != nil {
				return nil, errors.Join(err, rmErr)
			}
		}
		return nil, fmt.Errorf("refreshing session: %w", err)
	}

	if err := c.saveSession(ctx, refreshed); err != nil {
		return nil, err
	}

	return refreshed, nil
}

func (c *Client) requestToken(ctx context.Context, grantType string, body map[string]string) (*Session, error) {
	var s Session
	query := url.Values{"grant_type": []string{grantType}}
	if err := c.do(ctx, http.MethodPost, tokenPath, query, body, "", &s); err != nil {
		return nil, err
	}
	if s.AccessToken == "" {
		return nil, errors.New("token response without access token")
	}

	s.fillExpiry(c.now())
	return &s, nil
}

// GetUser fetches the signed-in user from the backend, validating the access
// token on the way. It returns ErrNoSession when nobody is signed in.
func (c *Client) GetUser(ctx context.Context) (*User, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNoSession
	}

	return c.fetchUser(ctx, s.AccessToken)
}

func (c *Client) fetchUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, userPath, nil, nil, accessToken, &u); err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return &u, nil
}

// SignOut revokes the session at the backend and removes it locally. The local
// session is removed even when the backend call fails; an already invalid
// token is not reported as an error.
func (c *Client) SignOut(ctx context.Context) error {
	s, err := c.loadSession(ctx)
	if err != nil {
		if rmErr := c.removeSession(ctx); rmErr != nil {
			return errors.Join(err, rmErr)
		}
		return fmt.Errorf("signing out: %w", err)
	}

	var remoteErr error
	if s != nil {
		remoteErr = c.do(ctx, http.MethodPost, logoutPath, nil, nil, s.AccessToken, nil)

		var apiErr *APIError
		if errors.As(remoteErr, &apiErr) && (apiErr.Unauthorized() || apiErr.Status == http.StatusNotFound) {
			remoteErr = nil
		}
	}

	if err := c.removeSession(ctx); err != nil {
		return errors.Join(remoteErr, err)
	}

	if remoteErr != nil {
		return fmt.Errorf("signing out: %w", remoteErr)
	}

	return nil
}

// Health checks that the auth service of the backend answers.
func (c *Client) Health(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, healthPath, nil, nil, "", nil); err != nil {
		return fmt.Errorf("checking backend health: %w", err)
	}

	return nil
}
