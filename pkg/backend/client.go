// Package backend is a small client for the hosted authentication backend
// used by StudyGuide. It signs users in with a password, keeps the resulting
// session in a pluggable Storage and refreshes it before it expires.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultRefreshTick  = 30 * time.Second
	DefaultUserCacheTTL = time.Minute

	// expiryMarginTicks is how many refresh ticks before expiry a session is
	// considered due for a refresh.
	expiryMarginTicks = 3

	defaultClientInfo = "studyguide-go/1"
)

var (
	ErrInvalidURL     = errors.New("backend url must be an absolute http(s) url")
	ErrMissingAPIKey  = errors.New("backend api key is required")
	ErrMissingStorage = errors.New("a persistent session requires a storage")
	ErrNoSession      = errors.New("no session")

	// ErrInvalidItem is wrapped by storages whose stored value cannot be
	// read back, for example a tampered cookie.
	ErrInvalidItem = errors.New("stored item is unreadable")
)

// Storage keeps serialised sessions. A missing item is reported with
// ok == false and a nil error.
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// ExpiringStorage is a Storage that can also keep items for a limited time.
// Clients whose storage implements it cache verified users.
type ExpiringStorage interface {
	Storage
	SetItemWithTTL(ctx context.Context, key, value string, ttl time.Duration) error
}

type AuthOptions struct {
	AutoRefreshToken bool
	PersistSession   bool
	StorageKey       string
	Storage          Storage
	RefreshTick      time.Duration

	// UserCacheTTL bounds how long a verified user is cached per access
	// token. Zero uses DefaultUserCacheTTL.
	UserCacheTTL time.Duration
}

type Options struct {
	URL        string
	APIKey     string
	Auth       AuthOptions
	HTTPClient *http.Client
	ClientInfo string
}

// Client is a configured handle onto the backend. It is safe for concurrent
// use.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	auth       AuthOptions
	httpClient *http.Client
	clientInfo string
	now        func() time.Time

	// refreshMu serialises token refreshes; refresh tokens are single use.
	refreshMu sync.Mutex

	mu      sync.Mutex
	current *Session
}

func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(opts.URL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, opts.URL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	auth := opts.Auth
	if auth.PersistSession && auth.Storage == nil {
		return nil, ErrMissingStorage
	}
	if auth.StorageKey == "" {
		auth.StorageKey = "sb-" + strings.Split(u.Hostname(), ".")[0] + "-auth-token"
	}
	if auth.RefreshTick <= 0 {
		auth.RefreshTick = DefaultRefreshTick
	}
	if auth.UserCacheTTL <= 0 {
		auth.UserCacheTTL = DefaultUserCacheTTL
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	clientInfo := opts.ClientInfo
	if clientInfo == "" {
		clientInfo = defaultClientInfo
	}

	return &Client{
		baseURL:    u,
		apiKey:     opts.APIKey,
		auth:       auth,
		httpClient: httpClient,
		clientInfo: clientInfo,
		now:        time.Now,
	}, nil
}

func (c *Client) URL() string        { return c.baseURL.String() }
func (c *Client) StorageKey() string { return c.auth.StorageKey }
func (c *Client) Auth() AuthOptions  { return c.auth }

// do sends a JSON request to the backend and decodes a JSON response into out.
// bearer defaults to the API key.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) error {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	if bearer == "" {
		bearer = c.apiKey
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("X-Client-Info", c.clientInfo)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
