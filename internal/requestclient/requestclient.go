// Package requestclient builds a session client handle for a single HTTP
// request. The handle keeps its session in the request's cookies.
//
// Cookie writes only reach the browser while the response header is still
// pending. Handlers must finish session changes (sign in, sign out, refresh)
// before they render; later writes are logged and dropped by the cookie store.
package requestclient

import (
	"context"
	"net/http"
	"os"

	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/internal/serviceerr"
	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/cookies"
)

type Factory struct {
	cfg        *config.Backend
	lookup     config.LookupFunc
	httpClient *http.Client
}

type Option func(*Factory)

// WithLookup replaces os.LookupEnv as the source of the backend credentials.
func WithLookup(lookup config.LookupFunc) Option {
	return func(f *Factory) {
		f.lookup = lookup
	}
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) {
		f.httpClient = c
	}
}

func NewFactory(cfg *config.Backend, opts ...Option) *Factory {
	f := &Factory{
		cfg:        cfg,
		lookup:     os.LookupEnv,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// New returns a fresh handle wired to the cookie store of the request in ctx.
// It fails like the shared factory when the credentials are not configured.
func (f *Factory) New(ctx context.Context) (*backend.Client, error) {
	store, err := cookies.FromContext(ctx)
	if err != nil {
		return nil, serviceerr.ErrNoCookieStore
	}

	creds, err := config.LoadBackendCredentials(f.lookup, f.cfg.Env)
	if err != nil {
		return nil, err
	}

	return backend.New(backend.Options{
		URL:    creds.URL,
		APIKey: creds.PublicKey,
		Auth: backend.AuthOptions{
			AutoRefreshToken: false,
			PersistSession:   true,
			StorageKey:       f.cfg.StorageKey,
			Storage:          NewCookieStorage(store, f.cfg.SessionCookie.Options()),
			RefreshTick:      f.cfg.RefreshTick,
		},
		HTTPClient: f.httpClient,
	})
}
