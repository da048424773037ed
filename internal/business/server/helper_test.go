package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/require"

	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/internal/requestclient"
	"github.com/studyguide/web/internal/sharedclient"
	"github.com/studyguide/web/internal/storage/memory"
	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/cookies"
	"github.com/studyguide/web/pkg/csrf"
)

const sessionCookieName = "studyguide-auth"

func testConfig() *config.Config {
	return &config.Config{
		BaseConfig: commoncfg.BaseConfig{
			Application: commoncfg.Application{
				Name: "test-app",
			},
		},
		HTTP: config.HTTPServer{
			Address:         "localhost:0",
			ShutdownTimeout: time.Second,
		},
		Backend: config.Backend{
			StorageKey:     sessionCookieName,
			RefreshTick:    30 * time.Second,
			RequestTimeout: 5 * time.Second,
			SessionCookie: config.CookieTemplate{
				Path:     "/",
				MaxAge:   3600,
				HTTPOnly: true,
				SameSite: config.CookieSameSiteLax,
			},
		},
		Build: config.Build{Output: config.OutputStandalone},
	}
}

// authBackend imitates the token, user and logout endpoints. Only the
// password "secret" is accepted and only "access-1" is a valid access token.
type authBackend struct {
	*httptest.Server

	userCalls atomic.Int32
}

func newAuthBackend(t *testing.T) *authBackend {
	t.Helper()

	b := &authBackend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret" {
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access-1",
				"refresh_token": "refresh-1",
				"token_type":    "bearer",
				"expires_in":    3600,
				"user":          map[string]string{"id": "user-1", "email": body["email"]},
			})
		case "/auth/v1/user":
			b.userCalls.Add(1)
			if r.Header.Get("Authorization") != "Bearer access-1" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"msg": "invalid JWT"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "user-1", "email": "ada@studyguide.test"})
		case "/auth/v1/logout":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(b.Close)

	return b
}

func lookupFor(backendURL string) config.LookupFunc {
	return func(key string) (string, bool) {
		switch key {
		case config.DefaultBackendURLEnv:
			return backendURL, true
		case config.DefaultBackendPublicKeyEnv:
			return "anon-key", true
		}
		return "", false
	}
}

// newTestHandler returns the page handler wired to a fake backend.
func newTestHandler(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()

	h, _ := newTestEnv(t, cfg)
	return h
}

func newTestEnv(t *testing.T, cfg *config.Config) (http.Handler, *authBackend) {
	t.Helper()

	require.NoError(t, initMeters(t.Context(), cfg))

	backendSrv := newAuthBackend(t)
	factory := requestclient.NewFactory(&cfg.Backend, requestclient.WithLookup(lookupFor(backendSrv.URL)))

	srv, err := createHTTPServer(t.Context(), cfg, factory, newUserVerifier(t, cfg, backendSrv.URL), newTestProtector(t))
	require.NoError(t, err)

	return srv.Handler, backendSrv
}

// newUserVerifier returns a shared session client over an in-process cache.
func newUserVerifier(t *testing.T, cfg *config.Config, backendURL string) *backend.Client {
	t.Helper()

	shared, err := sharedclient.New(
		config.BackendCredentials{URL: backendURL, PublicKey: "anon-key"},
		&cfg.Backend,
		memory.NewStorage(0),
	)
	require.NoError(t, err)

	return shared
}

func newTestProtector(t *testing.T) *csrf.Protector {
	t.Helper()

	forms, err := csrf.New(csrf.NewKey(), "", cookies.Options{Path: "/", HTTPOnly: true})
	require.NoError(t, err)

	return forms
}
