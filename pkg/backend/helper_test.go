package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

const testAPIKey = "anon-key"

type mapStorage struct {
	mu    sync.Mutex
	items map[string]string
}

func newMapStorage() *mapStorage {
	return &mapStorage{items: make(map[string]string)}
}

func (m *mapStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *mapStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *mapStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *mapStorage) get(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	return v, ok
}

// fakeBackend imitates the token, user and logout endpoints of the backend.
type fakeBackend struct {
	mu sync.Mutex

	issued        int
	expiresIn     int64
	refreshStatus int
	logoutStatus  int
	healthStatus  int

	calls      map[string]int
	lastAPIKey string
	lastBearer string
}

func newFakeBackend(t *testing.T) (*fakeBackend, *httptest.Server) {
	t.Helper()

	f := &fakeBackend{expiresIn: 3600, calls: make(map[string]int)}
	srv := httptest.NewServer(http.HandlerFunc(f.serveHTTP))
	t.Cleanup(srv.Close)

	return f, srv
}

func (f *fakeBackend) update(fn func(f *fakeBackend)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type lastRequest struct {
	apiKey string
	bearer string
}

func (f *fakeBackend) last() lastRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return lastRequest{apiKey: f.lastAPIKey, bearer: f.lastBearer}
}

func (f *fakeBackend) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) serveHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.lastAPIKey = r.Header.Get("apikey")
	f.lastBearer = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == tokenPath:
		grant := r.URL.Query().Get("grant_type")
		f.calls[grant]++

		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)

		switch grant {
		case "password":
			if body["password"] != "secret" {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error":             "invalid_grant",
					"error_description": "Invalid login credentials",
				})
				return
			}
			f.issue(w, body["email"])
		case "refresh_token":
			if f.refreshStatus != 0 {
				writeJSON(w, f.refreshStatus, map[string]string{"error_code": "refresh_token_not_found", "msg": "Invalid Refresh Token"})
				return
			}
			if body["refresh_token"] != fmt.Sprintf("refresh-%d", f.issued) {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "refresh_token_already_used", "msg": "Invalid Refresh Token"})
				return
			}
			f.issue(w, "ada@studyguide.test")
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"msg": "unsupported grant"})
		}
	case r.Method == http.MethodGet && r.URL.Path == userPath:
		f.calls["user"]++
		if f.lastBearer != fmt.Sprintf("access-%d", f.issued) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"msg": "invalid JWT"})
			return
		}
		writeJSON(w, http.StatusOK, User{ID: "user-1", Email: "ada@studyguide.test", Role: "authenticated"})
	case r.Method == http.MethodPost && r.URL.Path == logoutPath:
		f.calls["logout"]++
		if f.logoutStatus != 0 {
			writeJSON(w, f.logoutStatus, map[string]string{"msg": "logout failed"})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	case r.Method == http.MethodGet && r.URL.Path == healthPath:
		f.calls["health"]++
		if f.healthStatus != 0 {
			writeJSON(w, f.healthStatus, map[string]string{"msg": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"name": "GoTrue", "version": "test"})
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeBackend) issue(w http.ResponseWriter, email string) {
	f.issued++
	writeJSON(w, http.StatusOK, Session{
		AccessToken:  fmt.Sprintf("access-%d", f.issued),
		TokenType:    "bearer",
		ExpiresIn:    f.expiresIn,
		RefreshToken: fmt.Sprintf("refresh-%d", f.issued),
		User:         User{ID: "user-1", Email: email, Role: "authenticated"},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func testHTTPClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func newTestClient(t *testing.T, url string, auth AuthOptions) *Client {
	t.Helper()

	c, err := New(Options{URL: url, APIKey: testAPIKey, Auth: auth, HTTPClient: testHTTPClient()})
	if err != nil {
		t.Fatalf("creating client: %s", err)
	}
	return c
}

// expiringStorage records the TTL of every SetItemWithTTL call.
type expiringStorage struct {
	*mapStorage

	ttls map[string]time.Duration
}

func newExpiringStorage() *expiringStorage {
	return &expiringStorage{mapStorage: newMapStorage(), ttls: make(map[string]time.Duration)}
}

func (e *expiringStorage) SetItemWithTTL(ctx context.Context, key, value string, ttl time.Duration) error {
	e.mu.Lock()
	e.ttls[key] = ttl
	e.mu.Unlock()

	return e.SetItem(ctx, key, value)
}

func (e *expiringStorage) ttl(key string) time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ttls[key]
}

// brokenStorage fails every read with err and records removals.
type brokenStorage struct {
	err     error
	removed int
}

func (b *brokenStorage) GetItem(context.Context, string) (string, bool, error) {
	return "", false, b.err
}

func (b *brokenStorage) SetItem(context.Context, string, string) error { return nil }

func (b *brokenStorage) RemoveItem(context.Context, string) error {
	b.removed++
	return nil
}
