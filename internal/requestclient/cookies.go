package requestclient

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/cookies"
)

const base64Prefix = "base64-"

// CookieMethods gives the backend client read, write and remove access to
// the cookies of one request. Values pass through unmodified and every write
// uses the same options.
type CookieMethods struct {
	store cookies.Store
	opts  cookies.Options
}

func NewCookieMethods(store cookies.Store, opts cookies.Options) CookieMethods {
	return CookieMethods{store: store, opts: opts}
}

func (m CookieMethods) Get(name string) (string, bool) {
	return m.store.Get(name)
}

func (m CookieMethods) Set(name, value string) {
	m.store.Set(name, value, m.opts)
}

func (m CookieMethods) Remove(name string) {
	m.store.Delete(name, m.opts)
}

// CookieStorage is a backend.Storage keeping each item in a cookie named after
// its key. Values are base64url encoded behind a "base64-" marker so that JSON
// survives the cookie value syntax.
type CookieStorage struct {
	cookies CookieMethods
}

var _ backend.Storage = (*CookieStorage)(nil)

func NewCookieStorage(store cookies.Store, opts cookies.Options) *CookieStorage {
	return &CookieStorage{cookies: NewCookieMethods(store, opts)}
}

func (s *CookieStorage) GetItem(_ context.Context, key string) (string, bool, error) {
	raw, ok := s.cookies.Get(key)
	if !ok || raw == "" {
		return "", false, nil
	}

	encoded, found := strings.CutPrefix(raw, base64Prefix)
	if !found {
		return raw, true, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(encoded, "="))
	if err != nil {
		return "", false, fmt.Errorf("decoding cookie %s: %w", key, errors.Join(backend.ErrInvalidItem, err))
	}

	return string(decoded), true, nil
}

func (s *CookieStorage) SetItem(_ context.Context, key, value string) error {
	s.cookies.Set(key, base64Prefix+base64.RawURLEncoding.EncodeToString([]byte(value)))
	return nil
}

func (s *CookieStorage) RemoveItem(_ context.Context, key string) error {
	s.cookies.Remove(key)
	return nil
}
