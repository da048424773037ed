// Package cookies is the request-scoped cookie boundary used by the session
// clients. Store is what callers program against; HTTPStore is the edge
// adapter that maps it onto net/http.
package cookies

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Options is the attribute bag of a cookie. It is passed through unmodified.
type Options struct {
	Path     string
	Domain   string
	MaxAge   int
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite http.SameSite
}

// Store reads and writes the cookies of a single request.
type Store interface {
	// Get returns the value of the named cookie and whether it is present.
	Get(name string) (string, bool)
	Set(name, value string, opts Options)
	Delete(name string, opts Options)
}

type contextKey string

const storeKey contextKey = "cookie-store"

// WithStore returns a copy of ctx carrying s.
func WithStore(ctx context.Context, s Store) context.Context {
	return context.WithValue(ctx, storeKey, s)
}

// FromContext returns the cookie store of the current request.
func FromContext(ctx context.Context) (Store, error) {
	s, ok := ctx.Value(storeKey).(Store)
	if !ok || s == nil {
		return nil, errors.New("cookie store not found in context")
	}
	return s, nil
}

// Middleware installs an HTTPStore for every request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithStore(r.Context(), NewHTTPStore(w, r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
