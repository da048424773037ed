// Package sharedclient builds the process-wide session client handle.
//
// The handle refreshes its session in the background and persists it, so a
// process must hold exactly one. Singleton guarantees that: the first Get
// builds the handle and every later Get returns the same one.
package sharedclient

import (
	"net/http"
	"os"
	"sync"

	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/pkg/backend"
)

// New builds a session client handle with auto refresh and persistence
// enabled, keeping its session under cfg.StorageKey.
func New(creds config.BackendCredentials, cfg *config.Backend, storage backend.Storage) (*backend.Client, error) {
	return backend.New(backend.Options{
		URL:    creds.URL,
		APIKey: creds.PublicKey,
		Auth: backend.AuthOptions{
			AutoRefreshToken: true,
			PersistSession:   true,
			StorageKey:       cfg.StorageKey,
			Storage:          storage,
			RefreshTick:      cfg.RefreshTick,
			UserCacheTTL:     cfg.UserCacheTTL,
		},
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
	})
}

// Singleton memoises one session client handle. A failed first construction
// is returned to every caller.
type Singleton struct {
	get func() (*backend.Client, error)
}

// NewSingleton reads the credentials through lookup on the first Get.
func NewSingleton(lookup config.LookupFunc, cfg *config.Backend, storage backend.Storage) *Singleton {
	return newSingleton(func() (*backend.Client, error) {
		creds, err := config.LoadBackendCredentials(lookup, cfg.Env)
		if err != nil {
			return nil, err
		}
		return New(creds, cfg, storage)
	})
}

// FromEnv is NewSingleton reading the process environment.
func FromEnv(cfg *config.Backend, storage backend.Storage) *Singleton {
	return NewSingleton(os.LookupEnv, cfg, storage)
}

func newSingleton(build func() (*backend.Client, error)) *Singleton {
	return &Singleton{get: sync.OnceValues(build)}
}

func (s *Singleton) Get() (*backend.Client, error) {
	return s.get()
}
