package business

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/studyguide/web/internal/business/server"
	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/internal/requestclient"
	"github.com/studyguide/web/internal/sharedclient"
	"github.com/studyguide/web/internal/storage/memory"
	storagevalkey "github.com/studyguide/web/internal/storage/valkey"
	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/csrf"
)

// Main initialises the shared session client once, starts its refresh loop,
// the status server and the pages, and runs until ctx is cancelled.
func Main(ctx context.Context, cfg *config.Config) error {
	return run(ctx, cfg, os.LookupEnv)
}

func run(ctx context.Context, cfg *config.Config, lookup config.LookupFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := cfg.Build.Validate(); err != nil {
		return fmt.Errorf("validating the build configuration: %w", err)
	}

	store, err := initStorage(cfg)
	if err != nil {
		return fmt.Errorf("initialising the session storage: %w", err)
	}
	defer store.close()

	// The only construction of the shared client in this process; everything
	// else receives the handle.
	shared, err := sharedclient.NewSingleton(lookup, &cfg.Backend, store.storage).Get()
	if err != nil {
		return fmt.Errorf("initialising the shared session client: %w", err)
	}

	sessions := requestclient.NewFactory(&cfg.Backend, requestclient.WithLookup(lookup))

	forms, err := initFormProtector(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialising the form protection: %w", err)
	}

	// errChan is used to capture the first error and shutdown the others.
	errChan := make(chan error, 3)

	// wg is used to wait for everything to shutdown.
	var wg sync.WaitGroup

	wg.Go(func() {
		errChan <- shared.AutoRefresh(ctx)
	})

	wg.Go(func() {
		errChan <- server.StartHTTPServer(ctx, cfg, sessions, shared, forms)
	})

	if cfg.Status.Enabled {
		wg.Go(func() {
			errChan <- startStatusServer(ctx, cfg, readinessChecks(shared, store.valkey))
		})
	}

	// wait for the first return to initiate the shutdown
	err = <-errChan
	if err != nil {
		slogctx.Error(ctx, "Shutting down", "error", err)
	}
	cancel()

	wg.Wait()

	return err
}

// sessionStore is the storage behind the shared client. It holds the shared
// session and the verified user cache.
type sessionStore struct {
	storage backend.ExpiringStorage

	// valkey is nil unless ValKey is enabled.
	valkey valkey.Client
}

func (s *sessionStore) close() {
	if s.valkey != nil {
		s.valkey.Close()
	}
}

// initStorage returns ValKey when enabled, an in-process cache otherwise.
func initStorage(cfg *config.Config) (*sessionStore, error) {
	if !cfg.ValKey.Enabled {
		return &sessionStore{storage: memory.NewStorage(0)}, nil
	}

	valkeyClient, err := storagevalkey.NewClient(&cfg.ValKey)
	if err != nil {
		return nil, err
	}

	return &sessionStore{
		storage: storagevalkey.NewStorage(valkeyClient, cfg.ValKey.Prefix),
		valkey:  valkeyClient,
	}, nil
}

func initFormProtector(ctx context.Context, cfg *config.Config) (*csrf.Protector, error) {
	var key []byte
	if cfg.CSRF.Secret.Source == "" {
		slogctx.Warn(ctx, "No form protection secret configured, using a random key")
		key = csrf.NewKey()
	} else {
		secret, err := commoncfg.LoadValueFromSourceRef(cfg.CSRF.Secret)
		if err != nil {
			return nil, fmt.Errorf("loading the form protection secret: %w", err)
		}
		key = secret
	}

	return csrf.New(key, cfg.CSRF.Cookie.Name, cfg.CSRF.Cookie.Options())
}
