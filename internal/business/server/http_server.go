package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	slogctx "github.com/veqryn/slog-context"

	"github.com/studyguide/web/internal/config"
	"github.com/studyguide/web/internal/middleware/responsewriter"
	"github.com/studyguide/web/internal/web"
	"github.com/studyguide/web/pkg/backend"
	"github.com/studyguide/web/pkg/cookies"
	"github.com/studyguide/web/pkg/csrf"
	"github.com/studyguide/web/pkg/fingerprint"
)

// SessionFactory builds the per-request session client handle.
type SessionFactory interface {
	New(ctx context.Context) (*backend.Client, error)
}

// UserVerifier resolves the user behind an access token at the backend. The
// shared session client implements it.
type UserVerifier interface {
	VerifyUser(ctx context.Context, accessToken string, expiresAt time.Time) (*backend.User, error)
}

// createHTTPServer creates the page server using the given config
func createHTTPServer(_ context.Context, cfg *config.Config, sessions SessionFactory, users UserVerifier, forms *csrf.Protector) (*http.Server, error) {
	renderer, err := web.NewRenderer(cfg.Build)
	if err != nil {
		return nil, fmt.Errorf("creating renderer: %w", err)
	}

	p := newPages(cfg, renderer, sessions, users, forms)

	mux := http.NewServeMux()
	route := newTraceMiddleware(cfg)
	mux.Handle("GET /{$}", route("root", http.HandlerFunc(p.root)))
	mux.Handle("GET /dashboard", route("dashboard", p.page("Home")))
	mux.Handle("GET /outlines", route("outlines", p.page("My Outlines")))
	mux.Handle("GET /settings", route("settings", p.page("Settings")))
	mux.Handle("GET /login", route("login-form", http.HandlerFunc(p.loginForm)))
	mux.Handle("POST /login", route("login", http.HandlerFunc(p.login)))
	mux.Handle("GET /logout", route("logout", http.HandlerFunc(p.logout)))
	mux.Handle("GET /_image", route("image", http.HandlerFunc(p.image)))
	mux.Handle("/", route("not-found", http.HandlerFunc(p.notFound)))

	// The cookie store must see the wrapped writer to detect late writes.
	handler := fingerprint.Middleware(mux)
	handler = cookies.Middleware(handler)
	handler = responsewriter.ResponseWriterMiddleware(handler)

	return &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: handler,
	}, nil
}

// StartHTTPServer starts the HTTP server using the given config.
func StartHTTPServer(ctx context.Context, cfg *config.Config, sessions SessionFactory, users UserVerifier, forms *csrf.Protector) error {
	if err := initMeters(ctx, cfg); err != nil {
		return err
	}

	server, err := createHTTPServer(ctx, cfg, sessions, users, forms)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create the HTTP server")
	}

	slogctx.Info(ctx, "Starting a listener", "address", server.Addr)

	// Parse network if the address is provided in the format of network://address.
	// Otherwise use tcp network by default.
	network := "tcp"
	if idx := strings.IndexRune(server.Addr, ':'); idx != -1 && len(server.Addr) > idx+3 && server.Addr[idx:idx+3] == "://" {
		network = server.Addr[:idx]
		server.Addr = server.Addr[idx+3:]
	}

	listener, err := new(net.ListenConfig).Listen(ctx, network, server.Addr)
	if err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed to create a listener")
	}

	slogctx.Info(ctx, "A listener started", "address", listener.Addr().String())

	go func() {
		slogctx.Info(ctx, "Serving an HTTP server", "address", listener.Addr().String())
		err := server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slogctx.Error(ctx, "Failed to serve an HTTP server", "error", err)
		}

		slogctx.Info(ctx, "Stopped an HTTP server")
	}()

	<-ctx.Done()

	shutdownCtx, shutdownRelease := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer shutdownRelease()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return oops.In("HTTP Server").
			WithContext(ctx).
			Wrapf(err, "Failed shutting down HTTP server")
	}

	slogctx.Info(ctx, "Completed graceful shutdown of HTTP server")

	return nil
}
