package business

import (
	"context"
	"fmt"
	"time"

	"github.com/openkcm/common-sdk/pkg/health"
	"github.com/openkcm/common-sdk/pkg/status"
	"github.com/valkey-io/valkey-go"

	slogctx "github.com/veqryn/slog-context"

	"github.com/studyguide/web/internal/config"
	storagevalkey "github.com/studyguide/web/internal/storage/valkey"
	"github.com/studyguide/web/pkg/backend"
)

const (
	healthStatusTimeout = 5 * time.Second
)

// startStatusServer serves liveness and readiness until ctx is done.
func startStatusServer(ctx context.Context, cfg *config.Config, checks []health.Check) error {
	liveness := status.WithLiveness(
		health.NewHandler(
			health.NewChecker(health.WithDisabledAutostart()),
		),
	)

	healthOptions := []health.Option{
		health.WithDisabledAutostart(),
		health.WithTimeout(healthStatusTimeout),
		health.WithStatusListener(statusListener),
		health.WithChecks(checks...),
	}

	readiness := status.WithReadiness(
		health.NewHandler(
			health.NewChecker(healthOptions...),
		),
	)

	err := status.Start(ctx, &cfg.BaseConfig, liveness, readiness)
	if err != nil {
		return fmt.Errorf("starting status server: %w", err)
	}

	return nil
}

// readinessChecks checks the backend through the shared client and, when
// sessions live in ValKey, the ValKey connection the storage uses.
func readinessChecks(shared *backend.Client, valkeyClient valkey.Client) []health.Check {
	checks := []health.Check{{
		Name:  "backend",
		Check: shared.Health,
	}}

	if valkeyClient != nil {
		checks = append(checks, health.Check{
			Name: "valkey",
			Check: func(ctx context.Context) error {
				return storagevalkey.Ping(ctx, valkeyClient)
			},
		})
	}

	return checks
}

func statusListener(ctx context.Context, state health.State) {
	slogctx.Info(ctx, "readiness status changed", "status", state.Status)
	for name, check := range state.CheckState {
		if check.Result != nil {
			slogctx.Warn(ctx, "readiness check failing", "check", name, "status", check.Status, "error", check.Result)
		}
	}
}
