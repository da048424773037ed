// Package valkeytest runs a throwaway ValKey container for integration tests.
package valkeytest

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"

	"github.com/studyguide/web/internal/config"
)

const image = "valkey/valkey:8-alpine"

// Instance is a running container together with a raw client for
// assertions and the configuration the application would use to reach it.
type Instance struct {
	Client valkey.Client
	Port   nat.Port
	Config config.ValKey
}

// Start runs a ValKey container. Config carries prefix and embedded source
// references to the mapped port. The returned function closes the client and
// terminates the container.
func Start(ctx context.Context, prefix string) (*Instance, func(ctx context.Context)) {
	valkeyContainer, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start ValKey container", "error", err)
		panic(err)
	}

	port, err := valkeyContainer.MappedPort(ctx, nat.Port("6379"))
	if err != nil {
		slogctx.Error(ctx, "Failed to map a port for the ValKey container", "error", err)
		panic(err)
	}

	address := net.JoinHostPort("localhost", port.Port())

	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{address}})
	if err != nil {
		slogctx.Error(ctx, "Failed to initialise a ValKey client", "error", err)
		panic(err)
	}

	inst := &Instance{
		Client: client,
		Port:   port,
		Config: config.ValKey{
			Enabled:  true,
			Host:     embedded(address),
			User:     embedded(""),
			Password: embedded(""),
			Prefix:   prefix,
		},
	}

	terminate := func(ctx context.Context) {
		client.Close()

		err := valkeyContainer.Terminate(ctx)
		if err != nil {
			slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
			panic(err)
		}
	}

	return inst, terminate
}

func embedded(value string) commoncfg.SourceRef {
	return commoncfg.SourceRef{Source: commoncfg.EmbeddedSourceValue, Value: value}
}
