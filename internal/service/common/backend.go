//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/remote"
	"github.com/oshokin/smart-office/internal/remote/grpcstore"
	"github.com/oshokin/smart-office/internal/remote/memory"
	"github.com/oshokin/smart-office/internal/remote/redisstore"
)

// Store is a remote backend that can also be read once.
type Store interface {
	remote.Backend
	Get(ctx context.Context, key office.Key) (*structpb.Value, error)
}

var (
	_ Store = (*grpcstore.Client)(nil)
	_ Store = (*redisstore.Store)(nil)
	_ Store = (*memory.Store)(nil)
)

// errUnknownBackend is returned for a backend name outside the config contract.
var errUnknownBackend = errors.New("unknown store backend")

// OpenStore connects to the backend selected in the settings.
// address overrides settings.Address for the grpc backend when not empty.
func OpenStore(ctx context.Context, settings config.Store, address string) (Store, error) {
	if address == "" {
		address = settings.Address
	}

	switch settings.Backend {
	case config.BackendGRPC:
		logger.InfoKV(ctx, "Using office-store backend", "address", address)

		client, err := grpcstore.Dial(ctx, address, grpcstore.WithCallTimeout(settings.Timeout))
		if err != nil {
			return nil, err
		}

		return client, nil
	case config.BackendRedis:
		logger.InfoKV(ctx, "Using Redis backend", "prefix", settings.RedisPrefix)

		dialCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
		defer cancel()

		store, err := redisstore.Dial(dialCtx, settings.RedisURL, settings.RedisPrefix)
		if err != nil {
			return nil, err
		}

		return store, nil
	case config.BackendMemory:
		logger.Info(ctx, "Using in-process memory backend, values are not shared")

		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownBackend, settings.Backend)
	}
}

// ReconnectPolicy converts the settings into the channel's policy.
func ReconnectPolicy(settings config.Reconnect) remote.ReconnectPolicy {
	mode := remote.ReconnectNone
	if settings.Mode == config.ReconnectFixed {
		mode = remote.ReconnectFixed
	}

	return remote.ReconnectPolicy{
		Mode:        mode,
		Delay:       settings.Delay,
		MaxAttempts: settings.MaxAttempts,
	}
}

// ApplyLogLevel switches the global logger level, ignoring unknown names.
func ApplyLogLevel(raw string) {
	if level, ok := logger.ParseLogLevel(raw); ok {
		logger.SetLevel(level)
	}
}
