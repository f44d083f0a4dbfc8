package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	api "github.com/oshokin/smart-office/internal/api/grpc/store"
	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/logger"
	repository "github.com/oshokin/smart-office/internal/repository/values"
	"github.com/oshokin/smart-office/internal/service/common"
)

// Options controls the office-store process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress provides an optional listen address override for the gRPC server.
	ListenAddress string
	// StateFile overrides the path where values are persisted.
	StateFile string
	// Simulate overrides the simulator schedule.
	Simulate string
}

// ErrNoServerAddress indicates missing server configuration.
var ErrNoServerAddress = errors.New("no server address configured")

// Run starts the gRPC server and blocks until context is canceled or server stops.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "office-store")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	common.ApplyLogLevel(settings.LogLevel)

	stateFile := settings.Store.StateFile
	if opts.StateFile != "" {
		stateFile = opts.StateFile
	}

	schedule := settings.Store.Simulate
	if opts.Simulate != "" {
		schedule = opts.Simulate
	}

	listenAddress, err := resolveListenAddress(settings.Store.Address, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	svc, err := newService(ctx, repository.NewFileRepository(stateFile))
	if err != nil {
		return fmt.Errorf("initialise service: %w", err)
	}

	if schedule != "" {
		if err := newSimulator(svc).start(ctx, schedule); err != nil {
			return err
		}
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	grpcServer := grpc.NewServer()
	api.RegisterRealtimeStoreServer(grpcServer, api.NewServer(svc))

	logger.InfoKV(ctx, "Office store listening", "listen_address", listenAddress, "state_file", stateFile)

	// Done channel is closed after GracefulStop finishes to ensure we block
	// until the server fully stops before returning.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		logger.Info(ctx, "Shutting down gRPC server")
		// Open Watch streams only end when their contexts are canceled.
		grpcServer.Stop()
		close(done)
	}()

	if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "GRPC server stopped")

	return nil
}

// resolveListenAddress determines the listen address for the gRPC server.
// If override is provided, uses it directly. Otherwise extracts port from configAddr.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoServerAddress
	}

	_, port, err := net.SplitHostPort(configAddr)
	if err != nil {
		return "", fmt.Errorf("invalid server address format %q: %w", configAddr, err)
	}

	// Bind on all interfaces.
	return ":" + port, nil
}
