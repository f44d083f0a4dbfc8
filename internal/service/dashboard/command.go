package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/smart-office/internal/actuation"
	api "github.com/oshokin/smart-office/internal/api/http/dashboard"
	"github.com/oshokin/smart-office/internal/camera"
	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/remote"
	"github.com/oshokin/smart-office/internal/repository/readings"
	"github.com/oshokin/smart-office/internal/service/common"
)

// Options controls the office-dashboard process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides the HTTP listen address.
	ListenAddress string
	// StoreAddress overrides the office-store address for the grpc backend.
	StoreAddress string
}

const (
	// readHeaderTimeout bounds slow clients.
	readHeaderTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
)

// Run starts the dashboard and blocks until ctx is canceled or the HTTP server fails.
//
//nolint:funlen // Wiring reads best top to bottom.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "office-dashboard")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	common.ApplyLogLevel(settings.LogLevel)

	listenAddress := settings.Dashboard.ListenAddress
	if opts.ListenAddress != "" {
		listenAddress = opts.ListenAddress
	}

	store, err := common.OpenStore(ctx, settings.Store, opts.StoreAddress)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	faces, err := NewFaceClient(settings.FaceAPI)
	if err != nil {
		_ = store.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	d := deps{
		backend:  store,
		prober:   store,
		faces:    faces,
		capturer: NewCapturer(settings.Camera),
		channelOpts: []remote.Option{
			remote.WithReconnect(common.ReconnectPolicy(settings.Store.Reconnect)),
			remote.WithPublishTimeout(settings.Store.Timeout),
		},
		notifyOpts:   []notify.Option{notify.WithLifetime(settings.Notifications.VisibleFor, settings.Notifications.ExitFor)},
		cameraOpts:   cameraOptions(settings.Camera),
		probeTimeout: settings.Store.Timeout,
	}

	if settings.Archive.MongoURI != "" {
		repo, err := readings.NewMongoRepository(ctx, settings.Archive.MongoURI,
			settings.Archive.Database, settings.Archive.Collection)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("open archive: %w", err)
		}

		defer func() {
			closeCtx, closeCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer closeCancel()

			if err := repo.Close(closeCtx); err != nil {
				logger.WarnKV(ctx, "Archive not closed cleanly", "error", err)
			}
		}()

		d.recorder = newRecorder(repo, settings.Archive.BatchSize, settings.Archive.FlushInterval)
		go d.recorder.run(runCtx)

		defer func() {
			cancel()
			d.recorder.wait()
		}()
	}

	svc := newCore(d)
	defer func() {
		if err := svc.close(); err != nil {
			logger.WarnKV(ctx, "Store not closed cleanly", "error", err)
		}
	}()

	if err := svc.start(runCtx); err != nil {
		return err
	}

	go svc.refreshUsers(runCtx)
	svc.scheduleGasDemo(runCtx, settings.Gas.DemoAfter)

	server := &http.Server{
		Addr:              listenAddress,
		Handler:           api.NewServer(ctx, svc, svc.hub, settings.Dashboard.AllowedOrigins).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logger.InfoKV(ctx, "Office dashboard listening",
		"listen_address", listenAddress, "store_backend", settings.Store.Backend)

	done := make(chan struct{})

	go func() {
		defer close(done)

		<-runCtx.Done()
		logger.Info(ctx, "Shutting down HTTP server")

		// Websocket streams are hijacked and end when the feed closes.
		svc.hub.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.WarnKV(ctx, "HTTP server not stopped cleanly", "error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		cancel()
		<-done

		return fmt.Errorf("serve HTTP: %w", err)
	}

	<-done
	logger.Info(ctx, "HTTP server stopped")

	return nil
}

// NewFaceClient creates the biometric service client from the settings.
func NewFaceClient(settings config.FaceAPI) (*faceauth.Client, error) {
	client, err := faceauth.New(settings.BaseURL, faceauth.WithTimeout(settings.Timeout))
	if err != nil {
		return nil, fmt.Errorf("face api client: %w", err)
	}

	return client, nil
}

// NewCapturer picks the frame source from the settings. It returns nil
// when no camera is configured.
func NewCapturer(settings config.Camera) actuation.Capturer {
	var source camera.Source

	switch {
	case settings.SnapshotURL != "":
		source = camera.SnapshotSource{
			URL:    settings.SnapshotURL,
			Client: &http.Client{Timeout: config.DefaultTimeout},
		}
	case settings.ImagePath != "":
		source = camera.FileSource{Path: settings.ImagePath}
	default:
		return nil
	}

	return camera.NewCapturer(source, cameraOptions(settings)...)
}

func cameraOptions(settings config.Camera) []camera.Option {
	return []camera.Option{
		camera.WithWidth(settings.Width),
		camera.WithJPEGQuality(settings.JPEGQuality),
	}
}
