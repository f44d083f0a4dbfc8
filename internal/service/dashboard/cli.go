package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/remote"
	"github.com/oshokin/smart-office/internal/service/common"
)

// VerifyOptions configures a one-shot face verification.
type VerifyOptions struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// StoreAddress overrides the office-store address for the grpc backend.
	StoreAddress string
	// ImagePath is verified instead of a camera frame when set.
	ImagePath string
	// Out receives the result as JSON.
	Out io.Writer
}

// Verify runs one verification and unlocks the door when it is granted.
// A denial is reported in the output and is not an error.
func Verify(ctx context.Context, opts *VerifyOptions) error {
	ctx = logger.WithName(ctx, "office-dashboard verify")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	common.ApplyLogLevel(settings.LogLevel)

	var image []byte

	if opts.ImagePath != "" {
		image, err = os.ReadFile(filepath.Clean(opts.ImagePath))
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
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

	svc := newCore(deps{
		backend:      store,
		prober:       store,
		faces:        faces,
		capturer:     NewCapturer(settings.Camera),
		channelOpts:  []remote.Option{remote.WithPublishTimeout(settings.Store.Timeout)},
		cameraOpts:   cameraOptions(settings.Camera),
		probeTimeout: settings.Store.Timeout,
	})
	defer func() { _ = svc.close() }()

	// Messages are printed through the log instead of a dashboard.
	svc.notifier.Subscribe(func(event notify.Event) {
		if event.Phase == notify.PhaseShown {
			logger.InfoKV(ctx, event.Message, "severity", event.Severity)
		}
	})

	result, err := svc.Verify(ctx, image)
	if err != nil && !errors.Is(err, office.ErrDenied) {
		return err
	}

	return writeJSON(opts.Out, result)
}

// UsersOptions configures the user management commands.
type UsersOptions struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// Username is required by register and delete.
	Username string
	// ImagePath is the face image for register.
	ImagePath string
	// Out receives the command output as JSON.
	Out io.Writer
}

type userSummary struct {
	Username string `json:"username"`
	Bytes    int    `json:"image_bytes"`
}

// ListUsers prints the registered users without their images.
func ListUsers(ctx context.Context, opts *UsersOptions) error {
	ctx = logger.WithName(ctx, "office-dashboard users")

	faces, err := faceClientFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	users, err := faces.Users(ctx)
	if err != nil {
		return err
	}

	summaries := make([]userSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, userSummary{Username: user.Username, Bytes: len(user.Image)})
	}

	return writeJSON(opts.Out, summaries)
}

// RegisterUser registers the face image under a username.
func RegisterUser(ctx context.Context, opts *UsersOptions) error {
	ctx = logger.WithName(ctx, "office-dashboard users")

	faces, err := faceClientFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	var image []byte

	if opts.ImagePath != "" {
		image, err = os.ReadFile(filepath.Clean(opts.ImagePath))
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
	}

	registration, err := faces.Register(ctx, opts.Username, image)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "User registered", "username", registration.Username, "id", registration.ID)

	return writeJSON(opts.Out, registration)
}

// DeleteUser removes a registered user.
func DeleteUser(ctx context.Context, opts *UsersOptions) error {
	ctx = logger.WithName(ctx, "office-dashboard users")

	faces, err := faceClientFromConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err := faces.DeleteUser(ctx, opts.Username); err != nil {
		return err
	}

	logger.InfoKV(ctx, "User deleted", "username", opts.Username)

	return nil
}

func faceClientFromConfig(path string) (FaceService, error) {
	settings, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	common.ApplyLogLevel(settings.LogLevel)

	return NewFaceClient(settings.FaceAPI)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
