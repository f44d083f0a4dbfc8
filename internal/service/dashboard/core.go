package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/alert"
	api "github.com/oshokin/smart-office/internal/api/http/dashboard"
	"github.com/oshokin/smart-office/internal/camera"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/events"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/mirror"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/remote"
)

// FaceService is the biometric service as used by the dashboard.
type FaceService interface {
	actuation.Verifier
	Users(ctx context.Context) ([]faceauth.User, error)
	Register(ctx context.Context, username string, image []byte) (faceauth.Registration, error)
	DeleteUser(ctx context.Context, username string) error
}

// Prober reads one key to check the store is reachable.
type Prober interface {
	Get(ctx context.Context, key office.Key) (*structpb.Value, error)
}

// deps are the outside collaborators of the core.
type deps struct {
	backend remote.Backend
	prober  Prober
	faces   FaceService
	// capturer is nil when no camera is configured.
	capturer actuation.Capturer
	// recorder is nil when the archive is disabled.
	recorder *recorder

	channelOpts  []remote.Option
	notifyOpts   []notify.Option
	cameraOpts   []camera.Option
	probeTimeout time.Duration
}

// core owns the state pipeline and implements the HTTP service.
type core struct {
	channel  *remote.Channel
	mirror   *mirror.Mirror
	tracker  *alert.Tracker
	notifier *notify.Notifier
	gateway  *actuation.Gateway
	unlocker *actuation.Unlocker
	hub      *events.Hub

	faces        FaceService
	prober       Prober
	cameraOpts   []camera.Option
	probeTimeout time.Duration

	// registered is the known number of faces, -1 until the service has listed them.
	registered atomic.Int64
}

var _ api.Service = (*core)(nil)

func newCore(d deps) *core {
	c := &core{
		mirror:       mirror.New(),
		notifier:     notify.New(d.notifyOpts...),
		hub:          events.NewHub(events.DefaultBuffer),
		faces:        d.faces,
		prober:       d.prober,
		cameraOpts:   d.cameraOpts,
		probeTimeout: d.probeTimeout,
	}

	c.registered.Store(-1)

	channelOpts := append([]remote.Option{remote.WithErrorHook(c.onChannelError)}, d.channelOpts...)
	c.channel = remote.New(d.backend, channelOpts...)

	c.tracker = alert.NewTracker(c.notifier)
	c.gateway = actuation.NewGateway(c.channel, c.mirror, c.notifier)
	c.unlocker = actuation.NewUnlocker(d.capturer, d.faces, c.gateway, c.notifier)

	c.mirror.Subscribe(c.tracker.Observe)
	c.mirror.Subscribe(func(_ context.Context, state office.SensorState) {
		c.hub.Publish(events.TypeState, state)
	})

	if d.recorder != nil {
		c.mirror.Subscribe(d.recorder.Record)
	}

	c.tracker.OnChange(func(_ context.Context, change alert.Change) {
		c.hub.Publish(events.TypeAlert, change)
	})

	c.notifier.Subscribe(func(event notify.Event) {
		c.hub.Publish(events.TypeNotification, event)
	})

	c.gateway.OnIntent(func(_ context.Context, intent office.ActuationIntent, err error) {
		if err == nil {
			c.hub.Publish(events.TypeActuation, intent)
		}
	})

	c.unlocker.OnPhase(func(_ context.Context, change actuation.PhaseChange) {
		c.hub.Publish(events.TypeVerification, change)
	})

	return c
}

// start subscribes the mirror to every remote key.
func (c *core) start(ctx context.Context) error {
	for _, key := range office.Keys() {
		err := c.channel.Subscribe(ctx, key, func(ctx context.Context, key office.Key, value *structpb.Value) {
			if err := c.mirror.ApplyRemote(ctx, key, value); err != nil {
				logger.WarnKV(ctx, "Remote value rejected", "key", key, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", key, err)
		}
	}

	return nil
}

// refreshUsers counts the registered faces. Failures leave the count unknown.
func (c *core) refreshUsers(ctx context.Context) {
	if _, err := c.Users(ctx); err != nil {
		logger.WarnKV(ctx, "Registered users not counted", "error", err)
	}
}

// adjustUsers applies a registration or deletion to a known count.
func (c *core) adjustUsers(delta int64) {
	for {
		current := c.registered.Load()
		if current < 0 || current+delta < 0 {
			return
		}

		if c.registered.CompareAndSwap(current, current+delta) {
			return
		}
	}
}

// scheduleGasDemo raises the gas alarm once after delay unless ctx ends first.
func (c *core) scheduleGasDemo(ctx context.Context, delay time.Duration) {
	if delay <= 0 {
		return
	}

	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
		case <-timer.C:
			logger.Info(ctx, "Demo gas trigger fired")
			c.mirror.SimulateGas(ctx)
		}
	}()
}

// close stops the subscriptions, the backend and the event feed.
func (c *core) close() error {
	c.hub.Close()

	return c.channel.Close()
}

func (c *core) onChannelError(ctx context.Context, err error) {
	logger.ErrorKV(ctx, "Remote subscription dropped", "error", err)
	c.notifier.Notify(ctx, "Connection to office sensors lost", notify.Error)
}

// Status implements api.Service.
func (c *core) Status(context.Context) api.Status {
	state := c.mirror.Snapshot()

	return api.Status{
		State:        state,
		Alerts:       alert.Evaluate(state),
		Verification: c.unlocker.Phase(),
		Users:        int(c.registered.Load()),
	}
}

// SetDoor implements api.Service.
func (c *core) SetDoor(ctx context.Context, open bool) error {
	return c.gateway.SetDoor(ctx, open)
}

// ToggleLight implements api.Service.
func (c *core) ToggleLight(ctx context.Context) error {
	return c.gateway.ToggleLight(ctx)
}

// ToggleFan implements api.Service.
func (c *core) ToggleFan(ctx context.Context) bool {
	return c.mirror.ToggleFan(ctx)
}

// SimulateGas implements api.Service.
func (c *core) SimulateGas(ctx context.Context) {
	c.mirror.SimulateGas(ctx)
}

// AcknowledgeGas implements api.Service.
func (c *core) AcknowledgeGas(ctx context.Context) {
	c.mirror.AcknowledgeGas(ctx)
}

// Verify implements api.Service. Uploaded images are normalized like camera frames.
func (c *core) Verify(ctx context.Context, image []byte) (office.AuthResult, error) {
	if image == nil {
		return c.unlocker.Verify(ctx)
	}

	normalized, err := camera.NewCapturer(camera.BytesSource{Data: image}, c.cameraOpts...).Capture(ctx)
	if err != nil {
		return office.AuthResult{}, &office.ValidationError{Field: "image", Reason: err.Error()}
	}

	return c.unlocker.VerifyImage(ctx, normalized)
}

// Users implements api.Service.
func (c *core) Users(ctx context.Context) ([]faceauth.User, error) {
	users, err := c.faces.Users(ctx)
	if err != nil {
		return nil, err
	}

	c.registered.Store(int64(len(users)))

	return users, nil
}

// Register implements api.Service.
func (c *core) Register(ctx context.Context, username string, image []byte) (faceauth.Registration, error) {
	registration, err := c.faces.Register(ctx, username, image)
	if err != nil {
		return faceauth.Registration{}, err
	}

	c.adjustUsers(1)
	c.notifier.Notify(ctx, fmt.Sprintf("User %s registered", registration.Username), notify.Success)

	return registration, nil
}

// DeleteUser implements api.Service.
func (c *core) DeleteUser(ctx context.Context, username string) error {
	if err := c.faces.DeleteUser(ctx, username); err != nil {
		return err
	}

	c.adjustUsers(-1)
	c.notifier.Notify(ctx, fmt.Sprintf("User %s deleted", username), notify.Info)

	return nil
}

// Notifications implements api.Service.
func (c *core) Notifications() []notify.Notification {
	return c.notifier.Active()
}

// errNoProber is reported by Health when the backend cannot be probed.
var errNoProber = errors.New("store cannot be probed")

// Health implements api.Service.
func (c *core) Health(ctx context.Context) error {
	if c.prober == nil {
		return errNoProber
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	if _, err := c.prober.Get(probeCtx, office.KeyDoorStatus); err != nil {
		return fmt.Errorf("store unreachable: %w", err)
	}

	return nil
}
