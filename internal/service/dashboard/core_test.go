package dashboard

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/alert"
	"github.com/oshokin/smart-office/internal/camera"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/events"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/remote/memory"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newTestCore(t *testing.T, store *memory.Store, faces *fakeFaces, capturer actuation.Capturer) *core {
	t.Helper()

	c := newCore(deps{
		backend:      store,
		prober:       store,
		faces:        faces,
		capturer:     capturer,
		notifyOpts:   []notify.Option{notify.WithLifetime(time.Minute, time.Second)},
		cameraOpts:   []camera.Option{camera.WithWidth(64)},
		probeTimeout: time.Second,
	})
	t.Cleanup(func() { _ = c.close() })

	return c
}

func hasNotification(c *core, message string) bool {
	return slices.ContainsFunc(c.Notifications(), func(n notify.Notification) bool {
		return n.Message == message
	})
}

func countSeverity(c *core, severity notify.Severity) int {
	count := 0

	for _, n := range c.Notifications() {
		if n.Severity == severity {
			count++
		}
	}

	return count
}

// TestCore_RemoteUpdatesReachStatusAndAlerts follows one remote write through the pipeline.
func TestCore_RemoteUpdatesReachStatusAndAlerts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	c := newTestCore(t, store, &fakeFaces{}, nil)

	id, feed := c.hub.Subscribe()
	defer c.hub.Unsubscribe(id)

	require.NoError(t, c.start(ctx))
	require.NoError(t, store.Set(ctx, office.KeyGarbageLevel, structpb.NewNumberValue(96)))

	require.Eventually(t, func() bool {
		return c.Status(ctx).State.GarbageLevelPct == 96
	}, waitFor, tick)

	status := c.Status(ctx)
	require.Equal(t, alert.LevelCritical, status.Alerts.Garbage)
	require.Equal(t, actuation.PhaseIdle, status.Verification)
	require.True(t, hasNotification(c,
		"Critical Garbage Level! Dustbin is nearly full and needs immediate attention."))

	seen := make(map[events.Type]bool)

	require.Eventually(t, func() bool {
		for {
			select {
			case envelope := <-feed:
				seen[envelope.Type] = true
			default:
				return seen[events.TypeState] && seen[events.TypeAlert] && seen[events.TypeNotification]
			}
		}
	}, waitFor, tick)
}

// TestCore_VerifyUploadGrantsAndOpensDoor normalizes the upload and writes the door once.
func TestCore_VerifyUploadGrantsAndOpensDoor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	faces := &fakeFaces{result: office.AuthResult{Authenticated: true, Username: "alice"}}
	c := newTestCore(t, store, faces, nil)
	require.NoError(t, c.start(ctx))

	result, err := c.Verify(ctx, jpegFrame(t, 320))
	require.NoError(t, err)
	require.Equal(t, "alice", result.Username)
	require.Equal(t, 1, faces.verified())

	door, err := store.Get(ctx, office.KeyDoorStatus)
	require.NoError(t, err)
	require.True(t, door.GetBoolValue())

	require.Eventually(t, func() bool {
		return c.Status(ctx).State.DoorOpen
	}, waitFor, tick)
	require.True(t, hasNotification(c, "Welcome back, alice!"))
}

// TestCore_VerifyDeniedLeavesDoor reports the denial and publishes nothing.
func TestCore_VerifyDeniedLeavesDoor(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	c := newTestCore(t, store, &fakeFaces{}, nil)

	_, err := c.Verify(ctx, jpegFrame(t, 32))
	require.ErrorIs(t, err, office.ErrDenied)

	door, err := store.Get(ctx, office.KeyDoorStatus)
	require.NoError(t, err)
	require.Nil(t, door)
	require.True(t, hasNotification(c, "Face not recognized"))
}

// TestCore_VerifyRejectsGarbageUpload fails validation before the service is called.
func TestCore_VerifyRejectsGarbageUpload(t *testing.T) {
	t.Parallel()

	faces := &fakeFaces{}
	c := newTestCore(t, memory.New(), faces, nil)

	_, err := c.Verify(context.Background(), []byte("not an image"))

	var validationErr *office.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Zero(t, faces.verified())
}

// TestCore_VerifyWithoutCamera reports the missing camera as invalid input.
func TestCore_VerifyWithoutCamera(t *testing.T) {
	t.Parallel()

	faces := &fakeFaces{}
	c := newTestCore(t, memory.New(), faces, nil)

	_, err := c.Verify(context.Background(), nil)

	var validationErr *office.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "image", validationErr.Field)
	require.True(t, hasNotification(c, "Camera not available"))
	require.Zero(t, faces.verified())
}

// TestCore_VerifyTransportFailureLeavesState keeps the mirrored state, the gas alarm and the door untouched.
func TestCore_VerifyTransportFailureLeavesState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	faces := &fakeFaces{err: &office.TransportError{Op: "authenticate", StatusCode: 503, Body: "unavailable"}}
	capturer := camera.NewCapturer(camera.BytesSource{Data: jpegFrame(t, 100)})
	c := newTestCore(t, store, faces, capturer)
	require.NoError(t, c.start(ctx))

	c.SimulateGas(ctx)
	require.NoError(t, store.Set(ctx, office.KeyGarbageLevel, structpb.NewNumberValue(50)))
	require.Eventually(t, func() bool {
		return c.Status(ctx).State.GarbageLevelPct == 50
	}, waitFor, tick)

	before := c.Status(ctx).State
	errorsBefore := countSeverity(c, notify.Error)

	_, err := c.Verify(ctx, nil)

	var transportErr *office.TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Equal(t, 503, transportErr.StatusCode)
	require.Equal(t, 1, faces.verified())

	after := c.Status(ctx).State
	before.UpdatedAt, after.UpdatedAt = time.Time{}, time.Time{}
	require.Equal(t, before, after)
	require.True(t, after.GasDetected())
	require.Equal(t, errorsBefore+1, countSeverity(c, notify.Error))
	require.True(t, hasNotification(c, "Face verification failed"))
	require.Equal(t, actuation.PhaseIdle, c.Status(ctx).Verification)

	door, err := store.Get(ctx, office.KeyDoorStatus)
	require.NoError(t, err)
	require.Nil(t, door)
}

// TestCore_VerifyFromCamera captures a frame when no image is uploaded.
func TestCore_VerifyFromCamera(t *testing.T) {
	t.Parallel()

	data := jpegFrame(t, 100)
	faces := &fakeFaces{result: office.AuthResult{Authenticated: true, Username: "bob"}}
	capturer := camera.NewCapturer(camera.BytesSource{Data: data})
	c := newTestCore(t, memory.New(), faces, capturer)

	result, err := c.Verify(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, result.Authenticated)
	require.Equal(t, 1, faces.verified())
}

// TestCore_ChannelDropNotifies turns a dropped subscription into an error notification.
func TestCore_ChannelDropNotifies(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.New()
	c := newTestCore(t, store, &fakeFaces{}, nil)
	require.NoError(t, c.start(ctx))

	store.Disconnect()

	require.Eventually(t, func() bool {
		return hasNotification(c, "Connection to office sensors lost")
	}, waitFor, tick)
}

// TestCore_Health probes the store.
func TestCore_Health(t *testing.T) {
	t.Parallel()

	store := memory.New()
	c := newTestCore(t, store, &fakeFaces{}, nil)
	require.NoError(t, c.Health(context.Background()))

	require.NoError(t, store.Close())
	require.ErrorIs(t, c.Health(context.Background()), memory.ErrClosed)
}

// TestCore_LocalControls toggles the fan and drives the gas alarm, including the demo trigger.
func TestCore_LocalControls(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newTestCore(t, memory.New(), &fakeFaces{}, nil)

	require.True(t, c.ToggleFan(ctx))
	require.False(t, c.ToggleFan(ctx))

	c.scheduleGasDemo(ctx, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return c.Status(ctx).State.GasDetected()
	}, waitFor, tick)

	c.AcknowledgeGas(ctx)
	require.False(t, c.Status(ctx).State.GasDetected())

	c.SimulateGas(ctx)
	require.Equal(t, "EMERGENCY - Gas Detected", c.Status(ctx).Alerts.Status())
}

// TestCore_Users forwards user management and announces changes.
func TestCore_Users(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	faces := &fakeFaces{}
	c := newTestCore(t, memory.New(), faces, nil)

	registration, err := c.Register(ctx, "carol", []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, "carol", registration.Username)

	users, err := c.Users(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, c.DeleteUser(ctx, "carol"))
	require.True(t, hasNotification(c, "User carol registered"))
	require.True(t, hasNotification(c, "User carol deleted"))
}

// TestCore_RegisteredUsersCount tracks the face count once the service has listed it.
func TestCore_RegisteredUsersCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	faces := &fakeFaces{users: []faceauth.User{{Username: "alice"}, {Username: "bob"}}}
	c := newTestCore(t, memory.New(), faces, nil)

	require.Equal(t, -1, c.Status(ctx).Users)

	c.refreshUsers(ctx)
	require.Equal(t, 2, c.Status(ctx).Users)

	_, err := c.Register(ctx, "carol", []byte("jpeg"))
	require.NoError(t, err)
	require.Equal(t, 3, c.Status(ctx).Users)

	require.NoError(t, c.DeleteUser(ctx, "bob"))
	require.Equal(t, 2, c.Status(ctx).Users)
}

// TestCore_HealthWithoutProber reports that nothing can be probed.
func TestCore_HealthWithoutProber(t *testing.T) {
	t.Parallel()

	c := newCore(deps{backend: memory.New(), faces: &fakeFaces{}})
	t.Cleanup(func() { _ = c.close() })

	require.ErrorIs(t, c.Health(context.Background()), errNoProber)
}
