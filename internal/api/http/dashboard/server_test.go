package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-office/internal/actuation"
	"github.com/oshokin/smart-office/internal/alert"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/events"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/notify"
	"github.com/oshokin/smart-office/internal/version"
)

type fakeService struct {
	mu sync.Mutex

	state     office.SensorState
	doorCalls []bool
	images    [][]byte
	deleted   []string

	verifyResult office.AuthResult
	verifyErr    error
	actuateErr   error
	healthErr    error
	users        int
}

func newFakeService() *fakeService {
	return &fakeService{state: office.DefaultSensorState()}
}

// with mutates the fake under its lock.
func (f *fakeService) with(fn func(*fakeService)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fn(f)
}

func (f *fakeService) Status(context.Context) Status {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Status{
		State:        f.state,
		Alerts:       alert.Evaluate(f.state),
		Verification: actuation.PhaseIdle,
		Users:        f.users,
	}
}

func (f *fakeService) SetDoor(_ context.Context, open bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.doorCalls = append(f.doorCalls, open)

	return f.actuateErr
}

func (f *fakeService) ToggleLight(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.actuateErr
}

func (f *fakeService) ToggleFan(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.FanOn = !f.state.FanOn

	return f.state.FanOn
}

func (f *fakeService) SimulateGas(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Gas = f.state.Gas.Simulate()
}

func (f *fakeService) AcknowledgeGas(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.state.Gas = f.state.Gas.Acknowledge()
}

func (f *fakeService) Verify(_ context.Context, image []byte) (office.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.images = append(f.images, image)

	return f.verifyResult, f.verifyErr
}

func (f *fakeService) Users(context.Context) ([]faceauth.User, error) {
	return []faceauth.User{{Username: "alice"}}, nil
}

func (f *fakeService) Register(_ context.Context, username string, _ []byte) (faceauth.Registration, error) {
	if username == "" {
		return faceauth.Registration{}, &office.ValidationError{Field: "username", Reason: "is required"}
	}

	return faceauth.Registration{ID: "1", Username: username}, nil
}

func (f *fakeService) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, username)

	return nil
}

func (f *fakeService) Notifications() []notify.Notification {
	return []notify.Notification{{Message: "hello", Severity: notify.Info}}
}

func (f *fakeService) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.healthErr
}

func newTestServer(t *testing.T, service Service, feed Feed) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(NewServer(context.Background(), service, feed, nil).Handler())
	t.Cleanup(ts.Close)

	return ts
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()

	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func multipartImage(t *testing.T, fields map[string]string, image []byte) (*bytes.Buffer, string) {
	t.Helper()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}

	part, err := writer.CreateFormFile(formImage, "face.jpg")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}

// TestServer_Status reports the state together with the alert summary.
func TestServer_Status(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	service.state.GarbageLevelPct = 96
	service.users = 2
	ts := newTestServer(t, service, events.NewHub(0))

	resp, err := http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		State struct {
			GarbageLevelPct float64 `json:"garbage_level_pct"`
			Gas             string  `json:"gas"`
		} `json:"state"`
		Alerts struct {
			Garbage string `json:"garbage"`
		} `json:"alerts"`
		Summary      string `json:"summary"`
		Verification string `json:"verification"`
		Users        *int   `json:"registered_users"`
	}
	decode(t, resp, &got)

	require.InDelta(t, 96, got.State.GarbageLevelPct, 1e-9)
	require.Equal(t, "clear", got.State.Gas)
	require.Equal(t, "CRITICAL", got.Alerts.Garbage)
	require.Equal(t, "CRITICAL - Garbage Full", got.Summary)
	require.Equal(t, "idle", got.Verification)
	require.NotNil(t, got.Users)
	require.Equal(t, 2, *got.Users)

	service.with(func(f *fakeService) { f.users = -1 })

	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)

	var unknown map[string]any
	decode(t, resp, &unknown)
	require.NotContains(t, unknown, "registered_users")
}

// TestServer_Door validates the body and maps publish failures to 502.
func TestServer_Door(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	ts := newTestServer(t, service, events.NewHub(0))

	resp, err := http.Post(ts.URL+"/api/door", "application/json", strings.NewReader(`{"open":true}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/door", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	service.with(func(f *fakeService) {
		f.actuateErr = &office.NetworkError{Op: "publish", Key: office.KeyDoorStatus, Err: errors.New("offline")}
	})

	resp, err = http.Post(ts.URL+"/api/door", "application/json", strings.NewReader(`{"open":false}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	service.with(func(f *fakeService) {
		require.Equal(t, []bool{true, false}, f.doorCalls)
	})
}

// TestServer_FanAndGas drives the local controls.
func TestServer_FanAndGas(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	ts := newTestServer(t, service, events.NewHub(0))

	resp, err := http.Post(ts.URL+"/api/fan/toggle", "", nil)
	require.NoError(t, err)

	var fan toggleResponse
	decode(t, resp, &fan)
	require.True(t, fan.On)

	resp, err = http.Post(ts.URL+"/api/gas/simulate", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.True(t, service.Status(context.Background()).State.GasDetected())

	resp, err = http.Post(ts.URL+"/api/gas/acknowledge", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.False(t, service.Status(context.Background()).State.GasDetected())
}

// TestServer_VerifyFace covers camera and upload paths, denial and a busy unlocker.
func TestServer_VerifyFace(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	service.verifyResult = office.AuthResult{Authenticated: true, Username: "alice"}
	ts := newTestServer(t, service, events.NewHub(0))

	resp, err := http.Post(ts.URL+"/api/face/verify", "", nil)
	require.NoError(t, err)

	var granted verifyResponse
	decode(t, resp, &granted)
	require.Equal(t, verifyResponse{Authenticated: true, Username: "alice"}, granted)

	body, contentType := multipartImage(t, nil, []byte("jpeg"))
	service.with(func(f *fakeService) {
		f.verifyResult = office.AuthResult{}
		f.verifyErr = office.ErrDenied
	})

	resp, err = http.Post(ts.URL+"/api/face/verify", contentType, body)
	require.NoError(t, err)

	var denied verifyResponse
	decode(t, resp, &denied)
	require.False(t, denied.Authenticated)

	service.with(func(f *fakeService) {
		f.verifyErr = actuation.ErrAttemptInProgress
	})

	resp, err = http.Post(ts.URL+"/api/face/verify", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	service.with(func(f *fakeService) {
		f.verifyErr = fmt.Errorf("capture: %w", &office.ValidationError{Field: "image", Reason: "no camera configured"})
	})

	resp, err = http.Post(ts.URL+"/api/face/verify", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	service.with(func(f *fakeService) {
		require.Len(t, f.images, 4)
		require.Nil(t, f.images[0])
		require.Equal(t, []byte("jpeg"), f.images[1])
	})
}

// TestServer_Users registers, lists and deletes users.
func TestServer_Users(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	ts := newTestServer(t, service, events.NewHub(0))

	body, contentType := multipartImage(t, map[string]string{formUsername: "bob"}, []byte("jpeg"))
	resp, err := http.Post(ts.URL+"/api/users", contentType, body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var registration registrationResponse
	decode(t, resp, &registration)
	require.Equal(t, "bob", registration.Username)

	body, contentType = multipartImage(t, nil, []byte("jpeg"))
	resp, err = http.Post(ts.URL+"/api/users", contentType, body)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/users")
	require.NoError(t, err)

	var users []faceauth.User
	decode(t, resp, &users)
	require.Len(t, users, 1)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/users/alice", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	service.with(func(f *fakeService) {
		require.Equal(t, []string{"alice"}, f.deleted)
	})
}

// TestServer_Health maps an unhealthy service to 503.
func TestServer_Health(t *testing.T) {
	t.Parallel()

	service := newFakeService()
	service.healthErr = errors.New("store unreachable")
	ts := newTestServer(t, service, events.NewHub(0))

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)

	var problem problemResponse
	decode(t, resp, &problem)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "store unreachable", problem.Problem)

	service.with(func(f *fakeService) { f.healthErr = nil })

	resp, err = http.Get(ts.URL + "/api/health")
	require.NoError(t, err)

	var healthy healthResponse
	decode(t, resp, &healthy)
	require.Equal(t, "OK", healthy.Status)
	require.Equal(t, version.Version, healthy.Version.Version)
}

// TestServer_WebSocket sends the current state on connect and then every published event.
func TestServer_WebSocket(t *testing.T) {
	t.Parallel()

	hub := events.NewHub(4)
	ts := newTestServer(t, newFakeService(), hub)

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var first struct {
		Type string `json:"type"`
	}
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, string(events.TypeState), first.Type)

	require.Eventually(t, func() bool {
		return hub.Subscribers() == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(events.TypeNotification, map[string]string{"message": "hi"})

	var next struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	require.NoError(t, conn.ReadJSON(&next))
	require.Equal(t, string(events.TypeNotification), next.Type)
	require.Equal(t, "hi", next.Payload["message"])
}
