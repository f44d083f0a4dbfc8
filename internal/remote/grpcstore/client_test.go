package grpcstore

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/smart-office/internal/api/grpc/store"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/remote"
)

var _ remote.Backend = (*Client)(nil)

// mapService is a minimal store service kept in a map.
type mapService struct {
	mu       sync.Mutex
	values   map[office.Key]*structpb.Value
	watchers map[office.Key][]chan *structpb.Value
}

func newMapService() *mapService {
	return &mapService{
		values:   make(map[office.Key]*structpb.Value),
		watchers: make(map[office.Key][]chan *structpb.Value),
	}
}

func (m *mapService) Get(_ context.Context, key office.Key) *structpb.Value {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.values[key]
}

func (m *mapService) Set(_ context.Context, key office.Key, value *structpb.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value

	for _, ch := range m.watchers[key] {
		ch <- value
	}

	return nil
}

func (m *mapService) Watch(_ context.Context, key office.Key) (*structpb.Value, <-chan *structpb.Value, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch := make(chan *structpb.Value, 8)
	m.watchers[key] = append(m.watchers[key], ch)

	return m.values[key], ch, func() {}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	api.RegisterRealtimeStoreServer(srv, api.NewServer(newMapService()))

	go func() {
		_ = srv.Serve(lis)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	client := newClient(conn, WithCallTimeout(3*time.Second))

	t.Cleanup(func() {
		_ = client.Close()
		srv.Stop()
	})

	return client
}

// TestDial_RequiresAddress rejects an empty address.
func TestDial_RequiresAddress(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), "")
	require.ErrorIs(t, err, errAddressRequired)
}

// TestClient_GetSet maps null to nil and reads back written values.
func TestClient_GetSet(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client := newTestClient(t)

	got, err := client.Get(ctx, office.KeyLEDStatus)
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, client.Set(ctx, office.KeyLEDStatus, structpb.NewBoolValue(true)))

	got, err = client.Get(ctx, office.KeyLEDStatus)
	require.NoError(t, err)
	require.True(t, got.GetBoolValue())

	require.Error(t, client.Set(ctx, office.KeyLEDStatus, structpb.NewNumberValue(3)))
}

// TestClient_Watch delivers the current value, then changes, until canceled.
func TestClient_Watch(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t)

	got := make(chan *structpb.Value, 4)
	done := make(chan error, 1)

	go func() {
		done <- client.Watch(ctx, office.KeyGarbageLevel, func(v *structpb.Value) { got <- v })
	}()

	require.Nil(t, <-got)

	require.NoError(t, client.Set(context.Background(), office.KeyGarbageLevel, structpb.NewNumberValue(81)))
	require.InDelta(t, 81.0, (<-got).GetNumberValue(), 0)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
