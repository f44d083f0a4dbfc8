package store

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/smart-office/internal/domain/office"
)

// fakeService implements the store Service interface for unit testing the transport.
type fakeService struct {
	mu       sync.Mutex
	values   map[office.Key]*structpb.Value
	watchers []chan *structpb.Value
	setErr   error
}

func newFakeService() *fakeService {
	return &fakeService{values: make(map[office.Key]*structpb.Value)}
}

func (f *fakeService) Get(_ context.Context, key office.Key) *structpb.Value {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.values[key]
}

func (f *fakeService) Set(_ context.Context, key office.Key, value *structpb.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.setErr != nil {
		return f.setErr
	}

	f.values[key] = value

	for _, w := range f.watchers {
		w <- value
	}

	return nil
}

func (f *fakeService) Watch(_ context.Context, key office.Key) (*structpb.Value, <-chan *structpb.Value, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan *structpb.Value, 8)
	f.watchers = append(f.watchers, ch)

	return f.values[key], ch, func() {}
}

// dialBufconn serves svc over an in-memory listener and returns a client stub.
func dialBufconn(t *testing.T, svc Service) RealtimeStoreClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterRealtimeStoreServer(srv, NewServer(svc))

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

	t.Cleanup(func() {
		_ = conn.Close()
		srv.Stop()
	})

	return NewRealtimeStoreClient(conn)
}

// TestServer_Validation ensures malformed requests return InvalidArgument errors.
func TestServer_Validation(t *testing.T) {
	t.Parallel()

	s := NewServer(newFakeService())
	ctx := context.Background()

	_, err := s.Get(ctx, wrapperspb.String("humidity"))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Set(ctx, nil)
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Set(ctx, NewSetRequest(office.KeyDoorStatus, structpb.NewNumberValue(1)))
	require.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = s.Set(ctx, &structpb.Struct{})
	require.Equal(t, codes.InvalidArgument, status.Code(err))
}

// TestServer_SetFailure hides storage errors behind Internal.
func TestServer_SetFailure(t *testing.T) {
	t.Parallel()

	svc := newFakeService()
	svc.setErr = errors.New("disk full")

	_, err := NewServer(svc).Set(context.Background(), NewSetRequest(office.KeyLEDStatus, structpb.NewBoolValue(true)))
	require.Equal(t, codes.Internal, status.Code(err))
}

// TestServer_Roundtrip exercises Get, Set and Watch through a real gRPC connection.
func TestServer_Roundtrip(t *testing.T) {
	t.Parallel()

	client := dialBufconn(t, newFakeService())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got, err := client.Get(ctx, wrapperspb.String(office.KeyTemperature.String()))
	require.NoError(t, err)
	require.IsType(t, new(structpb.Value_NullValue), got.GetKind())

	stream, err := client.Watch(ctx, wrapperspb.String(office.KeyTemperature.String()))
	require.NoError(t, err)

	first, err := stream.Recv()
	require.NoError(t, err)
	require.IsType(t, new(structpb.Value_NullValue), first.GetKind())

	_, err = client.Set(ctx, NewSetRequest(office.KeyTemperature, structpb.NewNumberValue(23.5)))
	require.NoError(t, err)

	next, err := stream.Recv()
	require.NoError(t, err)
	require.InDelta(t, 23.5, next.GetNumberValue(), 0)

	got, err = client.Get(ctx, wrapperspb.String(office.KeyTemperature.String()))
	require.NoError(t, err)
	require.InDelta(t, 23.5, got.GetNumberValue(), 0)
}

// TestCheckKind accepts null for every key and matching primitives only.
func TestCheckKind(t *testing.T) {
	t.Parallel()

	require.NoError(t, CheckKind(office.KeyDoorStatus, structpb.NewNullValue()))
	require.NoError(t, CheckKind(office.KeyDoorStatus, structpb.NewBoolValue(true)))
	require.NoError(t, CheckKind(office.KeyGarbageLevel, structpb.NewNumberValue(50)))
	require.Error(t, CheckKind(office.KeyGarbageLevel, structpb.NewBoolValue(true)))
	require.Error(t, CheckKind(office.KeyLEDStatus, structpb.NewStringValue("on")))
}
