package store

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/smart-office/internal/domain/office"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Get(ctx context.Context, key office.Key) *structpb.Value
	Set(ctx context.Context, key office.Key, value *structpb.Value) error
	// Watch returns the current value and a channel of later ones. The channel
	// is closed when the watcher falls too far behind. stop must be called.
	Watch(ctx context.Context, key office.Key) (current *structpb.Value, updates <-chan *structpb.Value, stop func())
}

// Server implements the RealtimeStore gRPC API.
type Server struct {
	// service provides the storage behind the transport.
	service Service
}

var _ RealtimeStoreServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Get returns the value stored under a key, null when unset.
func (s *Server) Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Value, error) {
	key, err := office.ParseKey(req.GetValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	return NullIfNil(s.service.Get(ctx, key)), nil
}

// Set stores a value and fans it out to watchers.
func (s *Server) Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	key, value, err := ParseSetRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	if err := s.service.Set(ctx, key, value); err != nil {
		return nil, status.Error(codes.Internal, "unable to persist state")
	}

	return new(emptypb.Empty), nil
}

// Watch streams the current value of a key followed by every change.
func (s *Server) Watch(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Value]) error {
	key, err := office.ParseKey(req.GetValue())
	if err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}

	ctx := stream.Context()

	current, updates, stop := s.service.Watch(ctx, key)
	defer stop()

	if err := stream.Send(NullIfNil(current)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case value, ok := <-updates:
			if !ok {
				return status.Error(codes.ResourceExhausted, "watcher fell behind")
			}

			if err := stream.Send(NullIfNil(value)); err != nil {
				return err
			}
		}
	}
}
