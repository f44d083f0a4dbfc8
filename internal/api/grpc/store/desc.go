package store

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/oshokin/smart-office/internal/domain/office"
)

// Full method names of the RealtimeStore service.
const (
	ServiceName           = "smartoffice.store.v1.RealtimeStore"
	GetFullMethodName     = "/" + ServiceName + "/Get"
	SetFullMethodName     = "/" + ServiceName + "/Set"
	WatchFullMethodName   = "/" + ServiceName + "/Watch"
	setRequestKeyField    = "key"
	setRequestValueField  = "value"
	realtimeStoreMetadata = "smartoffice/store/v1/store.proto"
)

// RealtimeStoreServer is the server API of the RealtimeStore service.
type RealtimeStoreServer interface {
	Get(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Value, error)
	Set(ctx context.Context, req *structpb.Struct) (*emptypb.Empty, error)
	Watch(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[structpb.Value]) error
}

// RealtimeStoreClient is the client API of the RealtimeStore service.
type RealtimeStoreClient interface {
	Get(ctx context.Context, req *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Value, error)
	Set(ctx context.Context, req *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Watch(
		ctx context.Context,
		req *wrapperspb.StringValue,
		opts ...grpc.CallOption,
	) (grpc.ServerStreamingClient[structpb.Value], error)
}

// RealtimeStoreServiceDesc describes the service for grpc.Server.RegisterService.
var RealtimeStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RealtimeStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Get", Handler: getHandler},
		{MethodName: "Set", Handler: setHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: watchHandler, ServerStreams: true},
	},
	Metadata: realtimeStoreMetadata,
}

// RegisterRealtimeStoreServer registers srv on s.
func RegisterRealtimeStoreServer(s grpc.ServiceRegistrar, srv RealtimeStoreServer) {
	s.RegisterService(&RealtimeStoreServiceDesc, srv)
}

func getHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(RealtimeStoreServer).Get(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RealtimeStoreServer).Get(ctx, req.(*wrapperspb.StringValue))
	}

	return interceptor(ctx, in, info, handler)
}

func setHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(RealtimeStoreServer).Set(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SetFullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RealtimeStoreServer).Set(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}

	return srv.(RealtimeStoreServer).Watch(in, &grpc.GenericServerStream[wrapperspb.StringValue, structpb.Value]{
		ServerStream: stream,
	})
}

type realtimeStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewRealtimeStoreClient creates a client stub over cc.
func NewRealtimeStoreClient(cc grpc.ClientConnInterface) RealtimeStoreClient {
	return &realtimeStoreClient{cc: cc}
}

func (c *realtimeStoreClient) Get(
	ctx context.Context,
	req *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (*structpb.Value, error) {
	out := new(structpb.Value)
	if err := c.cc.Invoke(ctx, GetFullMethodName, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *realtimeStoreClient) Set(
	ctx context.Context,
	req *structpb.Struct,
	opts ...grpc.CallOption,
) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, SetFullMethodName, req, out, opts...); err != nil {
		return nil, err
	}

	return out, nil
}

func (c *realtimeStoreClient) Watch(
	ctx context.Context,
	req *wrapperspb.StringValue,
	opts ...grpc.CallOption,
) (grpc.ServerStreamingClient[structpb.Value], error) {
	stream, err := c.cc.NewStream(ctx, &RealtimeStoreServiceDesc.Streams[0], WatchFullMethodName, opts...)
	if err != nil {
		return nil, err
	}

	x := &grpc.GenericClientStream[wrapperspb.StringValue, structpb.Value]{ClientStream: stream}
	if err := x.SendMsg(req); err != nil {
		return nil, err
	}

	if err := x.CloseSend(); err != nil {
		return nil, err
	}

	return x, nil
}

var (
	// errKeyRequired is returned when a write carries no key.
	errKeyRequired = errors.New("key is required")
	// errKindMismatch is returned when a value does not fit the key.
	errKindMismatch = errors.New("value kind does not match key")
)

// NewSetRequest builds the Set payload.
func NewSetRequest(key office.Key, value *structpb.Value) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		setRequestKeyField:   structpb.NewStringValue(key.String()),
		setRequestValueField: NullIfNil(value),
	}}
}

// ParseSetRequest validates a Set payload.
func ParseSetRequest(req *structpb.Struct) (office.Key, *structpb.Value, error) {
	rawKey := req.GetFields()[setRequestKeyField].GetStringValue()
	if rawKey == "" {
		return "", nil, errKeyRequired
	}

	key, err := office.ParseKey(rawKey)
	if err != nil {
		return "", nil, err
	}

	value := NullIfNil(req.GetFields()[setRequestValueField])
	if err := CheckKind(key, value); err != nil {
		return "", nil, err
	}

	return key, value, nil
}

// CheckKind reports whether value can be stored under key. Null always fits.
func CheckKind(key office.Key, value *structpb.Value) error {
	switch value.GetKind().(type) {
	case nil, *structpb.Value_NullValue:
		return nil
	case *structpb.Value_BoolValue:
		if key.Kind() == office.KindBool {
			return nil
		}
	case *structpb.Value_NumberValue:
		if key.Kind() == office.KindNumber {
			return nil
		}
	}

	return fmt.Errorf("%w: %s", errKindMismatch, key)
}

// NullIfNil maps a missing value to an explicit null.
func NullIfNil(value *structpb.Value) *structpb.Value {
	if value == nil || value.GetKind() == nil {
		return structpb.NewNullValue()
	}

	return value
}
