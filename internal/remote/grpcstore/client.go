package grpcstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	api "github.com/oshokin/smart-office/internal/api/grpc/store"
	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
)

// Client wraps the RealtimeStore gRPC client.
type Client struct {
	// conn is the underlying gRPC connection to office-store.
	conn *grpc.ClientConn
	// api is the RealtimeStore client stub.
	api api.RealtimeStoreClient

	// callTimeout is the default timeout for unary calls. Watch streams are not bounded.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial creates a client for the office-store at address.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial office store: %w", err)
	}

	return newClient(conn, opts...), nil
}

func newClient(conn *grpc.ClientConn, opts ...Option) *Client {
	client := &Client{
		conn:        conn,
		api:         api.NewRealtimeStoreClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Get reads the value under key, nil when unset.
func (c *Client) Get(ctx context.Context, key office.Key) (*structpb.Value, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	value, err := c.api.Get(callCtx, wrapperspb.String(key.String()))
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return nilIfNull(value), nil
}

// Set implements remote.Backend.
func (c *Client) Set(ctx context.Context, key office.Key, value *structpb.Value) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	if _, err := c.api.Set(callCtx, api.NewSetRequest(key, value)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// Watch implements remote.Backend.
func (c *Client) Watch(ctx context.Context, key office.Key, deliver func(*structpb.Value)) error {
	stream, err := c.api.Watch(ctx, wrapperspb.String(key.String()))
	if err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}

	for {
		value, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			if errors.Is(err, io.EOF) {
				return nil
			}

			return fmt.Errorf("watch %s: %w", key, err)
		}

		deliver(nilIfNull(value))
	}
}

// callContext returns a context with the configured timeout applied when set.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

func nilIfNull(value *structpb.Value) *structpb.Value {
	if _, ok := value.GetKind().(*structpb.Value_NullValue); ok || value.GetKind() == nil {
		return nil
	}

	return value
}
