package remote

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
)

// Backend is a realtime key/value store.
type Backend interface {
	// Watch delivers the current value of key and then every change until ctx
	// is done or the underlying stream breaks. Deliveries for one call are
	// sequential. An unset key is delivered as nil.
	Watch(ctx context.Context, key office.Key, deliver func(*structpb.Value)) error
	// Set writes value under key.
	Set(ctx context.Context, key office.Key, value *structpb.Value) error
	// Close releases the connection.
	Close() error
}
