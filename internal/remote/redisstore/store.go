package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// Store reads and writes office keys in Redis.
type Store struct {
	client *redis.Client
	prefix string
}

// Dial connects to the Redis server described by rawURL.
func Dial(ctx context.Context, rawURL, prefix string) (*Store, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return New(client, prefix), nil
}

// New wraps an existing client.
func New(client *redis.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: prefix,
	}
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Get reads the value under key, nil when unset.
func (s *Store) Get(ctx context.Context, key office.Key) (*structpb.Value, error) {
	raw, err := s.client.Get(ctx, s.name(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	return decode(raw)
}

// Set implements remote.Backend. A null value deletes the key.
func (s *Store) Set(ctx context.Context, key office.Key, value *structpb.Value) error {
	payload, err := encode(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	name := s.name(key)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if isNull(value) {
			pipe.Del(ctx, name)
		} else {
			pipe.Set(ctx, name, payload, 0)
		}

		pipe.Publish(ctx, name, payload)

		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}

// Watch implements remote.Backend. It subscribes before reading the current
// value so no write between the two is lost.
func (s *Store) Watch(ctx context.Context, key office.Key, deliver func(*structpb.Value)) error {
	name := s.name(key)
	pubsub := s.client.Subscribe(ctx, name)

	defer func() {
		_ = pubsub.Close()
	}()

	// Receive blocks on the socket, closing it is what ends the read.
	stopClose := context.AfterFunc(ctx, func() { _ = pubsub.Close() })
	defer stopClose()

	if _, err := pubsub.Receive(ctx); err != nil {
		return s.watchErr(ctx, key, fmt.Errorf("confirm subscription: %w", err))
	}

	current, err := s.Get(ctx, key)
	if err != nil {
		return s.watchErr(ctx, key, err)
	}

	deliver(current)

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			return s.watchErr(ctx, key, err)
		}

		value, err := decode([]byte(msg.Payload))
		if err != nil {
			logger.WarnKV(ctx, "Skipping undecodable message", "key", key, "error", err)

			continue
		}

		deliver(value)
	}
}

func (s *Store) watchErr(ctx context.Context, key office.Key, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	return fmt.Errorf("watch %s: %w", key, err)
}

func (s *Store) name(key office.Key) string {
	return s.prefix + key.String()
}

func isNull(value *structpb.Value) bool {
	if value == nil || value.GetKind() == nil {
		return true
	}

	_, ok := value.GetKind().(*structpb.Value_NullValue)

	return ok
}

func encode(value *structpb.Value) ([]byte, error) {
	if isNull(value) {
		value = structpb.NewNullValue()
	}

	return protojson.Marshal(value)
}

func decode(raw []byte) (*structpb.Value, error) {
	var value structpb.Value
	if err := protojson.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}

	if isNull(&value) {
		return nil, nil
	}

	return &value, nil
}
