package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/service/common"
)

// Options configures a single get or set invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides the store address from config when specified.
	ServerAddress string

	// Key is the store key to read or write.
	Key string

	// Value is the raw value for set: true/false, a number or null.
	Value string

	// Out receives the value printed by get.
	Out io.Writer
}

// defaultPushInterval defines the retry delay when pushing a value.
const defaultPushInterval = 1 * time.Second

// ErrNotFinite rejects NaN and infinite numbers.
var ErrNotFinite = errors.New("number must be finite")

// Get prints the stored value of a key as JSON.
func Get(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "office-store get")

	key, err := office.ParseKey(opts.Key)
	if err != nil {
		return err
	}

	store, closeStore, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	value, err := store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}

	if value == nil {
		value = structpb.NewNullValue()
	}

	raw, err := protojson.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	_, err = fmt.Fprintln(opts.Out, string(raw))

	return err
}

// Set writes a value and retries until the store reads it back or ctx is canceled.
func Set(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "office-store set")

	key, err := office.ParseKey(opts.Key)
	if err != nil {
		return err
	}

	value, err := ParseValue(key, opts.Value)
	if err != nil {
		return err
	}

	actor, err := common.DetectActor()
	if err != nil {
		return err
	}

	store, closeStore, err := connect(ctx, opts)
	if err != nil {
		return err
	}
	defer closeStore()

	logger.InfoKV(ctx, "Pushing value", "key", key, "value", opts.Value, "actor", actor.String())

	// attempt tries once to write and confirm the value.
	attempt := func() bool {
		if err := store.Set(ctx, key, value); err != nil {
			logger.ErrorKV(ctx, "Set failed", "error", err)
			return false
		}

		stored, err := store.Get(ctx, key)
		if err != nil {
			logger.ErrorKV(ctx, "Read-back failed", "error", err)
			return false
		}

		if stored == nil {
			stored = structpb.NewNullValue()
		}

		if !proto.Equal(stored, value) {
			logger.WarnKV(ctx, "Store returned a different value, retrying", "stored", stored.AsInterface())
			return false
		}

		logger.InfoKV(ctx, "Value stored", "key", key, "actor", actor.String())

		return true
	}

	if attempt() {
		return nil
	}

	ticker := time.NewTicker(defaultPushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if attempt() {
				return nil
			}
		}
	}
}

// ParseValue converts command-line text to a value of the key's kind.
func ParseValue(key office.Key, raw string) (*structpb.Value, error) {
	raw = strings.TrimSpace(raw)
	if raw == "null" {
		return structpb.NewNullValue(), nil
	}

	switch key.Kind() {
	case office.KindBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, &office.ValidationError{Field: key.String(), Reason: "expected true, false or null"}
		}

		return structpb.NewBoolValue(b), nil
	default:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, &office.ValidationError{Field: key.String(), Reason: "expected a number or null"}
		}

		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFinite)
		}

		return structpb.NewNumberValue(f), nil
	}
}

func connect(ctx context.Context, opts *Options) (common.Store, func(), error) {
	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}

	common.ApplyLogLevel(settings.LogLevel)

	store, err := common.OpenStore(ctx, settings.Store, opts.ServerAddress)
	if err != nil {
		return nil, nil, err
	}

	return store, func() { _ = store.Close() }, nil
}
