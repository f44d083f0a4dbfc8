package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// Handler receives one delivered value. A nil value means the key is unset.
type Handler func(ctx context.Context, key office.Key, value *structpb.Value)

// ErrorHook is told about every dropped subscription.
type ErrorHook func(ctx context.Context, err error)

// ReconnectMode selects what happens after a subscription drops.
type ReconnectMode string

const (
	// ReconnectNone leaves a dropped subscription dropped.
	ReconnectNone ReconnectMode = "none"
	// ReconnectFixed re-subscribes after a fixed delay.
	ReconnectFixed ReconnectMode = "fixed"
)

// ReconnectPolicy configures re-subscription.
type ReconnectPolicy struct {
	Mode  ReconnectMode
	Delay time.Duration
	// MaxAttempts caps re-subscriptions per key, 0 means unbounded.
	MaxAttempts int
}

func (p ReconnectPolicy) allows(attempt int) bool {
	if p.Mode != ReconnectFixed {
		return false
	}

	return p.MaxAttempts == 0 || attempt < p.MaxAttempts
}

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("remote channel closed")
	// errStreamEnded is reported when a backend stops watching without an error.
	errStreamEnded = errors.New("stream ended")
)

// Option configures a Channel.
type Option func(*Channel)

// WithErrorHook sets the hook told about dropped subscriptions.
func WithErrorHook(hook ErrorHook) Option {
	return func(c *Channel) {
		if hook != nil {
			c.onError = hook
		}
	}
}

// WithReconnect sets the re-subscription policy.
func WithReconnect(policy ReconnectPolicy) Option {
	return func(c *Channel) {
		c.reconnect = policy
	}
}

// WithPublishTimeout bounds each Publish call.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(c *Channel) {
		if timeout > 0 {
			c.publishTimeout = timeout
		}
	}
}

// Channel multiplexes per-key subscriptions over a Backend.
type Channel struct {
	backend Backend

	onError        ErrorHook
	reconnect      ReconnectPolicy
	publishTimeout time.Duration

	// subscribeMu serializes Subscribe, Unsubscribe and Close.
	subscribeMu sync.Mutex

	mu     sync.Mutex
	subs   map[office.Key]*subscription
	closed bool
}

type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) stop() {
	s.cancel()
	<-s.done
}

// New creates a channel over backend.
func New(backend Backend, opts ...Option) *Channel {
	c := &Channel{
		backend:   backend,
		onError:   func(context.Context, error) {},
		reconnect: ReconnectPolicy{Mode: ReconnectNone},
		subs:      make(map[office.Key]*subscription),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Subscribe starts delivering key to handler: the current value first, then
// every change. A previous subscription for the same key is stopped before the
// new one starts. The subscription ends when ctx is done, on Unsubscribe or on Close.
func (c *Channel) Subscribe(ctx context.Context, key office.Key, handler Handler) error {
	if _, err := office.ParseKey(string(key)); err != nil {
		return err
	}

	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return ErrClosed
	}

	prev := c.subs[key]
	c.mu.Unlock()

	if prev != nil {
		prev.stop()
		logger.DebugKV(ctx, "Previous subscription replaced", "key", key)
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()

	go c.run(subCtx, key, handler, sub)

	logger.InfoKV(ctx, "Subscribed", "key", key)

	return nil
}

// Unsubscribe stops the subscription for key, if any.
func (c *Channel) Unsubscribe(key office.Key) {
	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	c.mu.Lock()
	sub := c.subs[key]
	delete(c.subs, key)
	c.mu.Unlock()

	if sub != nil {
		sub.stop()
	}
}

// Publish writes value under key. Failures are returned as *office.NetworkError.
func (c *Channel) Publish(ctx context.Context, key office.Key, value *structpb.Value) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return &office.NetworkError{Op: "publish", Key: key, Err: ErrClosed}
	}

	if c.publishTimeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, c.publishTimeout)
		defer cancel()
	}

	if err := c.backend.Set(ctx, key, value); err != nil {
		return &office.NetworkError{Op: "publish", Key: key, Err: err}
	}

	logger.DebugKV(ctx, "Published", "key", key)

	return nil
}

// Close stops every subscription and closes the backend.
func (c *Channel) Close() error {
	c.subscribeMu.Lock()
	defer c.subscribeMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()

		return nil
	}

	c.closed = true
	subs := c.subs
	c.subs = make(map[office.Key]*subscription)
	c.mu.Unlock()

	for _, sub := range subs {
		sub.stop()
	}

	if err := c.backend.Close(); err != nil {
		return fmt.Errorf("close backend: %w", err)
	}

	return nil
}

func (c *Channel) run(ctx context.Context, key office.Key, handler Handler, sub *subscription) {
	defer close(sub.done)

	deliver := func(value *structpb.Value) {
		handler(ctx, key, value)
	}

	for attempt := 0; ; attempt++ {
		err := c.backend.Watch(ctx, key, deliver)
		if ctx.Err() != nil {
			return
		}

		if err == nil {
			err = errStreamEnded
		}

		netErr := &office.NetworkError{Op: "subscribe", Key: key, Err: err}
		logger.ErrorKV(ctx, "Subscription dropped", "key", key, "attempt", attempt, "error", err)
		c.onError(ctx, netErr)

		if !c.reconnect.allows(attempt) {
			return
		}

		timer := time.NewTimer(c.reconnect.Delay)

		select {
		case <-ctx.Done():
			timer.Stop()

			return
		case <-timer.C:
		}
	}
}
