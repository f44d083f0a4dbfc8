package notify

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/oshokin/smart-office/internal/logger"
)

const (
	// DefaultVisibleFor is how long a notification stays on screen.
	DefaultVisibleFor = 3000 * time.Millisecond
	// DefaultExitFor is the length of the exit transition before removal.
	DefaultExitFor = 300 * time.Millisecond
)

// Phase is the lifecycle stage of a notification.
type Phase int

const (
	// PhaseShown is emitted when the notification is created.
	PhaseShown Phase = iota
	// PhaseExiting is emitted when the exit transition starts.
	PhaseExiting
	// PhaseRemoved is emitted when the notification is gone.
	PhaseRemoved
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseExiting:
		return "exiting"
	case PhaseRemoved:
		return "removed"
	default:
		return "shown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Notification is one message with its severity.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
}

// Event is a phase change of a notification.
type Event struct {
	Notification

	Phase Phase `json:"phase"`
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLifetime overrides the visible and exit durations. Non-positive values are ignored.
func WithLifetime(visibleFor, exitFor time.Duration) Option {
	return func(n *Notifier) {
		if visibleFor > 0 {
			n.visibleFor = visibleFor
		}

		if exitFor > 0 {
			n.exitFor = exitFor
		}
	}
}

// Notifier creates notifications and drives their lifecycle.
type Notifier struct {
	visibleFor time.Duration
	exitFor    time.Duration

	// active holds notifications until they are removed; entries also expire on their own.
	active *cache.Cache

	// mu guards sinks and nextSink.
	mu       sync.Mutex
	sinks    map[int]func(Event)
	nextSink int
}

// New creates a notifier with the default 3000ms + 300ms lifetime.
func New(opts ...Option) *Notifier {
	n := &Notifier{
		visibleFor: DefaultVisibleFor,
		exitFor:    DefaultExitFor,
		sinks:      make(map[int]func(Event)),
	}

	for _, opt := range opts {
		opt(n)
	}

	// No janitor: removal is driven by the lifecycle timers, expiry only hides stale reads.
	n.active = cache.New(n.visibleFor+n.exitFor, 0)

	return n
}

// Subscribe registers a sink for lifecycle events and returns its cancel function.
func (n *Notifier) Subscribe(sink func(Event)) (unsubscribe func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextSink
	n.nextSink++
	n.sinks[id] = sink

	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()

		delete(n.sinks, id)
	}
}

// Notify shows a message. Every call produces exactly one notification.
func (n *Notifier) Notify(ctx context.Context, message string, severity Severity) {
	notification := Notification{
		ID:        uuid.New(),
		Message:   message,
		Severity:  severity,
		CreatedAt: time.Now(),
	}

	n.active.Set(notification.ID.String(), notification, cache.DefaultExpiration)

	logger.InfoKV(ctx, "Notification shown",
		"id", notification.ID, "severity", severity, "message", message)

	n.emit(Event{Notification: notification, Phase: PhaseShown})

	time.AfterFunc(n.visibleFor, func() {
		n.emit(Event{Notification: notification, Phase: PhaseExiting})

		time.AfterFunc(n.exitFor, func() {
			n.active.Delete(notification.ID.String())
			n.emit(Event{Notification: notification, Phase: PhaseRemoved})
		})
	})
}

// Active returns the notifications that have not been removed yet, oldest first.
func (n *Notifier) Active() []Notification {
	items := n.active.Items()
	result := make([]Notification, 0, len(items))

	for _, item := range items {
		if notification, ok := item.Object.(Notification); ok {
			result = append(result, notification)
		}
	}

	slices.SortFunc(result, func(a, b Notification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return result
}

func (n *Notifier) emit(event Event) {
	n.mu.Lock()
	sinks := make([]func(Event), 0, len(n.sinks))

	for _, sink := range n.sinks {
		sinks = append(sinks, sink)
	}
	n.mu.Unlock()

	for _, sink := range sinks {
		sink(event)
	}
}
