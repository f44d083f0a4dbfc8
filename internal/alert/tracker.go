package alert

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
)

// Kind names the condition a Change refers to.
type Kind string

const (
	KindGarbage     Kind = "garbage"
	KindTemperature Kind = "temperature"
	KindGas         Kind = "gas"
)

// Change is a level crossing observed by the Tracker.
// Gas is reported as LevelCritical when detected and LevelNormal when clear.
type Change struct {
	Kind     Kind      `json:"kind"`
	Previous Level     `json:"previous"`
	Current  Level     `json:"current"`
	At       time.Time `json:"at"`
}

// Cleared reports whether the change returned the condition to normal.
func (c Change) Cleared() bool {
	return c.Current == LevelNormal
}

// Notifier delivers alert messages to the presentation layer.
type Notifier interface {
	Notify(ctx context.Context, message string, severity notify.Severity)
}

// Tracker turns the stream of mirror snapshots into level crossings.
type Tracker struct {
	notifier Notifier

	// mu guards last and listeners.
	mu        sync.Mutex
	last      Evaluation
	listeners []func(context.Context, Change)
}

// NewTracker creates a tracker whose baseline is an all-normal evaluation.
func NewTracker(notifier Notifier) *Tracker {
	return &Tracker{
		notifier: notifier,
	}
}

// OnChange registers a listener for level crossings.
func (t *Tracker) OnChange(fn func(context.Context, Change)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listeners = append(t.listeners, fn)
}

// Current returns the evaluation of the last observed state.
func (t *Tracker) Current() Evaluation {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last
}

// Observe re-evaluates the state. It is meant to be subscribed to the mirror.
func (t *Tracker) Observe(ctx context.Context, state office.SensorState) {
	next := Evaluate(state)

	t.mu.Lock()
	prev := t.last
	t.last = next
	listeners := t.listeners
	t.mu.Unlock()

	now := state.UpdatedAt
	if now.IsZero() {
		now = time.Now()
	}

	changes := make([]Change, 0, 3)

	if prev.Garbage != next.Garbage {
		changes = append(changes, Change{Kind: KindGarbage, Previous: prev.Garbage, Current: next.Garbage, At: now})
	}

	if prev.Temperature != next.Temperature {
		changes = append(changes, Change{
			Kind:     KindTemperature,
			Previous: prev.Temperature,
			Current:  next.Temperature,
			At:       now,
		})
	}

	if prev.Gas != next.Gas {
		changes = append(changes, Change{Kind: KindGas, Previous: gasLevel(prev.Gas), Current: gasLevel(next.Gas), At: now})
	}

	for _, change := range changes {
		logger.InfoKV(ctx, "Alert level changed",
			"kind", change.Kind, "previous", change.Previous, "current", change.Current)

		if message, severity, ok := describe(change, state); ok {
			t.notifier.Notify(ctx, message, severity)
		}

		for _, fn := range listeners {
			fn(ctx, change)
		}
	}
}

// describe returns the notification for a change that entered a non-normal level.
func describe(change Change, state office.SensorState) (string, notify.Severity, bool) {
	if change.Cleared() {
		return "", notify.Info, false
	}

	severity := notify.Warning
	if change.Current == LevelCritical {
		severity = notify.Error
	}

	switch change.Kind {
	case KindGarbage:
		if change.Current == LevelCritical {
			return "Critical Garbage Level! Dustbin is nearly full and needs immediate attention.", severity, true
		}

		return "Garbage Level Warning: dustbin is getting full and should be emptied soon.", severity, true
	case KindTemperature:
		return fmt.Sprintf("Temperature %s: %.1f°C", change.Current, state.TemperatureC), severity, true
	case KindGas:
		return "Gas detected! Ventilate the office and acknowledge the alarm.", notify.Error, true
	default:
		return "", notify.Info, false
	}
}

func gasLevel(detected bool) Level {
	if detected {
		return LevelCritical
	}

	return LevelNormal
}
