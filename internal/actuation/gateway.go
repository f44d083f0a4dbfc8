package actuation

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
)

// Publisher writes a value to the remote store.
type Publisher interface {
	Publish(ctx context.Context, key office.Key, value *structpb.Value) error
}

// StateReader exposes the mirrored state.
type StateReader interface {
	Snapshot() office.SensorState
}

// Notifier delivers user-facing messages.
type Notifier interface {
	Notify(ctx context.Context, message string, severity notify.Severity)
}

// IntentListener observes every submitted intent and its publish result.
type IntentListener func(ctx context.Context, intent office.ActuationIntent, err error)

// Gateway submits actuation intents.
type Gateway struct {
	publisher Publisher
	state     StateReader
	notifier  Notifier

	mu        sync.Mutex
	listeners []IntentListener
}

// NewGateway creates a gateway.
func NewGateway(publisher Publisher, state StateReader, notifier Notifier) *Gateway {
	return &Gateway{
		publisher: publisher,
		state:     state,
		notifier:  notifier,
	}
}

// OnIntent registers a listener for submitted intents.
func (g *Gateway) OnIntent(fn IntentListener) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.listeners = append(g.listeners, fn)
}

// SetDoor publishes the door state as a manual command.
func (g *Gateway) SetDoor(ctx context.Context, open bool) error {
	return g.setDoor(ctx, open, office.OriginManual)
}

// ToggleLight publishes the negation of the mirrored light state.
// Two toggles issued before the first echo arrives publish the same value.
func (g *Gateway) ToggleLight(ctx context.Context) error {
	next := !g.state.Snapshot().LightOn

	err := g.submit(ctx, office.ActuationIntent{Target: office.TargetLight, Value: next, Origin: office.OriginManual})
	if err != nil {
		g.notifier.Notify(ctx, "Failed to toggle light", notify.Error)

		return err
	}

	return nil
}

// OnAuthResult reacts to a completed verification. Only an authenticated
// result opens the door, exactly once.
func (g *Gateway) OnAuthResult(ctx context.Context, result office.AuthResult) error {
	if !result.Authenticated {
		logger.Info(ctx, "Face not recognized")
		g.notifier.Notify(ctx, "Face not recognized", notify.Info)

		return nil
	}

	logger.InfoKV(ctx, "Face recognized", "username", result.Username)
	g.notifier.Notify(ctx, fmt.Sprintf("Welcome back, %s!", result.Username), notify.Success)

	return g.setDoor(ctx, true, office.OriginAuthGranted)
}

// OnAuthFailure reports a verification that could not complete. Nothing is actuated.
func (g *Gateway) OnAuthFailure(ctx context.Context, err error) {
	logger.ErrorKV(ctx, "Face verification failed", "error", err)
	g.notifier.Notify(ctx, "Face verification failed", notify.Error)
}

func (g *Gateway) setDoor(ctx context.Context, open bool, origin office.Origin) error {
	err := g.submit(ctx, office.ActuationIntent{Target: office.TargetDoor, Value: open, Origin: origin})
	if err != nil {
		g.notifier.Notify(ctx, "Failed to update door status", notify.Error)

		return err
	}

	return nil
}

func (g *Gateway) submit(ctx context.Context, intent office.ActuationIntent) error {
	err := g.publisher.Publish(ctx, intent.Target.Key(), structpb.NewBoolValue(intent.Value))
	if err != nil {
		logger.ErrorKV(ctx, "Actuation failed", "intent", intent.String(), "error", err)
	} else {
		logger.InfoKV(ctx, "Actuation submitted", "intent", intent.String())
	}

	g.mu.Lock()
	listeners := append([]IntentListener(nil), g.listeners...)
	g.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx, intent, err)
	}

	if err != nil {
		return fmt.Errorf("submit %s: %w", intent, err)
	}

	return nil
}
