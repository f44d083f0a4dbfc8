package actuation

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	"github.com/oshokin/smart-office/internal/notify"
)

// Phase is a step of the face-verification flow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCapturing
	PhaseSubmitted
	PhaseGranted
	PhaseDenied
	PhaseFailed
)

var phaseNames = [...]string{"idle", "capturing", "submitted", "granted", "denied", "failed"}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}

	return phaseNames[p]
}

// MarshalText implements encoding.TextMarshaler.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PhaseChange is emitted on every transition of an attempt.
type PhaseChange struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Phase     Phase     `json:"phase"`
	At        time.Time `json:"at"`
}

// Capturer takes one still image.
type Capturer interface {
	Capture(ctx context.Context) ([]byte, error)
}

// Verifier checks an image against the registered faces.
type Verifier interface {
	Authenticate(ctx context.Context, image []byte) (office.AuthResult, error)
}

// ErrAttemptInProgress rejects a verification started while another one runs.
var ErrAttemptInProgress = errors.New("verification already in progress")

// Unlocker runs Idle -> Capturing -> Submitted -> {Granted, Denied, Failed} -> Idle.
// At most one attempt runs at a time.
type Unlocker struct {
	capturer Capturer
	verifier Verifier
	gateway  *Gateway
	notifier Notifier

	mu        sync.Mutex
	phase     Phase
	listeners []func(context.Context, PhaseChange)
}

// NewUnlocker creates an unlocker. capturer may be nil when images are always supplied.
func NewUnlocker(capturer Capturer, verifier Verifier, gateway *Gateway, notifier Notifier) *Unlocker {
	return &Unlocker{
		capturer: capturer,
		verifier: verifier,
		gateway:  gateway,
		notifier: notifier,
	}
}

// OnPhase registers a listener for phase transitions.
func (u *Unlocker) OnPhase(fn func(context.Context, PhaseChange)) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.listeners = append(u.listeners, fn)
}

// Phase returns the current phase.
func (u *Unlocker) Phase() Phase {
	u.mu.Lock()
	defer u.mu.Unlock()

	return u.phase
}

// errNoCamera is returned by Verify when no capturer is configured.
var errNoCamera = &office.ValidationError{Field: "image", Reason: "no camera configured"}

// Verify captures a frame and verifies it.
func (u *Unlocker) Verify(ctx context.Context) (office.AuthResult, error) {
	return u.run(ctx, func(ctx context.Context) ([]byte, error) {
		if u.capturer == nil {
			return nil, errNoCamera
		}

		return u.capturer.Capture(ctx)
	})
}

// VerifyImage verifies an image captured elsewhere.
func (u *Unlocker) VerifyImage(ctx context.Context, image []byte) (office.AuthResult, error) {
	return u.run(ctx, func(context.Context) ([]byte, error) {
		return image, nil
	})
}

func (u *Unlocker) run(
	ctx context.Context,
	capture func(context.Context) ([]byte, error),
) (office.AuthResult, error) {
	u.mu.Lock()
	if u.phase != PhaseIdle {
		u.mu.Unlock()

		logger.Warnf(ctx, "Verification rejected, another attempt is running")
		u.notifier.Notify(ctx, "Verification already in progress", notify.Warning)

		return office.AuthResult{}, ErrAttemptInProgress
	}

	u.phase = PhaseCapturing
	u.mu.Unlock()

	id := uuid.New()
	ctx = logger.WithKV(ctx, "attempt_id", id.String())

	u.emit(ctx, id, PhaseCapturing)
	defer u.transition(ctx, id, PhaseIdle)

	image, err := capture(ctx)
	if err != nil {
		u.transition(ctx, id, PhaseFailed)
		logger.ErrorKV(ctx, "Capture failed", "error", err)
		u.notifier.Notify(ctx, "Camera not available", notify.Error)

		return office.AuthResult{}, fmt.Errorf("capture: %w", err)
	}

	u.notifier.Notify(ctx, "Verifying face...", notify.Info)
	u.transition(ctx, id, PhaseSubmitted)

	result, err := u.verifier.Authenticate(ctx, image)
	if err != nil {
		u.transition(ctx, id, PhaseFailed)
		u.gateway.OnAuthFailure(ctx, err)

		return office.AuthResult{}, err
	}

	if !result.Authenticated {
		u.transition(ctx, id, PhaseDenied)

		if err := u.gateway.OnAuthResult(ctx, result); err != nil {
			return result, err
		}

		return result, office.ErrDenied
	}

	u.transition(ctx, id, PhaseGranted)

	return result, u.gateway.OnAuthResult(ctx, result)
}

func (u *Unlocker) transition(ctx context.Context, id uuid.UUID, phase Phase) {
	u.mu.Lock()
	u.phase = phase
	u.mu.Unlock()

	u.emit(ctx, id, phase)
}

func (u *Unlocker) emit(ctx context.Context, id uuid.UUID, phase Phase) {
	logger.DebugKV(ctx, "Verification phase", "phase", phase.String())

	u.mu.Lock()
	listeners := slices.Clone(u.listeners)
	u.mu.Unlock()

	change := PhaseChange{AttemptID: id, Phase: phase, At: time.Now()}
	for _, fn := range listeners {
		fn(ctx, change)
	}
}
