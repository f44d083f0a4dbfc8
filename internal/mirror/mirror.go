package mirror

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// Listener receives the full state after a mutation.
// It runs synchronously and must not mutate the mirror.
type Listener func(ctx context.Context, state office.SensorState)

var (
	// ErrWrongType is returned when a remote value does not match the key's kind.
	ErrWrongType = errors.New("unexpected value type")
	// ErrNotFinite is returned for NaN or infinite numbers.
	ErrNotFinite = errors.New("number is not finite")
)

// Mirror owns the office state.
type Mirror struct {
	// dispatch serializes mutate-then-notify so listeners see mutations in order.
	dispatch sync.Mutex

	// mu guards state.
	mu    sync.RWMutex
	state office.SensorState

	// listenersMu guards listeners and nextID.
	listenersMu sync.Mutex
	listeners   map[int]Listener
	nextID      int

	now func() time.Time
}

// New creates a mirror holding the default state.
func New() *Mirror {
	return &Mirror{
		state:     office.DefaultSensorState(),
		listeners: make(map[int]Listener),
		now:       time.Now,
	}
}

// Snapshot returns a copy of the current state.
func (m *Mirror) Snapshot() office.SensorState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.state
}

// Subscribe registers a listener and returns the function removing it.
func (m *Mirror) Subscribe(l Listener) (unsubscribe func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()

	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()

		delete(m.listeners, id)
	}
}

// ApplyRemote overwrites the single field backing key with the decoded value.
// Null values decode to the key's default. A value that cannot be decoded
// leaves the state untouched and no event is emitted.
func (m *Mirror) ApplyRemote(ctx context.Context, key office.Key, raw *structpb.Value) error {
	var apply func(*office.SensorState)

	switch key {
	case office.KeyDoorStatus, office.KeyLEDStatus:
		def := office.DefaultDoorOpen
		if key == office.KeyLEDStatus {
			def = office.DefaultLightOn
		}

		v, err := decodeBool(raw, def)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}

		apply = func(s *office.SensorState) {
			if key == office.KeyDoorStatus {
				s.DoorOpen = v
			} else {
				s.LightOn = v
			}
		}
	case office.KeyTemperature:
		v, err := decodeNumber(raw, office.DefaultTemperatureC)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}

		apply = func(s *office.SensorState) { s.TemperatureC = v }
	case office.KeyGarbageLevel:
		v, err := decodeNumber(raw, office.DefaultGarbageLevelPct)
		if err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}

		if clamped := office.ClampPercent(v); clamped != v {
			logger.WarnKV(ctx, "Garbage level out of range, clamped", "raw", v, "clamped", clamped)
			v = clamped
		}

		apply = func(s *office.SensorState) { s.GarbageLevelPct = v }
	default:
		return fmt.Errorf("%w: %q", office.ErrUnknownKey, key)
	}

	m.mutate(ctx, apply)

	logger.DebugKV(ctx, "Remote value applied", "key", key)

	return nil
}

// ApplyLocal changes the fields that have no remote echo.
func (m *Mirror) ApplyLocal(ctx context.Context, mutate func(*office.LocalFields)) {
	m.mutate(ctx, func(s *office.SensorState) {
		local := office.LocalFields{FanOn: s.FanOn, Gas: s.Gas}
		mutate(&local)
		s.FanOn = local.FanOn
		s.Gas = local.Gas
	})
}

// ToggleFan flips the fan and returns its new state.
func (m *Mirror) ToggleFan(ctx context.Context) bool {
	var on bool

	m.ApplyLocal(ctx, func(l *office.LocalFields) {
		l.FanOn = !l.FanOn
		on = l.FanOn
	})

	logger.InfoKV(ctx, "Fan toggled", "fan_on", on)

	return on
}

// SimulateGas raises the gas alarm.
func (m *Mirror) SimulateGas(ctx context.Context) {
	m.ApplyLocal(ctx, func(l *office.LocalFields) { l.Gas = l.Gas.Simulate() })
	logger.Warnf(ctx, "Gas alarm raised")
}

// AcknowledgeGas clears the gas alarm.
func (m *Mirror) AcknowledgeGas(ctx context.Context) {
	m.ApplyLocal(ctx, func(l *office.LocalFields) { l.Gas = l.Gas.Acknowledge() })
	logger.Info(ctx, "Gas alarm acknowledged")
}

func (m *Mirror) mutate(ctx context.Context, apply func(*office.SensorState)) {
	m.dispatch.Lock()
	defer m.dispatch.Unlock()

	m.mu.Lock()
	apply(&m.state)
	m.state.UpdatedAt = m.now()
	snapshot := m.state
	m.mu.Unlock()

	m.listenersMu.Lock()
	listeners := make([]Listener, 0, len(m.listeners))

	for id := range m.nextID {
		if l, ok := m.listeners[id]; ok {
			listeners = append(listeners, l)
		}
	}
	m.listenersMu.Unlock()

	for _, l := range listeners {
		l(ctx, snapshot)
	}
}

func isNull(raw *structpb.Value) bool {
	if raw == nil || raw.GetKind() == nil {
		return true
	}

	_, ok := raw.GetKind().(*structpb.Value_NullValue)

	return ok
}

func decodeBool(raw *structpb.Value, def bool) (bool, error) {
	if isNull(raw) {
		return def, nil
	}

	kind, ok := raw.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return def, fmt.Errorf("%w: want bool, got %T", ErrWrongType, raw.GetKind())
	}

	return kind.BoolValue, nil
}

func decodeNumber(raw *structpb.Value, def float64) (float64, error) {
	if isNull(raw) {
		return def, nil
	}

	kind, ok := raw.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return def, fmt.Errorf("%w: want number, got %T", ErrWrongType, raw.GetKind())
	}

	if math.IsNaN(kind.NumberValue) || math.IsInf(kind.NumberValue, 0) {
		return def, ErrNotFinite
	}

	return kind.NumberValue, nil
}
