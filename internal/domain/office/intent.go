package office

import "fmt"

// Target is an actuator that can be driven through the remote store.
type Target int

const (
	// TargetDoor is the door lock.
	TargetDoor Target = iota
	// TargetLight is the LED light.
	TargetLight
)

// Key returns the remote key the target is written to.
func (t Target) Key() Key {
	if t == TargetLight {
		return KeyLEDStatus
	}

	return KeyDoorStatus
}

// String implements fmt.Stringer.
func (t Target) String() string {
	if t == TargetLight {
		return "light"
	}

	return "door"
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Origin records why an actuation was issued.
type Origin int

const (
	// OriginManual is a direct user command.
	OriginManual Origin = iota
	// OriginAuthGranted is the door unlock following a successful face verification.
	OriginAuthGranted
)

// String implements fmt.Stringer.
func (o Origin) String() string {
	if o == OriginAuthGranted {
		return "auth_granted"
	}

	return "manual"
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// ActuationIntent is a single write to an actuator. It is submitted once and never retried.
type ActuationIntent struct {
	Target Target `json:"target"`
	Value  bool   `json:"value"`
	Origin Origin `json:"origin"`
}

// String implements fmt.Stringer.
func (i ActuationIntent) String() string {
	return fmt.Sprintf("%s=%t (%s)", i.Target, i.Value, i.Origin)
}

// AuthResult is the outcome of one face verification attempt.
type AuthResult struct {
	Authenticated bool `json:"authenticated"`
	// Username is set only when Authenticated is true.
	Username string `json:"username,omitempty"`
}
