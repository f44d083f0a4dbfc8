package office

import "fmt"

// Key names a value in the remote realtime store.
type Key string

const (
	// KeyDoorStatus holds the door state, true when open.
	KeyDoorStatus Key = "door_status"
	// KeyLEDStatus holds the light state, true when on.
	KeyLEDStatus Key = "led_status"
	// KeyTemperature holds the room temperature in degrees Celsius.
	KeyTemperature Key = "temperature"
	// KeyGarbageLevel holds the dustbin fill level in percent.
	KeyGarbageLevel Key = "garbage_level"
)

// Defaults applied when the store has no value for a key.
const (
	DefaultDoorOpen        = false
	DefaultLightOn         = false
	DefaultTemperatureC    = 22.0
	DefaultGarbageLevelPct = 45.0
)

// Kind is the primitive type a key carries.
type Kind int

const (
	// KindBool is a boolean value.
	KindBool Kind = iota
	// KindNumber is a float64 value.
	KindNumber
)

// Keys returns every remote key the mirror subscribes to.
func Keys() []Key {
	return []Key{KeyDoorStatus, KeyLEDStatus, KeyTemperature, KeyGarbageLevel}
}

// ParseKey validates a key name received from outside the process.
func ParseKey(s string) (Key, error) {
	for _, k := range Keys() {
		if string(k) == s {
			return k, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownKey, s)
}

// Kind reports the primitive type of the key.
func (k Key) Kind() Kind {
	switch k {
	case KeyTemperature, KeyGarbageLevel:
		return KindNumber
	default:
		return KindBool
	}
}

// String implements fmt.Stringer.
func (k Key) String() string {
	return string(k)
}
