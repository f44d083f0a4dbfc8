package office

import (
	"math"
	"time"
)

// GasAlarmState is the two-state gas alarm.
// It leaves Clear only through Simulate and returns only through Acknowledge.
type GasAlarmState int

const (
	// GasClear means no gas alarm is raised.
	GasClear GasAlarmState = iota
	// GasDetected means the alarm was raised and not yet acknowledged.
	GasDetected
)

// Simulate raises the alarm.
func (GasAlarmState) Simulate() GasAlarmState {
	return GasDetected
}

// Acknowledge clears the alarm.
func (GasAlarmState) Acknowledge() GasAlarmState {
	return GasClear
}

// String implements fmt.Stringer.
func (g GasAlarmState) String() string {
	if g == GasDetected {
		return "detected"
	}

	return "clear"
}

// MarshalText implements encoding.TextMarshaler.
func (g GasAlarmState) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// SensorState is the mirrored sensor and actuator state of the office.
// It is a value type: copies handed to subscribers never alias the mirror.
type SensorState struct {
	// DoorOpen mirrors door_status.
	DoorOpen bool `json:"door_open"`
	// LightOn mirrors led_status.
	LightOn bool `json:"light_on"`
	// FanOn has no remote key and is toggled locally.
	FanOn bool `json:"fan_on"`
	// TemperatureC mirrors temperature.
	TemperatureC float64 `json:"temperature_c"`
	// GarbageLevelPct mirrors garbage_level, always within [0,100].
	GarbageLevelPct float64 `json:"garbage_level_pct"`
	// Gas is the local gas alarm; remote updates never touch it.
	Gas GasAlarmState `json:"gas"`
	// UpdatedAt is when the state last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultSensorState returns the state used before the first remote delivery.
func DefaultSensorState() SensorState {
	return SensorState{
		DoorOpen:        DefaultDoorOpen,
		LightOn:         DefaultLightOn,
		TemperatureC:    DefaultTemperatureC,
		GarbageLevelPct: DefaultGarbageLevelPct,
		Gas:             GasClear,
	}
}

// GasDetected reports whether the gas alarm is raised.
func (s SensorState) GasDetected() bool {
	return s.Gas == GasDetected
}

// LocalFields are the parts of SensorState without a remote echo.
type LocalFields struct {
	FanOn bool
	Gas   GasAlarmState
}

// ClampPercent limits v to [0,100]. NaN is treated as 0.
func ClampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}

	return math.Max(0, math.Min(100, v))
}
