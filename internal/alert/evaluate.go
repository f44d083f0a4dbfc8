package alert

import "github.com/oshokin/smart-office/internal/domain/office"

// Level is a derived alert severity. It is never stored in SensorState.
type Level int

const (
	// LevelNormal means no alert.
	LevelNormal Level = iota
	// LevelWarning means attention is needed soon.
	LevelWarning
	// LevelCritical means immediate action is needed.
	LevelCritical
)

// Garbage and temperature cut-points. There is no hysteresis.
const (
	GarbageWarningPct  = 80.0
	GarbageCriticalPct = 95.0

	TemperatureComfortMinC = 20.0
	TemperatureComfortMaxC = 25.0
	TemperatureSafeMinC    = 15.0
	TemperatureSafeMaxC    = 30.0
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "WARNING"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "NORMAL"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// ClassifyGarbage clamps the level to [0,100] and maps it to an alert level.
func ClassifyGarbage(pct float64) Level {
	pct = office.ClampPercent(pct)

	switch {
	case pct >= GarbageCriticalPct:
		return LevelCritical
	case pct >= GarbageWarningPct:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// ClassifyTemperature maps a room temperature to an alert level.
func ClassifyTemperature(c float64) Level {
	switch {
	case c < TemperatureSafeMinC || c > TemperatureSafeMaxC:
		return LevelCritical
	case c < TemperatureComfortMinC || c > TemperatureComfortMaxC:
		return LevelWarning
	default:
		return LevelNormal
	}
}

// Evaluation is the alert view of one SensorState.
type Evaluation struct {
	Garbage     Level `json:"garbage"`
	Temperature Level `json:"temperature"`
	// Gas mirrors the gas alarm state machine; it is never computed from a reading.
	Gas bool `json:"gas"`
}

// Evaluate derives every alert from the state. It has no side effects.
func Evaluate(s office.SensorState) Evaluation {
	return Evaluation{
		Garbage:     ClassifyGarbage(s.GarbageLevelPct),
		Temperature: ClassifyTemperature(s.TemperatureC),
		Gas:         s.GasDetected(),
	}
}

// Healthy reports whether nothing needs attention beyond a garbage warning.
func (e Evaluation) Healthy() bool {
	return !e.Gas && e.Temperature == LevelNormal && e.Garbage != LevelCritical
}

// Status summarizes the evaluation, most severe condition first.
func (e Evaluation) Status() string {
	switch {
	case e.Gas:
		return "EMERGENCY - Gas Detected"
	case e.Garbage == LevelCritical:
		return "CRITICAL - Garbage Full"
	case e.Temperature != LevelNormal:
		return "WARNING - Temperature " + e.Temperature.String()
	case e.Garbage == LevelWarning:
		return "WARNING - Garbage Level High"
	default:
		return "NORMAL"
	}
}
