package notify

import (
	"errors"
	"fmt"
)

type level uint8

const (
	levelInfo level = iota
	levelSuccess
	levelWarning
	levelError
	levelCount
)

// Severity is the closed set {Info, Success, Warning, Error}.
// The zero value is Info, so every Severity value is a valid one.
type Severity struct {
	level level
}

//nolint:gochecknoglobals // Severity values are the enumeration itself.
var (
	Info    = Severity{levelInfo}
	Success = Severity{levelSuccess}
	Warning = Severity{levelWarning}
	Error   = Severity{levelError}
)

// attributes are the display hints the presentation layer renders with.
//
//nolint:gochecknoglobals // Fixed lookup table.
var attributes = [levelCount]struct {
	name  string
	icon  string
	color string
}{
	levelInfo:    {name: "info", icon: "info", color: "#2196F3"},
	levelSuccess: {name: "success", icon: "check_circle", color: "#4CAF50"},
	levelWarning: {name: "warning", icon: "warning", color: "#FF9800"},
	levelError:   {name: "error", icon: "error", color: "#f44336"},
}

var errUnknownSeverity = errors.New("unknown severity")

// Severities lists every severity in ascending order.
func Severities() []Severity {
	return []Severity{Info, Success, Warning, Error}
}

// ParseSeverity resolves a severity by name.
func ParseSeverity(s string) (Severity, error) {
	for _, severity := range Severities() {
		if severity.String() == s {
			return severity, nil
		}
	}

	return Info, fmt.Errorf("%w: %q", errUnknownSeverity, s)
}

// String implements fmt.Stringer.
func (s Severity) String() string {
	return attributes[s.level].name
}

// Icon returns the material icon name for the severity.
func (s Severity) Icon() string {
	return attributes[s.level].icon
}

// Color returns the background color for the severity.
func (s Severity) Color() string {
	return attributes[s.level].color
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
