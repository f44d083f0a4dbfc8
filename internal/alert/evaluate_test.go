package alert

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-office/internal/domain/office"
)

// TestClassifyGarbage covers the cut-points and clamping of out-of-range input.
func TestClassifyGarbage(t *testing.T) {
	t.Parallel()

	cases := []struct {
		pct  float64
		want Level
	}{
		{0, LevelNormal},
		{79, LevelNormal},
		{79.99, LevelNormal},
		{80, LevelWarning},
		{94, LevelWarning},
		{94.99, LevelWarning},
		{95, LevelCritical},
		{100, LevelCritical},
		{150, LevelCritical},
		{-20, LevelNormal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, ClassifyGarbage(tc.pct), "level %v", tc.pct)
	}
}

// TestClassifyTemperature covers the comfort and safety bands.
func TestClassifyTemperature(t *testing.T) {
	t.Parallel()

	require.Equal(t, LevelNormal, ClassifyTemperature(22))
	require.Equal(t, LevelNormal, ClassifyTemperature(20))
	require.Equal(t, LevelNormal, ClassifyTemperature(25))
	require.Equal(t, LevelWarning, ClassifyTemperature(19.9))
	require.Equal(t, LevelWarning, ClassifyTemperature(27))
	require.Equal(t, LevelCritical, ClassifyTemperature(14))
	require.Equal(t, LevelCritical, ClassifyTemperature(31))
}

// TestEvaluate_GasMirrorsAlarmState checks the gas alert is read from the alarm, not a reading.
func TestEvaluate_GasMirrorsAlarmState(t *testing.T) {
	t.Parallel()

	s := office.DefaultSensorState()
	require.False(t, Evaluate(s).Gas)

	s.Gas = s.Gas.Simulate()
	require.True(t, Evaluate(s).Gas)

	s.GarbageLevelPct = 10
	s.TemperatureC = 40
	require.True(t, Evaluate(s).Gas)
}

// TestEvaluation_Status verifies the summary picks the most severe condition.
func TestEvaluation_Status(t *testing.T) {
	t.Parallel()

	require.Equal(t, "NORMAL", Evaluation{}.Status())
	require.True(t, Evaluation{Garbage: LevelWarning}.Healthy())
	require.Equal(t, "WARNING - Garbage Level High", Evaluation{Garbage: LevelWarning}.Status())
	require.Equal(t, "WARNING - Temperature CRITICAL",
		Evaluation{Garbage: LevelWarning, Temperature: LevelCritical}.Status())
	require.Equal(t, "CRITICAL - Garbage Full",
		Evaluation{Garbage: LevelCritical, Temperature: LevelWarning}.Status())
	require.Equal(t, "EMERGENCY - Gas Detected", Evaluation{Gas: true, Garbage: LevelCritical}.Status())
	require.False(t, Evaluation{Gas: true}.Healthy())
}
