package notify

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSeverity_Attributes checks every severity carries its own display attributes.
func TestSeverity_Attributes(t *testing.T) {
	t.Parallel()

	require.Equal(t, Info, Severity{})

	want := map[Severity][3]string{
		Info:    {"info", "info", "#2196F3"},
		Success: {"success", "check_circle", "#4CAF50"},
		Warning: {"warning", "warning", "#FF9800"},
		Error:   {"error", "error", "#f44336"},
	}
	for severity, attrs := range want {
		require.Equal(t, attrs[0], severity.String())
		require.Equal(t, attrs[1], severity.Icon())
		require.Equal(t, attrs[2], severity.Color())
	}

	require.Len(t, Severities(), len(want))
}

// TestSeverity_Text verifies JSON uses the severity name and rejects unknown names.
func TestSeverity_Text(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(map[string]Severity{"severity": Warning})
	require.NoError(t, err)
	require.JSONEq(t, `{"severity":"warning"}`, string(data))

	var decoded struct {
		Severity Severity `json:"severity"`
	}

	require.NoError(t, json.Unmarshal([]byte(`{"severity":"error"}`), &decoded))
	require.Equal(t, Error, decoded.Severity)

	require.Error(t, json.Unmarshal([]byte(`{"severity":"fatal"}`), &decoded))
}
