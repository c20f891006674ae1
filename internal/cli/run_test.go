package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skan-io/saij/internal/engine"
)

func TestRunAppliesWrites(t *testing.T) {
	out, err := execute(t, "text", NewRunCommand, thermoWiring, "--set", "sensor.output.celsius=100")
	require.NoError(t, err)

	assert.Contains(t, out, "(duplex)")
	assert.Contains(t, out, "  converter [1]\n    input:  {\"celsius\":100}\n    output: {\"celsius\":100,\"fahrenheit\":212}\n")
	assert.Contains(t, out, "  display [2]\n    input:  {\"fahrenheit\":212}\n    output: {}\n")
	assert.Contains(t, out, "  sensor [3]\n    input:  {}\n    output: {\"celsius\":100}\n")
	assert.Contains(t, out, "Connections: 2\n  2:1 display -> converter (duplex)\n  3:1 converter -> sensor (duplex)\n")
}

func TestRunWithoutWrites(t *testing.T) {
	out, err := execute(t, "text", NewRunCommand, thermoWiring)
	require.NoError(t, err)
	assert.Contains(t, out, "  display [2]\n    input:  {\"fahrenheit\":32}\n")
}

func TestRunJSON(t *testing.T) {
	out, err := execute(t, "json", NewRunCommand, thermoWiring,
		"--set", "sensor.output.celsius=20",
		"--set", "display.input.unit=F",
	)
	require.NoError(t, err)

	var snap engine.Snapshot
	resp := decodeResponse(t, out, &snap)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "duplex", snap.Mode)
	require.Len(t, snap.Nodes, 3)

	display := snap.Nodes[1]
	assert.Equal(t, "display", display.Name)
	assert.Equal(t, 68.0, display.Input["fahrenheit"])
	assert.Equal(t, "F", display.Input["unit"])
}

func TestRunModeOverride(t *testing.T) {
	out, err := execute(t, "json", NewRunCommand, thermoWiring, "--mode", "simplex", "--set", "sensor.output.celsius=100")
	require.NoError(t, err)

	var snap engine.Snapshot
	decodeResponse(t, out, &snap)
	assert.Equal(t, "simplex", snap.Mode)
	for _, n := range snap.Nodes {
		if n.Name == "display" {
			assert.Equal(t, 32.0, n.Input["fahrenheit"], "simplex never forwards back from the converter")
		}
	}
}

func TestRunUnset(t *testing.T) {
	out, err := execute(t, "json", NewRunCommand, thermoWiring, "--set", "display.input.fahrenheit=")
	require.NoError(t, err)

	var snap engine.Snapshot
	decodeResponse(t, out, &snap)
	assert.NotContains(t, snap.Nodes[1].Input, "fahrenheit")
}

func TestRunNullWritesNil(t *testing.T) {
	out, err := execute(t, "json", NewRunCommand, thermoWiring, "--set", "display.input.fahrenheit=null")
	require.NoError(t, err)

	var snap engine.Snapshot
	decodeResponse(t, out, &snap)
	require.Contains(t, snap.Nodes[1].Input, "fahrenheit")
	assert.Nil(t, snap.Nodes[1].Input["fahrenheit"])
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"missing dir", []string{"/nonexistent"}, ExitCommandError, "not found"},
		{"bad assignment", []string{thermoWiring, "--set", "sensor=1"}, ExitCommandError, "invalid --set"},
		{"bad mode", []string{thermoWiring, "--mode", "sideways"}, ExitCommandError, "invalid mode"},
		{"invalid wiring", []string{invalidWiring}, ExitFailure, "wiring is invalid"},
		{"unknown organ", []string{thermoWiring, "--set", "ghost.input.x=1"}, ExitFailure, "write failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, "text", NewRunCommand, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestRunUnknownOrganReportsCode(t *testing.T) {
	out, err := execute(t, "text", NewRunCommand, thermoWiring, "--set", "ghost.input.x=1")
	require.Error(t, err)
	assert.Contains(t, out, "Error ["+ErrCodeUnknownOrgan+"]")
	assert.True(t, engine.IsUnknownNode(err))
}
