package harness

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario := loadTestScenario(t, "thermo_convert")

	assert.Equal(t, "thermo_convert", scenario.Name)
	assert.NotEmpty(t, scenario.Description)
	assert.Equal(t, []string{thermoSpec}, scenario.Specs, "spec paths resolve against the scenario directory")

	require.Len(t, scenario.Steps, 1)
	step := scenario.Steps[0]
	assert.Equal(t, OpSet, step.Op)
	assert.Equal(t, "sensor", step.Organ)
	assert.Equal(t, 100, step.Value)

	require.Len(t, scenario.Assertions, 5)
	assert.Equal(t, AssertTraceContains, scenario.Assertions[0].Type)
	assert.Equal(t, map[string]any{"organ": "display", "side": "input", "key": "fahrenheit", "new": 212}, scenario.Assertions[0].Event)
	assert.Len(t, scenario.Assertions[1].Events, 3)
	assert.Equal(t, 3, scenario.Assertions[2].Count)
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, `
name: based
description: "spec paths resolved against an explicit base"
specs:
  - specs/thermo.cue
assertions:
  - type: connection_count
    count: 2
`)

	scenario, err := LoadScenarioWithBasePath(path, "testdata")
	require.NoError(t, err)
	assert.Equal(t, []string{thermoSpec}, scenario.Specs)

	abs, err := filepath.Abs(thermoSpec)
	require.NoError(t, err)
	path = writeScenario(t, dir, "name: abs\ndescription: d\nspecs: ["+abs+"]\nassertions: [{type: connection_count}]\n")
	scenario, err = LoadScenarioWithBasePath(path, "elsewhere")
	require.NoError(t, err)
	assert.Equal(t, []string{abs}, scenario.Specs, "absolute paths are kept")
}

func TestLoadScenario_FileErrors(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")

	path := writeScenario(t, t.TempDir(), "name: [unclosed\n")
	_, err = LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldRejected(t *testing.T) {
	path := writeScenario(t, t.TempDir(), `
name: typo
description: "assertion instead of assertions"
specs: [x.cue]
assertion:
  - type: connection_count
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertion")
}

func TestValidateScenario(t *testing.T) {
	valid := func() *Scenario {
		return &Scenario{
			Name:        "v",
			Description: "d",
			Specs:       []string{thermoSpec},
			Assertions:  []Assertion{{Type: AssertConnectionCount, Count: 2}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"specs", func(s *Scenario) { s.Specs = nil }, "specs list is required"},
		{"assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"missing spec", func(s *Scenario) { s.Specs = []string{"nope.cue"} }, "spec file not found"},
		{"bad mode", func(s *Scenario) { s.Mode = "sideways" }, "mode"},
		{"remote mode", func(s *Scenario) { s.Mode = "remote_duplex" }, "not supported"},
		{"step op", func(s *Scenario) { s.Steps = []Step{{}} }, "steps[0]: op is required"},
		{"unknown op", func(s *Scenario) { s.Steps = []Step{{Op: "fly"}} }, `unknown op "fly"`},
		{"set key", func(s *Scenario) { s.Steps = []Step{{Op: OpSet, Organ: "a", Side: "input"}} }, "organ and key"},
		{"set side", func(s *Scenario) { s.Steps = []Step{{Op: OpUnset, Organ: "a", Key: "k"}} }, "unknown side"},
		{"add organ", func(s *Scenario) { s.Steps = []Step{{Op: OpAdd}} }, "organ is required for add"},
		{"connect pair", func(s *Scenario) { s.Steps = []Step{{Op: OpConnect, Source: "a"}} }, "source and destination"},
		{"assertion type", func(s *Scenario) { s.Assertions = []Assertion{{}} }, "type is required"},
		{"unknown assertion", func(s *Scenario) { s.Assertions = []Assertion{{Type: "vibes"}} }, "unknown assertion type"},
		{"contains event", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceContains}} }, "event is required"},
		{"event field", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertTraceContains, Event: map[string]any{"colour": "red"}}}
		}, `unknown event field "colour"`},
		{"order events", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceOrder}} }, "events list is required"},
		{"count negative", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertTraceCount, Count: -1}} }, "non-negative"},
		{"state organ", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertFinalState}} }, "organ is required"},
		{"state expect", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertFinalState, Organ: "a", Side: "input"}}
		}, "expect is required"},
		{"connections negative", func(s *Scenario) {
			s.Assertions = []Assertion{{Type: AssertConnectionCount, Count: -2}}
		}, "non-negative for connection_count"},
	}

	require.NoError(t, validateScenario(valid()))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.want), "got %q, want %q", err.Error(), tt.want)
		})
	}
}

func TestValidateScenario_AllOpsAccepted(t *testing.T) {
	s := &Scenario{
		Name:        "ops",
		Description: "d",
		Specs:       []string{thermoSpec},
		Steps: []Step{
			{Op: OpSet, Organ: "a", Side: "input", Key: "k", Value: 1},
			{Op: OpUnset, Organ: "a", Side: "out", Key: "k"},
			{Op: OpAdd, Organ: "b"},
			{Op: OpRemove, Organ: "b"},
			{Op: OpConnect, Source: "a", Destination: "b"},
			{Op: OpDisconnect, Source: "a", Destination: "b"},
			{Op: OpProcess, Organ: "a"},
		},
		Assertions: []Assertion{
			{Type: AssertTraceCount},
			{Type: AssertTraceOrder, Events: []map[string]any{{"seq": 1}, {"old": nil}}},
		},
	}
	assert.NoError(t, validateScenario(s))
}
