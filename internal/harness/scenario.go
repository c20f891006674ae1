package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/skan-io/saij/internal/connection"
	"github.com/skan-io/saij/internal/trace"
)

// Scenario defines a wiring test scenario.
// A scenario builds an engine from wiring files, drives it with a list of
// steps and asserts on the recorded trace and the final bag contents.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists the CUE wiring files to load as one package.
	// Paths are relative to the base path given at load time.
	Specs []string `yaml:"specs"`

	// Mode overrides the connection mode declared in the wiring.
	Mode string `yaml:"mode,omitempty"`

	// Steps are executed in order against the built engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	// Supported types: trace_contains, trace_order, trace_count, final_state,
	// connection_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action against the engine or an organ bag.
type Step struct {
	// Op is one of set, unset, add, remove, connect, disconnect, process.
	Op string `yaml:"op"`

	// Organ names the target organ (set, unset, remove, process; add uses
	// it as the new organ's name).
	Organ string `yaml:"organ,omitempty"`

	// Side selects the bag for set and unset: input or output.
	Side string `yaml:"side,omitempty"`

	// Key and Value describe the property write.
	Key   string `yaml:"key,omitempty"`
	Value any    `yaml:"value,omitempty"`

	// UID, Input and Output describe an organ created by add.
	UID    uint64         `yaml:"uid,omitempty"`
	Input  map[string]any `yaml:"input,omitempty"`
	Output map[string]any `yaml:"output,omitempty"`

	// Source and Destination name the pair for connect and disconnect.
	Source      string `yaml:"source,omitempty"`
	Destination string `yaml:"destination,omitempty"`
}

// Step operations.
const (
	OpSet        = "set"
	OpUnset      = "unset"
	OpAdd        = "add"
	OpRemove     = "remove"
	OpConnect    = "connect"
	OpDisconnect = "disconnect"
	OpProcess    = "process"
)

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": an event matching Event was recorded
	// - "trace_order": events matching Events were recorded in that order
	// - "trace_count": exactly Count events match Event
	// - "final_state": the organ's bag holds the Expect values
	// - "connection_count": the engine holds exactly Count connections
	Type string `yaml:"type"`

	// Event is a subset of event fields (seq, organ, side, key, old, new)
	// used by trace_contains and trace_count.
	Event map[string]any `yaml:"event,omitempty"`

	// Events is the expected event order (used by trace_order).
	Events []map[string]any `yaml:"events,omitempty"`

	// Count is the expected number of matches (trace_count, connection_count).
	Count int `yaml:"count,omitempty"`

	// Organ and Side select the bag checked by final_state.
	Organ string `yaml:"organ,omitempty"`
	Side  string `yaml:"side,omitempty"`

	// Expect contains expected property values (used by final_state).
	// Subset match: only listed keys are checked. A null value asserts that
	// the key is absent.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertFinalState      = "final_state"
	AssertConnectionCount = "connection_count"
)

var eventFields = map[string]bool{
	"seq": true, "organ": true, "side": true, "key": true, "old": true, "new": true,
}

// LoadScenario reads and parses a scenario YAML file.
// Spec paths are resolved relative to the scenario file's directory.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without resolving or validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	if s.Mode != "" {
		mode, err := connection.ParseMode(s.Mode)
		if err != nil {
			return fmt.Errorf("mode: %w", err)
		}
		if mode.Remote() {
			return fmt.Errorf("mode: %q is not supported", s.Mode)
		}
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	switch st.Op {
	case OpSet, OpUnset:
		if st.Organ == "" || st.Key == "" {
			return fmt.Errorf("steps[%d]: organ and key are required for %s", index, st.Op)
		}
		if _, err := trace.ParseSide(st.Side); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case OpAdd, OpRemove, OpProcess:
		if st.Organ == "" {
			return fmt.Errorf("steps[%d]: organ is required for %s", index, st.Op)
		}
	case OpConnect, OpDisconnect:
		if st.Source == "" || st.Destination == "" {
			return fmt.Errorf("steps[%d]: source and destination are required for %s", index, st.Op)
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if len(a.Event) == 0 {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
		return validateEventPattern(index, a.Event)
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
		for _, ev := range a.Events {
			if err := validateEventPattern(index, ev); err != nil {
				return err
			}
		}
	case AssertTraceCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		return validateEventPattern(index, a.Event)
	case AssertFinalState:
		if a.Organ == "" {
			return fmt.Errorf("assertions[%d]: organ is required for final_state", index)
		}
		if _, err := trace.ParseSide(a.Side); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertConnectionCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for connection_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

func validateEventPattern(index int, pattern map[string]any) error {
	for field := range pattern {
		if !eventFields[field] {
			return fmt.Errorf("assertions[%d]: unknown event field %q", index, field)
		}
	}
	return nil
}
