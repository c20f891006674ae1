package harness

import (
	"bytes"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/skan-io/saij/internal/trace"
)

// AssertionError represents a failed assertion with detailed context.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []trace.Event
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s assertion failed:\n  Expected: %s\n  Actual: %s",
		e.Type, e.Expected, e.Actual)
}

// assertTraceContains checks if the trace holds an event matching the
// pattern. Fields not named in the pattern are ignored.
func assertTraceContains(events []trace.Event, assertion Assertion) error {
	for _, ev := range events {
		if matchEvent(ev, assertion.Event) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event matching %s", formatPattern(assertion.Event)),
		Actual:   fmt.Sprintf("not found in %d events", len(events)),
		Trace:    events,
	}
}

// assertTraceOrder checks if events matching the patterns appear in order.
// Other events may appear in between.
func assertTraceOrder(events []trace.Event, assertion Assertion) error {
	next := 0
	var matched []int64
	for _, ev := range events {
		if next >= len(assertion.Events) {
			break
		}
		if matchEvent(ev, assertion.Events[next]) {
			matched = append(matched, ev.Seq)
			next++
		}
	}

	if next < len(assertion.Events) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("%d events in order", len(assertion.Events)),
			Actual: fmt.Sprintf("matched %d (seq %v), missing %s",
				next, matched, formatPattern(assertion.Events[next])),
			Trace: events,
		}
	}

	return nil
}

// assertTraceCount checks the number of events matching the pattern.
func assertTraceCount(events []trace.Event, assertion Assertion) error {
	count := 0
	for _, ev := range events {
		if matchEvent(ev, assertion.Event) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d events matching %s", assertion.Count, formatPattern(assertion.Event)),
			Actual:   fmt.Sprintf("%d events", count),
			Trace:    events,
		}
	}

	return nil
}

// assertFinalState checks the final bag of an organ with subset semantics.
func assertFinalState(state map[string]OrganState, assertion Assertion) error {
	org, ok := state[assertion.Organ]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("organ %q", assertion.Organ),
			Actual:   "organ not in engine",
		}
	}

	side, err := trace.ParseSide(assertion.Side)
	if err != nil {
		return err
	}
	bag := org.Input
	if side == trace.SideOutput {
		bag = org.Output
	}

	for _, key := range sortedKeys(assertion.Expect) {
		expected := assertion.Expect[key]
		actual, exists := bag[key]

		if expected == nil {
			if exists {
				return &AssertionError{
					Type:     AssertFinalState,
					Expected: fmt.Sprintf("%s.%s.%s to be absent", assertion.Organ, side, key),
					Actual:   fmt.Sprintf("%v (type %T)", actual, actual),
				}
			}
			continue
		}

		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s.%s = %v", assertion.Organ, side, key, expected),
				Actual:   fmt.Sprintf("key not present in %v", sortedKeys(bag)),
			}
		}

		if !valuesEqual(actual, expected) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s.%s = %v (type %T)", assertion.Organ, side, key, expected, expected),
				Actual:   fmt.Sprintf("%v (type %T)", actual, actual),
			}
		}
	}

	return nil
}

// assertConnectionCount checks how many connections remain.
func assertConnectionCount(connections []string, assertion Assertion) error {
	if len(connections) != assertion.Count {
		return &AssertionError{
			Type:     AssertConnectionCount,
			Expected: fmt.Sprintf("%d connections", assertion.Count),
			Actual:   fmt.Sprintf("%d connections %v", len(connections), connections),
		}
	}
	return nil
}

// matchEvent checks if the event holds every field of the pattern (subset
// match). An empty pattern matches every event.
func matchEvent(ev trace.Event, pattern map[string]any) bool {
	if len(pattern) == 0 {
		return true
	}

	fields := ev.Fields()
	for key, expected := range pattern {
		actual, exists := fields[key]
		if !exists {
			return false
		}
		if !valuesEqual(actual, expected) {
			return false
		}
	}
	return true
}

// valuesEqual compares two property values by their canonical JSON form, so
// 212, int64(212) and 212.0 are equal. Values that cannot be rendered fall
// back to reflect.DeepEqual.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}

	a, errA := trace.MarshalCanonical(actual)
	b, errB := trace.MarshalCanonical(expected)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(actual, expected)
	}
	return bytes.Equal(a, b)
}

// formatPattern renders a pattern with sorted keys for messages.
func formatPattern(pattern map[string]any) string {
	if len(pattern) == 0 {
		return "(any)"
	}
	parts := make([]string, 0, len(pattern))
	for _, k := range sortedKeys(pattern) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, pattern[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			err = assertFinalState(result.State, assertion)
		case AssertConnectionCount:
			err = assertConnectionCount(result.Connections, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
