package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skan-io/saij/internal/trace"
)

// sampleTrace mirrors a sensor write travelling to a display.
func sampleTrace() []trace.Event {
	return []trace.Event{
		{Seq: 1, Organ: "converter", Side: trace.SideOutput, Key: "fahrenheit", Old: 32, New: 212.0},
		{Seq: 2, Organ: "display", Side: trace.SideInput, Key: "fahrenheit", Old: 32, New: 212.0},
		{Seq: 3, Organ: "converter", Side: trace.SideInput, Key: "celsius", Old: 0, New: 100},
		{Seq: 4, Organ: "sensor", Side: trace.SideOutput, Key: "celsius", Old: 0, New: 100},
		{Seq: 5, Organ: "display", Side: trace.SideInput, Key: "fahrenheit", Old: 212.0, New: nil},
	}
}

func TestAssertTraceContains_Found(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: map[string]any{"organ": "display", "new": 212},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NullValue(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: map[string]any{"organ": "display", "new": nil},
	})
	assert.NoError(t, err)
}

func TestAssertTraceContains_NotFound(t *testing.T) {
	err := assertTraceContains(sampleTrace(), Assertion{
		Type:  AssertTraceContains,
		Event: map[string]any{"organ": "display", "new": 213},
	})
	require.Error(t, err)

	var ae *AssertionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, AssertTraceContains, ae.Type)
	assert.Equal(t, "event matching {new=213, organ=display}", ae.Expected)
	assert.Equal(t, "not found in 5 events", ae.Actual)
	assert.Len(t, ae.Trace, 5)
}

func TestAssertTraceOrder_Correct(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type: AssertTraceOrder,
		Events: []map[string]any{
			{"organ": "converter", "side": "output"},
			{"organ": "sensor"},
			{"organ": "display", "new": nil},
		},
	})
	assert.NoError(t, err)
}

func TestAssertTraceOrder_WrongOrder(t *testing.T) {
	err := assertTraceOrder(sampleTrace(), Assertion{
		Type: AssertTraceOrder,
		Events: []map[string]any{
			{"organ": "sensor"},
			{"organ": "converter", "side": "output"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched 1 (seq [4])")
	assert.Contains(t, err.Error(), "missing {organ=converter, side=output}")
}

func TestAssertTraceCount(t *testing.T) {
	tests := []struct {
		name    string
		pattern map[string]any
		count   int
		wantErr bool
	}{
		{"exact", map[string]any{"organ": "display"}, 2, false},
		{"too few", map[string]any{"organ": "display"}, 3, true},
		{"too many", map[string]any{"key": "celsius"}, 1, true},
		{"zero", map[string]any{"organ": "panel"}, 0, false},
		{"everything", nil, 5, false},
		{"by seq", map[string]any{"seq": 3}, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := assertTraceCount(sampleTrace(), Assertion{Type: AssertTraceCount, Event: tt.pattern, Count: tt.count})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAssertFinalState(t *testing.T) {
	state := map[string]OrganState{
		"display": {
			Input:  map[string]any{"fahrenheit": 212.0, "unit": "F"},
			Output: map[string]any{},
		},
	}

	tests := []struct {
		name   string
		a      Assertion
		errSub string
	}{
		{"subset match", Assertion{Organ: "display", Side: "input", Expect: map[string]any{"fahrenheit": 212}}, ""},
		{"absent key", Assertion{Organ: "display", Side: "output", Expect: map[string]any{"fahrenheit": nil}}, ""},
		{"unknown organ", Assertion{Organ: "panel", Side: "input", Expect: map[string]any{"x": 1}}, "organ not in engine"},
		{"missing key", Assertion{Organ: "display", Side: "output", Expect: map[string]any{"fahrenheit": 212}}, "key not present"},
		{"mismatch", Assertion{Organ: "display", Side: "input", Expect: map[string]any{"unit": "C"}}, "display.input.unit = C"},
		{"present but expected absent", Assertion{Organ: "display", Side: "input", Expect: map[string]any{"unit": nil}}, "to be absent"},
		{"type mismatch", Assertion{Organ: "display", Side: "input", Expect: map[string]any{"fahrenheit": "212"}}, "type string"},
		{"bad side", Assertion{Organ: "display", Side: "sideways", Expect: map[string]any{"x": 1}}, "unknown side"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.a.Type = AssertFinalState
			err := assertFinalState(state, tt.a)
			if tt.errSub == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}

func TestAssertConnectionCount(t *testing.T) {
	assert.NoError(t, assertConnectionCount([]string{"2:1"}, Assertion{Count: 1}))
	assert.NoError(t, assertConnectionCount(nil, Assertion{Count: 0}))

	err := assertConnectionCount([]string{"2:1", "3:1"}, Assertion{Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 connections [2:1 3:1]")
}

func TestValuesEqual(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		expected any
		want     bool
	}{
		{"both nil", nil, nil, true},
		{"nil vs value", nil, 0, false},
		{"value vs nil", 0, nil, false},
		{"int vs float", 212, 212.0, true},
		{"int64 vs int", int64(7), 7, true},
		{"fraction", 0.5, 0.5, true},
		{"different numbers", 1, 2, false},
		{"number vs string", 1, "1", false},
		{"strings", "a", "a", true},
		{"bools", true, true, true},
		{"slices", []any{1, "x"}, []any{1.0, "x"}, true},
		{"maps", map[string]any{"a": 1}, map[string]any{"a": 1.0}, true},
		{"unsupported falls back", struct{ A int }{1}, struct{ A int }{1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valuesEqual(tt.actual, tt.expected))
		})
	}
}

func TestMatchEvent_UnknownFieldNeverMatches(t *testing.T) {
	ev := sampleTrace()[0]
	assert.True(t, matchEvent(ev, nil))
	assert.False(t, matchEvent(ev, map[string]any{"colour": "red"}))
}

func TestEvaluateAssertions(t *testing.T) {
	result := &Result{
		Trace:       sampleTrace(),
		State:       map[string]OrganState{"sensor": {Output: map[string]any{"celsius": 100}}},
		Connections: []string{"2:1", "3:1"},
	}

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceContains, Event: map[string]any{"organ": "sensor"}},
		{Type: AssertTraceOrder, Events: []map[string]any{{"seq": 1}, {"seq": 2}}},
		{Type: AssertTraceCount, Event: map[string]any{"side": "output"}, Count: 2},
		{Type: AssertFinalState, Organ: "sensor", Side: "output", Expect: map[string]any{"celsius": 100}},
		{Type: AssertConnectionCount, Count: 2},
	})
	assert.Empty(t, errs)

	errs = EvaluateAssertions(result, []Assertion{
		{Type: AssertConnectionCount, Count: 3},
		{Type: "vibes"},
	})
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "connection_count assertion failed")
	assert.Equal(t, `assertion[1]: unknown assertion type "vibes"`, errs[1])
}

func TestAssertionError_ErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "2 events",
		Actual:   "1 events",
	}
	assert.Equal(t, "trace_count assertion failed:\n  Expected: 2 events\n  Actual: 1 events", err.Error())
}
