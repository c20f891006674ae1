// Package harness runs wiring scenarios and checks their traces.
//
// A scenario loads CUE wiring files, builds an engine, drives it with steps
// and validates the recorded property writes and the final bag contents.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	specs:
//	  - ../specs/thermo.cue
//	mode: duplex            # optional, overrides the wiring
//	steps:
//	  - op: set
//	    organ: sensor
//	    side: output
//	    key: celsius
//	    value: 100
//	  - op: add
//	    organ: panel
//	    input: { fahrenheit: 0 }
//	  - op: remove
//	    organ: display
//	assertions:
//	  - type: trace_contains
//	    event: { organ: panel, side: input, key: fahrenheit, new: 212 }
//	  - type: final_state
//	    organ: panel
//	    side: input
//	    expect: { fahrenheit: 212 }
//
// Steps: set, unset, add, remove, connect, disconnect, process.
//
// # Assertion Types
//
//   - trace_contains: an event matching the pattern was recorded
//   - trace_order: events matching the patterns were recorded in order
//   - trace_count: exactly N events match the pattern
//   - final_state: an organ bag holds the expected values
//   - connection_count: the engine holds exactly N connections
//
// Patterns are subsets of the event fields seq, organ, side, key, old and
// new. Values compare by canonical JSON, so 212 matches 212.0.
//
// # Trace Order
//
// A write is recorded once its change listeners have run. Writes it causes
// downstream are therefore recorded before it: a sensor write that reaches a
// display shows the display event first.
//
// # Deterministic Testing
//
// Each run gets a fresh uid allocator, a fixed engine id (the scenario name)
// and a recorder whose sequence starts at 1, so identical scenarios produce
// identical traces. Golden traces are canonical JSON compared byte for byte.
package harness
