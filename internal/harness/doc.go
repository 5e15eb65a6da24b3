// Package harness runs YAML workflow scenarios against a real store and
// compares their traces with golden files.
//
// # Scenario Format
//
//	name: priority_insertion
//	description: "A priority ticket is interleaved after the first normals"
//	facility: hospital.cue          # relative to the scenario file
//	clock: "2026-03-02T09:00:00Z"   # optional start of the fake clock
//	parameters:                     # optional, override the facility file
//	  DisplacementLimit: "2"
//	setup:
//	  - invoke: create_ticket
//	    args: {queue_id: 1}
//	flow:
//	  - invoke: create_ticket
//	    args: {queue_id: 1, priority: 1}
//	    expect:
//	      case: created
//	      result: {sequence: 2, order: "0001a"}
//	assertions:
//	  - type: trace_count
//	    action: create_ticket
//	    count: 2
//	  - type: final_state
//	    table: tickets
//	    where: {display_text: "0002"}
//	    expect: {state: 1}
//	  - type: cache_order
//	    queue_id: 1
//	    display_texts: ["0001", "0002"]
//
// # Actions
//
// create_ticket, create_reception_ticket, assign_next, update_state,
// update_state_by_patient, clear_missed, move_ticket, set_parameter,
// reload_cache, clear_cache and advance_clock. Each step is traced as an
// invocation followed by a completion whose case is the outcome
// ("created", "assigned", "none", ...) or the lower-cased error kind
// ("not_found", "invalid_argument", ...).
//
// # Assertion Types
//
//   - trace_contains: an invocation of action with matching args
//   - trace_order: actions appear in the given order
//   - trace_count: action is invoked exactly count times
//   - final_state: one row of a table matches the expected columns
//   - cache_order: a queue's cached tickets in service order
//
// # Deterministic Testing
//
// Every scenario runs on a fresh SQLite file with a fake clock and
// sequential ticket ids ("ticket-0001", ...), so the same scenario always
// produces a byte-identical trace.
package harness
