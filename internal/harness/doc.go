// Package harness runs scripted captioning sessions against the engine.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	display: { columns: 10, lines: 3 }
//	join_time: 0
//	steps:
//	  - receive: { from: peer-a, at: 1100, sent: 1000, kind: display, text: "hello" }
//	  - receive: { from: peer-a, at: 1300, sent: 1200, undo: { sender: peer-a, sent: 1000 } }
//	  - local: { at: 1400, action: display, text: "hi" }
//	  - local: { at: 1500, action: undo }
//	assertions:
//	  - type: transcript
//	    lines: ["hi"]
//	  - type: flags
//	    step: 2
//	    flags: change|inbetween|undo
//
// # Assertion Types
//
//   - transcript: content of every non-undone entry, in log order
//   - visible: the lines in the window after the last step
//   - len: number of logged entries, undone ones included
//   - pending: number of undo notices still waiting for their target
//   - flags: batch flags of one step
//
// # Deterministic Testing
//
// Every scenario runs on a fresh engine with a manual clock, the fixed
// local sender ID LocalSender and an in-memory journal. After the steps the
// journal is replayed into a second engine; a replay that does not
// reproduce the transcript and view fails the scenario.
package harness
