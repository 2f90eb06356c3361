// Package harness runs audit scenarios as executable contract tests.
//
// A scenario describes what the ledger and the local store hold for one
// task, and what the reconciliation report must say about it.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	task_id: T1
//	ledger:
//	  - { stage: RECV, ts: 1700000000, height: 10001 }
//	local:
//	  - { stage: RECV, ts: 1700000000 }
//	  - stage: EXEC
//	    ts: 1700000060
//	    tamper: { audit_note: db_mutated }
//	assertions:
//	  - type: item
//	    stage: EXEC
//	    ts: 1700000060
//	    status: mismatch
//	    reason: stale_hash
//	  - type: summary
//	    expect: { matches: 1, mismatches: 1 }
//
// Records are built by testutil.Entry, so a ledger step and a local step
// with the same stage and ts describe the same detail and the same hash.
//
// # Assertion Types
//
//   - item: an item with the given stage and ts has the given status (and reason)
//   - status_count: exactly count items have the given status
//   - malformed: exactly count malformed records come from side
//   - summary: the summary fields in expect have the given values
//   - unavailable: reconciliation failed because side could not be read
//
// Every report is also checked against its own count invariant.
//
// # Deterministic Testing
//
// Scenarios run against in-memory adapters (testutil.FakeLedger and
// testutil.FakeLocal), so identical scenarios produce identical reports and
// golden snapshots can be compared byte for byte.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/t1.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, err := range result.Errors {
//	        log.Println(err)
//	    }
//	}
package harness
