// Package harness runs reconciliation conformance scenarios.
//
// A scenario is a YAML file describing a local scene, a flow of remote
// batches and assertions on the converged result:
//
//	name: remote_lower_nonce_wins
//	description: Equal versions resolve to the lower version nonce
//	local:
//	  - {id: a, version: 2, nonce: 5, index: a0}
//	flow:
//	  - remote:
//	      - {id: a, version: 2, nonce: 3, index: a0}
//	assertions:
//	  - type: element
//	    id: a
//	    expect: {version: 2, version_nonce: 3}
//
// Each scenario runs against a fresh in-memory store. The local elements
// are saved as the scene, then every flow step is applied through
// engine.Apply, so a scenario exercises the same code path as a live peer:
// reconciliation, index repair, validation, the wire codec and the batch
// log.
//
// Batch ids default to batch-1, batch-2, ... so golden snapshots are
// reproducible.
package harness
