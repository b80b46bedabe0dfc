// Package harness runs merge scenarios against the engine.
//
// A scenario names a set of document versions, the order and batching used
// for a reference run, and assertions on the resulting state. The runner
// then replays the same versions in every other order and batching it is
// asked to, and fails unless each replay ends in exactly the same state.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: diamond
//	description: "Two concurrent edits merged by a third"
//	selector: updated_at          # optional, updated_at or version_id
//	permute: true                 # replay every ordering and batching
//	versions:
//	  - doc: A
//	    version: "1"
//	  - doc: A
//	    version: "2"
//	    links: ["1"]
//	    updated_at: "2024-01-01T00:00:01Z"
//	    fields: { title: "draft" }
//	batches:                      # optional grouping for the reference run
//	  - ["1"]
//	  - ["2"]
//	assertions:
//	  - type: head
//	    doc: A
//	    version: "2"
//	    forks: []
//	  - type: linked
//	    versions: ["1"]
//
// # Assertion Types
//
//   - head: the canonical version of doc, and optionally its exact fork set
//   - absent: doc has no canonical record
//   - linked: every listed version id has been linked
//   - unlinked: no listed version id has been linked
//   - outcome: what the reference run did with one version
//   - record_count: number of canonical records
//
// # Determinism
//
// Every run uses a fresh in-memory store, so a scenario's snapshot (the
// reference run's outcomes, the final records and the state digest) is
// byte-for-byte stable and suitable for golden comparison.
package harness
