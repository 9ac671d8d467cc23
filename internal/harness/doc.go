// Package harness runs ledger scenarios for integration tests and for
// `ledgerctl scenario`.
//
// A scenario declares symbolic ids, a sequence of ledger calls with their
// expected outcome, and assertions over the final state. Each run uses a
// fresh store and index in a temporary directory, a stepping clock and a
// reproducible id generator, so the final state can be compared against a
// golden snapshot.
//
// # Scenario Format
//
//	name: staged_update
//	description: "What this scenario validates"
//	tenant: 0
//	ids:
//	  G1: operation
//	  U1: unit
//	steps:
//	  - call: createOperation
//	    items:
//	      - {evIdProc: "${G1}", evType: PROCESS_SIP_UNITARY, evTypeProc: INGEST}
//	  - call: updateLifecycle
//	    kind: unit
//	    operation: "${G1}"
//	    items:
//	      - {evIdProc: "${G1}", obId: "${U1}", evType: LFC_UPDATE, evTypeProc: UPDATE}
//	    expect: NOT_FOUND
//	assertions:
//	  - type: count
//	    collection: LogbookOperation
//	    count: 1
//	  - type: header
//	    collection: LogbookOperation
//	    id: "${G1}"
//	    field: evTypeProc
//	    value: INGEST
//
// String values may reference declared ids as ${NAME}. A step without
// expect must succeed; otherwise expect is the ledger error code.
//
// # Calls
//
//   - createOperation, updateOperation: one item, or a bulk call for several
//   - createLifecycle, updateLifecycle, updateCommittedLifecycle: kind,
//     operation and items
//   - promoteLifecycle, commitLifecycle, finalizeStaging: kind and object
//   - rollbackLifecycle: kind, operation, object and staging
//   - rollbackAll: kind and operation
//   - purge: collection
//
// # Assertion Types
//
//   - count: number of documents in a collection
//   - exists, absent: presence of one document
//   - events: the evType of every event of one document, in order
//   - header: one header field of one document
package harness
