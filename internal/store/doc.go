// Package store provides the SQLite primary store for ledger documents.
//
// Each collection is one table keyed by document id, with the tenant, the
// version counter and lastPersistedDate as columns and the header and the
// event list as JSON text:
//   - header: JSON object of header fields
//   - events: JSON array, appended with json_insert(events, '$[#]', ...)
//
// # Patterns
//
// Atomic append
//   - A push is one UPDATE that appends the events, sets header fields,
//     bumps version and stamps last_persisted_date
//   - No cross-statement transaction is needed for a single document
//
// Staging exclusion
//   - The staging tables' PRIMARY KEY(id) rejects a second insert for an
//     object, classified as ledger.CodeAlreadyExists
//
// Deterministic query results
//   - All queries end with: ORDER BY ..., id ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Driver errors are classified at this boundary: constraint violations
// become AlreadyExists, busy and interrupted statements become Timeout, and
// anything else is Uncategorized with the SQLite extended code.
package store
