// Package query is the filter, sort and projection representation shared by
// the ledger engine and its backends.
//
// Predicates are sealed: only types in this package implement Predicate, so
// every backend compiler can switch over them exhaustively.
//
//	Filter ─► querysql (SQLite JSON1, PostgreSQL JSONB) ─► primary store
//	       └► querysql (SQLite JSON1 over indexed bodies) ─► search index
//
// Field names are wire names. Header fields are addressed directly
// ("evTypeProc"), nested detail data with dots ("evDetData.Hash"). The
// reserved document keys "_id", "_v" and "_lastPersistedDate" map to
// columns. Tenant is never a filter field: every compiled query is scoped to
// exactly one tenant by the caller.
//
// # Projections
//
// A listing returns either the full event history or a slice holding the
// header plus the last n events. The zero Projection means "the collection's
// default slice", which is two events for operations and one for lifecycles.
package query
