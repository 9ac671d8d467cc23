// Package ledger records the audit trail of an archival platform.
//
// Two ledger kinds are kept. An operation documents one workflow execution
// and is appended to in place; each write is mirrored into a search index.
// A lifecycle documents one archival unit or object group and is mutated
// only through a staging collection: the first update of a committed
// lifecycle opens a staging row, later updates append to it, and a commit
// moves the staged events onto the committed document in one push.
//
// The staging collections enforce one row per object id. That identity
// constraint is the only concurrency control: a second process that tries
// to open the same staging row fails with CodeAlreadyExists.
//
// Every document is tenant scoped and has the shape
//
//	{_id, _tenant, _v, _lastPersistedDate, <header fields>, events: [...]}
//
// where events are append-only and share the header's field set.
package ledger
