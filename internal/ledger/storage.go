package ledger

import (
	"context"

	"github.com/roach88/ledger/internal/query"
)

// DocumentStore is the primary store of record. Implementations classify
// their native failures into *Error at this boundary; NotFound is raised only
// where documented below.
type DocumentStore interface {
	// Insert adds doc. A duplicate id fails with CodeAlreadyExists.
	Insert(ctx context.Context, c Collection, doc *Document) error

	// Get reads one document with the given (non-default) projection.
	// A missing document fails with CodeNotFound.
	Get(ctx context.Context, c Collection, tenant int, id string, p query.Projection) (*Document, error)

	// Find lists documents matching q. q.Projection is already resolved.
	Find(ctx context.Context, c Collection, tenant int, q query.Query) ([]*Document, error)

	Exists(ctx context.Context, c Collection, tenant int, id string) (bool, error)
	Count(ctx context.Context, c Collection, tenant int, filter query.Predicate) (int64, error)

	// Push appends events, overwrites header fields from p.Set, bumps the
	// version and stamps lastPersistedDate in one atomic statement. No match
	// fails with CodeNotFound.
	Push(ctx context.Context, c Collection, tenant int, p Push) error

	// PushMany applies pushes unordered and returns how many documents were
	// modified. Missing documents are not an error here.
	PushMany(ctx context.Context, c Collection, tenant int, pushes []Push) (int64, error)

	// Delete removes one document by id and returns the deleted count.
	Delete(ctx context.Context, c Collection, tenant int, id string) (int64, error)

	// DeleteByOperation removes the document id when its header or any of
	// its events carries operationID.
	DeleteByOperation(ctx context.Context, c Collection, tenant int, id, operationID string) (int64, error)

	// DeleteAllByOperation removes every document whose header or any event
	// carries operationID.
	DeleteAllByOperation(ctx context.Context, c Collection, tenant int, operationID string) (int64, error)

	// Purge removes every document of tenant in c.
	Purge(ctx context.Context, c Collection, tenant int) (int64, error)

	Close() error
}

// Push is one atomic append.
type Push struct {
	ID     string
	Events []Entry
	Set    Entry
	At     string
}

// SearchIndex is the secondary index operations are mirrored into.
// Collections are addressed by their index name; each tenant reads and
// writes through the alias "<collection>_<tenant>".
type SearchIndex interface {
	// EnsureAlias creates the tenant alias and its backing index if missing
	// and returns alias -> concrete index name.
	EnsureAlias(ctx context.Context, collection string, tenant int) (map[string]string, error)

	// DeleteAlias drops the alias and everything indexed behind it.
	DeleteAlias(ctx context.Context, collection string, tenant int) error

	// Index writes (or fully replaces) the body stored under id.
	Index(ctx context.Context, collection string, tenant int, id string, body map[string]any) error

	// Search returns matching ids ordered by q.Sort then id.
	Search(ctx context.Context, collection string, tenant int, q query.Query) ([]string, error)

	Close() error
}
