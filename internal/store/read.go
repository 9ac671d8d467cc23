package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/querysql"
)

// slicedEvents selects the last ? events of the row, in append order.
const slicedEvents = `(SELECT json_group_array(json(value)) FROM json_each(events) WHERE key >= json_array_length(events) - ?)`

// Get reads one document. The projection must already be resolved; a
// missing document fails with ledger.CodeNotFound.
func (s *Store) Get(ctx context.Context, c ledger.Collection, tenant int, id string, p query.Projection) (*ledger.Document, error) {
	docs, err := s.Find(ctx, c, tenant, query.Query{
		Filter:     query.Eq{Field: query.FieldID, Value: id},
		Limit:      1,
		Projection: p,
	})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, ledger.NewNotFound(fmt.Sprintf("%s not found: %s", c, id))
	}
	return docs[0], nil
}

// Find returns the documents matching q.
// Results are ordered by q.Sort, then id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Find(ctx context.Context, c ledger.Collection, tenant int, q query.Query) ([]*ledger.Document, error) {
	_, compiler, err := s.table(c)
	if err != nil {
		return nil, err
	}
	columns := "id, tenant, version, last_persisted_date, header, events"
	var columnArgs []any
	if !q.Projection.IsFull() && q.Projection.Last() > 0 {
		columns = "id, tenant, version, last_persisted_date, header, " + slicedEvents
		columnArgs = []any{q.Projection.Last()}
	}

	stmt, args, err := compiler.Select(columns, columnArgs, tenantScope(tenant), q)
	if err != nil {
		return nil, ledger.NewInvalidArgument("%v", err)
	}
	rows, err := s.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s", c), err)
	}
	defer rows.Close()

	docs := []*ledger.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows, c.Kind())
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(fmt.Sprintf("iterate %s", c), err)
	}
	return docs, nil
}

// Exists reports whether id is stored for tenant.
func (s *Store) Exists(ctx context.Context, c ledger.Collection, tenant int, id string) (bool, error) {
	table, _, err := s.table(c)
	if err != nil {
		return false, err
	}
	var found bool
	err = s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+table+" WHERE tenant = ? AND id = ?)",
		tenant, id,
	).Scan(&found)
	if err != nil {
		return false, classify(fmt.Sprintf("exists %s %s", c, id), err)
	}
	return found, nil
}

// Count counts tenant's documents matching filter. A nil filter counts all.
func (s *Store) Count(ctx context.Context, c ledger.Collection, tenant int, filter query.Predicate) (int64, error) {
	table, compiler, err := s.table(c)
	if err != nil {
		return 0, err
	}
	where, args, err := compiler.Where(nil, tenantScope(tenant), filter)
	if err != nil {
		return 0, ledger.NewInvalidArgument("%v", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&n); err != nil {
		return 0, classify(fmt.Sprintf("count %s", c), err)
	}
	return n, nil
}

func scanDocument(rows *sql.Rows, kind ledger.Kind) (*ledger.Document, error) {
	var (
		doc            ledger.Document
		header, events string
	)
	if err := rows.Scan(&doc.ID, &doc.Tenant, &doc.Version, &doc.LastPersistedDate, &header, &events); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	var err error
	if doc.Header, err = ledger.UnmarshalEntry([]byte(header)); err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	if doc.Events, err = ledger.UnmarshalEntries([]byte(events)); err != nil {
		return nil, fmt.Errorf("document %s: %w", doc.ID, err)
	}
	doc.Kind = kind
	return &doc, nil
}

func tenantScope(tenant int) querysql.Scope {
	return querysql.Scope{Column: "tenant", Value: tenant}
}

func sortedKeys(e ledger.Entry) []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
