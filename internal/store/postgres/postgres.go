// Package postgres is the PostgreSQL primary store for ledger documents.
//
// It mirrors the SQLite store table for table, with JSONB header and event
// columns. A push is one UPDATE concatenating the new events onto the array
// (events || $n) and merging header fields (header || $m), so the append and
// the version bump are atomic.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

var tables = map[ledger.Collection]string{
	ledger.Operations:            "logbook_operation",
	ledger.Units:                 "logbook_lifecycle_unit",
	ledger.ObjectGroups:          "logbook_lifecycle_object_group",
	ledger.UnitsInProcess:        "logbook_lifecycle_unit_in_process",
	ledger.ObjectGroupsInProcess: "logbook_lifecycle_object_group_in_process",
}

// SQLSTATE codes the store classifies.
const (
	codeUniqueViolation   = "23505"
	codeQueryCanceled     = "57014"
	codeLockNotAvailable  = "55P03"
	codeDeadlockDetected  = "40P01"
	codeSerializationFail = "40001"
)

// slicedEvents selects the last $1 events of the row, in append order.
const slicedEvents = `(SELECT COALESCE(jsonb_agg(e.value ORDER BY e.ord), '[]'::jsonb) ` +
	`FROM jsonb_array_elements(events) WITH ORDINALITY AS e(value, ord) ` +
	`WHERE e.ord > jsonb_array_length(events) - $1)`

// Store implements ledger.DocumentStore on a pgx pool.
type Store struct {
	pool      *pgxpool.Pool
	compilers map[ledger.Collection]*querysql.Compiler
}

var _ ledger.DocumentStore = (*Store)(nil)

// Open connects to dsn, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = 5
	poolConfig.MinConns = 1
	poolConfig.MaxConnLifetime = time.Minute * 30
	poolConfig.MaxConnIdleTime = time.Minute * 5
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{pool: pool, compilers: make(map[ledger.Collection]*querysql.Compiler, len(tables))}
	for c, table := range tables {
		s.compilers[c] = querysql.New(Layout(table))
	}
	return s, nil
}

// Layout is the querysql layout of a store table.
func Layout(table string) querysql.Layout {
	return querysql.Layout{
		Dialect: querysql.Postgres,
		Table:   table,
		Body:    "header",
		Events:  "jsonb_array_elements(events)",
		Columns: map[string]string{
			"_id":                "id",
			"_v":                 "version",
			"_lastPersistedDate": "last_persisted_date",
		},
		Integers: map[string]bool{"_v": true},
	}
}

// Close closes the pool.
func (s *Store) Close() error {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Store) table(c ledger.Collection) (string, *querysql.Compiler, error) {
	table, ok := tables[c]
	if !ok {
		return "", nil, ledger.NewInvalidArgument("no table for %s", c)
	}
	return table, s.compilers[c], nil
}

// Insert adds a new document. A duplicate id fails with
// ledger.CodeAlreadyExists.
func (s *Store) Insert(ctx context.Context, c ledger.Collection, doc *ledger.Document) error {
	table, _, err := s.table(c)
	if err != nil {
		return err
	}
	header, err := ledger.MarshalEntry(doc.Header)
	if err != nil {
		return err
	}
	events, err := ledger.MarshalEntries(doc.Events)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+table+` (id, tenant, version, last_persisted_date, header, events)
		 VALUES ($1, $2, $3, $4, $5::text::jsonb, $6::text::jsonb)`,
		doc.ID, doc.Tenant, doc.Version, doc.LastPersistedDate, header, events,
	)
	return classify(fmt.Sprintf("insert %s %s", c, doc.ID), err)
}

// Push appends events and merges header fields in one UPDATE.
func (s *Store) Push(ctx context.Context, c ledger.Collection, tenant int, p ledger.Push) error {
	table, _, err := s.table(c)
	if err != nil {
		return err
	}
	stmt, args, err := pushStatement(table, tenant, p)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return classify(fmt.Sprintf("push %s %s", c, p.ID), err)
	}
	if tag.RowsAffected() == 0 {
		return ledger.NewNotFound(fmt.Sprintf("%s not found: %s", c, p.ID))
	}
	return nil
}

// PushMany sends every push in one batch inside a transaction and returns
// the number of rows modified.
func (s *Store) PushMany(ctx context.Context, c ledger.Collection, tenant int, pushes []ledger.Push) (int64, error) {
	table, _, err := s.table(c)
	if err != nil {
		return 0, err
	}
	batch := &pgx.Batch{}
	for _, p := range pushes {
		stmt, args, err := pushStatement(table, tenant, p)
		if err != nil {
			return 0, err
		}
		batch.Queue(stmt, args...)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, classify("push many: begin tx", err)
	}
	defer tx.Rollback(ctx) // No-op if committed

	results := tx.SendBatch(ctx, batch)
	var modified int64
	for range pushes {
		tag, err := results.Exec()
		if err != nil {
			results.Close()
			return 0, classify(fmt.Sprintf("push many %s", c), err)
		}
		modified += tag.RowsAffected()
	}
	if err := results.Close(); err != nil {
		return 0, classify(fmt.Sprintf("push many %s", c), err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, classify("push many: commit", err)
	}
	return modified, nil
}

func pushStatement(table string, tenant int, p ledger.Push) (string, []any, error) {
	events, err := ledger.MarshalEntries(p.Events)
	if err != nil {
		return "", nil, err
	}
	set := ledger.Entry{}
	for k, v := range p.Set {
		set[k] = v
	}
	header, err := ledger.MarshalEntry(set)
	if err != nil {
		return "", nil, err
	}
	stmt := `UPDATE ` + table + ` SET events = events || $1::text::jsonb, header = header || $2::text::jsonb, ` +
		`version = version + 1, last_persisted_date = $3 WHERE id = $4 AND tenant = $5`
	return stmt, []any{events, header, p.At, p.ID, tenant}, nil
}

// Get reads one document; a missing document fails with
// ledger.CodeNotFound.
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

// Find returns the documents matching q ordered by q.Sort, then id.
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
	rows, err := s.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, classify(fmt.Sprintf("find %s", c), err)
	}
	defer rows.Close()

	docs := []*ledger.Document{}
	for rows.Next() {
		var (
			doc            ledger.Document
			header, events []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Tenant, &doc.Version, &doc.LastPersistedDate, &header, &events); err != nil {
			return nil, classify(fmt.Sprintf("scan %s", c), err)
		}
		if doc.Header, err = ledger.UnmarshalEntry(header); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if doc.Events, err = ledger.UnmarshalEntries(events); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		doc.Kind = c.Kind()
		docs = append(docs, &doc)
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
	err = s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM "+table+" WHERE tenant = $1 AND id = $2)",
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
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+" WHERE "+where, args...).Scan(&n); err != nil {
		return 0, classify(fmt.Sprintf("count %s", c), err)
	}
	return n, nil
}

func (s *Store) Delete(ctx context.Context, c ledger.Collection, tenant int, id string) (int64, error) {
	return s.deleteWhere(ctx, c, tenant, query.Eq{Field: query.FieldID, Value: id}, "delete "+id)
}

func (s *Store) DeleteByOperation(ctx context.Context, c ledger.Collection, tenant int, id, operationID string) (int64, error) {
	filter := query.And{Predicates: []query.Predicate{
		query.Eq{Field: query.FieldID, Value: id},
		ledger.TouchedBy(operationID),
	}}
	return s.deleteWhere(ctx, c, tenant, filter, "rollback "+id)
}

func (s *Store) DeleteAllByOperation(ctx context.Context, c ledger.Collection, tenant int, operationID string) (int64, error) {
	return s.deleteWhere(ctx, c, tenant, ledger.TouchedBy(operationID), "rollback operation "+operationID)
}

func (s *Store) Purge(ctx context.Context, c ledger.Collection, tenant int) (int64, error) {
	return s.deleteWhere(ctx, c, tenant, nil, "purge")
}

func (s *Store) deleteWhere(ctx context.Context, c ledger.Collection, tenant int, filter query.Predicate, what string) (int64, error) {
	table, compiler, err := s.table(c)
	if err != nil {
		return 0, err
	}
	where, args, err := compiler.Where(nil, tenantScope(tenant), filter)
	if err != nil {
		return 0, ledger.NewInvalidArgument("%v", err)
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM "+table+" WHERE "+where, args...)
	if err != nil {
		return 0, classify(fmt.Sprintf("%s %s", what, c), err)
	}
	return tag.RowsAffected(), nil
}

func tenantScope(tenant int) querysql.Scope {
	return querysql.Scope{Column: "tenant", Value: tenant}
}

// classify maps a pgx error onto the ledger's error codes.
func classify(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ledger.NewTimeout(what, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return ledger.NewAlreadyExists(what, err)
		case codeQueryCanceled, codeLockNotAvailable, codeDeadlockDetected, codeSerializationFail:
			return ledger.NewTimeout(what, err)
		}
		return ledger.NewUncategorized(fmt.Sprintf("%T", pgErr), pgErr.Error(), 0, err)
	}
	return ledger.NewUncategorized(fmt.Sprintf("%T", err), err.Error(), 0, err)
}
