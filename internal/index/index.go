// Package index is the search index operations are mirrored into.
//
// Each collection is addressed per tenant through an alias
// "<collection>_<tenant>" that points at one concrete index named
// "<alias>_<uuid>". Documents are stored as JSON bodies keyed by
// (index, id) and searched with the same filter compiler as the primary
// store. Bodies are checked and normalized against the CUE mapping of
// their collection before they are written.
package index

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/querysql"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS aliases (
    alias      TEXT    NOT NULL PRIMARY KEY,
    collection TEXT    NOT NULL,
    tenant     INTEGER NOT NULL,
    index_name TEXT    NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS documents (
    index_name TEXT NOT NULL,
    id         TEXT NOT NULL,
    body       TEXT NOT NULL,
    PRIMARY KEY (index_name, id)
);
`

// ErrNoAlias is returned when a tenant alias has not been created.
var ErrNoAlias = errors.New("alias does not exist")

// Index is a SQLite-backed search index. It implements ledger.SearchIndex.
type Index struct {
	db       *sql.DB
	mappings map[string]Mapping
	compiler *querysql.Compiler
}

var _ ledger.SearchIndex = (*Index)(nil)

// Open opens or creates the index database at path and loads the embedded
// mappings.
func Open(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("index path is required")
	}
	mappings, err := LoadMappings()
	if err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping index db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply index schema: %w", err)
	}

	return &Index{
		db:       db,
		mappings: mappings,
		compiler: querysql.New(Layout()),
	}, nil
}

// Layout is the querysql layout of the documents table.
func Layout() querysql.Layout {
	return querysql.Layout{
		Dialect: querysql.SQLite,
		Table:   "documents",
		Body:    "body",
		Events:  "json_each(body, '$.events')",
		Columns: map[string]string{"_id": "id"},
	}
}

// Close closes the index database.
func (x *Index) Close() error {
	if x == nil || x.db == nil {
		return nil
	}
	return x.db.Close()
}

// AliasName is the tenant alias of collection.
func AliasName(collection string, tenant int) string {
	return collection + "_" + strconv.Itoa(tenant)
}

// EnsureAlias creates the alias and its concrete index when missing and
// returns alias -> index name.
func (x *Index) EnsureAlias(ctx context.Context, collection string, tenant int) (map[string]string, error) {
	alias := AliasName(collection, tenant)
	name, err := x.resolve(ctx, alias)
	if err == nil {
		return map[string]string{alias: name}, nil
	}
	if !errors.Is(err, ErrNoAlias) {
		return nil, err
	}

	name = alias + "_" + uuid.NewString()
	_, err = x.db.ExecContext(ctx,
		`INSERT INTO aliases (alias, collection, tenant, index_name) VALUES (?, ?, ?, ?)`,
		alias, collection, tenant, name,
	)
	if err != nil && !isUniqueViolation(err) {
		return nil, fmt.Errorf("create alias %s: %w", alias, err)
	}
	// a concurrent caller may have won; read back whichever index is live
	name, err = x.resolve(ctx, alias)
	if err != nil {
		return nil, err
	}
	return map[string]string{alias: name}, nil
}

// DeleteAlias drops the alias and every document of its index.
func (x *Index) DeleteAlias(ctx context.Context, collection string, tenant int) error {
	alias := AliasName(collection, tenant)
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete alias %s: begin tx: %w", alias, err)
	}
	defer tx.Rollback() // No-op if committed

	var name string
	err = tx.QueryRowContext(ctx, `SELECT index_name FROM aliases WHERE alias = ?`, alias).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("delete alias %s: %w", alias, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE index_name = ?`, name); err != nil {
		return fmt.Errorf("delete alias %s: documents: %w", alias, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM aliases WHERE alias = ?`, alias); err != nil {
		return fmt.Errorf("delete alias %s: %w", alias, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete alias %s: commit: %w", alias, err)
	}
	return nil
}

// Index writes body under id, replacing any previous body. The body is
// validated against the collection's mapping first.
func (x *Index) Index(ctx context.Context, collection string, tenant int, id string, body map[string]any) error {
	name, err := x.resolve(ctx, AliasName(collection, tenant))
	if err != nil {
		return err
	}
	if m, ok := x.mappings[collection]; ok {
		if err := m.Apply(body); err != nil {
			return fmt.Errorf("index %s %s: %w", collection, id, err)
		}
	}
	encoded, err := encodeBody(body)
	if err != nil {
		return fmt.Errorf("index %s %s: %w", collection, id, err)
	}
	_, err = x.db.ExecContext(ctx, `
		INSERT INTO documents (index_name, id, body) VALUES (?, ?, ?)
		ON CONFLICT(index_name, id) DO UPDATE SET body = excluded.body
	`, name, id, encoded)
	if err != nil {
		return fmt.Errorf("index %s %s: %w", collection, id, err)
	}
	return nil
}

// Search returns the ids of the documents matching q, ordered by q.Sort and
// then id. Paging applies; the projection is ignored.
func (x *Index) Search(ctx context.Context, collection string, tenant int, q query.Query) ([]string, error) {
	name, err := x.resolve(ctx, AliasName(collection, tenant))
	if err != nil {
		return nil, err
	}
	stmt, args, err := x.compiler.Select("id", nil, querysql.Scope{Column: "index_name", Value: name}, q)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	rows, err := x.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("search %s: scan: %w", collection, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	return ids, nil
}

// Get returns the indexed body of id.
func (x *Index) Get(ctx context.Context, collection string, tenant int, id string) (map[string]any, error) {
	name, err := x.resolve(ctx, AliasName(collection, tenant))
	if err != nil {
		return nil, err
	}
	var body string
	err = x.db.QueryRowContext(ctx, `SELECT body FROM documents WHERE index_name = ? AND id = ?`, name, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.NewNotFound(fmt.Sprintf("%s not indexed: %s", collection, id))
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id, err)
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("get %s %s: %w", collection, id, err)
	}
	return out, nil
}

// Count returns the number of documents behind the tenant alias.
func (x *Index) Count(ctx context.Context, collection string, tenant int) (int64, error) {
	name, err := x.resolve(ctx, AliasName(collection, tenant))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE index_name = ?`, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

func (x *Index) resolve(ctx context.Context, alias string) (string, error) {
	var name string
	err := x.db.QueryRowContext(ctx, `SELECT index_name FROM aliases WHERE alias = ?`, alias).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", alias, ErrNoAlias)
	}
	if err != nil {
		return "", fmt.Errorf("resolve alias %s: %w", alias, err)
	}
	return name, nil
}

// encodeBody writes body as JSON without HTML escaping.
func encodeBody(body map[string]any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
