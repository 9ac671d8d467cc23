package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added expression indexes on the header process id for rollback
const currentSchemaVersion = 1

// tables maps each collection to its table.
var tables = map[ledger.Collection]string{
	ledger.Operations:            "logbook_operation",
	ledger.Units:                 "logbook_lifecycle_unit",
	ledger.ObjectGroups:          "logbook_lifecycle_object_group",
	ledger.UnitsInProcess:        "logbook_lifecycle_unit_in_process",
	ledger.ObjectGroupsInProcess: "logbook_lifecycle_object_group_in_process",
}

// Store is the SQLite primary store. It implements ledger.DocumentStore.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db        *sql.DB
	compilers map[ledger.Collection]*querysql.Compiler
}

var _ ledger.DocumentStore = (*Store)(nil)

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{db: db, compilers: make(map[ledger.Collection]*querysql.Compiler, len(tables))}
	for c, table := range tables {
		s.compilers[c] = querysql.New(Layout(table))
	}
	return s, nil
}

// Layout is the querysql layout of a store table.
func Layout(table string) querysql.Layout {
	return querysql.Layout{
		Dialect: querysql.SQLite,
		Table:   table,
		Body:    "header",
		Events:  "json_each(events)",
		Columns: map[string]string{
			"_id":                "id",
			"_v":                 "version",
			"_lastPersistedDate": "last_persisted_date",
		},
		Integers: map[string]bool{"_v": true},
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) table(c ledger.Collection) (string, *querysql.Compiler, error) {
	table, ok := tables[c]
	if !ok {
		return "", nil, ledger.NewInvalidArgument("no table for %s", c)
	}
	return table, s.compilers[c], nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes the header process id of every table. Rollback and
// by-operation reads filter on it.
func migrateToV1(db *sql.DB) error {
	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_%s_process ON %s(tenant, json_extract(header, '$.evIdProc'))`,
			table, table,
		))
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
