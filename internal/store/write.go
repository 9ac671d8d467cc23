package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
)

// Insert adds a new document. A duplicate id fails with
// ledger.CodeAlreadyExists; for staging tables that is how a second
// process learns the object is already held.
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO `+table+`
		(id, tenant, version, last_persisted_date, header, events)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		doc.ID,
		doc.Tenant,
		doc.Version,
		doc.LastPersistedDate,
		header,
		events,
	)
	return classify(fmt.Sprintf("insert %s %s", c, doc.ID), err)
}

// Push appends events and sets header fields in a single UPDATE, so the
// append is atomic with the version bump. No matching row fails with
// ledger.CodeNotFound.
func (s *Store) Push(ctx context.Context, c ledger.Collection, tenant int, p ledger.Push) error {
	table, _, err := s.table(c)
	if err != nil {
		return err
	}
	stmt, args, err := pushStatement(table, tenant, p)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return classify(fmt.Sprintf("push %s %s", c, p.ID), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(fmt.Sprintf("push %s %s", c, p.ID), err)
	}
	if n == 0 {
		return ledger.NewNotFound(fmt.Sprintf("%s not found: %s", c, p.ID))
	}
	return nil
}

// PushMany applies every push in one transaction and returns the number of
// rows modified. Pushes whose document is missing are skipped.
func (s *Store) PushMany(ctx context.Context, c ledger.Collection, tenant int, pushes []ledger.Push) (int64, error) {
	table, _, err := s.table(c)
	if err != nil {
		return 0, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("push many: begin tx", err)
	}
	defer tx.Rollback() // No-op if committed

	var modified int64
	for _, p := range pushes {
		stmt, args, err := pushStatement(table, tenant, p)
		if err != nil {
			return 0, err
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return 0, classify(fmt.Sprintf("push many %s %s", c, p.ID), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, classify("push many: rows affected", err)
		}
		modified += n
	}

	if err := tx.Commit(); err != nil {
		return 0, classify("push many: commit", err)
	}
	return modified, nil
}

// pushStatement builds the UPDATE for one push. Each event is appended with
// its own '$[#]' path so a batch keeps its order.
func pushStatement(table string, tenant int, p ledger.Push) (string, []any, error) {
	var sets []string
	var args []any

	if len(p.Events) > 0 {
		paths := make([]string, len(p.Events))
		for i, ev := range p.Events {
			encoded, err := ledger.MarshalEntry(ev)
			if err != nil {
				return "", nil, err
			}
			paths[i] = "'$[#]', json(?)"
			args = append(args, encoded)
		}
		sets = append(sets, "events = json_insert(events, "+strings.Join(paths, ", ")+")")
	}

	if len(p.Set) > 0 {
		keys := sortedKeys(p.Set)
		paths := make([]string, len(keys))
		for i, key := range keys {
			paths[i] = "?, ?"
			args = append(args, "$."+key, p.Set[key])
		}
		sets = append(sets, "header = json_set(header, "+strings.Join(paths, ", ")+")")
	}

	sets = append(sets, "version = version + 1", "last_persisted_date = ?")
	args = append(args, p.At, p.ID, tenant)

	stmt := "UPDATE " + table + " SET " + strings.Join(sets, ", ") + " WHERE id = ? AND tenant = ?"
	return stmt, args, nil
}

// Delete removes one document and returns the number of rows deleted.
func (s *Store) Delete(ctx context.Context, c ledger.Collection, tenant int, id string) (int64, error) {
	return s.deleteWhere(ctx, c, tenant, query.Eq{Field: query.FieldID, Value: id}, "delete "+id)
}

// DeleteByOperation removes document id if operationID appears in its
// header or in any of its events.
func (s *Store) DeleteByOperation(ctx context.Context, c ledger.Collection, tenant int, id, operationID string) (int64, error) {
	filter := query.And{Predicates: []query.Predicate{
		query.Eq{Field: query.FieldID, Value: id},
		ledger.TouchedBy(operationID),
	}}
	return s.deleteWhere(ctx, c, tenant, filter, "rollback "+id)
}

// DeleteAllByOperation removes every document operationID touched.
func (s *Store) DeleteAllByOperation(ctx context.Context, c ledger.Collection, tenant int, operationID string) (int64, error) {
	return s.deleteWhere(ctx, c, tenant, ledger.TouchedBy(operationID), "rollback operation "+operationID)
}

// Purge removes all of tenant's documents in c.
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
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+where, args...)
	if err != nil {
		return 0, classify(fmt.Sprintf("%s %s", what, c), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(fmt.Sprintf("%s %s", what, c), err)
	}
	return n, nil
}
