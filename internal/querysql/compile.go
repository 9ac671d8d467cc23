// Package querysql compiles query filters into parameterized SQL over JSON
// document columns.
//
// Two dialects share one compiler: SQLite with the JSON1 functions, used by
// the primary store and by the search index, and PostgreSQL with JSONB.
// Values and JSON paths are always bound as parameters, never interpolated.
// Every SELECT ends with the document id as ordering tiebreaker so paging is
// deterministic.
package querysql

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/ledger/internal/query"
)

// Dialect selects placeholder style and JSON operators.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// Layout describes where a backend keeps the parts of a document.
type Layout struct {
	Dialect Dialect
	Table   string

	// Body is the JSON column holding header fields.
	Body string

	// Events is the table-valued call that yields one row per event, exposing
	// the event as column "value", e.g. "json_each(events)".
	Events string

	// Columns maps reserved document keys to real columns. "_id" is required.
	Columns map[string]string

	// Integers lists the reserved keys whose column is an integer. Values
	// compared against them are bound as int64.
	Integers map[string]bool
}

// Scope restricts every statement to one partition, typically the tenant
// column of a store table or the concrete index behind an alias.
type Scope struct {
	Column string
	Value  any
}

// Compiler turns queries into SQL for one layout. It holds no per-call state
// and is safe for concurrent use.
type Compiler struct {
	layout Layout
}

// New returns a compiler for layout.
func New(layout Layout) *Compiler {
	return &Compiler{layout: layout}
}

// Select compiles a full SELECT. columns may contain placeholders whose
// values are passed in columnArgs; they are numbered first.
func (c *Compiler) Select(columns string, columnArgs []any, scope Scope, q query.Query) (string, []any, error) {
	b := c.builder(columnArgs)

	where, err := b.where(scope, q.Filter)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT %s FROM %s WHERE %s", columns, c.layout.Table, where)

	order, err := b.orderBy(q.Sort)
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(" ORDER BY ")
	sb.WriteString(order)

	if q.Limit > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(b.bind(q.Limit))
	} else if q.Offset > 0 && c.layout.Dialect == SQLite {
		sb.WriteString(" LIMIT -1")
	}
	if q.Offset > 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(b.bind(q.Offset))
	}

	return sb.String(), b.params, nil
}

// Where compiles only the scoped condition, for DELETE and COUNT statements.
// Placeholders are numbered after len(leading) leading parameters.
func (c *Compiler) Where(leading []any, scope Scope, filter query.Predicate) (string, []any, error) {
	b := c.builder(leading)
	where, err := b.where(scope, filter)
	if err != nil {
		return "", nil, err
	}
	return where, b.params, nil
}

// FieldExpr returns the SQL expression for a document field and its bound
// arguments, numbered after len(leading) leading parameters.
func (c *Compiler) FieldExpr(leading []any, field string) (string, []any) {
	b := c.builder(leading)
	expr := b.field(c.layout.Body, field)
	return expr, b.params
}

func (c *Compiler) builder(leading []any) *builder {
	params := make([]any, len(leading), len(leading)+8)
	copy(params, leading)
	return &builder{layout: c.layout, params: params}
}

type builder struct {
	layout Layout
	params []any
}

func (b *builder) bind(v any) string {
	b.params = append(b.params, v)
	if b.layout.Dialect == Postgres {
		return "$" + strconv.Itoa(len(b.params))
	}
	return "?"
}

func (b *builder) where(scope Scope, filter query.Predicate) (string, error) {
	var parts []string
	if scope.Column != "" {
		parts = append(parts, scope.Column+" = "+b.bind(scope.Value))
	}
	if filter != nil {
		sql, err := b.predicate(filter)
		if err != nil {
			return "", fmt.Errorf("compile filter: %w", err)
		}
		parts = append(parts, sql)
	}
	if len(parts) == 0 {
		return "1 = 1", nil
	}
	return strings.Join(parts, " AND "), nil
}

func (b *builder) orderBy(sorts []query.Sort) (string, error) {
	id, ok := b.layout.Columns[query.FieldID]
	if !ok {
		return "", fmt.Errorf("layout for %s has no %s column", b.layout.Table, query.FieldID)
	}
	parts := make([]string, 0, len(sorts)+1)
	for _, s := range sorts {
		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		parts = append(parts, b.field(b.layout.Body, s.Field)+dir)
	}
	if b.layout.Dialect == SQLite {
		parts = append(parts, id+" ASC COLLATE BINARY")
	} else {
		parts = append(parts, id+` ASC`)
	}
	return strings.Join(parts, ", "), nil
}

// field resolves a header field (or a reserved key) within the JSON column src.
func (b *builder) field(src, name string) string {
	if col, ok := b.layout.Columns[name]; ok && src == b.layout.Body {
		return col
	}
	if b.layout.Dialect == Postgres {
		return "(" + src + " #>> " + b.bind(strings.Split(name, ".")) + "::text[])"
	}
	return "json_extract(" + src + ", " + b.bind("$."+name) + ")"
}

// compare renders "field op value" for name within src.
func (b *builder) compare(src, name, op string, v any) (string, error) {
	expr := b.field(src, name)
	holder, err := b.value(src, name, v)
	if err != nil {
		return "", err
	}
	return expr + " " + op + " " + holder, nil
}

func (b *builder) value(src, name string, v any) (string, error) {
	if src == b.layout.Body && b.layout.Integers[name] {
		n, err := integer(v)
		if err != nil {
			return "", fmt.Errorf("%s: %w", name, err)
		}
		return b.bind(n), nil
	}
	if b.layout.Dialect == Postgres {
		// #>> yields text, so compare against the text form
		return b.bind(fmt.Sprint(v)), nil
	}
	return b.bind(v), nil
}

func integer(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

func (b *builder) predicate(p query.Predicate) (string, error) {
	switch pred := p.(type) {
	case query.Eq:
		return b.compare(b.layout.Body, pred.Field, "=", pred.Value)
	case *query.Eq:
		return b.predicate(*pred)
	case query.In:
		if len(pred.Values) == 0 {
			return "", fmt.Errorf("in %s: no values", pred.Field)
		}
		expr := b.field(b.layout.Body, pred.Field)
		holders := make([]string, len(pred.Values))
		for i, v := range pred.Values {
			holder, err := b.value(b.layout.Body, pred.Field, v)
			if err != nil {
				return "", err
			}
			holders[i] = holder
		}
		return expr + " IN (" + strings.Join(holders, ", ") + ")", nil
	case *query.In:
		return b.predicate(*pred)
	case query.Range:
		var parts []string
		if pred.Gte != nil {
			sql, err := b.compare(b.layout.Body, pred.Field, ">=", pred.Gte)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		if pred.Lte != nil {
			sql, err := b.compare(b.layout.Body, pred.Field, "<=", pred.Lte)
			if err != nil {
				return "", err
			}
			parts = append(parts, sql)
		}
		if len(parts) == 0 {
			return "", fmt.Errorf("range %s: no bound", pred.Field)
		}
		return "(" + strings.Join(parts, " AND ") + ")", nil
	case *query.Range:
		return b.predicate(*pred)
	case query.EventEq:
		return b.eventEq(pred)
	case *query.EventEq:
		return b.eventEq(*pred)
	case query.And:
		return b.join(pred.Predicates, " AND ", "1 = 1")
	case *query.And:
		return b.predicate(*pred)
	case query.Or:
		if len(pred.Predicates) == 0 {
			return "", fmt.Errorf("or: no predicates")
		}
		return b.join(pred.Predicates, " OR ", "")
	case *query.Or:
		return b.predicate(*pred)
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (b *builder) eventEq(pred query.EventEq) (string, error) {
	if b.layout.Events == "" {
		return "", fmt.Errorf("layout for %s has no events source", b.layout.Table)
	}
	var alias string
	if b.layout.Dialect == Postgres {
		alias = " AS ev(value)"
	} else {
		alias = " AS ev"
	}
	cond, err := b.compare("ev.value", pred.Field, "=", pred.Value)
	if err != nil {
		return "", err
	}
	return "EXISTS (SELECT 1 FROM " + b.layout.Events + alias + " WHERE " + cond + ")", nil
}

func (b *builder) join(preds []query.Predicate, sep, empty string) (string, error) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	for _, sub := range preds {
		sql, err := b.predicate(sub)
		if err != nil {
			return "", err
		}
		parts = append(parts, sql)
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}
