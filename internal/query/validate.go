package query

import (
	"fmt"
	"regexp"
	"strings"
)

var fieldPattern = regexp.MustCompile(`^[_A-Za-z][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)

// Validate checks a query before it reaches a backend compiler. It rejects
// unknown predicate types, malformed field paths, non-scalar values, empty
// disjunctions, tenant filters and negative paging.
func Validate(q Query) error {
	v := &validator{}
	v.predicate(q.Filter)
	for _, s := range q.Sort {
		v.field("sort", s.Field)
	}
	if q.Offset < 0 {
		v.add("negative offset %d", q.Offset)
	}
	if q.Limit < 0 {
		v.add("negative limit %d", q.Limit)
	}
	if q.Projection.last < 0 {
		v.add("negative slice %d", q.Projection.last)
	}
	if len(v.problems) == 0 {
		return nil
	}
	return fmt.Errorf("invalid query: %s", strings.Join(v.problems, "; "))
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) field(where, name string) {
	if !fieldPattern.MatchString(name) {
		v.add("%s: malformed field %q", where, name)
		return
	}
	if name == FieldTenant {
		v.add("%s: %s is implicit and cannot be filtered", where, FieldTenant)
	}
}

func (v *validator) value(where string, val any) {
	switch val.(type) {
	case string, int, int64, bool:
	default:
		v.add("%s: unsupported value type %T", where, val)
	}
}

func (v *validator) predicate(p Predicate) {
	if p == nil {
		return
	}
	switch pred := p.(type) {
	case Eq:
		v.field("eq", pred.Field)
		v.value("eq "+pred.Field, pred.Value)
	case *Eq:
		v.predicate(*pred)
	case In:
		v.field("in", pred.Field)
		if len(pred.Values) == 0 {
			v.add("in %s: no values", pred.Field)
		}
		for _, val := range pred.Values {
			v.value("in "+pred.Field, val)
		}
	case *In:
		v.predicate(*pred)
	case Range:
		v.field("range", pred.Field)
		if pred.Gte == nil && pred.Lte == nil {
			v.add("range %s: no bound", pred.Field)
		}
		if pred.Gte != nil {
			v.value("range "+pred.Field, pred.Gte)
		}
		if pred.Lte != nil {
			v.value("range "+pred.Field, pred.Lte)
		}
	case *Range:
		v.predicate(*pred)
	case EventEq:
		v.field("event", pred.Field)
		if strings.HasPrefix(pred.Field, "_") {
			v.add("event: %q is a document key, not an event field", pred.Field)
		}
		v.value("event "+pred.Field, pred.Value)
	case *EventEq:
		v.predicate(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *And:
		v.predicate(*pred)
	case Or:
		if len(pred.Predicates) == 0 {
			v.add("or: no predicates")
		}
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *Or:
		v.predicate(*pred)
	default:
		v.add("unsupported predicate type %T", p)
	}
}
