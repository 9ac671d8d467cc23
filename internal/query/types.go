package query

import "strconv"

// Predicate is a filter condition. Sealed to this package.
type Predicate interface {
	predicateNode()
}

// Eq matches documents whose header field equals Value.
type Eq struct {
	Field string
	Value any
}

func (Eq) predicateNode() {}

// In matches documents whose header field equals one of Values.
type In struct {
	Field  string
	Values []any
}

func (In) predicateNode() {}

// Range matches Gte <= field <= Lte. A nil bound is open.
type Range struct {
	Field string
	Gte   any
	Lte   any
}

func (Range) predicateNode() {}

// EventEq matches documents where at least one event has Field equal to Value.
type EventEq struct {
	Field string
	Value any
}

func (EventEq) predicateNode() {}

// And is a conjunction. An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. It must not be empty.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Sort orders results by a header field. The document id is always appended
// as the final tiebreaker.
type Sort struct {
	Field string
	Desc  bool
}

// Projection selects how much event history a read returns.
type Projection struct {
	full bool
	last int
}

// Full returns every event.
func Full() Projection { return Projection{full: true} }

// Sliced returns the header plus the last n events.
func Sliced(n int) Projection { return Projection{last: n} }

// IsFull reports whether p returns the whole history.
func (p Projection) IsFull() bool { return p.full }

// Last is the slice width, zero for Full or the default projection.
func (p Projection) Last() int { return p.last }

// IsDefault reports whether p defers to the collection's default slice.
func (p Projection) IsDefault() bool { return !p.full && p.last == 0 }

// Or returns p, or fallback when p is the default projection.
func (p Projection) Or(fallback Projection) Projection {
	if p.IsDefault() {
		return fallback
	}
	return p
}

func (p Projection) String() string {
	switch {
	case p.full:
		return "full"
	case p.last == 0:
		return "default"
	default:
		return "last" + strconv.Itoa(p.last)
	}
}

// Query is a tenant-scoped listing request.
type Query struct {
	Filter     Predicate
	Sort       []Sort
	Offset     int
	Limit      int // 0 = unlimited
	Projection Projection
}

// ByID builds the filter matching any of ids.
func ByID(ids ...string) Predicate {
	values := make([]any, len(ids))
	for i, id := range ids {
		values[i] = id
	}
	return In{Field: FieldID, Values: values}
}

// Reserved document keys that map to columns rather than header fields.
const (
	FieldID                = "_id"
	FieldVersion           = "_v"
	FieldLastPersistedDate = "_lastPersistedDate"
	FieldTenant            = "_tenant"
)

// Targets reports whether p requires field == value for every match: an Eq
// at the top level or inside a (possibly nested) And. Matches under an Or do
// not count.
func Targets(p Predicate, field, value string) bool {
	switch pred := p.(type) {
	case Eq:
		return pred.Field == field && pred.Value == value
	case *Eq:
		return pred != nil && pred.Field == field && pred.Value == value
	case And:
		return anyTargets(pred.Predicates, field, value)
	case *And:
		return pred != nil && anyTargets(pred.Predicates, field, value)
	default:
		return false
	}
}

func anyTargets(preds []Predicate, field, value string) bool {
	for _, sub := range preds {
		if Targets(sub, field, value) {
			return true
		}
	}
	return false
}
