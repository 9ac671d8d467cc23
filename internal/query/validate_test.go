package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_Accepts(t *testing.T) {
	q := Query{
		Filter: And{Predicates: []Predicate{
			Eq{Field: "evTypeProc", Value: "INGEST"},
			In{Field: "outcome", Values: []any{"OK", "WARNING"}},
			Range{Field: "evDateTime", Gte: "2024-01-01T00:00:00.000"},
			EventEq{Field: "evDetData.Hash", Value: "abc"},
			Or{Predicates: []Predicate{Eq{Field: "_id", Value: "x"}, Eq{Field: "_v", Value: 2}}},
		}},
		Sort:       []Sort{{Field: "evDateTime", Desc: true}},
		Limit:      10,
		Projection: Full(),
	}

	assert.NoError(t, Validate(q))
	assert.NoError(t, Validate(Query{}))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		msg  string
	}{
		{"malformed field", Query{Filter: Eq{Field: "ev Type", Value: "x"}}, "malformed field"},
		{"sql in field", Query{Filter: Eq{Field: "a'; DROP TABLE x", Value: "x"}}, "malformed field"},
		{"tenant filter", Query{Filter: Eq{Field: "_tenant", Value: 1}}, "implicit"},
		{"float value", Query{Filter: Eq{Field: "Size", Value: 1.5}}, "unsupported value type"},
		{"empty in", Query{Filter: In{Field: "outcome"}}, "no values"},
		{"open range", Query{Filter: Range{Field: "evDateTime"}}, "no bound"},
		{"empty or", Query{Filter: Or{}}, "no predicates"},
		{"event doc key", Query{Filter: EventEq{Field: "_id", Value: "x"}}, "document key"},
		{"negative limit", Query{Limit: -1}, "negative limit"},
		{"negative offset", Query{Offset: -3}, "negative offset"},
		{"bad sort", Query{Sort: []Sort{{Field: ""}}}, "malformed field"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}
