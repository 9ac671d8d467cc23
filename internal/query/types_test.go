package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjection(t *testing.T) {
	assert.True(t, Projection{}.IsDefault())
	assert.True(t, Full().IsFull())
	assert.False(t, Full().IsDefault())
	assert.Equal(t, 2, Sliced(2).Last())

	assert.Equal(t, Sliced(1), Projection{}.Or(Sliced(1)))
	assert.Equal(t, Full(), Full().Or(Sliced(1)))

	assert.Equal(t, "full", Full().String())
	assert.Equal(t, "last2", Sliced(2).String())
	assert.Equal(t, "default", Projection{}.String())
}

func TestTargets(t *testing.T) {
	tests := []struct {
		name   string
		filter Predicate
		want   bool
	}{
		{"top-level eq", Eq{Field: "evTypeProc", Value: "TRACEABILITY"}, true},
		{"pointer eq", &Eq{Field: "evTypeProc", Value: "TRACEABILITY"}, true},
		{"other value", Eq{Field: "evTypeProc", Value: "INGEST"}, false},
		{"inside and", And{Predicates: []Predicate{
			Eq{Field: "outcome", Value: "OK"},
			And{Predicates: []Predicate{Eq{Field: "evTypeProc", Value: "TRACEABILITY"}}},
		}}, true},
		{"inside or", Or{Predicates: []Predicate{Eq{Field: "evTypeProc", Value: "TRACEABILITY"}}}, false},
		{"event predicate", EventEq{Field: "evTypeProc", Value: "TRACEABILITY"}, false},
		{"non string value", Eq{Field: "evTypeProc", Value: []any{"TRACEABILITY"}}, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Targets(tt.filter, "evTypeProc", "TRACEABILITY"))
		})
	}
}

func TestByID(t *testing.T) {
	p := ByID("a", "b")
	in, ok := p.(In)
	require.True(t, ok)
	assert.Equal(t, FieldID, in.Field)
	assert.Equal(t, []any{"a", "b"}, in.Values)
}
