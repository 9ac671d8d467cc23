package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/ledger/internal/ledger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ledger.Code
	}{
		{"unique", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, ledger.CodeAlreadyExists},
		{"primary key", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, ledger.CodeAlreadyExists},
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, ledger.CodeTimeout},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, ledger.CodeTimeout},
		{"wrapped busy", fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), ledger.CodeTimeout},
		{"deadline", context.DeadlineExceeded, ledger.CodeTimeout},
		{"check", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck}, ledger.CodeUncategorized},
		{"other", errors.New("disk on fire"), ledger.CodeUncategorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("insert x", tt.err)
			assert.Equal(t, tt.want, ledger.CodeOf(err))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.NoError(t, classify("noop", nil))
}

func TestClassify_UncategorizedKeepsNativeCode(t *testing.T) {
	err := classify("insert x", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintCheck})

	var le *ledger.Error
	if assert.ErrorAs(t, err, &le) {
		assert.Equal(t, int(sqlite3.ErrConstraintCheck), le.Native)
		assert.Equal(t, "sqlite3.Error", le.ClassName)
	}
}
