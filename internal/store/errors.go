package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/ledger/internal/ledger"
)

// classify maps a driver error onto the ledger's error codes. what names the
// statement and the document it targeted.
func classify(what string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ledger.NewTimeout(what, err)
	}
	var se sqlite3.Error
	if errors.As(err, &se) {
		switch {
		case se.ExtendedCode == sqlite3.ErrConstraintUnique, se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return ledger.NewAlreadyExists(what, err)
		case se.Code == sqlite3.ErrBusy, se.Code == sqlite3.ErrLocked, se.Code == sqlite3.ErrInterrupt:
			return ledger.NewTimeout(what, err)
		}
		return ledger.NewUncategorized(fmt.Sprintf("%T", se), se.Error(), int(se.ExtendedCode), err)
	}
	return ledger.NewUncategorized(fmt.Sprintf("%T", err), err.Error(), 0, err)
}
