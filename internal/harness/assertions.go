package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Index    int
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %d (%s): expected %s, got %s", e.Index, e.Type, e.Expected, e.Actual)
}

// evaluate checks every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var failures []string
	for i, a := range assertions {
		if err := h.check(ctx, i, a); err != nil {
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func (h *Harness) check(ctx context.Context, index int, a Assertion) error {
	c, err := ledger.ParseCollection(a.Collection)
	if err != nil {
		return err
	}
	b, err := h.engine.Registry().Lookup(c)
	if err != nil {
		return err
	}
	id := h.expand(a.ID)
	fail := func(expected, actual string) error {
		return &AssertionError{Index: index, Type: a.Type, Expected: expected, Actual: actual}
	}

	switch a.Type {
	case AssertCount:
		n, err := b.Store.Count(ctx, c, h.tenant, nil)
		if err != nil {
			return err
		}
		if n != int64(a.Count) {
			return fail(fmt.Sprintf("%d documents in %s", a.Count, c), fmt.Sprint(n))
		}
		return nil
	case AssertExists, AssertAbsent:
		ok, err := b.Store.Exists(ctx, c, h.tenant, id)
		if err != nil {
			return err
		}
		if want := a.Type == AssertExists; ok != want {
			return fail(fmt.Sprintf("%s exists=%t in %s", a.ID, want, c), fmt.Sprintf("exists=%t", ok))
		}
		return nil
	}

	doc, err := b.Store.Get(ctx, c, h.tenant, id, query.Full())
	if err != nil {
		return fail(fmt.Sprintf("%s in %s", a.ID, c), err.Error())
	}
	switch a.Type {
	case AssertEvents:
		got := make([]string, len(doc.Events))
		for i, ev := range doc.Events {
			got[i] = ev.String(ledger.EventType.String())
		}
		if strings.Join(got, ",") != strings.Join(a.Events, ",") {
			return fail("["+strings.Join(a.Events, ", ")+"]", "["+strings.Join(got, ", ")+"]")
		}
	case AssertHeader:
		want := h.expand(a.Value)
		if got := doc.Header.String(a.Field); got != want {
			return fail(fmt.Sprintf("%s=%q", a.Field, a.Value), fmt.Sprintf("%q", got))
		}
	}
	return nil
}
