package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/ledger/internal/index"
	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/store"
	"github.com/roach88/ledger/internal/testutil"
)

// Harness executes one scenario against a private engine.
type Harness struct {
	engine   *ledger.Engine
	tenant   int
	expander *strings.Replacer
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh store and index in a temporary
// directory. The clock starts at testutil.Epoch and advances one second per
// stamp; ids come from testutil.IDs, so two runs of the same scenario
// produce the same state.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "ledger-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario dir: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()
	ix, err := index.Open(filepath.Join(dir, "index.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer ix.Close()

	clock := testutil.NewDeterministicClock(testutil.Epoch, time.Second)
	eng := ledger.New(st, ix,
		ledger.WithClock(clock.Now),
		ledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in scenarios
	)
	if err := eng.Init(ctx, scenario.Tenant); err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}

	result := NewResult()
	ids := testutil.NewIDs(1)
	var pairs []string
	for _, name := range sortedSymbols(scenario.IDs) {
		id, err := newID(ids, scenario.IDs[name], scenario.Tenant)
		if err != nil {
			return nil, err
		}
		result.IDs[name] = id
		pairs = append(pairs, "${"+name+"}", id)
	}

	h := &Harness{engine: eng, tenant: scenario.Tenant, expander: strings.NewReplacer(pairs...)}
	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		outcome := "ok"
		if err != nil {
			outcome = string(ledger.CodeOf(err))
			if outcome == "" {
				return nil, fmt.Errorf("step %d (%s): %w", i, step.Call, err)
			}
		}
		result.AddTrace(i, step.Call, step.Object, outcome)

		want := step.Expect
		if want == "" {
			want = "ok"
		}
		if outcome != want {
			msg := fmt.Sprintf("step %d (%s): expected %s, got %s", i, step.Call, want, outcome)
			if err != nil {
				msg += ": " + err.Error()
			}
			result.AddError(msg)
		}
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	if err := h.collectState(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

func newID(ids *testutil.IDs, typ string, tenant int) (string, error) {
	switch typ {
	case "operation":
		return ids.Operation(tenant), nil
	case "unit":
		return ids.Unit(tenant), nil
	case "objectgroup":
		return ids.ObjectGroup(tenant), nil
	case "event":
		return ids.Event(tenant), nil
	}
	return "", fmt.Errorf("unknown id type %q", typ)
}

func (h *Harness) expand(s string) string { return h.expander.Replace(s) }

func (h *Harness) items(step Step) ([]ledger.Parameters, error) {
	out := make([]ledger.Parameters, len(step.Items))
	for i, item := range step.Items {
		values := make(map[string]string, len(item))
		for k, v := range item {
			values[k] = h.expand(v)
		}
		p, err := ledger.ParametersFromWire(values)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// execute runs one step. Only *ledger.Error failures are scenario
// outcomes; anything else aborts the run.
func (h *Harness) execute(ctx context.Context, step Step) error {
	items, err := h.items(step)
	if err != nil {
		return err
	}
	kind, _ := ledger.ParseKind(step.Kind)
	op := h.expand(step.Operation)
	object := h.expand(step.Object)
	e := h.engine

	switch step.Call {
	case CallCreateOperation:
		if len(items) == 1 {
			return e.CreateOperation(ctx, h.tenant, items[0])
		}
		return e.CreateOperationBulk(ctx, h.tenant, items...)
	case CallUpdateOperation:
		if len(items) == 1 {
			return e.UpdateOperation(ctx, h.tenant, items[0])
		}
		return e.UpdateOperationBulk(ctx, h.tenant, items...)
	case CallCreateLifecycle:
		if len(items) == 1 {
			return e.CreateLifecycle(ctx, h.tenant, kind, op, items[0])
		}
		return e.CreateLifecycleBulk(ctx, h.tenant, kind, op, items...)
	case CallUpdateLifecycle:
		return e.UpdateLifecycle(ctx, h.tenant, kind, op, items...)
	case CallUpdateCommittedLifecycle:
		return e.UpdateCommittedLifecycle(ctx, h.tenant, kind, op, items...)
	case CallPromoteLifecycle:
		staged, err := e.GetLifecycle(ctx, h.tenant, kind, true, object, query.Full())
		if err != nil {
			return err
		}
		return e.PromoteLifecycle(ctx, h.tenant, kind, staged)
	case CallCommitLifecycle:
		return e.CommitStaged(ctx, h.tenant, kind, object)
	case CallFinalizeStaging:
		return e.FinalizeStaging(ctx, h.tenant, kind, object)
	case CallRollbackLifecycle:
		return e.RollbackLifecycle(ctx, h.tenant, kind, step.Staging, op, object)
	case CallRollbackAll:
		_, err := e.RollbackAllForOperation(ctx, h.tenant, kind, op)
		return err
	case CallPurge:
		c, err := ledger.ParseCollection(step.Collection)
		if err != nil {
			return err
		}
		_, err = e.PurgeTenant(ctx, c, h.tenant)
		return err
	}
	return fmt.Errorf("unknown call %q", step.Call)
}

// collectState reads every document of the tenant with the full projection.
func (h *Harness) collectState(ctx context.Context, result *Result) error {
	for _, c := range ledger.Collections() {
		b, err := h.engine.Registry().Lookup(c)
		if err != nil {
			return err
		}
		docs, err := b.Store.Find(ctx, c, h.tenant, query.Query{Projection: query.Full()})
		if err != nil {
			return fmt.Errorf("read %s: %w", c, err)
		}
		list := make([]map[string]any, len(docs))
		for i, doc := range docs {
			list[i] = doc.Map()
		}
		result.State[c.String()] = list
	}
	return nil
}

// symbolize replaces generated ids with their ${NAME} reference.
func symbolize(ids map[string]string, s string) string {
	pairs := make([]string, 0, 2*len(ids))
	for _, name := range sortedSymbols(ids) {
		pairs = append(pairs, ids[name], "${"+name+"}")
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
