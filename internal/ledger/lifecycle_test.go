package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/testutil"
)

func TestCreateLifecycle_Staged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)

	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))

	staged, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.True(t, staged)
	committed, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, false, unit)
	require.NoError(t, err)
	assert.False(t, committed)

	doc, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Projection{})
	require.NoError(t, err)
	assert.Equal(t, ledger.ProcessIngest, doc.ProcessType())
	assert.Equal(t, ledger.KindUnit, doc.Kind)
}

func TestCreateLifecycle_WrongOperation(t *testing.T) {
	f := newFixture(t, nil)
	op := f.ids.Operation(tenant)
	other := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)

	err := f.engine.CreateLifecycle(context.Background(), tenant, ledger.KindUnit, other,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest))

	require.Error(t, err)
	assert.True(t, ledger.IsInvalidArgument(err))
	assert.Equal(t, "Wrong IdOperation set to create the LifeCycle", err.Error())
}

func TestCreateLifecycle_OperationKindHasNoStaging(t *testing.T) {
	f := newFixture(t, nil)
	op := f.ids.Operation(tenant)

	err := f.engine.CreateLifecycle(context.Background(), tenant, ledger.KindOperation, op,
		testutil.OperationEvent(op, "STP", ledger.ProcessIngest))
	assert.True(t, ledger.IsInvalidArgument(err))
}

func TestCreateLifecycleBulk(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	group := f.ids.ObjectGroup(tenant)

	require.NoError(t, f.engine.CreateLifecycleBulk(ctx, tenant, ledger.KindObjectGroup, op,
		testutil.LifecycleEvent(op, group, "LFC_CREATE", ledger.ProcessIngest),
		testutil.LifecycleEvent(op, group, "LFC_CHECK_DIGEST", ledger.ProcessIngest),
		testutil.LifecycleEvent(op, group, "LFC_CHECK_FORMAT", ledger.ProcessIngest),
	))

	doc, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindObjectGroup, true, group, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_CHECK_DIGEST", "LFC_CHECK_FORMAT"}, evTypes(doc.Events))

	sliced, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindObjectGroup, true, group, query.Projection{})
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_CHECK_FORMAT"}, evTypes(sliced.Events), "lifecycles default to the last event")
}

func TestUpdateLifecycle_StagedThenCommitted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ingest := f.ids.Operation(tenant)
	update := f.ids.Operation(tenant)
	u1 := f.ids.Unit(tenant)
	f.committedUnit(t, ingest, u1)

	before, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, u1, query.Full())
	require.NoError(t, err)

	for _, evType := range []string{"LFC_UPDATE_1", "LFC_UPDATE_2"} {
		require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, update,
			testutil.LifecycleEvent(update, u1, evType, ledger.ProcessUpdate)))
	}

	n, err := f.engine.CountLifecycles(ctx, tenant, ledger.KindUnit, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "exactly one staging row")

	staged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, u1, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_UPDATE_1", "LFC_UPDATE_2"}, evTypes(staged.Events))
	assert.Equal(t, ledger.ProcessUpdate, staged.ProcessType(), "the staging row is tagged as an update")
	assert.Equal(t, "LFC_CREATE", staged.Header.String("evType"), "the committed header is copied")

	unchanged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, u1, query.Full())
	require.NoError(t, err)
	assert.Equal(t, before, unchanged)

	require.NoError(t, f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, u1))

	after, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, u1, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_UPDATE_1", "LFC_UPDATE_2"}, evTypes(after.Events))
	for _, ev := range after.Events {
		assert.NotEmpty(t, ev.String("_lastPersistedDate"))
	}
	assert.Equal(t, before.Version+1, after.Version)

	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, u1)
	require.NoError(t, err)
	assert.False(t, exists, "the staging row is removed after commit")
}

func TestUpdateLifecycle_ConcurrentFirstUpdate(t *testing.T) {
	var barrier *barrierStore
	f := newFixture(t, func(ds ledger.DocumentStore, si ledger.SearchIndex) (ledger.DocumentStore, ledger.SearchIndex) {
		barrier = newBarrierStore(ds, 2)
		return barrier, si
	})
	ctx := context.Background()
	ingest := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, ingest, unit)

	ops := []string{f.ids.Operation(tenant), f.ids.Operation(tenant)}
	errs := make([]error, len(ops))
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func(i int, op string) {
			defer wg.Done()
			errs[i] = f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op,
				testutil.LifecycleEvent(op, unit, "LFC_UPDATE", ledger.ProcessUpdate))
		}(i, op)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case ledger.IsAlreadyExists(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)
	assert.Equal(t, 1, f.metrics.conflictCount(ledger.UnitsInProcess.String()))

	n, err := f.engine.CountLifecycles(ctx, tenant, ledger.KindUnit, true)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	staged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Full())
	require.NoError(t, err)
	assert.Len(t, staged.Events, 1, "only the winner appended")
}

func TestUpdateLifecycle_UpdateOfUnknownObject(t *testing.T) {
	f := newFixture(t, nil)
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)

	err := f.engine.UpdateLifecycle(context.Background(), tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_UPDATE", ledger.ProcessUpdate))

	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Equal(t, "Update not found item: "+unit, err.Error())
}

func TestUpdateLifecycle_ReusesIngestStaging(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))

	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CHECK_1", ledger.ProcessIngest),
		testutil.LifecycleEvent(op, unit, "LFC_CHECK_2", ledger.ProcessIngest),
	))

	doc, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_CHECK_1", "LFC_CHECK_2"}, evTypes(doc.Events))
	assert.Equal(t, int64(1), doc.Version, "a batch is one push")
}

func TestUpdateLifecycle_ItemChecks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	other := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	unit2 := f.ids.Unit(tenant)

	tests := []struct {
		name  string
		items []ledger.Parameters
		want  string
	}{
		{"no items", nil, "At least one item is needed"},
		{"wrong operation", []ledger.Parameters{testutil.LifecycleEvent(other, unit, "LFC", ledger.ProcessIngest)}, "Wrong IdOperation set to update the LifeCycle"},
		{"bad object id", []ledger.Parameters{testutil.LifecycleEvent(op, "nope", "LFC", ledger.ProcessIngest)}, "invalid guid"},
		{"mixed objects", []ledger.Parameters{
			testutil.LifecycleEvent(op, unit, "LFC", ledger.ProcessIngest),
			testutil.LifecycleEvent(op, unit2, "LFC", ledger.ProcessIngest),
		}, "every item must target lifecycle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op, tt.items...)
			require.Error(t, err)
			assert.True(t, ledger.IsInvalidArgument(err), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCommit_IngestRowSurvives(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))
	staged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Full())
	require.NoError(t, err)
	require.NoError(t, f.engine.PromoteLifecycle(ctx, tenant, ledger.KindUnit, staged))

	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CHECK", ledger.ProcessIngest)))
	require.NoError(t, f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, unit))

	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.True(t, exists, "ingest keeps its staging row until finalized")

	committed, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_CHECK"}, evTypes(committed.Events))

	require.NoError(t, f.engine.FinalizeStaging(ctx, tenant, ledger.KindUnit, unit))
	err = f.engine.FinalizeStaging(ctx, tenant, ledger.KindUnit, unit)
	assert.True(t, ledger.IsNotFound(err))
}

func TestCommit_WithoutEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, f.ids.Operation(tenant), unit)

	staged := &ledger.Document{ID: unit, Kind: ledger.KindUnit, Header: ledger.Entry{"evTypeProc": ledger.ProcessUpdate}, Events: []ledger.Entry{}}
	require.NoError(t, f.engine.CommitLifecycle(ctx, tenant, ledger.KindUnit, staged))

	committed, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, unit, query.Full())
	require.NoError(t, err)
	assert.Empty(t, committed.Events)
	assert.Equal(t, int64(1), committed.Version)
}

func TestCommit_EmptyStagingRowIsKept(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ingest := f.ids.Operation(tenant)
	update := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, ingest, unit)
	require.NoError(t, f.store.Insert(ctx, ledger.UnitsInProcess, &ledger.Document{
		ID:                unit,
		Tenant:            tenant,
		LastPersistedDate: "2024-01-02T03:04:05.000",
		Kind:              ledger.KindUnit,
		Header:            ledger.Entry{"obId": unit, "evIdProc": update, "evTypeProc": ledger.ProcessUpdate},
		Events:            []ledger.Entry{},
	}))

	require.NoError(t, f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, unit))
	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.True(t, exists, "a staging row with no events is not deleted on commit")

	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, update,
		testutil.LifecycleEvent(update, unit, "LFC_UPDATE", ledger.ProcessUpdate)))
	require.NoError(t, f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, unit))
	exists, err = f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.False(t, exists, "once it holds events the row is deleted")

	committed, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_UPDATE"}, evTypes(committed.Events))
}

func TestCommit_CommittedDeleted(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ingest := f.ids.Operation(tenant)
	update := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, ingest, unit)
	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, update,
		testutil.LifecycleEvent(update, unit, "LFC_UPDATE", ledger.ProcessUpdate)))

	n, err := f.store.Delete(ctx, ledger.Units, tenant, unit)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	err = f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, unit)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))

	count, err := f.engine.CountLifecycles(ctx, tenant, ledger.KindUnit, false)
	require.NoError(t, err)
	assert.Zero(t, count, "nothing was appended or recreated")

	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.True(t, exists, "the staging row stays for rollback")
}

func TestPromoteLifecycle_Duplicate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	require.NoError(t, f.engine.CreateLifecycleBulk(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest),
		testutil.LifecycleEvent(op, unit, "LFC_CHECK", ledger.ProcessIngest),
	))
	staged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Full())
	require.NoError(t, err)

	require.NoError(t, f.engine.PromoteLifecycle(ctx, tenant, ledger.KindUnit, staged))
	committed, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02T03:04:06.000", committed.LastPersistedDate)
	assert.Equal(t, "2024-01-02T03:04:06.000", committed.Events[0].String("_lastPersistedDate"))

	err = f.engine.PromoteLifecycle(ctx, tenant, ledger.KindUnit, staged)
	assert.True(t, ledger.IsAlreadyExists(err))
}

func TestUpdateCommittedLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, f.ids.Operation(tenant), unit)

	require.NoError(t, f.engine.UpdateCommittedLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_AUDIT", ledger.ProcessAudit)))

	doc, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_AUDIT"}, evTypes(doc.Events))

	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.False(t, exists, "no staging row is opened")

	missing := f.ids.Unit(tenant)
	err = f.engine.UpdateCommittedLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, missing, "LFC_AUDIT", ledger.ProcessAudit))
	assert.True(t, ledger.IsNotFound(err))
}

func TestUpdateCommittedBulk(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	a, b := f.ids.Unit(tenant), f.ids.Unit(tenant)
	f.committedUnit(t, f.ids.Operation(tenant), a)
	f.committedUnit(t, f.ids.Operation(tenant), b)

	undated := testutil.LifecycleEvent(op, b, "LFC_MASS_2", ledger.ProcessMassUpdate)
	delete(undated, ledger.EventDateTime)
	require.NoError(t, f.engine.UpdateCommittedBulk(ctx, tenant, ledger.KindUnit, []ledger.LifecycleBatch{
		{ID: a, Events: []ledger.Parameters{testutil.LifecycleEvent(op, a, "LFC_MASS_1", ledger.ProcessMassUpdate)}},
		{ID: b, Events: []ledger.Parameters{undated}},
	}))

	docA, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, a, query.Full())
	require.NoError(t, err)
	assert.Equal(t, []string{"LFC_MASS_1"}, evTypes(docA.Events))
	assert.Equal(t, "2024-01-02T03:04:05.000", docA.Events[0].String("evDateTime"))

	docB, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, false, b, query.Full())
	require.NoError(t, err)
	assert.Equal(t, docB.Events[0].String("_lastPersistedDate"), docB.Events[0].String("evDateTime"))

	err = f.engine.UpdateCommittedBulk(ctx, tenant, ledger.KindUnit, []ledger.LifecycleBatch{
		{ID: a, Events: []ledger.Parameters{testutil.LifecycleEvent(op, a, "LFC_MASS_3", ledger.ProcessMassUpdate)}},
		{ID: f.ids.Unit(tenant), Events: []ledger.Parameters{testutil.LifecycleEvent(op, a, "LFC_MASS_3", ledger.ProcessMassUpdate)}},
	})
	require.Error(t, err)
	assert.Equal(t, ledger.CodeUncategorized, ledger.CodeOf(err))
	assert.Contains(t, err.Error(), "bulk update modified 1 documents, expected 2")

	err = f.engine.UpdateCommittedBulk(ctx, tenant, ledger.KindUnit, nil)
	assert.True(t, ledger.IsInvalidArgument(err))
}

func TestRollbackLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	other := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))

	err := f.engine.RollbackLifecycle(ctx, tenant, ledger.KindUnit, true, other, unit)
	require.Error(t, err)
	assert.True(t, ledger.IsNotFound(err))
	assert.Equal(t, "Rollback issue: not found: "+unit, err.Error())

	require.NoError(t, f.engine.RollbackLifecycle(ctx, tenant, ledger.KindUnit, true, op, unit))
	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRollbackLifecycle_MatchesEvents(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	ingest := f.ids.Operation(tenant)
	update := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	f.committedUnit(t, ingest, unit)
	require.NoError(t, f.engine.UpdateCommittedLifecycle(ctx, tenant, ledger.KindUnit, update,
		testutil.LifecycleEvent(update, unit, "LFC_UPDATE", ledger.ProcessUpdate)))

	require.NoError(t, f.engine.RollbackLifecycle(ctx, tenant, ledger.KindUnit, false, update, unit),
		"an event of the operation is enough to match")
	exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, false, unit)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRollbackAllForOperation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op1 := f.ids.Operation(tenant)
	op2 := f.ids.Operation(tenant)
	a, b, c, d := f.ids.Unit(tenant), f.ids.Unit(tenant), f.ids.Unit(tenant), f.ids.Unit(tenant)

	for _, unit := range []string{a, b} {
		require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op1,
			testutil.LifecycleEvent(op1, unit, "LFC_CREATE", ledger.ProcessIngest)))
	}
	for _, unit := range []string{c, d} {
		require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op2,
			testutil.LifecycleEvent(op2, unit, "LFC_CREATE", ledger.ProcessIngest)))
	}
	// d's header belongs to op2 but one of its events to op1.
	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op1,
		testutil.LifecycleEvent(op1, d, "LFC_CHECK", ledger.ProcessIngest)))

	n, err := f.engine.RollbackAllForOperation(ctx, tenant, ledger.KindUnit, op1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	for unit, want := range map[string]bool{a: false, b: false, c: true, d: false} {
		exists, err := f.engine.ExistsLifecycle(ctx, tenant, ledger.KindUnit, true, unit)
		require.NoError(t, err)
		assert.Equal(t, want, exists, unit)
	}

	_, err = f.engine.RollbackAllForOperation(ctx, tenant, ledger.KindUnit, op1)
	assert.True(t, ledger.IsNotFound(err))
}

func TestGetLifecycleByOperation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	other := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)
	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))

	doc, err := f.engine.GetLifecycleByOperation(ctx, tenant, ledger.KindUnit, true, op, unit, query.Full())
	require.NoError(t, err)
	assert.Equal(t, unit, doc.ID)

	_, err = f.engine.GetLifecycleByOperation(ctx, tenant, ledger.KindUnit, true, other, unit, query.Full())
	assert.True(t, ledger.IsNotFound(err))
}

func TestLifecycles_NeverTouchTheIndex(t *testing.T) {
	var counting *countingIndex
	f := newFixture(t, func(ds ledger.DocumentStore, si ledger.SearchIndex) (ledger.DocumentStore, ledger.SearchIndex) {
		counting = &countingIndex{SearchIndex: si, writes: map[string]int{}}
		return ds, counting
	})
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	unit := f.ids.Unit(tenant)

	f.committedUnit(t, op, unit)
	require.NoError(t, f.engine.UpdateLifecycle(ctx, tenant, ledger.KindUnit, op,
		testutil.LifecycleEvent(op, unit, "LFC_UPDATE", ledger.ProcessUpdate)))
	require.NoError(t, f.engine.CommitStaged(ctx, tenant, ledger.KindUnit, unit))
	assert.Zero(t, counting.total())

	require.NoError(t, f.engine.CreateOperation(ctx, tenant, testutil.OperationEvent(op, "STP", ledger.ProcessIngest)))
	require.NoError(t, f.engine.UpdateOperation(ctx, tenant, testutil.OperationEvent(op, "STP_1", ledger.ProcessIngest)))
	assert.Equal(t, 2, counting.total())

	n, err := f.index.Count(ctx, ledger.Operations.IndexName(), tenant)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestListLifecycles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	op := f.ids.Operation(tenant)
	for i := 0; i < 3; i++ {
		unit := f.ids.Unit(tenant)
		require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, op,
			testutil.LifecycleEvent(op, unit, "LFC_CREATE", ledger.ProcessIngest)))
	}

	docs, err := f.engine.ListLifecycles(ctx, tenant, ledger.KindUnit, true, query.Query{Filter: ledger.TouchedBy(op), Limit: 2})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	_, err = f.engine.ListLifecycles(ctx, tenant, ledger.KindUnit, true, query.Query{Offset: -1})
	assert.True(t, ledger.IsInvalidArgument(err))
}
