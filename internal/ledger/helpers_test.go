package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledger/internal/index"
	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/query"
	"github.com/roach88/ledger/internal/store"
	"github.com/roach88/ledger/internal/testutil"
)

const tenant = 0

// fixture is an engine over a temporary store and index.
type fixture struct {
	engine  *ledger.Engine
	store   *store.Store
	index   *index.Index
	ids     *testutil.IDs
	clock   *testutil.DeterministicClock
	metrics *recorder
}

// newFixture builds an engine. wrap, when given, decorates the backends
// before they are handed to the engine.
func newFixture(t *testing.T, wrap func(ledger.DocumentStore, ledger.SearchIndex) (ledger.DocumentStore, ledger.SearchIndex), opts ...ledger.Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ix, err := index.Open(filepath.Join(dir, "index.db"))
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })

	var ds ledger.DocumentStore = st
	var si ledger.SearchIndex = ix
	if wrap != nil {
		ds, si = wrap(ds, si)
	}

	f := &fixture{
		store:   st,
		index:   ix,
		ids:     testutil.NewIDs(1),
		clock:   testutil.NewDeterministicClock(testutil.Epoch, time.Second),
		metrics: newRecorder(),
	}
	opts = append([]ledger.Option{ledger.WithClock(f.clock.Now), ledger.WithMetrics(f.metrics)}, opts...)
	f.engine = ledger.New(ds, si, opts...)
	require.NoError(t, f.engine.Init(context.Background(), tenant))
	return f
}

// committedUnit creates unit's committed lifecycle through staging and
// promotion, leaving no staging row behind.
func (f *fixture) committedUnit(t *testing.T, operationID, unit string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.engine.CreateLifecycle(ctx, tenant, ledger.KindUnit, operationID,
		testutil.LifecycleEvent(operationID, unit, "LFC_CREATE", ledger.ProcessIngest)))
	staged, err := f.engine.GetLifecycle(ctx, tenant, ledger.KindUnit, true, unit, query.Full())
	require.NoError(t, err)
	require.NoError(t, f.engine.PromoteLifecycle(ctx, tenant, ledger.KindUnit, staged))
	require.NoError(t, f.engine.FinalizeStaging(ctx, tenant, ledger.KindUnit, unit))
}

func evTypes(events []ledger.Entry) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.String("evType")
	}
	return out
}

// recorder is an in-memory metrics.Recorder.
type recorder struct {
	mu        sync.Mutex
	calls     map[string]int
	conflicts map[string]int
}

func newRecorder() *recorder {
	return &recorder{calls: map[string]int{}, conflicts: map[string]int{}}
}

func (r *recorder) ObserveCall(call, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[call+"/"+outcome]++
}

func (r *recorder) ObserveStagingConflict(collection string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conflicts[collection]++
}

func (r *recorder) count(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[key]
}

func (r *recorder) conflictCount(collection string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.conflicts[collection]
}

// countingIndex counts index writes per collection.
type countingIndex struct {
	ledger.SearchIndex
	mu     sync.Mutex
	writes map[string]int
}

func (c *countingIndex) Index(ctx context.Context, collection string, tenant int, id string, body map[string]any) error {
	c.mu.Lock()
	c.writes[collection]++
	c.mu.Unlock()
	return c.SearchIndex.Index(ctx, collection, tenant, id, body)
}

func (c *countingIndex) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.writes {
		n += w
	}
	return n
}

// failingIndex rejects every write and search.
type failingIndex struct {
	ledger.SearchIndex
}

var errIndexDown = errors.New("index unavailable")

func (failingIndex) Index(context.Context, string, int, string, map[string]any) error {
	return errIndexDown
}

func (failingIndex) Search(context.Context, string, int, query.Query) ([]string, error) {
	return nil, errIndexDown
}

// barrierStore holds every staging Exists call until parties callers have
// reached it, so racing callers all observe a missing staging row.
type barrierStore struct {
	ledger.DocumentStore
	arrived sync.WaitGroup
}

func newBarrierStore(inner ledger.DocumentStore, parties int) *barrierStore {
	b := &barrierStore{DocumentStore: inner}
	b.arrived.Add(parties)
	return b
}

func (b *barrierStore) Exists(ctx context.Context, c ledger.Collection, tenant int, id string) (bool, error) {
	ok, err := b.DocumentStore.Exists(ctx, c, tenant, id)
	if c.IsStaging() {
		b.arrived.Done()
		b.arrived.Wait()
	}
	return ok, err
}
