package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ledger/internal/ledger"
	"github.com/roach88/ledger/internal/testutil"
)

// createTestStore creates a new temporary store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestOperation builds an operation document with no events.
func createTestOperation(t *testing.T, tenant int, id, processType string) *ledger.Document {
	t.Helper()
	doc, err := ledger.NewDocument(tenant, ledger.KindOperation, testutil.OperationEvent(id, "STP_INGEST", processType))
	require.NoError(t, err)
	doc.LastPersistedDate = "2024-01-02T03:04:05.000"
	return doc
}

// createTestLifecycle builds a unit lifecycle document for operationID.
func createTestLifecycle(t *testing.T, tenant int, operationID, objectID string) *ledger.Document {
	t.Helper()
	doc, err := ledger.NewDocument(tenant, ledger.KindUnit, testutil.LifecycleEvent(operationID, objectID, "LFC_CREATE", ledger.ProcessIngest))
	require.NoError(t, err)
	doc.LastPersistedDate = "2024-01-02T03:04:05.000"
	return doc
}

// event builds a stored event entry.
func event(evType, operationID string) ledger.Entry {
	return ledger.Entry{"evType": evType, "evIdProc": operationID}
}
