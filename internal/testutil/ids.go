package testutil

import (
	"time"

	"github.com/roach88/ledger/internal/guid"
)

// IDs generates reproducible GUIDs for tests.
//
// Two IDs values built with the same platform return the same sequence of
// identifiers, so scenario output can be compared against golden files.
//
// Thread-safety: IDs is safe for concurrent use; the order of concurrent
// calls decides which goroutine gets which identifier.
type IDs struct {
	gen *guid.Generator
}

// NewIDs creates a generator whose clock starts at Epoch and advances one
// millisecond per identifier.
func NewIDs(platform uint32) *IDs {
	clock := NewDeterministicClock(Epoch, time.Millisecond)
	return &IDs{gen: &guid.Generator{Platform: platform, PID: 1, Now: clock.Now}}
}

// Operation returns a new operation id.
func (g *IDs) Operation(tenant int) string {
	return g.gen.New(guid.Operation, tenant).String()
}

// Unit returns a new archive unit id.
func (g *IDs) Unit(tenant int) string {
	return g.gen.New(guid.Unit, tenant).String()
}

// ObjectGroup returns a new object group id.
func (g *IDs) ObjectGroup(tenant int) string {
	return g.gen.New(guid.ObjectGroup, tenant).String()
}

// Event returns a new event id.
func (g *IDs) Event(tenant int) string {
	return g.gen.New(guid.Event, tenant).String()
}
