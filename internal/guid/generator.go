package guid

import (
	"os"
	"sync"
	"time"
)

const maxCounter = 1<<24 - 1

// Generator produces GUIDs for one platform and process.
// Within one generator the (time, counter) pair never repeats.
type Generator struct {
	Platform uint32
	PID      uint32
	Now      func() time.Time

	mu      sync.Mutex
	lastMs  int64
	counter uint32
}

// NewGenerator returns a generator bound to platform and the current process id.
func NewGenerator(platform uint32) *Generator {
	return &Generator{Platform: platform, PID: uint32(os.Getpid()) & 0xFFFFFF, Now: time.Now}
}

// New returns a fresh GUID of the given type for tenant.
func (g *Generator) New(objectType ObjectType, tenant int) GUID {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	ms := now().UnixMilli()
	if ms < g.lastMs {
		ms = g.lastMs
	}
	if ms == g.lastMs {
		if g.counter == maxCounter {
			// counter exhausted for this millisecond; borrow the next one
			ms++
			g.counter = 0
		} else {
			g.counter++
		}
	} else {
		g.counter = 0
	}
	g.lastMs = ms
	return build(objectType, tenant, g.Platform, g.PID&0xFFFFFF, ms, g.counter)
}
