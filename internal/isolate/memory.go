package isolate

import (
	"runtime"
	"sync"
	"time"
)

// memoryGuard approximates V8's near-heap-limit callback (spec.md §4.6):
// a near-limit signal followed by doubling the limit as a grace window,
// then a hard stop. goja exposes no per-runtime heap accounting, so this
// samples process-wide heap growth since the isolate started as a proxy —
// accurate for a worker pool running one isolate per OS thread at a time,
// approximate under concurrent isolates sharing a process.
type memoryGuard struct {
	limit     uint64
	baseline  uint64
	doubled   bool
	exhausted chan struct{}
	stop      chan struct{}
	once      sync.Once
}

func newMemoryGuard(limit uint64) *memoryGuard {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	g := &memoryGuard{
		limit:     limit,
		baseline:  stats.HeapAlloc,
		exhausted: make(chan struct{}),
		stop:      make(chan struct{}),
	}
	go g.watch()
	return g
}

func (g *memoryGuard) watch() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)

			grown := stats.HeapAlloc - g.baseline
			if stats.HeapAlloc < g.baseline {
				grown = 0
			}

			if grown <= g.limit {
				continue
			}

			if !g.doubled {
				g.doubled = true
				g.limit *= 2
				continue
			}

			g.once.Do(func() { close(g.exhausted) })
			return
		}
	}
}

func (g *memoryGuard) Exhausted() <-chan struct{} {
	return g.exhausted
}

func (g *memoryGuard) Stop() {
	select {
	case <-g.stop:
	default:
		close(g.stop)
	}
}
