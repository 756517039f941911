package isolate

import (
	"testing"
	"time"
)

// TestMemoryGuard_Exhausts allocates past an artificially tiny limit and
// checks Exhausted fires within a bounded timeout. The guard doubles its
// limit once as a grace window (spec.md §4.6), so this allocates twice.
func TestMemoryGuard_Exhausts(t *testing.T) {
	g := newMemoryGuard(1024)
	defer g.Stop()

	var hold [][]byte
	deadline := time.After(5 * time.Second)
	for {
		select {
		case <-g.Exhausted():
			return
		case <-deadline:
			t.Fatal("memoryGuard did not exhaust within timeout")
		default:
			hold = append(hold, make([]byte, 8*1024*1024))
			time.Sleep(80 * time.Millisecond)
		}
	}
}

// TestMemoryGuard_StopHaltsWatcher checks Stop is safe to call more than
// once and that it actually halts the background ticker (no further sends
// on Exhausted after Stop).
func TestMemoryGuard_StopHaltsWatcher(t *testing.T) {
	g := newMemoryGuard(HeapLimitBytes)
	g.Stop()
	g.Stop()

	select {
	case <-g.Exhausted():
		t.Fatal("Exhausted fired after Stop with no allocation pressure")
	case <-time.After(150 * time.Millisecond):
	}
}
