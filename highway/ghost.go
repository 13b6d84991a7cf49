package highway

import (
	"sync"
	"sync/atomic"
	"weak"
)

// ghostRecord is a weak reference over one issued Fragment, plus the
// coordinates needed to compensate its lane if the fragment turns out
// to have been lost. The weak.Pointer (stdlib, added to the Go runtime
// for exactly this purpose) does not pin fragment; once every strong
// reference to the Fragment is gone, Value() starts returning nil. A
// disposed Fragment is just as collectible as a lost one, so nil alone
// can't tell scan which case it's looking at; disposed is the same
// *atomic.Bool the Fragment itself disposes through, so it stays
// readable after the Fragment is gone — see spec.md §9's design note
// mapping CLR WeakReference onto the host language's own facility
// rather than a library choice.
type ghostRecord struct {
	ref        weak.Pointer[Fragment]
	disposed   *atomic.Bool
	lane       *Lane
	cycleStamp uint64
}

// ghostTracker holds weak references over issued fragments when a
// Highway is configured with DisposalPolicy == TrackGhosts, and scans
// for reclaimable (garbage-collected-but-not-disposed) leases.
type ghostTracker struct {
	mu      sync.Mutex
	records []ghostRecord
}

func (g *ghostTracker) register(f *Fragment) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records = append(g.records, ghostRecord{
		ref:        weak.Make(f),
		disposed:   f.disposed,
		lane:       f.lane,
		cycleStamp: f.cycleAtBirth,
	})
}

// scan iterates every outstanding record. A record whose target has
// already been explicitly disposed is simply dropped (the lane
// accounting was already corrected by Fragment.Dispose). A record
// whose target has been reclaimed by the Go garbage collector without
// a prior Dispose has its lane compensated via resetOne and is then
// dropped. Live, non-disposed fragments are left in place for a future
// scan. It returns the number of ghosts it reclaimed.
func (g *ghostTracker) scan() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	reclaimed := 0
	live := g.records[:0]
	for _, rec := range g.records {
		f := rec.ref.Value()
		switch {
		case rec.disposed.Load():
			// Already handled by Fragment.Dispose, whether or not the
			// Fragment itself has since been collected; stop tracking it.
		case f == nil:
			// Unreachable without having been disposed: compensate.
			rec.lane.resetOne(rec.cycleStamp)
			reclaimed++
		default:
			live = append(live, rec)
		}
	}
	g.records = live
	return reclaimed
}

// outstanding returns the number of records the tracker is still
// watching, for diagnostics and tests.
func (g *ghostTracker) outstanding() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.records)
}
