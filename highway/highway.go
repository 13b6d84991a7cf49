// Package highway implements a pluggable, thread-safe, multi-lane
// arena allocator. A Highway hands out fixed-lifetime byte Fragments
// carved from large pre-reserved Lanes, backed by one of three storage
// classes: a managed Go heap slice, an unmanaged native OS allocation,
// or a memory-mapped file.
package highway

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Logger is the diagnostic sink a Highway reports lane-creation,
// exhaustion, and ghost-reset events to. Its shape is taken verbatim
// from tenant/dcache.Logger: a single Printf method, so that
// *log.Logger satisfies it directly. A nil Logger means silent,
// exactly as in the teacher.
type Logger interface {
	Printf(format string, args ...any)
}

// Highway is an ordered collection of lanes of one backend type. It
// chooses a lane per allocation request and creates additional lanes
// on demand up to Settings.MaxLanes.
type Highway struct {
	id       uuid.UUID
	settings Settings
	Logger   Logger

	newBackend func(laneID, capacity int) (backend, error)

	// growMu serializes lane creation and trimming and guards the lane
	// slice header. Readers hold it only long enough to copy the slice
	// header, then walk that snapshot without any highway-level lock.
	growMu sync.Mutex
	lanes  []*Lane

	ghosts *ghostTracker

	disposeMu sync.Mutex
	disposed  bool
}

func newHighway(kind BackendKind, s Settings, newBackend func(laneID, capacity int) (backend, error)) (*Highway, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	s.BackendKind = kind
	h := &Highway{
		id:         uuid.New(),
		settings:   s,
		newBackend: newBackend,
	}
	if s.DisposalPolicy == TrackGhosts {
		h.ghosts = &ghostTracker{}
	}
	return h, nil
}

// NewHeapHighway creates a Highway whose lanes are backed by plain Go
// heap slices. laneCapacities, if non-empty, pre-creates one lane per
// entry; otherwise the first lane is created lazily on first
// allocation.
func NewHeapHighway(s Settings, laneCapacities ...int) (*Highway, error) {
	h, err := newHighway(Heap, s, func(_, capacity int) (backend, error) {
		return newHeapBackend(capacity)
	})
	if err != nil {
		return nil, err
	}
	return h, h.preCreate(laneCapacities)
}

// NewNativeHighway creates a Highway whose lanes are backed by
// unmanaged memory obtained directly from the OS virtual memory
// manager (vm/malloc_linux.go / _darwin.go / _windows.go style).
func NewNativeHighway(s Settings, laneCapacities ...int) (*Highway, error) {
	h, err := newHighway(Native, s, func(_, capacity int) (backend, error) {
		return newNativeBackend(capacity)
	})
	if err != nil {
		return nil, err
	}
	return h, h.preCreate(laneCapacities)
}

// NewMappedHighway creates a Highway whose lanes are each backed by a
// memory-mapped temp file under dir (os.TempDir() if dir is empty).
func NewMappedHighway(dir string, s Settings, laneCapacities ...int) (*Highway, error) {
	pid := os.Getpid()
	h, err := newHighway(Mapped, s, nil)
	if err != nil {
		return nil, err
	}
	h.newBackend = func(laneID, capacity int) (backend, error) {
		return newMappedBackend(dir, pid, h.id.String(), laneID, capacity)
	}
	return h, h.preCreate(laneCapacities)
}

func (h *Highway) preCreate(laneCapacities []int) error {
	for _, c := range laneCapacities {
		if _, err := h.growLocked(c); err != nil {
			return err
		}
	}
	return nil
}

// ID returns the Highway's process-unique identifier, used to
// namespace Mapped-backend file names and diagnostic log lines.
func (h *Highway) ID() uuid.UUID { return h.id }

func (h *Highway) logf(format string, args ...any) {
	if h.Logger != nil {
		h.Logger.Printf(format, args...)
	}
}

func (h *Highway) growLocked(capacity int) (*Lane, error) {
	h.growMu.Lock()
	defer h.growMu.Unlock()
	if len(h.lanes) >= h.settings.MaxLanes {
		return nil, newErr(HighwayFull, "max_lanes reached", nil)
	}
	id := len(h.lanes)
	b, err := h.newBackend(id, capacity)
	if err != nil {
		return nil, newErr(BackendFault, "create lane backend", err)
	}
	lane := newLane(id, capacity, b)
	h.lanes = append(h.lanes, lane)
	h.logf("highway %s: created lane %d capacity %d backend %s", h.id, id, capacity, h.settings.BackendKind)
	return lane, nil
}

func (h *Highway) laneCapacityFor(length int) int {
	if length > h.settings.DefaultCapacity {
		return length
	}
	return h.settings.DefaultCapacity
}

// Alloc requests length bytes, using Settings.LaneAwaitMS as the
// lock-await budget; AllocAwait takes an explicit per-call budget
// instead. It returns a *Fragment on success, or a nil
// Fragment with a HighwayFull- or LaneLockTimeout-tagged error when
// the allocation cannot currently be satisfied (spec.md §4.4).
func (h *Highway) Alloc(length int) (*Fragment, error) {
	return h.AllocAwait(length, h.settings.LaneAwaitMS)
}

// AllocAwait is Alloc with an explicit per-call lock-await budget in
// milliseconds (negative = indefinite, zero = try-now, positive = an
// upper bound in milliseconds).
func (h *Highway) AllocAwait(length, awaitMS int) (*Fragment, error) {
	if length <= 0 {
		return nil, newErr(InvalidArgument, "length must be positive", nil)
	}
	h.disposeMu.Lock()
	disposed := h.disposed
	h.disposeMu.Unlock()
	if disposed {
		return nil, newErr(DisposedAccess, "alloc on disposed highway", nil)
	}

	h.growMu.Lock()
	snapshot := h.lanes
	h.growMu.Unlock()

	sawTimeout := false
	for _, lane := range snapshot {
		frag, err := lane.tryAlloc(length, awaitMS)
		switch {
		case err == nil:
			h.track(frag)
			return frag, nil
		case IsKind(err, LaneFull):
			continue
		case IsKind(err, LaneLockTimeout):
			sawTimeout = true
			continue
		default:
			return nil, err
		}
	}

	// Every existing lane is full (or timed out); try to grow.
	lane, err := h.growLocked(h.laneCapacityFor(length))
	if err != nil {
		if IsKind(err, HighwayFull) {
			if sawTimeout {
				return nil, newErr(LaneLockTimeout, "lock wait exceeded on a candidate lane and max_lanes reached", nil)
			}
			h.logf("highway %s: HighwayFull allocating %d bytes", h.id, length)
			return nil, newErr(HighwayFull, "no lane has room and max_lanes reached", nil)
		}
		return nil, err
	}
	frag, err := lane.tryAlloc(length, awaitMS)
	if err != nil {
		// A freshly created lane is at least length bytes long, but
		// concurrent allocations may fill it before this call takes its
		// lock; that LaneFull is reported the same way a fully
		// exhausted highway would be. Any other error, including a
		// lock timeout, is returned as is.
		if IsKind(err, LaneFull) {
			h.logf("highway %s: HighwayFull allocating %d bytes", h.id, length)
			return nil, newErr(HighwayFull, "newly created lane could not satisfy request", nil)
		}
		return nil, err
	}
	h.track(frag)
	return frag, nil
}

func (h *Highway) track(f *Fragment) {
	if h.ghosts != nil {
		h.ghosts.register(f)
	}
}

// ScanGhosts runs the ghost-reference scan described in spec.md §4.5,
// reconciling lane active-counts for fragments whose handles were lost
// without an explicit Dispose. It is a no-op (returns 0) when the
// Highway was not constructed with DisposalPolicy == TrackGhosts.
func (h *Highway) ScanGhosts() int {
	if h.ghosts == nil {
		return 0
	}
	n := h.ghosts.scan()
	if n > 0 {
		h.logf("highway %s: ghost scan reclaimed %d fragment(s)", h.id, n)
	}
	return n
}

// GetTotalActiveFragments sums active across every lane.
func (h *Highway) GetTotalActiveFragments() int {
	h.growMu.Lock()
	snapshot := h.lanes
	h.growMu.Unlock()
	total := 0
	for _, l := range snapshot {
		total += l.Stats().Active
	}
	return total
}

// GetLaneCount returns the number of lanes the Highway has created so
// far.
func (h *Highway) GetLaneCount() int {
	h.growMu.Lock()
	defer h.growMu.Unlock()
	return len(h.lanes)
}

// LaneStats returns a snapshot of every lane's bookkeeping, in lane-id
// order.
func (h *Highway) LaneStats() []LaneStats {
	h.growMu.Lock()
	snapshot := h.lanes
	h.growMu.Unlock()
	out := make([]LaneStats, len(snapshot))
	for i, l := range snapshot {
		out[i] = l.Stats()
	}
	return out
}

// TrimIdle disposes and removes trailing lanes beyond the first that
// currently have zero active fragments and a zero bump offset. This
// supplements spec.md (a feature present in the arsuq/MemoryLanes
// original that the distillation dropped, see SPEC_FULL.md §6); it is
// never invoked automatically. It returns the number of lanes removed.
func (h *Highway) TrimIdle() (int, error) {
	h.growMu.Lock()
	defer h.growMu.Unlock()
	trimmed := 0
	for len(h.lanes) > 1 {
		last := h.lanes[len(h.lanes)-1]
		if !last.idle() {
			break
		}
		if err := last.dispose(); err != nil {
			return trimmed, newErr(BackendFault, fmt.Sprintf("dispose idle lane %d", last.id), err)
		}
		h.lanes = h.lanes[:len(h.lanes)-1]
		trimmed++
	}
	if trimmed > 0 {
		h.logf("highway %s: trimmed %d idle lane(s)", h.id, trimmed)
	}
	return trimmed, nil
}

// Dispose disposes every lane in order. After this call no allocation
// succeeds. Per-lane disposal failures are collected rather than
// aborting the loop (spec.md §5 resource policy); the returned error
// gives their count and wraps the first of them.
func (h *Highway) Dispose() error {
	h.disposeMu.Lock()
	if h.disposed {
		h.disposeMu.Unlock()
		return nil
	}
	h.disposed = true
	h.disposeMu.Unlock()

	h.growMu.Lock()
	lanes := h.lanes
	h.growMu.Unlock()

	var faults []error
	for _, l := range lanes {
		if err := l.dispose(); err != nil {
			faults = append(faults, err)
		}
	}
	if len(faults) == 0 {
		return nil
	}
	return newErr(BackendFault, fmt.Sprintf("%d lane(s) failed to dispose", len(faults)), faults[0])
}
