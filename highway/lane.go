package highway

import (
	"sync/atomic"
	"time"
)

// Lane wraps one storage backend; it serializes the allocation offset,
// tracks the active-fragment count and a monotonic cycle counter, and
// issues Fragments. Allocation is first-fit-from-the-left within a
// single lane: once freed, space is only reusable after the whole lane
// drains (a cycle flip). This keeps the bump pointer a single counter
// and avoids per-fragment metadata at the backend, mirroring the
// teacher's bitmap-indexed page allocator in vm/malloc.go, generalized
// from fixed pageSize slots to arbitrary-length fragments.
type Lane struct {
	id       int
	capacity int
	storage  backend

	// sem is a 1-buffered channel used as a mutex that supports a
	// bounded wait, grounded on tenant/dcache/worker.go's
	// queue.tryBackground select/default idiom, generalized to also
	// support a timed wait (select on time.After) and an indefinite
	// blocking wait.
	sem chan struct{}

	offset int
	active int
	// cycle is read lock-free by Fragment.valid(), so every mutation
	// (always made while holding sem) uses sync/atomic too, rather than
	// mixing atomic reads with plain writes on the same word.
	cycle atomic.Uint64

	totalAllocs uint64
	totalBytes  uint64
}

func newLane(id, capacity int, b backend) *Lane {
	l := &Lane{
		id:       id,
		capacity: capacity,
		storage:  b,
		sem:      make(chan struct{}, 1),
	}
	l.sem <- struct{}{}
	return l
}

func (l *Lane) lock(awaitMS int) bool {
	d, indefinite, immediate := awaitDuration(awaitMS)
	if indefinite {
		<-l.sem
		return true
	}
	if immediate {
		select {
		case <-l.sem:
			return true
		default:
			return false
		}
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-l.sem:
		return true
	case <-timer.C:
		return false
	}
}

func (l *Lane) unlock() {
	l.sem <- struct{}{}
}

// tryAlloc attempts to carve length bytes from the lane. It returns a
// LaneLockTimeout-tagged error if the lock-await budget was exceeded, a
// LaneFull-tagged error if the lock was acquired but the lane lacks
// room, or a bound Fragment on success.
func (l *Lane) tryAlloc(length, awaitMS int) (*Fragment, error) {
	if length <= 0 {
		return nil, newErr(InvalidArgument, "length must be positive", nil)
	}
	if !l.lock(awaitMS) {
		return nil, newErr(LaneLockTimeout, "lane lock wait exceeded budget", nil)
	}
	if l.offset+length > l.capacity {
		l.unlock()
		return nil, newErr(LaneFull, "lane lacks remaining capacity", nil)
	}
	off := l.offset
	l.offset += length
	l.active++
	cycle := l.cycle.Load()
	atomic.AddUint64(&l.totalAllocs, 1)
	atomic.AddUint64(&l.totalBytes, uint64(length))
	l.unlock()
	return newFragment(l, cycle, off, length), nil
}

// onFragmentDisposed decrements the active count and, if it reaches
// zero, advances the cycle and resets the bump pointer. Storage bytes
// are not wiped; callers that need zeroing must do it themselves
// (spec.md §4.2).
func (l *Lane) onFragmentDisposed() {
	l.lock(-1)
	defer l.unlock()
	if l.active == 0 {
		// Already fully drained; a well-behaved caller never reaches
		// this, but guard against double-accounting rather than
		// underflowing.
		return
	}
	l.active--
	if l.active == 0 {
		l.cycle.Add(1)
		l.offset = 0
	}
}

// resetOne compensates the lane's accounting for a fragment that was
// never disposed but has been confirmed unreachable by the ghost
// tracker. It is a no-op if the lane's cycle has already advanced past
// cycleStamp, matching spec.md §4.5.
func (l *Lane) resetOne(cycleStamp uint64) {
	l.lock(-1)
	defer l.unlock()
	if cycleStamp != l.cycle.Load() {
		return
	}
	if l.active > 0 {
		l.active--
	}
	if l.active == 0 {
		l.cycle.Add(1)
		l.offset = 0
	}
}

// LaneStats is a point-in-time snapshot of a Lane's bookkeeping,
// useful for diagnostics and for the property tests in spec.md §8.
type LaneStats struct {
	ID          int
	Capacity    int
	Offset      int
	Active      int
	Cycle       uint64
	TotalAllocs uint64
	TotalBytes  uint64
}

// Stats returns a snapshot of the lane's current bookkeeping.
func (l *Lane) Stats() LaneStats {
	l.lock(-1)
	defer l.unlock()
	return LaneStats{
		ID:          l.id,
		Capacity:    l.capacity,
		Offset:      l.offset,
		Active:      l.active,
		Cycle:       l.cycle.Load(),
		TotalAllocs: atomic.LoadUint64(&l.totalAllocs),
		TotalBytes:  atomic.LoadUint64(&l.totalBytes),
	}
}

// ID returns the lane's stable index within its highway.
func (l *Lane) ID() int { return l.id }

// idle reports whether the lane has zero active fragments and its bump
// pointer is at the start, i.e. it has nothing live and nothing to
// drain — the condition TrimIdle uses to decide a lane is reclaimable.
func (l *Lane) idle() bool {
	l.lock(-1)
	defer l.unlock()
	return l.active == 0 && l.offset == 0
}

func (l *Lane) dispose() error {
	return l.storage.dispose()
}
