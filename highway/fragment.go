package highway

import "sync/atomic"

// Fragment is a lease over [off, off+len) of a specific Lane at a
// specific cycle. It does not own any bytes — it is a lease whose
// lifetime must not outlive its Lane — and it releases its slot on
// disposal. Disposal is idempotent and safe from any goroutine; the
// idiom (an atomic.Bool compare-and-swap gate) mirrors the CAS loop
// vm.Free uses to flip its bitmap bit exactly once.
type Fragment struct {
	lane         *Lane
	cycleAtBirth uint64
	offset       int
	length       int
	// disposed is a pointer rather than an inline atomic.Bool so that a
	// ghostRecord can hold the same flag and still observe a disposal
	// that happens after the Fragment itself has been garbage
	// collected (see ghost.go).
	disposed *atomic.Bool
}

func newFragment(l *Lane, cycle uint64, off, length int) *Fragment {
	return &Fragment{lane: l, cycleAtBirth: cycle, offset: off, length: length, disposed: new(atomic.Bool)}
}

// Len returns the fragment's length in bytes.
func (f *Fragment) Len() int { return f.length }

// LaneID returns the stable index of the lane this fragment leases
// from.
func (f *Fragment) LaneID() int { return f.lane.id }

// valid reports whether the lane has not yet drained past the cycle
// this fragment was born into (spec.md §3, Fragment invariant).
func (f *Fragment) valid() bool {
	return f.lane.cycle.Load() == f.cycleAtBirth
}

func (f *Fragment) checkLive() error {
	if f.disposed.Load() {
		return newErr(DisposedAccess, "use of disposed fragment", nil)
	}
	if !f.valid() {
		return newErr(DisposedAccess, "fragment's lane has moved past its cycle", nil)
	}
	return nil
}

// Write copies all of src into the fragment's window starting at
// dstOff. It bypasses all lane-level locks: because every
// live fragment's window within a lane is disjoint, concurrent
// read/write across distinct fragments of the same lane is safe
// without synchronization (concurrent writers to the *same* fragment
// are the caller's own risk, per spec.md §4.3).
func (f *Fragment) Write(dstOff int, src []byte) error {
	if err := f.checkLive(); err != nil {
		return err
	}
	if err := boundsCheck(f.length, dstOff, len(src)); err != nil {
		return err
	}
	return f.lane.storage.writeAt(f.offset+dstOff, src)
}

// Read copies len(dst) bytes starting at srcOff within the fragment's
// window into dst, returning the number of bytes copied.
func (f *Fragment) Read(srcOff int, dst []byte) (int, error) {
	if err := f.checkLive(); err != nil {
		return 0, err
	}
	if err := boundsCheck(f.length, srcOff, len(dst)); err != nil {
		return 0, err
	}
	return f.lane.storage.readAt(f.offset+srcOff, dst)
}

// Span returns a direct, unsynchronized view of the fragment's entire
// window. The view is valid only until the fragment's lane drains past
// its birth cycle.
func (f *Fragment) Span() ([]byte, error) {
	if err := f.checkLive(); err != nil {
		return nil, err
	}
	return f.lane.storage.span(f.offset, f.length)
}

// CopyTo copies this fragment's full contents into dst, which must be
// at least as long. It is a bounds-checked copy over two backend
// windows with no intermediate user-space buffer, so a frame can be
// relayed between two highways without an extra allocation
// (SPEC_FULL.md §6). No other code in this module calls it.
func (f *Fragment) CopyTo(dst *Fragment) (int, error) {
	if err := f.checkLive(); err != nil {
		return 0, err
	}
	if err := dst.checkLive(); err != nil {
		return 0, err
	}
	if dst.length < f.length {
		return 0, newErr(InvalidArgument, "destination fragment shorter than source", nil)
	}
	src, err := f.Span()
	if err != nil {
		return 0, err
	}
	if err := dst.Write(0, src); err != nil {
		return 0, err
	}
	return len(src), nil
}

// Dispose releases the fragment's slot in its lane. It is safe to call
// any number of times from any goroutine; only the first call has any
// effect.
func (f *Fragment) Dispose() {
	if !f.disposed.CompareAndSwap(false, true) {
		return
	}
	f.lane.onFragmentDisposed()
}
