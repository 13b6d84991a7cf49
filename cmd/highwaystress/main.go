// Command highwaystress drives a Highway with randomized concurrent
// allocation/dispose traffic, implementing the stress scenario from
// spec.md §8 (4 threads x 1000 allocations of random size in
// [1, 14000], disposed after a random delay in [0, 2000]ms). It is
// pure scaffolding, not part of the allocator core (spec.md §1): a
// thread pool plus a countdown latch (sync.WaitGroup) that reaches
// zero once every disposal has run, the same shape as
// tenant/dcache/dcache_test.go's concurrency tests.
package main

import (
	"flag"
	"log"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"github.com/sneller-labs/memhighway/highway"
)

func main() {
	workers := flag.Int("workers", 4, "concurrent goroutines")
	perWorker := flag.Int("n", 1000, "allocations per goroutine")
	maxSize := flag.Int("maxsize", 14000, "max allocation size in bytes")
	maxDelayMS := flag.Int("maxdelay", 2000, "max dispose delay in milliseconds")
	laneCapacity := flag.Int("lanecap", 64*1024, "default lane capacity")
	maxLanes := flag.Int("maxlanes", 64, "max lanes")
	flag.Parse()

	s := highway.DefaultSettings()
	s.DefaultCapacity = *laneCapacity
	s.MaxLanes = *maxLanes
	s.DisposalPolicy = highway.TrackGhosts

	hw, err := highway.NewHeapHighway(s)
	if err != nil {
		log.Fatalf("highwaystress: %s", err)
	}
	hw.Logger = log.Default()
	defer hw.Dispose()

	var wg sync.WaitGroup
	var fails, oks int64
	var mu sync.Mutex
	wg.Add(*workers)
	for w := 0; w < *workers; w++ {
		go func(seed int64) {
			defer wg.Done()
			rnd := rand.New(rand.NewSource(uint64(seed)))
			for i := 0; i < *perWorker; i++ {
				size := 1 + rnd.Intn(*maxSize)
				frag, err := hw.Alloc(size)
				if err != nil {
					mu.Lock()
					fails++
					mu.Unlock()
					continue
				}
				mu.Lock()
				oks++
				mu.Unlock()
				delay := time.Duration(rnd.Intn(*maxDelayMS+1)) * time.Millisecond
				wg.Add(1)
				go func() {
					defer wg.Done()
					time.Sleep(delay)
					frag.Dispose()
				}()
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	// every disposal has run by now; reconcile any handles that were
	// dropped rather than disposed.
	reclaimed := hw.ScanGhosts()

	log.Printf("highwaystress: ok=%d fail=%d ghosts-reclaimed=%d active=%d lanes=%d",
		oks, fails, reclaimed, hw.GetTotalActiveFragments(), hw.GetLaneCount())
}
