//go:build !linux

package platform

import "runtime"

// PinToCPU is a no-op outside Linux: the pack shows no portable affinity
// API for darwin/windows, so pinning degrades to ordinary goroutine
// scheduling there.
func (SystemHAL) PinToCPU(cpuID int) error {
	return nil
}

// Yield relinquishes the current goroutine's turn via runtime.Gosched,
// the closest portable equivalent to sched_yield.
func (SystemHAL) Yield() {
	runtime.Gosched()
}
