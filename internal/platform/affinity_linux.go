//go:build linux

package platform

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinToCPU locks the calling goroutine to its OS thread and restricts
// that thread to run on cpuID only, via sched_setaffinity.
func (SystemHAL) PinToCPU(cpuID int) error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("platform: pin to cpu %d: %w", cpuID, err)
	}
	return nil
}

// Yield relinquishes the current thread's remaining scheduling quantum.
func (SystemHAL) Yield() {
	_, _, _ = unix.Syscall(unix.SYS_SCHED_YIELD, 0, 0, 0)
}
