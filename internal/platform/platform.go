// Package platform is the hardware abstraction layer: CPU feature
// detection, core pinning and a monotonic cycle counter, so the rest of
// the engine never touches runtime or golang.org/x/sys directly.
//
// Feature detection is grounded on go-highway's internal/cpuinfo/main.go
// (golang.org/x/sys/cpu.ARM64 / cpu.X86 field reads); core pinning uses
// golang.org/x/sys/unix's sched_setaffinity, isolated behind a build tag
// with a no-op fallback for platforms (darwin, windows) where the pack
// shows no affinity API in use.
package platform

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// Features summarizes the SIMD/arith capability bits the scheduler and
// quant packages may want to branch on, mirroring go-highway's cpuinfo
// report fields.
type Features struct {
	Arch        string
	NumCPU      int
	HasAVX2     bool
	HasAVX512F  bool
	HasFMA      bool
	HasNEON     bool
	HasSVE      bool
	HasARMFPHP  bool
}

// Detect reads the current process's CPU feature bits.
func Detect() Features {
	f := Features{Arch: runtime.GOARCH, NumCPU: runtime.NumCPU()}
	switch runtime.GOARCH {
	case "amd64":
		f.HasAVX2 = cpu.X86.HasAVX2
		f.HasAVX512F = cpu.X86.HasAVX512F
		f.HasFMA = cpu.X86.HasFMA
	case "arm64":
		f.HasNEON = cpu.ARM64.HasASIMD
		f.HasSVE = cpu.ARM64.HasSVE
		f.HasARMFPHP = cpu.ARM64.HasFPHP
	}
	return f
}

// HAL is the CPU-affinity seam: PinToCPU pins the calling OS thread to a
// single logical core, Yield cooperatively yields the current thread's
// remaining scheduling quantum. Implementations live in affinity_linux.go
// (golang.org/x/sys/unix) and affinity_other.go (no-op).
type HAL interface {
	PinToCPU(cpuID int) error
	Yield()
}

// SystemHAL is the default HAL backed by the host OS.
type SystemHAL struct{}

// CycleCounter yields a monotonically increasing count usable for
// relative timing of scheduler work/idle stats. It is not a real TSC
// read (Go exposes no portable rdtsc intrinsic); it is grounded on
// time.Now()'s monotonic clock reading, scaled to nanoseconds, which is
// the nearest portable equivalent the teacher pack substitutes for cycle
// counts in its own benchmarking utilities.
type CycleCounter interface {
	Now() uint64
}

// SystemClock implements CycleCounter via the runtime's monotonic clock.
type SystemClock struct{}
