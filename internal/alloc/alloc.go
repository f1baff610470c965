// Package alloc is the physical-allocator collaborator: page-aligned
// allocation for the KV cache and scratch buffers, surfacing failure as an
// allocation error rather than panicking.
//
// A hosted Go process has no bare-metal page allocator, so the one
// concrete implementation here rounds requests up to the host's page size
// and defers to the runtime allocator — the necessarily host-backed
// substitute for spec.md §6's "physical allocator" collaborator.
package alloc

import (
	"errors"
	"os"

	"github.com/embodios/forge/internal/status"
)

var errNonPositiveSize = errors.New("alloc: size must be positive")

// Allocator hands out and reclaims byte buffers for the core's fixed
// allocations (KV cache rings, scratch vectors). It is called only at
// init time; the hot path never allocates.
type Allocator interface {
	Alloc(n int) ([]byte, error)
	Free(buf []byte)
}

// Host is the runtime-backed Allocator: Alloc rounds n up to a whole
// number of pages and returns a zeroed slice; Free is a no-op (the Go
// garbage collector reclaims the backing array once unreferenced).
type Host struct {
	pageSize int
}

// NewHost constructs a Host allocator using the OS-reported page size.
func NewHost() *Host {
	return &Host{pageSize: os.Getpagesize()}
}

// Alloc returns a zeroed buffer at least n bytes long, rounded up to a
// whole number of pages. n <= 0 is an invalid-argument error.
func (h *Host) Alloc(n int) ([]byte, error) {
	if n <= 0 {
		return nil, status.Wrap("alloc.Host.Alloc", status.Invalid, errNonPositiveSize)
	}
	pages := (n + h.pageSize - 1) / h.pageSize
	return make([]byte, pages*h.pageSize), nil
}

// Free is a no-op under the Go runtime allocator; present so callers can
// write symmetric alloc/free code matching the bare-metal collaborator's
// shape.
func (h *Host) Free(buf []byte) {}
