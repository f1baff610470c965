// Package kvcache implements the layered key/value cache: a per-layer ring
// of (K,V) rows with bounded memory, sliding-window eviction and hit/store
// statistics, written exclusively by the generation driver and read by the
// attention routine within the same layer call.
//
// Grounded on limpha/shards.go's sharded-store layout (fixed backing arrays,
// no reallocation after construction) and spec.md §4.D's eviction/stats
// contract, reworked from limpha's persistent memory-shard model to a
// per-layer, per-position K/V ring with no persistence.
package kvcache

import (
	"errors"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/status"
)

var (
	errInvalidDims = errors.New("kvcache: maxSeqLen and kvDim must be positive")
	errDimMismatch = errors.New("kvcache: k/v length must equal kvDim")
	errOutOfWindow = errors.New("kvcache: position outside retained window")
	errOverflow    = errors.New("kvcache: store at position exceeds max_seq_len with eviction disabled")
)

// EvictionPolicy selects how a layer's cache behaves once a store reaches
// past the retained window (StartPos + window size, the window size
// defaulting to MaxSeqLen).
type EvictionPolicy int

const (
	// EvictionNone errors on overflow instead of evicting.
	EvictionNone EvictionPolicy = iota
	// EvictionSlidingWindow rebases the retained window to index 0 by
	// copying on overflow, keeping attention's scan a contiguous slice.
	EvictionSlidingWindow
	// EvictionRing bumps start_pos and indexes modulo MaxSeqLen, avoiding
	// the copy at the cost of modular addressing at read time.
	EvictionRing
)

// Stats accumulates a layer's cache activity for diagnostics.
type Stats struct {
	Hits       uint64
	Stores     uint64
	Evictions  uint64
	Recomputes uint64
}

// Layer is one transformer layer's K/V ring: two contiguous arrays shaped
// [MaxSeqLen][KVDim], plus the window bookkeeping from spec.md §3 ("KV
// cache"): SeqLen (populated count), StartPos (window base).
type Layer struct {
	maxSeqLen  int
	windowSize int
	kvDim      int
	policy     EvictionPolicy

	keys   []fixedpoint.Fixed // flat [maxSeqLen][kvDim]
	values []fixedpoint.Fixed

	seqLen   int
	startPos int
	enabled  bool

	stats Stats
}

// NewLayer allocates one layer's K/V ring. windowSize must be <= maxSeqLen;
// it is clamped if not. kvDim is n_kv_heads * head_dim.
func NewLayer(maxSeqLen, windowSize, kvDim int, policy EvictionPolicy) (*Layer, error) {
	if maxSeqLen <= 0 || kvDim <= 0 {
		return nil, status.Wrap("kvcache.NewLayer", status.Invalid, errInvalidDims)
	}
	if windowSize <= 0 || windowSize > maxSeqLen {
		windowSize = maxSeqLen
	}
	return &Layer{
		maxSeqLen:  maxSeqLen,
		windowSize: windowSize,
		kvDim:      kvDim,
		policy:     policy,
		keys:       make([]fixedpoint.Fixed, maxSeqLen*kvDim),
		values:     make([]fixedpoint.Fixed, maxSeqLen*kvDim),
		enabled:    true,
	}, nil
}

// Enable toggles whether Store actually writes; Get* still read whatever
// was last stored regardless of the flag.
func (l *Layer) Enable(on bool) { l.enabled = on }

// SeqLen returns the count of currently populated positions.
func (l *Layer) SeqLen() int { return l.seqLen }

// StartPos returns the window base: the oldest retained absolute position.
func (l *Layer) StartPos() int { return l.startPos }

// Stats returns a copy of this layer's accumulated statistics.
func (l *Layer) Stats() Stats { return l.stats }

// Reset clears the layer back to empty without reallocating the backing
// arrays, matching the invariant that scratch/cache buffers never
// reallocate during generation.
func (l *Layer) Reset() {
	l.seqLen = 0
	l.startPos = 0
	l.stats = Stats{}
}

// Store writes (k, v) for absolute position p. If p falls at or beyond
// startPos+windowSize, the configured eviction policy runs first.
// EvictionNone never evicts and returns an overflow error once p-startPos
// reaches maxSeqLen.
func (l *Layer) Store(p int, k, v []fixedpoint.Fixed) error {
	if !l.enabled {
		return nil
	}
	if len(k) != l.kvDim || len(v) != l.kvDim {
		return status.Wrap("kvcache.Store", status.Invalid, errDimMismatch)
	}

	localIdx, err := l.indexForStore(p)
	if err != nil {
		return err
	}

	off := localIdx * l.kvDim
	copy(l.keys[off:off+l.kvDim], k)
	copy(l.values[off:off+l.kvDim], v)

	if p >= l.startPos+l.seqLen {
		l.seqLen = p - l.startPos + 1
	}
	l.stats.Stores++
	return nil
}

// indexForStore translates absolute position p into a local slot index,
// running eviction first if p would overflow the backing array.
func (l *Layer) indexForStore(p int) (int, error) {
	switch l.policy {
	case EvictionRing:
		if p >= l.startPos+l.windowSize {
			// Advance start_pos so the ring always holds the most recent
			// windowSize positions ending at p.
			newStart := p - l.windowSize + 1
			if newStart < 0 {
				newStart = 0
			}
			if newStart > l.startPos {
				l.stats.Evictions += uint64(newStart - l.startPos)
				l.startPos = newStart
				if l.seqLen > l.windowSize {
					l.seqLen = l.windowSize
				}
			}
		}
		return p % l.maxSeqLen, nil

	case EvictionSlidingWindow:
		if p >= l.startPos+l.windowSize {
			newStart := p - l.windowSize + 1
			if newStart < 0 {
				newStart = 0
			}
			shift := newStart - l.startPos
			if shift > 0 {
				retained := l.seqLen - shift
				if retained < 0 {
					retained = 0
				}
				for i := 0; i < retained; i++ {
					srcOff := (i + shift) * l.kvDim
					dstOff := i * l.kvDim
					copy(l.keys[dstOff:dstOff+l.kvDim], l.keys[srcOff:srcOff+l.kvDim])
					copy(l.values[dstOff:dstOff+l.kvDim], l.values[srcOff:srcOff+l.kvDim])
				}
				l.stats.Evictions += uint64(shift)
				l.startPos = newStart
				l.seqLen = retained
			}
		}
		local := p - l.startPos
		if local < 0 || local >= l.maxSeqLen {
			return 0, status.Wrap("kvcache.Store", status.BOUNDS, errOutOfWindow)
		}
		return local, nil

	default: // EvictionNone
		local := p - l.startPos
		if local < 0 || local >= l.maxSeqLen {
			return 0, status.Wrap("kvcache.Store", status.BOUNDS, errOverflow)
		}
		return local, nil
	}
}

// inWindow reports whether absolute position p is currently resident.
func (l *Layer) inWindow(p int) bool {
	return p >= l.startPos && p < l.startPos+l.seqLen
}

// GetKeys returns the resident key rows for positions [start, end)
// (absolute), or a bounds error if any requested position is outside the
// retained window. For EvictionRing the returned slice is a fresh copy
// (rows are not contiguous modulo the ring); for the other policies it is
// a direct view into the backing array.
func (l *Layer) GetKeys(start, end int) ([]fixedpoint.Fixed, error) {
	return l.getRows(l.keys, start, end)
}

// GetValues mirrors GetKeys for the value rows.
func (l *Layer) GetValues(start, end int) ([]fixedpoint.Fixed, error) {
	return l.getRows(l.values, start, end)
}

func (l *Layer) getRows(backing []fixedpoint.Fixed, start, end int) ([]fixedpoint.Fixed, error) {
	if end <= start {
		return nil, nil
	}
	for p := start; p < end; p++ {
		if !l.inWindow(p) {
			return nil, status.Wrap("kvcache.Get", status.BOUNDS, errOutOfWindow)
		}
	}
	l.stats.Hits += uint64(end - start)

	if l.policy != EvictionRing {
		off := (start - l.startPos) * l.kvDim
		n := (end - start) * l.kvDim
		return backing[off : off+n], nil
	}

	out := make([]fixedpoint.Fixed, (end-start)*l.kvDim)
	for p := start; p < end; p++ {
		localIdx := p % l.maxSeqLen
		srcOff := localIdx * l.kvDim
		dstOff := (p - start) * l.kvDim
		copy(out[dstOff:dstOff+l.kvDim], backing[srcOff:srcOff+l.kvDim])
	}
	return out, nil
}
