package kvcache

import "github.com/embodios/forge/internal/status"

// FloatLayer mirrors Layer's storage and eviction contract exactly, but
// over float32 rows instead of fixedpoint.Fixed, for the floating-point
// attention variant (spec.md §1: "a parallel floating-point variant over a
// work-stealing pool"). Kept as a distinct type rather than a generic
// Layer[T] per DESIGN.md's note that unifying the two element types was
// deferred: the fixed-point path is the reference/production path and
// stays untouched, while this sibling exists to drive the floating
// attention variant end to end in tests.
type FloatLayer struct {
	maxSeqLen  int
	windowSize int
	kvDim      int
	policy     EvictionPolicy

	keys   []float32 // flat [maxSeqLen][kvDim]
	values []float32

	seqLen   int
	startPos int
	enabled  bool

	stats Stats
}

// NewFloatLayer allocates one layer's float32 K/V ring, mirroring
// NewLayer's dimension checks and window clamping.
func NewFloatLayer(maxSeqLen, windowSize, kvDim int, policy EvictionPolicy) (*FloatLayer, error) {
	if maxSeqLen <= 0 || kvDim <= 0 {
		return nil, status.Wrap("kvcache.NewFloatLayer", status.Invalid, errInvalidDims)
	}
	if windowSize <= 0 || windowSize > maxSeqLen {
		windowSize = maxSeqLen
	}
	return &FloatLayer{
		maxSeqLen:  maxSeqLen,
		windowSize: windowSize,
		kvDim:      kvDim,
		policy:     policy,
		keys:       make([]float32, maxSeqLen*kvDim),
		values:     make([]float32, maxSeqLen*kvDim),
		enabled:    true,
	}, nil
}

// Enable toggles whether Store actually writes.
func (l *FloatLayer) Enable(on bool) { l.enabled = on }

// SeqLen returns the count of currently populated positions.
func (l *FloatLayer) SeqLen() int { return l.seqLen }

// StartPos returns the window base: the oldest retained absolute position.
func (l *FloatLayer) StartPos() int { return l.startPos }

// Stats returns a copy of this layer's accumulated statistics.
func (l *FloatLayer) Stats() Stats { return l.stats }

// Reset clears the layer back to empty without reallocating.
func (l *FloatLayer) Reset() {
	l.seqLen = 0
	l.startPos = 0
	l.stats = Stats{}
}

// Store writes (k, v) for absolute position p, running eviction first if
// needed. Identical semantics to Layer.Store, typed over float32.
func (l *FloatLayer) Store(p int, k, v []float32) error {
	if !l.enabled {
		return nil
	}
	if len(k) != l.kvDim || len(v) != l.kvDim {
		return status.Wrap("kvcache.FloatLayer.Store", status.Invalid, errDimMismatch)
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

func (l *FloatLayer) indexForStore(p int) (int, error) {
	switch l.policy {
	case EvictionRing:
		if p >= l.startPos+l.windowSize {
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
			return 0, status.Wrap("kvcache.FloatLayer.Store", status.BOUNDS, errOutOfWindow)
		}
		return local, nil

	default: // EvictionNone
		local := p - l.startPos
		if local < 0 || local >= l.maxSeqLen {
			return 0, status.Wrap("kvcache.FloatLayer.Store", status.BOUNDS, errOverflow)
		}
		return local, nil
	}
}

func (l *FloatLayer) inWindow(p int) bool {
	return p >= l.startPos && p < l.startPos+l.seqLen
}

// GetKeys returns the resident key rows for positions [start, end).
func (l *FloatLayer) GetKeys(start, end int) ([]float32, error) {
	return l.getRows(l.keys, start, end)
}

// GetValues mirrors GetKeys for the value rows.
func (l *FloatLayer) GetValues(start, end int) ([]float32, error) {
	return l.getRows(l.values, start, end)
}

func (l *FloatLayer) getRows(backing []float32, start, end int) ([]float32, error) {
	if end <= start {
		return nil, nil
	}
	for p := start; p < end; p++ {
		if !l.inWindow(p) {
			return nil, status.Wrap("kvcache.FloatLayer.Get", status.BOUNDS, errOutOfWindow)
		}
	}
	l.stats.Hits += uint64(end - start)

	if l.policy != EvictionRing {
		off := (start - l.startPos) * l.kvDim
		n := (end - start) * l.kvDim
		return backing[off : off+n], nil
	}

	out := make([]float32, (end-start)*l.kvDim)
	for p := start; p < end; p++ {
		localIdx := p % l.maxSeqLen
		srcOff := localIdx * l.kvDim
		dstOff := (p - start) * l.kvDim
		copy(out[dstOff:dstOff+l.kvDim], backing[srcOff:srcOff+l.kvDim])
	}
	return out, nil
}
