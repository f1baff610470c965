package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embodios/forge/internal/fixedpoint"
)

func TestSwiGLUAtZeroGateIsZero(t *testing.T) {
	gate := []fixedpoint.Fixed{0, 0}
	up := []fixedpoint.Fixed{fixedpoint.FromInt(5), fixedpoint.FromInt(-3)}
	out := make([]fixedpoint.Fixed, 2)
	SwiGLU(out, gate, up)
	for _, v := range out {
		require.InDelta(t, 0.0, fixedpoint.ToFloat64(v), 1e-3)
	}
}

// TestSwiGLULargePositiveGateApproachesGateTimesUp checks SiLU(g)->g as g->+inf
// (sigma approaches 1), so SwiGLU(g)*up approaches g*up for large g... but
// SwiGLU itself (not SiLU alone) scales by up directly once sigma~1, i.e.
// out -> gate*up.
func TestSwiGLULargePositiveGateApproachesGateTimesUp(t *testing.T) {
	gate := []fixedpoint.Fixed{fixedpoint.FromInt(50)}
	up := []fixedpoint.Fixed{fixedpoint.FromInt(2)}
	out := make([]fixedpoint.Fixed, 1)
	SwiGLU(out, gate, up)
	require.InDelta(t, 100.0, fixedpoint.ToFloat64(out[0]), 2.0)
}

// TestSwiGLULargeNegativeGateApproachesMinusHalfUp checks the large negative
// gate limit under the rational sigmoid 1/2 + 1/2*g/(1+|g|): g*sigma(g) =
// g/(2*(1+|g|)) tends to -1/2, so out -> -up/2. At g = -50 that is
// -50/51 * 2/2 = -0.98.
func TestSwiGLULargeNegativeGateApproachesMinusHalfUp(t *testing.T) {
	gate := []fixedpoint.Fixed{fixedpoint.FromInt(-50)}
	up := []fixedpoint.Fixed{fixedpoint.FromInt(2)}
	out := make([]fixedpoint.Fixed, 1)
	SwiGLU(out, gate, up)
	require.InDelta(t, -0.98, fixedpoint.ToFloat64(out[0]), 0.05)
}
