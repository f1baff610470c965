package engine

import "github.com/embodios/forge/internal/fixedpoint"

// ApplyRoPE rotates vec in place, treating it as n_heads consecutive
// head_dim-wide segments. Each head's pairs (vec[2d], vec[2d+1]) are
// rotated by the cached cos/sin at (position, d), per spec.md §4.E step 4.
func ApplyRoPE(vec []fixedpoint.Fixed, table *fixedpoint.RopeTable, position, numHeads, headDim int) {
	half := headDim / 2
	for h := 0; h < numHeads; h++ {
		base := h * headDim
		for d := 0; d < half; d++ {
			cos := table.Cos(position, d)
			sin := table.Sin(position, d)
			x0 := vec[base+2*d]
			x1 := vec[base+2*d+1]
			vec[base+2*d] = fixedpoint.Mul(x0, cos) - fixedpoint.Mul(x1, sin)
			vec[base+2*d+1] = fixedpoint.Mul(x0, sin) + fixedpoint.Mul(x1, cos)
		}
	}
}
