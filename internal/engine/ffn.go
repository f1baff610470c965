package engine

import "github.com/embodios/forge/internal/fixedpoint"

// SwiGLU computes gate * sigmoidApprox(gate) * up elementwise, where
// sigmoidApprox(g) = 1/2 + 1/2 * g/(1+|g|) — the spec's deliberate
// non-transcendental stand-in for the logistic sigmoid (§4.E step 9).
func SwiGLU(out, gate, up []fixedpoint.Fixed) {
	for i, g := range gate {
		sigma := fixedpoint.One/2 + fixedpoint.Div(fixedpoint.Mul(fixedpoint.One/2, g), fixedpoint.One+fixedpoint.Abs(g))
		out[i] = fixedpoint.Mul(fixedpoint.Mul(g, sigma), up[i])
	}
}
