package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/embodios/forge/internal/fixedpoint"
)

// RMSNorm normalizes x in place (or into out if out != nil and distinct
// from x): mean of squares accumulated in 64 bits, rms = sqrt(meanSq +
// eps), rms == 0 treated as 1 to avoid a divide-by-zero, and each element
// scaled by weight[i] when weight is non-nil. Matches spec.md §4.E step 2.
func RMSNorm(out, x []fixedpoint.Fixed, weight Vector, eps fixedpoint.Fixed) {
	n := len(x)
	if n == 0 {
		return
	}

	var sumSq int64
	for _, v := range x {
		sumSq += int64(fixedpoint.Mul(v, v))
	}
	meanSq := fixedpoint.Fixed(sumSq / int64(n))

	rms := fixedpoint.Sqrt(meanSq + eps)
	if rms == 0 {
		// Transient numeric edge (spec.md §7): substitute a safe default
		// rather than dividing by zero, logged only at debug level so the
		// hot path stays silent in production.
		if logrus.IsLevelEnabled(logrus.DebugLevel) {
			logrus.Debug("engine.RMSNorm: rms == 0, substituting 1")
		}
		rms = fixedpoint.One
	}

	if out == nil {
		out = x
	}
	for i, v := range x {
		normed := fixedpoint.Div(v, rms)
		if weight != nil {
			normed = fixedpoint.Mul(normed, weight[i])
		}
		out[i] = normed
	}
}
