package engine

import (
	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/quant"
	"github.com/embodios/forge/internal/scheduler"
)

// Matrix is a projection weight: Rows x Cols, stored as a quantized
// tensor's raw bytes. A nil Bytes field marks the "unloaded" edge case
// from spec.md §4.E ("when weights are NULL, the projection acts as
// identity-mod-n_embd") — a test-surface-only mode, never hit once a real
// model is loaded.
type Matrix struct {
	Bytes []byte
	Type  quant.Type
	Rows  int
	Cols  int
}

// Project computes out = M * x (out has len Rows, x has len Cols),
// dispatching the dequantize-and-multiply through pool. A NULL matrix
// degrades to an identity-mod-n_embd copy, sized to Rows, purely so the
// layer engine has something deterministic to run in tests without real
// weights loaded.
func (m Matrix) Project(pool *scheduler.Pool, x, out []fixedpoint.Fixed) error {
	if m.Bytes == nil {
		for i := range out {
			out[i] = x[i%len(x)]
		}
		return nil
	}
	return quant.MatVec(pool, m.Type, m.Bytes, m.Rows, m.Cols, x, out)
}

// Vector is a per-element weight (RMSNorm gain, embedding row, LM-head
// bias-free row), stored densely in Q16.16 rather than quantized blocks.
type Vector []fixedpoint.Fixed
