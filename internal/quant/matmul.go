package quant

import (
	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/scheduler"
)

// RowChunk is the matvec parallelization granularity: rows are claimed in
// groups of RowChunk so a single work item stays cache-resident for its
// dequantize-then-multiply pass, per spec.md §4.B's "keep the working set
// in L1" goal.
const RowChunk = 4

// MatVec computes out[row] = sum_c W[row,c] * x[c] for a weight matrix W
// stored as a quantized tensor of the given type, row-major, rows x cols.
// Each row is dequantized into a scratch buffer, allocated once per claimed
// row range and reused for the rows in it, and immediately reduced against x, so no full dequantized copy of W is ever
// materialized — the same "dequantize on-the-fly per chunk" strategy as
// yent/go/quant.go's MatMulQ4_0, generalized from Q4_0-only to any
// registered block type and moved off raw goroutines onto the work-stealing
// pool so callers share one scheduler.Pool across every matmul in a layer.
func MatVec(pool *scheduler.Pool, t Type, w []byte, rows, cols int, x []fixedpoint.Fixed, out []fixedpoint.Fixed) error {
	blockBytes := BlockBytes(t)
	elemsPerBlock := ElemsPerBlock(t)
	if blockBytes == 0 || elemsPerBlock == 0 {
		return ErrUnsupportedType
	}
	blocksPerRow := (cols + elemsPerBlock - 1) / elemsPerBlock
	bytesPerRow := blocksPerRow * blockBytes
	if len(w) < rows*bytesPerRow {
		return malformedLength(t, len(w), bytesPerRow)
	}

	decode := blockDecoder(t)
	if decode == nil {
		return ErrUnsupportedType
	}

	pool.ParallelFor(func(threadID, start, end int) {
		scratch := make([]fixedpoint.Fixed, blocksPerRow*elemsPerBlock)
		for row := start; row < end; row++ {
			rowOff := row * bytesPerRow
			for b := 0; b < blocksPerRow; b++ {
				off := rowOff + b*blockBytes
				decode(w[off:off+blockBytes], scratch[b*elemsPerBlock:(b+1)*elemsPerBlock])
			}
			var acc fixedpoint.Fixed
			for c := 0; c < cols; c++ {
				acc += fixedpoint.Mul(scratch[c], x[c])
			}
			out[row] = acc
		}
	}, rows, RowChunk)

	return nil
}

func blockDecoder(t Type) func([]byte, []fixedpoint.Fixed) {
	switch t {
	case TypeQ4K:
		return DequantizeQ4KBlock
	case TypeQ5K:
		return DequantizeQ5KBlock
	case TypeQ6K:
		return DequantizeQ6KBlock
	case TypeQ8_0:
		return DequantizeQ8_0Block
	case TypeQ8_1:
		return DequantizeQ8_1Block
	default:
		return nil
	}
}
