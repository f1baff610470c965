package quant

import "github.com/embodios/forge/internal/fixedpoint"

// DequantizeQ8_0Block decodes one 34-byte Q8_0 block (fp16 scale + 32 int8
// quants) into 32 Q16.16 values: out[i] = d * q[i].
func DequantizeQ8_0Block(block []byte, out []fixedpoint.Fixed) {
	d := half2fixed(block[0], block[1])
	qs := block[2:34]
	for i := 0; i < QK; i++ {
		out[i] = fixedpoint.Mul(d, fixedpoint.FromInt(int(int8(qs[i]))))
	}
}

// DequantizeQ8_1Block decodes one 36-byte Q8_1 block (fp16 d, fp16 s, 32
// int8 quants) into 32 Q16.16 values. s (the precomputed d*sum(q)) is not
// needed for a plain dequantize and is only consumed by FusedDotQ8_0Q8_1.
func DequantizeQ8_1Block(block []byte, out []fixedpoint.Fixed) {
	d := half2fixed(block[0], block[1])
	qs := block[4:36]
	for i := 0; i < QK; i++ {
		out[i] = fixedpoint.Mul(d, fixedpoint.FromInt(int(int8(qs[i]))))
	}
}

// FusedDotQ8_0Q8_1 computes the dot product of a Q8_0 block and a Q8_1
// block without ever materializing a dequantized float or fixed-point
// vector: the int8 quants are multiplied and summed in a plain int32
// accumulator, and the two blocks' scale factors are applied once, at the
// end, as a single Q16.16 multiply.
func FusedDotQ8_0Q8_1(a, b []byte) fixedpoint.Fixed {
	da := half2fixed(a[0], a[1])
	db := half2fixed(b[0], b[1])
	qa := a[2:34]
	qb := b[4:36]

	var acc int32
	for i := 0; i < QK; i++ {
		acc += int32(int8(qa[i])) * int32(int8(qb[i]))
	}
	return fixedpoint.Mul(fixedpoint.Mul(da, db), fixedpoint.FromInt(int(acc)))
}
