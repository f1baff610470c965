package quant

import "github.com/embodios/forge/internal/fixedpoint"

// DequantizeQ6KBlock decodes one 210-byte Q6_K super-block into 256 Q16.16
// values. Layout: ql(128) + qh(64) + scales(16, int8) + d(2, fp16); 16
// sub-blocks of 16 values, each with its own int8 scale.
//
//	out[i] = d * scale[sub] * (q6 - 32)
//
// Sub-block addressing is grounded on go-highway's BaseDequantizeQ6K.
func DequantizeQ6KBlock(block []byte, out []fixedpoint.Fixed) {
	ql := block[0:128]
	qh := block[128:192]
	sc := block[192:208]
	d := half2fixed(block[208], block[209])

	for j := 0; j < 16; j++ {
		scaleVal := fixedpoint.Mul(d, fixedpoint.FromInt(int(int8(sc[j]))))
		baseOut := j * 16

		half := j / 8
		group := (j % 8) / 2
		lBase := (j % 2) * 16
		qlOff := half*64 + (group&1)*32
		qhOff := half * 32
		qhShift := uint(group * 2)
		nibbleShift := uint((group / 2) * 4)

		for i := 0; i < 16; i++ {
			l := lBase + i
			low4 := int((ql[qlOff+l] >> nibbleShift) & 0xF)
			high2 := int((qh[qhOff+l] >> qhShift) & 3)
			out[baseOut+i] = fixedpoint.Mul(scaleVal, fixedpoint.FromInt((low4|(high2<<4))-32))
		}
	}
}
