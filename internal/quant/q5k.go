package quant

import "github.com/embodios/forge/internal/fixedpoint"

// DequantizeQ5KBlock decodes one 176-byte Q5_K super-block into 256 Q16.16
// values. Layout: d(2) + dmin(2) + scales(12) + qs(128) + qh(32) — the Q4_K
// layout plus 32 bytes of high-bit planes giving 5-bit quants. Scale/min
// packing is identical to Q4_K; grounded on go-highway's BaseDequantizeQ5K.
func DequantizeQ5KBlock(block []byte, out []fixedpoint.Fixed) {
	d := half2fixed(block[0], block[1])
	dmin := half2fixed(block[2], block[3])
	scales := block[4:16]
	ql := block[16:144]
	qh := block[144:176]

	var scs, mns [8]int
	for j := 0; j < 4; j++ {
		scs[j] = int(scales[j] & 63)
		mns[j] = int(scales[j+4] & 63)
	}
	for j := 4; j < 8; j++ {
		scs[j] = int(scales[j+4]&0xF) | int(scales[j-4]>>6)<<4
		mns[j] = int(scales[j+4]>>4) | int(scales[j]>>6)<<4
	}

	qlOff := 0
	outIdx := 0
	for chunk := 0; chunk < 4; chunk++ {
		is := chunk * 2
		dsc0 := fixedpoint.Mul(d, fixedpoint.FromInt(scs[is]))
		dmm0 := fixedpoint.Mul(dmin, fixedpoint.FromInt(mns[is]))
		dsc1 := fixedpoint.Mul(d, fixedpoint.FromInt(scs[is+1]))
		dmm1 := fixedpoint.Mul(dmin, fixedpoint.FromInt(mns[is+1]))

		hbShift0 := uint(chunk * 2)
		hbShift1 := uint(chunk*2 + 1)

		for i := 0; i < 32; i++ {
			q := int(ql[qlOff+i]&0xF) + int((qh[i]>>hbShift0)&1)*16
			out[outIdx+i] = fixedpoint.Mul(dsc0, fixedpoint.FromInt(q)) - dmm0
		}
		for i := 0; i < 32; i++ {
			q := int(ql[qlOff+i]>>4) + int((qh[i]>>hbShift1)&1)*16
			out[outIdx+32+i] = fixedpoint.Mul(dsc1, fixedpoint.FromInt(q)) - dmm1
		}

		qlOff += 32
		outIdx += 64
	}
}
