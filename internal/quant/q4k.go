package quant

import "github.com/embodios/forge/internal/fixedpoint"

// DequantizeQ4KBlock decodes one 144-byte Q4_K super-block into 256 Q16.16
// values. Layout: d(2) + dmin(2) + scales(12) + qs(128); 8 sub-blocks of 32
// values with 6-bit packed per-sub-block scales and mins.
//
//	out[i] = d*scale[sub] * q4 - dmin*min[sub]
//
// The scale/min unpacking (the 6-bit packed format spanning 12 bytes) is
// grounded on go-highway's BaseDequantizeQ4K (itself grounded on
// llama.cpp's get_scale_min_k4), reworked to accumulate in Q16.16 instead
// of float32.
func DequantizeQ4KBlock(block []byte, out []fixedpoint.Fixed) {
	d := half2fixed(block[0], block[1])
	dmin := half2fixed(block[2], block[3])
	scales := block[4:16]
	qs := block[16:144]

	var scs, mns [8]int
	for j := 0; j < 4; j++ {
		scs[j] = int(scales[j] & 63)
		mns[j] = int(scales[j+4] & 63)
	}
	for j := 4; j < 8; j++ {
		scs[j] = int(scales[j+4]&0xF) | int(scales[j-4]>>6)<<4
		mns[j] = int(scales[j+4]>>4) | int(scales[j]>>6)<<4
	}

	qOff := 0
	outIdx := 0
	for chunk := 0; chunk < 4; chunk++ {
		is := chunk * 2
		dsc0 := fixedpoint.Mul(d, fixedpoint.FromInt(scs[is]))
		dmm0 := fixedpoint.Mul(dmin, fixedpoint.FromInt(mns[is]))
		dsc1 := fixedpoint.Mul(d, fixedpoint.FromInt(scs[is+1]))
		dmm1 := fixedpoint.Mul(dmin, fixedpoint.FromInt(mns[is+1]))

		for i := 0; i < 32; i++ {
			lo := int(qs[qOff+i] & 0x0F)
			out[outIdx+i] = fixedpoint.Mul(dsc0, fixedpoint.FromInt(lo)) - dmm0
		}
		for i := 0; i < 32; i++ {
			hi := int(qs[qOff+i] >> 4)
			out[outIdx+32+i] = fixedpoint.Mul(dsc1, fixedpoint.FromInt(hi)) - dmm1
		}

		qOff += 32
		outIdx += 64
	}
}
