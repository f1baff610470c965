package quant

import (
	"encoding/binary"
	"math"

	"github.com/embodios/forge/internal/fixedpoint"
)

// DequantizeTensor decodes src (elemCount elements of the given block type)
// into out, per block. It validates that src's length is a multiple of the
// block size, clamps out-of-range block indices, and returns
// ErrUnsupportedType for a type with no decoder.
func DequantizeTensor(t Type, src []byte, elemCount int, out []fixedpoint.Fixed) error {
	switch t {
	case TypeF32:
		return dequantizeF32(src, elemCount, out)
	case TypeF16:
		return dequantizeF16(src, elemCount, out)
	case TypeQ8_0:
		return dequantizeBlocked(t, src, elemCount, out, BlockBytesQ8_0, QK, DequantizeQ8_0Block)
	case TypeQ8_1:
		return dequantizeBlocked(t, src, elemCount, out, BlockBytesQ8_1, QK, DequantizeQ8_1Block)
	case TypeQ4K:
		return dequantizeBlocked(t, src, elemCount, out, BlockBytesQ4K, QKK, DequantizeQ4KBlock)
	case TypeQ5K:
		return dequantizeBlocked(t, src, elemCount, out, BlockBytesQ5K, QKK, DequantizeQ5KBlock)
	case TypeQ6K:
		return dequantizeBlocked(t, src, elemCount, out, BlockBytesQ6K, QKK, DequantizeQ6KBlock)
	default:
		return ErrUnsupportedType
	}
}

func dequantizeBlocked(t Type, src []byte, elemCount int, out []fixedpoint.Fixed, blockBytes, elemsPerBlock int, decode func([]byte, []fixedpoint.Fixed)) error {
	if len(src)%blockBytes != 0 {
		return malformedLength(t, len(src), blockBytes)
	}
	nblocks := len(src) / blockBytes
	wantBlocks := (elemCount + elemsPerBlock - 1) / elemsPerBlock
	if wantBlocks > nblocks {
		wantBlocks = nblocks
	}
	for b := 0; b < wantBlocks; b++ {
		bi := clampBlockIndex(b, nblocks)
		off := bi * blockBytes
		outOff := b * elemsPerBlock
		end := outOff + elemsPerBlock
		if end > len(out) {
			end = len(out)
		}
		if end <= outOff {
			continue
		}
		scratch := make([]fixedpoint.Fixed, elemsPerBlock)
		decode(src[off:off+blockBytes], scratch)
		copy(out[outOff:end], scratch[:end-outOff])
	}
	return nil
}

func dequantizeF32(src []byte, elemCount int, out []fixedpoint.Fixed) error {
	if len(src) < elemCount*4 {
		return malformedLength(TypeF32, len(src), 4)
	}
	for i := 0; i < elemCount; i++ {
		bits := binary.LittleEndian.Uint32(src[i*4:])
		f := math.Float32frombits(bits)
		out[i] = fixedpoint.FromFloat64(float64(f))
	}
	return nil
}

func dequantizeF16(src []byte, elemCount int, out []fixedpoint.Fixed) error {
	if len(src) < elemCount*2 {
		return malformedLength(TypeF16, len(src), 2)
	}
	for i := 0; i < elemCount; i++ {
		out[i] = half2fixed(src[i*2], src[i*2+1])
	}
	return nil
}
