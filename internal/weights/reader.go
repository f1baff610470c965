package weights

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

var errUnknownValueType = errors.New("weights: unknown GGUF metadata value type")

func float32frombits(b uint32) float32 { return math.Float32frombits(b) }
func float64frombits(b uint64) float64 { return math.Float64frombits(b) }

// reader wraps an io.Reader with little-endian primitive decoders and a
// running byte count, so ParseGGUF can compute the tensor-data alignment
// padding without seeking (GGUF streams are not guaranteed seekable).
type reader struct {
	r        io.Reader
	consumed int
}

func (r *reader) read(buf []byte) error {
	n, err := io.ReadFull(r.r, buf)
	r.consumed += n
	return err
}

func (r *reader) u32() (uint32, error) {
	var buf [4]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (r *reader) u64() (uint64, error) {
	var buf [8]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func (r *reader) i32() (int32, error) {
	v, err := r.u32()
	return int32(v), err
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) f32() (float32, error) {
	v, err := r.u32()
	return float32frombits(v), err
}

func (r *reader) f64() (float64, error) {
	v, err := r.u64()
	return float64frombits(v), err
}

func (r *reader) u8() (byte, error) {
	var buf [1]byte
	if err := r.read(buf[:]); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// str reads a GGUF string: a uint64 byte length followed by that many
// raw (non-null-terminated) bytes.
func (r *reader) str() (string, error) {
	n, err := r.u64()
	if err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if err := r.read(buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (r *reader) skip(n int) (int, error) {
	buf := make([]byte, n)
	if err := r.read(buf); err != nil {
		return 0, err
	}
	return n, nil
}

// value decodes one GGUF metadata value given its preceding type tag,
// recursing for arrays. Scalar values are returned boxed as the narrowest
// Go type that matches what Metadata.Int/.String expect.
func (r *reader) value() (any, error) {
	typCode, err := r.u32()
	if err != nil {
		return nil, err
	}
	return r.valueOfType(ggufValueType(typCode))
}

func (r *reader) valueOfType(t ggufValueType) (any, error) {
	switch t {
	case typeUint8:
		return r.u8()
	case typeInt8:
		v, err := r.u8()
		return int8(v), err
	case typeUint16:
		var buf [2]byte
		if err := r.read(buf[:]); err != nil {
			return nil, err
		}
		return uint16(buf[0]) | uint16(buf[1])<<8, nil
	case typeInt16:
		var buf [2]byte
		if err := r.read(buf[:]); err != nil {
			return nil, err
		}
		return int16(uint16(buf[0]) | uint16(buf[1])<<8), nil
	case typeUint32:
		return r.u32()
	case typeInt32:
		return r.i32()
	case typeFloat32:
		return r.f32()
	case typeBool:
		v, err := r.u8()
		return v != 0, err
	case typeString:
		return r.str()
	case typeUint64:
		return r.u64()
	case typeInt64:
		return r.i64()
	case typeFloat64:
		return r.f64()
	case typeArray:
		elemType, err := r.u32()
		if err != nil {
			return nil, err
		}
		count, err := r.u64()
		if err != nil {
			return nil, err
		}
		out := make([]any, count)
		for i := range out {
			v, err := r.valueOfType(ggufValueType(elemType))
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	default:
		return nil, errUnknownValueType
	}
}
