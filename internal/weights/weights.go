// Package weights is the weight-container collaborator: tensor lookup by
// name plus the key/value metadata a model config is built from.
//
// Container is the thin interface the core consumes (spec.md §6); the one
// concrete implementation, GGUFContainer, parses a minimal GGUF-shaped
// file — magic, version, tensor directory, key/value metadata — enough to
// exercise Q4_K/Q5_K/Q6_K/Q8_0/F32/F16 tensors end-to-end. The tensor
// directory shape mirrors what go-highway/hwy/contrib/gguf/gguf_base.go
// decodes block-by-block; the container/file-format parsing itself (magic,
// version, KV section, tensor directory) is new code written fresh against
// the llama.cpp GGUF convention, since no GGUF reader was retrieved from
// the teacher pack.
package weights

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/embodios/forge/internal/quant"
	"github.com/embodios/forge/internal/status"
)

// Magic is the 4-byte GGUF file signature, "GGUF" little-endian.
const Magic uint32 = 0x46554747

// Tensor is one entry in the container's directory: its quant type, shape
// and the raw byte range to decode on demand.
type Tensor struct {
	Name  string
	Type  quant.Type
	Shape []int
	Bytes []byte
}

// ElemCount returns the product of Shape.
func (t Tensor) ElemCount() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Metadata exposes the key/value pairs a model config is built from
// (spec.md §6: embedding_length, block_count, attention.head_count,
// attention.head_count_kv, feed_forward_length, context_length, BOS/EOS/
// UNK ids), stored as a flat map keyed by the GGUF metadata key string.
type Metadata map[string]any

// Int returns md[key] as an int, or ok=false if absent or the wrong type.
func (md Metadata) Int(key string) (int, bool) {
	v, present := md[key]
	if !present {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case uint8:
		return int(n), true
	case int16:
		return int(n), true
	case uint16:
		return int(n), true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// String returns md[key] as a string, or ok=false if absent or the wrong
// type.
func (md Metadata) String(key string) (string, bool) {
	v, present := md[key]
	if !present {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Container is the interface the core consumes from the weight-container
// collaborator.
type Container interface {
	Lookup(name string) (Tensor, error)
	Metadata() Metadata
}

// ErrNotFound is returned by Lookup for an unknown tensor name.
var ErrNotFound = fmt.Errorf("weights: tensor not found")

// GGUFContainer is an in-memory GGUF-shaped container: every tensor's
// bytes are slices into one fully-read file buffer, so Lookup never
// allocates on the hot path.
type GGUFContainer struct {
	meta    Metadata
	tensors map[string]Tensor
}

// Lookup returns the named tensor's directory entry, or ErrNotFound.
func (c *GGUFContainer) Lookup(name string) (Tensor, error) {
	t, ok := c.tensors[name]
	if !ok {
		return Tensor{}, status.Wrap("weights.Lookup", status.NULL, fmt.Errorf("%w: %s", ErrNotFound, name))
	}
	return t, nil
}

// Metadata returns the container's key/value metadata map.
func (c *GGUFContainer) Metadata() Metadata { return c.meta }

// LoadGGUFFile reads and parses a GGUF-shaped file from path.
func LoadGGUFFile(path string) (*GGUFContainer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, status.Wrap("weights.LoadGGUFFile", status.NULL, err)
	}
	defer f.Close()
	return ParseGGUF(bufio.NewReader(f))
}

// ggufValueType enumerates the GGUF metadata value type codes.
type ggufValueType uint32

const (
	typeUint8 ggufValueType = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// ParseGGUF decodes a GGUF-shaped stream: magic, version, tensor count,
// metadata KV count, the metadata KV section, then the tensor directory,
// followed by the tensor data region (aligned per GGUF's alignment key,
// default 32).
func ParseGGUF(r io.Reader) (*GGUFContainer, error) {
	rr := &reader{r: r}

	magic, err := rr.u32()
	if err != nil {
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
	}
	if magic != Magic {
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, fmt.Errorf("bad magic %x", magic))
	}
	if _, err := rr.u32(); err != nil { // version, unchecked beyond presence
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
	}
	tensorCount, err := rr.u64()
	if err != nil {
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
	}
	kvCount, err := rr.u64()
	if err != nil {
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
	}

	meta := Metadata{}
	for i := uint64(0); i < kvCount; i++ {
		key, err := rr.str()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		val, err := rr.value()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		meta[key] = val
	}

	alignment := 32
	if a, ok := meta.Int("general.alignment"); ok && a > 0 {
		alignment = a
	}

	type pendingTensor struct {
		name   string
		shape  []int
		typ    quant.Type
		offset uint64
	}
	pending := make([]pendingTensor, 0, tensorCount)

	for i := uint64(0); i < tensorCount; i++ {
		name, err := rr.str()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		nDims, err := rr.u32()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		shape := make([]int, nDims)
		for d := range shape {
			dim, err := rr.u64()
			if err != nil {
				return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
			}
			shape[d] = int(dim)
		}
		typCode, err := rr.u32()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		offset, err := rr.u64()
		if err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
		pending = append(pending, pendingTensor{name: name, shape: shape, typ: quant.Type(typCode), offset: offset})
	}

	// Pad to the tensor-data alignment boundary.
	if pad := rr.consumed % alignment; pad != 0 {
		if _, err := rr.skip(alignment - pad); err != nil {
			return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
		}
	}
	// p.offset is relative to the start of the (now-aligned) data region,
	// which is exactly where rest begins.
	rest, err := io.ReadAll(rr.r)
	if err != nil {
		return nil, status.Wrap("weights.ParseGGUF", status.Invalid, err)
	}

	tensors := make(map[string]Tensor, len(pending))
	for _, p := range pending {
		start := int(p.offset)
		tensors[p.name] = Tensor{Name: p.name, Type: p.typ, Shape: p.shape, Bytes: tensorSlice(rest, start, p.typ, p.shape)}
	}

	return &GGUFContainer{meta: meta, tensors: tensors}, nil
}

// tensorSlice computes the byte span for a tensor starting at start given
// its element count and type's block size, clamping to rest's bounds
// rather than panicking on a malformed directory.
func tensorSlice(rest []byte, start int, t quant.Type, shape []int) []byte {
	n := 1
	for _, d := range shape {
		n *= d
	}
	var length int
	switch t {
	case quant.TypeF32:
		length = n * 4
	case quant.TypeF16:
		length = n * 2
	default:
		bb, epb := quant.BlockBytes(t), quant.ElemsPerBlock(t)
		if bb == 0 || epb == 0 {
			length = n * 4
		} else {
			length = ((n + epb - 1) / epb) * bb
		}
	}
	if start < 0 || start > len(rest) {
		return nil
	}
	end := start + length
	if end > len(rest) {
		end = len(rest)
	}
	return rest[start:end]
}
