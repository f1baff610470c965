package weights

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/embodios/forge/internal/quant"
)

// encodeGGUF builds a minimal in-memory GGUF-shaped buffer with one string
// metadata key, one int32 metadata key, and one F32 tensor, mirroring the
// container shape ParseGGUF expects.
func encodeGGUF(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}
	wstr := func(s string) {
		w(uint64(len(s)))
		buf.WriteString(s)
	}

	w(Magic)
	w(uint32(3)) // version
	w(uint64(1)) // tensor count
	w(uint64(2)) // kv count

	// kv 1: string
	wstr("general.name")
	w(uint32(typeString))
	wstr("tinymodel")

	// kv 2: int32
	wstr("llama.embedding_length")
	w(uint32(typeInt32))
	w(int32(8))

	// tensor directory: name, ndims, dims..., type, offset
	wstr("token_embd.weight")
	w(uint32(1))
	w(uint64(8))
	w(uint32(quant.TypeF32))
	w(uint64(0))

	// pad to 32-byte alignment
	for buf.Len()%32 != 0 {
		buf.WriteByte(0)
	}

	// tensor data: 8 float32 values
	for i := 0; i < 8; i++ {
		w(float32(i))
	}

	return buf.Bytes()
}

func TestParseGGUFRoundTrip(t *testing.T) {
	raw := encodeGGUF(t)
	c, err := ParseGGUF(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseGGUF: %v", err)
	}

	name, ok := c.Metadata().String("general.name")
	if !ok || name != "tinymodel" {
		t.Errorf("general.name = %q, %v, want tinymodel, true", name, ok)
	}
	n, ok := c.Metadata().Int("llama.embedding_length")
	if !ok || n != 8 {
		t.Errorf("llama.embedding_length = %d, %v, want 8, true", n, ok)
	}

	tensor, err := c.Lookup("token_embd.weight")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if tensor.ElemCount() != 8 {
		t.Errorf("ElemCount() = %d, want 8", tensor.ElemCount())
	}
	if len(tensor.Bytes) != 32 {
		t.Errorf("len(Bytes) = %d, want 32", len(tensor.Bytes))
	}
}

func TestParseGGUFBadMagic(t *testing.T) {
	_, err := ParseGGUF(bytes.NewReader([]byte{0, 0, 0, 0}))
	if err == nil {
		t.Error("expected error for bad magic")
	}
}

func TestLookupNotFound(t *testing.T) {
	raw := encodeGGUF(t)
	c, err := ParseGGUF(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Lookup("does.not.exist"); err == nil {
		t.Error("expected ErrNotFound for missing tensor")
	}
}
