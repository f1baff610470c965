package tokenizer

import (
	"testing"

	"github.com/embodios/forge/internal/weights"
)

func testMeta() weights.Metadata {
	return weights.Metadata{
		"tokenizer.ggml.tokens": []any{
			"<s>", "</s>", "<unk>", "h", "e", "l", "o", "he", "ll", "hell", "hello",
		},
		"tokenizer.ggml.merges": []any{
			"h e",
			"l l",
			"he ll",
			"hell o",
		},
		"tokenizer.ggml.bos_token_id":     int32(0),
		"tokenizer.ggml.eos_token_id":     int32(1),
		"tokenizer.ggml.unknown_token_id": int32(2),
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	bpe, err := NewBPEFromMetadata(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	ids := bpe.Encode("hello", false)
	got := bpe.Decode(ids)
	if got != "hello" {
		t.Errorf("Decode(Encode(hello)) = %q, want hello", got)
	}
}

func TestEncodeAddsBOS(t *testing.T) {
	bpe, err := NewBPEFromMetadata(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	ids := bpe.Encode("hello", true)
	if len(ids) == 0 || ids[0] != bpe.BOS() {
		t.Errorf("Encode with addBOS=true should prepend BOS id, got %v", ids)
	}
}

func TestPieceOutOfRange(t *testing.T) {
	bpe, err := NewBPEFromMetadata(testMeta())
	if err != nil {
		t.Fatal(err)
	}
	if bpe.Piece(-1) != "" || bpe.Piece(1000) != "" {
		t.Error("Piece() for an out-of-range id should return empty string")
	}
}

func TestMissingTokensMetadataErrors(t *testing.T) {
	if _, err := NewBPEFromMetadata(weights.Metadata{}); err == nil {
		t.Error("expected error when tokenizer.ggml.tokens is missing")
	}
}
