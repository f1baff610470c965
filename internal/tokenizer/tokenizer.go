// Package tokenizer is the token-codec collaborator: id <-> piece mapping
// and text encode/decode.
//
// The Tokenizer interface is the thin seam the core consumes (spec.md §6);
// the one concrete implementation, BPE, is a byte-pair-encoding tokenizer
// built from a GGUF container's vocabulary metadata
// (tokenizer.ggml.tokens/scores/merges), grounded on the Tokenizer usage
// visible in yent/go/yent.go (NewTokenizer(&gguf.Meta), Encode, DecodeToken)
// — the tokenizer implementation itself was not retrieved from the teacher
// pack, so the BPE merge loop below is written fresh against the GGUF
// vocabulary convention those call sites assume.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/embodios/forge/internal/weights"
)

// Tokenizer is the interface the generation driver consumes.
type Tokenizer interface {
	Encode(text string, addBOS bool) []int
	Decode(ids []int) string
	Piece(id int) string
	BOS() int
	EOS() int
}

// BPE is a byte-pair-encoding tokenizer: a fixed vocabulary of pieces plus
// a greedy merge-rank pass, loaded once from GGUF metadata at model-load
// time and never mutated afterward.
type BPE struct {
	pieces        []string
	scores        []float32
	idOf          map[string]int
	mergeRank     map[[2]string]int
	bos, eos, unk int
}

// NewBPEFromMetadata builds a BPE tokenizer from a GGUF container's
// tokenizer.ggml.* metadata keys: tokens (array of piece strings), scores
// (array of float32 merge scores), merges (array of "a b" pair strings),
// and the bos/eos/unknown token ids.
func NewBPEFromMetadata(meta weights.Metadata) (*BPE, error) {
	rawTokens, ok := meta["tokenizer.ggml.tokens"]
	if !ok {
		return nil, fmt.Errorf("tokenizer: missing tokenizer.ggml.tokens metadata")
	}
	tokensAny, ok := rawTokens.([]any)
	if !ok {
		return nil, fmt.Errorf("tokenizer: tokenizer.ggml.tokens is not an array")
	}

	pieces := make([]string, len(tokensAny))
	idOf := make(map[string]int, len(tokensAny))
	for i, v := range tokensAny {
		s, _ := v.(string)
		pieces[i] = s
		idOf[s] = i
	}

	scores := make([]float32, len(pieces))
	if rawScores, ok := meta["tokenizer.ggml.scores"].([]any); ok {
		for i, v := range rawScores {
			if i >= len(scores) {
				break
			}
			if f, ok := v.(float32); ok {
				scores[i] = f
			}
		}
	}

	mergeRank := map[[2]string]int{}
	if rawMerges, ok := meta["tokenizer.ggml.merges"].([]any); ok {
		for rank, v := range rawMerges {
			s, _ := v.(string)
			parts := strings.SplitN(s, " ", 2)
			if len(parts) != 2 {
				continue
			}
			mergeRank[[2]string{parts[0], parts[1]}] = rank
		}
	}

	bos, _ := meta.Int("tokenizer.ggml.bos_token_id")
	eos, _ := meta.Int("tokenizer.ggml.eos_token_id")
	unk, _ := meta.Int("tokenizer.ggml.unknown_token_id")

	return &BPE{pieces: pieces, scores: scores, idOf: idOf, mergeRank: mergeRank, bos: bos, eos: eos, unk: unk}, nil
}

// BOS returns the beginning-of-sequence token id.
func (b *BPE) BOS() int { return b.bos }

// EOS returns the end-of-sequence token id.
func (b *BPE) EOS() int { return b.eos }

// Piece returns the literal piece text for id, or "" if out of range.
func (b *BPE) Piece(id int) string {
	if id < 0 || id >= len(b.pieces) {
		return ""
	}
	return b.pieces[id]
}

// Decode concatenates each id's piece, in order.
func (b *BPE) Decode(ids []int) string {
	var sb strings.Builder
	for _, id := range ids {
		sb.WriteString(b.Piece(id))
	}
	return sb.String()
}

// Encode splits text into Unicode code points (one symbol per rune, not per
// UTF-8 byte), then greedily merges adjacent symbol pairs in increasing
// merge-rank order until no known merge applies, mapping the resulting
// symbols to vocabulary ids. Unknown symbols map to the unk token.
func (b *BPE) Encode(text string, addBOS bool) []int {
	symbols := make([]string, 0, len(text))
	for _, r := range text {
		symbols = append(symbols, string(r))
	}

	for {
		bestRank := -1
		bestIdx := -1
		for i := 0; i+1 < len(symbols); i++ {
			rank, ok := b.mergeRank[[2]string{symbols[i], symbols[i+1]}]
			if ok && (bestRank == -1 || rank < bestRank) {
				bestRank = rank
				bestIdx = i
			}
		}
		if bestIdx == -1 {
			break
		}
		merged := symbols[bestIdx] + symbols[bestIdx+1]
		symbols = append(symbols[:bestIdx], append([]string{merged}, symbols[bestIdx+2:]...)...)
	}

	ids := make([]int, 0, len(symbols)+1)
	if addBOS {
		ids = append(ids, b.bos)
	}
	for _, s := range symbols {
		if id, ok := b.idOf[s]; ok {
			ids = append(ids, id)
		} else {
			ids = append(ids, b.unk)
		}
	}
	return ids
}
