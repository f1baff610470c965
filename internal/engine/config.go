// Package engine implements the transformer layer engine (spec.md §4.E)
// and the generation driver (§4.F): RMSNorm, QKV projection with RoPE,
// GQA/MQA causal attention over the KV cache, SwiGLU feed-forward, and the
// per-token forward/sample/reset loop.
//
// Grounded on ariannamethod/yent/go's forward-pass shape (embedding
// lookup -> per-layer apply -> final norm -> LM head -> sample), reworked
// from its float32 arithmetic onto fixedpoint.Fixed and the quant/
// scheduler/kvcache packages built for this module.
package engine

import (
	"fmt"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/status"
)

// Config holds model dimensions, matching spec.md §3 "Inference state"'s
// configuration fields.
type Config struct {
	VocabSize  int
	EmbdDim    int
	NumLayers  int
	NumHeads   int
	NumKVHeads int
	FFDim      int
	HeadDim    int
	MaxSeqLen  int
	RMSEpsilon fixedpoint.Fixed
}

// Validate checks the configuration-error bounds named in spec.md §7:
// every dimension must be positive, n_heads*head_dim must equal n_embd,
// and n_heads must be an exact multiple of n_kv_heads
// (required for GQA/MQA head grouping).
func (c Config) Validate() error {
	if c.VocabSize <= 0 || c.EmbdDim <= 0 || c.NumLayers <= 0 || c.NumHeads <= 0 ||
		c.NumKVHeads <= 0 || c.FFDim <= 0 || c.HeadDim <= 0 || c.MaxSeqLen <= 0 {
		return status.Wrap("engine.Config.Validate", status.Invalid,
			fmt.Errorf("all model dimensions must be positive, got %+v", c))
	}
	if c.NumHeads*c.HeadDim != c.EmbdDim {
		return status.Wrap("engine.Config.Validate", status.Invalid,
			fmt.Errorf("n_heads*head_dim (%d) must equal n_embd (%d)", c.NumHeads*c.HeadDim, c.EmbdDim))
	}
	if c.NumHeads%c.NumKVHeads != 0 {
		return status.Wrap("engine.Config.Validate", status.Invalid,
			fmt.Errorf("n_heads (%d) must be an exact multiple of n_kv_heads (%d)", c.NumHeads, c.NumKVHeads))
	}
	return nil
}

// KVDim returns n_kv_heads * head_dim, the width of one K or V row.
func (c Config) KVDim() int { return c.NumKVHeads * c.HeadDim }

// QDim returns n_heads * head_dim, the width of the Q projection.
func (c Config) QDim() int { return c.NumHeads * c.HeadDim }

// GroupSize returns how many query heads share one KV head (GQA/MQA).
func (c Config) GroupSize() int {
	if c.NumKVHeads == 0 {
		return 1
	}
	return c.NumHeads / c.NumKVHeads
}
