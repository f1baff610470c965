package engine

import (
	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/kvcache"
	"github.com/embodios/forge/internal/scheduler"
)

// LayerWeights bundles one transformer layer's parameters, per spec.md §3
// "layer weight bundle": two norm gains and the seven projection matrices.
type LayerWeights struct {
	AttnNorm Vector
	FFNNorm  Vector

	QProj Matrix
	KProj Matrix
	VProj Matrix
	OProj Matrix

	GateProj Matrix
	UpProj   Matrix
	DownProj Matrix
}

// Scratch holds the per-call buffers the layer engine reuses across every
// generated token, sized to the model's maxima at construction and never
// reallocated afterward (spec.md §3 inference-state invariant).
type Scratch struct {
	Normed   []fixedpoint.Fixed // n_embd
	Q        []fixedpoint.Fixed // n_heads*head_dim
	K        []fixedpoint.Fixed // n_kv_heads*head_dim
	V        []fixedpoint.Fixed // n_kv_heads*head_dim
	AttnOut  []fixedpoint.Fixed // n_heads*head_dim
	AttnProj []fixedpoint.Fixed // n_embd
	Gate     []fixedpoint.Fixed // ff_dim
	Up       []fixedpoint.Fixed // ff_dim
	FFNOut   []fixedpoint.Fixed // ff_dim
	FFNProj  []fixedpoint.Fixed // n_embd
	Scores   []fixedpoint.Fixed // max_seq_len
}

// NewScratch allocates a Scratch sized to cfg's maxima.
func NewScratch(cfg Config) *Scratch {
	return &Scratch{
		Normed:   make([]fixedpoint.Fixed, cfg.EmbdDim),
		Q:        make([]fixedpoint.Fixed, cfg.QDim()),
		K:        make([]fixedpoint.Fixed, cfg.KVDim()),
		V:        make([]fixedpoint.Fixed, cfg.KVDim()),
		AttnOut:  make([]fixedpoint.Fixed, cfg.QDim()),
		AttnProj: make([]fixedpoint.Fixed, cfg.EmbdDim),
		Gate:     make([]fixedpoint.Fixed, cfg.FFDim),
		Up:       make([]fixedpoint.Fixed, cfg.FFDim),
		FFNOut:   make([]fixedpoint.Fixed, cfg.FFDim),
		FFNProj:  make([]fixedpoint.Fixed, cfg.EmbdDim),
		Scores:   make([]fixedpoint.Fixed, cfg.MaxSeqLen),
	}
}

// ApplyLayer runs one full transformer layer (spec.md §4.E steps 1-9) on
// hidden in place, using and updating cache for layer ℓ at position p.
func ApplyLayer(pool *scheduler.Pool, rope *fixedpoint.RopeTable, cfg Config, w LayerWeights, cache *kvcache.Layer, hidden []fixedpoint.Fixed, p int, scratch *Scratch, invSqrtHeadDim fixedpoint.Fixed) error {
	// Step 1-2: residual1 is hidden itself (added back in place below);
	// normed := RMSNorm(hidden, attn_norm, eps).
	RMSNorm(scratch.Normed, hidden, w.AttnNorm, cfg.RMSEpsilon)

	// Step 3: QKV projection.
	if err := w.QProj.Project(pool, scratch.Normed, scratch.Q); err != nil {
		return err
	}
	if err := w.KProj.Project(pool, scratch.Normed, scratch.K); err != nil {
		return err
	}
	if err := w.VProj.Project(pool, scratch.Normed, scratch.V); err != nil {
		return err
	}

	// Step 4: RoPE in place on Q and K.
	ApplyRoPE(scratch.Q, rope, p, cfg.NumHeads, cfg.HeadDim)
	ApplyRoPE(scratch.K, rope, p, cfg.NumKVHeads, cfg.HeadDim)

	// Step 5: append K,V to the cache at position p.
	if err := cache.Store(p, scratch.K, scratch.V); err != nil {
		return err
	}

	// Step 6: causal attention against the cache.
	if err := Attention(scratch.AttnOut, scratch.Q, cache, cfg, p, invSqrtHeadDim, scratch.Scores); err != nil {
		return err
	}

	// Step 7: output projection, add to residual1.
	if err := w.OProj.Project(pool, scratch.AttnOut, scratch.AttnProj); err != nil {
		return err
	}
	for i := range hidden {
		hidden[i] += scratch.AttnProj[i]
	}

	// Step 8: residual2 is hidden itself; normed := RMSNorm(hidden, ffn_norm).
	RMSNorm(scratch.Normed, hidden, w.FFNNorm, cfg.RMSEpsilon)

	// Step 9: SwiGLU FFN, add to residual2.
	if err := w.GateProj.Project(pool, scratch.Normed, scratch.Gate); err != nil {
		return err
	}
	if err := w.UpProj.Project(pool, scratch.Normed, scratch.Up); err != nil {
		return err
	}
	SwiGLU(scratch.FFNOut, scratch.Gate, scratch.Up)
	if err := w.DownProj.Project(pool, scratch.FFNOut, scratch.FFNProj); err != nil {
		return err
	}
	for i := range hidden {
		hidden[i] += scratch.FFNProj[i]
	}

	return nil
}
