package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/kvcache"
	"github.com/embodios/forge/internal/quant"
	"github.com/embodios/forge/internal/scheduler"
	"github.com/embodios/forge/internal/status"
	"github.com/embodios/forge/internal/weights"
)

// LoadFromContainer builds a fully-wired State from a weight container,
// following spec.md §6's LLaMA-style tensor naming convention
// (token_embd.weight, output_norm.weight, output.weight,
// blk.{l}.attn_{norm,q,k,v,output}.weight, blk.{l}.ffn_{norm,gate,up,down}.weight)
// and metadata keys (embedding_length, block_count, attention.head_count,
// attention.head_count_kv, feed_forward_length, context_length). head_dim
// is derived as embedding_length/head_count, the standard LLaMA-family
// convention, since spec.md §6 does not name a separate head_dim key.
func LoadFromContainer(c weights.Container, windowSize int, pool *scheduler.Pool) (*State, error) {
	md := c.Metadata()
	cfg, err := configFromMetadata(md)
	if err != nil {
		return nil, err
	}

	cache, err := kvcache.New(cfg.NumLayers, cfg.MaxSeqLen, windowSize, cfg.KVDim(), kvcache.EvictionSlidingWindow)
	if err != nil {
		return nil, err
	}

	s, err := NewState(cfg, cache, pool)
	if err != nil {
		return nil, err
	}

	if err := loadEmbeddings(c, s); err != nil {
		return nil, err
	}
	for l := 0; l < cfg.NumLayers; l++ {
		w, err := loadLayerWeights(c, l, cfg)
		if err != nil {
			return nil, err
		}
		s.Layers[l] = w
	}

	logrus.Infof("engine: loaded model vocab=%d embd=%d layers=%d heads=%d kv_heads=%d ff=%d head_dim=%d max_seq=%d",
		cfg.VocabSize, cfg.EmbdDim, cfg.NumLayers, cfg.NumHeads, cfg.NumKVHeads, cfg.FFDim, cfg.HeadDim, cfg.MaxSeqLen)
	return s, nil
}

func configFromMetadata(md weights.Metadata) (Config, error) {
	embd, ok := md.Int("embedding_length")
	if !ok {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("metadata missing embedding_length"))
	}
	layers, ok := md.Int("block_count")
	if !ok {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("metadata missing block_count"))
	}
	heads, ok := md.Int("attention.head_count")
	if !ok {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("metadata missing attention.head_count"))
	}
	kvHeads, ok := md.Int("attention.head_count_kv")
	if !ok {
		kvHeads = heads // standard (non-GQA) models omit this key
	}
	ff, ok := md.Int("feed_forward_length")
	if !ok {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("metadata missing feed_forward_length"))
	}
	ctx, ok := md.Int("context_length")
	if !ok {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("metadata missing context_length"))
	}
	if heads == 0 {
		return Config{}, status.Wrap("engine.LoadFromContainer", status.Invalid, fmt.Errorf("attention.head_count must be nonzero"))
	}

	cfg := Config{
		EmbdDim:    embd,
		NumLayers:  layers,
		NumHeads:   heads,
		NumKVHeads: kvHeads,
		FFDim:      ff,
		HeadDim:    embd / heads,
		MaxSeqLen:  ctx,
		RMSEpsilon: fixedpoint.FromFloat64(1e-5),
	}
	if vocab, ok := tokenCount(md); ok {
		cfg.VocabSize = vocab
	}
	return cfg, cfg.Validate()
}

// tokenCount derives vocab size from the tokenizer vocabulary array when
// present, since spec.md §6 does not name a dedicated vocab-size key.
func tokenCount(md weights.Metadata) (int, bool) {
	tokens, ok := md["tokenizer.ggml.tokens"].([]any)
	if !ok {
		return 0, false
	}
	return len(tokens), true
}

func loadEmbeddings(c weights.Container, s *State) error {
	tokEmb, err := c.Lookup("token_embd.weight")
	if err != nil {
		return err
	}
	if err := quant.DequantizeTensor(tokEmb.Type, tokEmb.Bytes, tokEmb.ElemCount(), s.TokenEmbeddings); err != nil {
		return err
	}

	outNorm, err := c.Lookup("output_norm.weight")
	if err != nil {
		return err
	}
	s.OutputNorm = make(Vector, s.Config.EmbdDim)
	if err := quant.DequantizeTensor(outNorm.Type, outNorm.Bytes, outNorm.ElemCount(), s.OutputNorm); err != nil {
		return err
	}

	lmHead, err := c.Lookup("output.weight")
	if err != nil {
		return err
	}
	s.LMHead = Matrix{Bytes: lmHead.Bytes, Type: lmHead.Type, Rows: s.Config.VocabSize, Cols: s.Config.EmbdDim}
	return nil
}

func loadLayerWeights(c weights.Container, l int, cfg Config) (LayerWeights, error) {
	dense := func(name string, n int) (Vector, error) {
		t, err := c.Lookup(name)
		if err != nil {
			return nil, err
		}
		v := make(Vector, n)
		if err := quant.DequantizeTensor(t.Type, t.Bytes, t.ElemCount(), v); err != nil {
			return nil, err
		}
		return v, nil
	}
	mat := func(name string, rows, cols int) (Matrix, error) {
		t, err := c.Lookup(name)
		if err != nil {
			return Matrix{}, err
		}
		return Matrix{Bytes: t.Bytes, Type: t.Type, Rows: rows, Cols: cols}, nil
	}

	var w LayerWeights
	var err error
	p := fmt.Sprintf("blk.%d.", l)

	if w.AttnNorm, err = dense(p+"attn_norm.weight", cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.FFNNorm, err = dense(p+"ffn_norm.weight", cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.QProj, err = mat(p+"attn_q.weight", cfg.QDim(), cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.KProj, err = mat(p+"attn_k.weight", cfg.KVDim(), cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.VProj, err = mat(p+"attn_v.weight", cfg.KVDim(), cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.OProj, err = mat(p+"attn_output.weight", cfg.EmbdDim, cfg.QDim()); err != nil {
		return LayerWeights{}, err
	}
	if w.GateProj, err = mat(p+"ffn_gate.weight", cfg.FFDim, cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.UpProj, err = mat(p+"ffn_up.weight", cfg.FFDim, cfg.EmbdDim); err != nil {
		return LayerWeights{}, err
	}
	if w.DownProj, err = mat(p+"ffn_down.weight", cfg.EmbdDim, cfg.FFDim); err != nil {
		return LayerWeights{}, err
	}
	return w, nil
}
