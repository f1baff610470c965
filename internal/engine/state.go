package engine

import (
	"errors"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/kvcache"
	"github.com/embodios/forge/internal/scheduler"
	"github.com/embodios/forge/internal/status"
)

// State is the generation driver's inference state (spec.md §3): model
// config, layer weights, embedding/LM-head references, the KV cache, the
// current position, and pre-allocated scratch. Initialized exactly once;
// scratch buffers and the KV cache are never reallocated during
// generation.
type State struct {
	Config Config

	TokenEmbeddings []fixedpoint.Fixed // [VocabSize][EmbdDim], row-major
	OutputNorm      Vector
	LMHead          Matrix // Rows=VocabSize, Cols=EmbdDim

	Layers []LayerWeights
	Cache  *kvcache.Cache

	Pool *scheduler.Pool
	Rope *fixedpoint.RopeTable

	CurrentPos int
	hidden     []fixedpoint.Fixed
	normedOut  []fixedpoint.Fixed
	scratch    *Scratch

	invSqrtHeadDim fixedpoint.Fixed
}

// ErrPositionExceedsMaxSeqLen is returned by Forward when current_pos has
// reached max_seq_len.
var ErrPositionExceedsMaxSeqLen = errors.New("engine: current position exceeds max_seq_len")

// ErrTokenIDOutOfRange is returned by Forward when tokenID falls outside
// [0, VocabSize) — spec.md §7's "invalid token id" input error, returned
// rather than left to fault on the embedding-table slice.
var ErrTokenIDOutOfRange = errors.New("engine: token id out of range")

// NewState allocates an inference state for cfg over the given KV cache and
// scheduler pool; a nil pool is replaced by scheduler.New(0), which picks the
// runtime default worker count. Returns a configuration error (spec.md §7)
// if cfg fails Validate.
func NewState(cfg Config, cache *kvcache.Cache, pool *scheduler.Pool) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if pool == nil {
		pool = scheduler.New(0)
	}
	rope := &fixedpoint.RopeTable{}
	rope.Init(cfg.HeadDim)

	invSqrt := fixedpoint.Div(fixedpoint.One, fixedpoint.Sqrt(fixedpoint.FromInt(cfg.HeadDim)))

	return &State{
		Config:          cfg,
		TokenEmbeddings: make([]fixedpoint.Fixed, cfg.VocabSize*cfg.EmbdDim),
		Layers:          make([]LayerWeights, cfg.NumLayers),
		Cache:           cache,
		Pool:            pool,
		Rope:            rope,
		hidden:          make([]fixedpoint.Fixed, cfg.EmbdDim),
		normedOut:       make([]fixedpoint.Fixed, cfg.EmbdDim),
		scratch:         NewScratch(cfg),
		invSqrtHeadDim:  invSqrt,
	}, nil
}

// Reset sets current_pos to 0 and resets every KV layer, preserving all
// allocations (spec.md §4.F).
func (s *State) Reset() {
	s.CurrentPos = 0
	s.Cache.Reset()
}

// Forward runs one token through embedding lookup, every transformer
// layer, the final RMSNorm and the LM head, writing n_vocab logits into
// out. Matches spec.md §4.F steps 1-6.
func (s *State) Forward(tokenID int, out []fixedpoint.Fixed) error {
	p := s.CurrentPos
	if p >= s.Config.MaxSeqLen {
		return status.Wrap("engine.Forward", status.OVERFLOW, ErrPositionExceedsMaxSeqLen)
	}
	if tokenID < 0 || tokenID >= s.Config.VocabSize {
		return status.Wrap("engine.Forward", status.Invalid, ErrTokenIDOutOfRange)
	}

	embOff := tokenID * s.Config.EmbdDim
	copy(s.hidden, s.TokenEmbeddings[embOff:embOff+s.Config.EmbdDim])

	for l := 0; l < s.Config.NumLayers; l++ {
		if err := ApplyLayer(s.Pool, s.Rope, s.Config, s.Layers[l], s.Cache.Layer(l), s.hidden, p, s.scratch, s.invSqrtHeadDim); err != nil {
			return err
		}
	}

	RMSNorm(s.normedOut, s.hidden, s.OutputNorm, s.Config.RMSEpsilon)

	if err := s.LMHead.Project(s.Pool, s.normedOut, out); err != nil {
		return err
	}

	s.CurrentPos++
	return nil
}
