// Package config loads the engine's optional YAML defaults file: model
// dimensions, scheduler worker count, deterministic mode and the KV cache
// window size, falling back to built-in defaults when no file is given.
//
// Grounded on inference-sim/inference-sim's cmd/default_config.go: a
// strict-mode (KnownFields(true)) yaml.v3 decode so a typo'd key is a load
// error rather than a silently-ignored field, per that repo's R10 rule.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/embodios/forge/internal/engine"
	"github.com/embodios/forge/internal/fixedpoint"
)

// ModelConfig mirrors engine.Config's fields in their GGUF-metadata naming,
// for YAML round-tripping at the CLI boundary.
type ModelConfig struct {
	VocabSize  int     `yaml:"vocab_size"`
	EmbdDim    int     `yaml:"embedding_length"`
	NumLayers  int     `yaml:"block_count"`
	NumHeads   int     `yaml:"attention_head_count"`
	NumKVHeads int     `yaml:"attention_head_count_kv"`
	FFDim      int     `yaml:"feed_forward_length"`
	HeadDim    int     `yaml:"head_dim"`
	MaxSeqLen  int     `yaml:"context_length"`
	RMSEpsilon float64 `yaml:"rms_epsilon"`
}

// RuntimeConfig holds the ambient engine knobs a human operator tunes at
// the CLI/config layer rather than at the weight-container layer.
type RuntimeConfig struct {
	Workers       int  `yaml:"workers"`
	WindowSize    int  `yaml:"window_size"`
	Deterministic bool `yaml:"deterministic"`
	PinCores      bool `yaml:"pin_cores"`
	CacheEnabled  bool `yaml:"cache_enabled"`
}

// File is the top-level shape of an optional defaults YAML file. Every
// top-level section must be listed here to satisfy KnownFields(true): an
// unrecognized key at any level is a load error, not a silent no-op.
type File struct {
	Model   ModelConfig   `yaml:"model"`
	Runtime RuntimeConfig `yaml:"runtime"`
}

// Defaults returns the built-in configuration, sized for the TinyLlama-class
// reference model named in spec.md §8 scenario 1.
func Defaults() File {
	return File{
		Model: ModelConfig{
			VocabSize:  32000,
			EmbdDim:    2048,
			NumLayers:  22,
			NumHeads:   32,
			NumKVHeads: 4,
			FFDim:      5632,
			HeadDim:    64,
			MaxSeqLen:  128,
			RMSEpsilon: 1e-5,
		},
		Runtime: RuntimeConfig{
			Workers:       0, // 0 -> runtime.NumCPU(), clamped to scheduler.MaxWorkers
			WindowSize:    0, // 0 -> no sliding window, i.e. MaxSeqLen
			Deterministic: false,
			PinCores:      false,
			CacheEnabled:  true,
		},
	}
}

// Load reads and strictly parses a YAML defaults file at path. An empty
// path returns Defaults() unchanged.
func Load(path string) (File, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// EngineConfig converts the YAML-facing ModelConfig into engine.Config,
// rounding RMSEpsilon into Q16.16 once at load time.
func (f File) EngineConfig() engine.Config {
	m := f.Model
	return engine.Config{
		VocabSize:  m.VocabSize,
		EmbdDim:    m.EmbdDim,
		NumLayers:  m.NumLayers,
		NumHeads:   m.NumHeads,
		NumKVHeads: m.NumKVHeads,
		FFDim:      m.FFDim,
		HeadDim:    m.HeadDim,
		MaxSeqLen:  m.MaxSeqLen,
		RMSEpsilon: fixedpoint.FromFloat64(m.RMSEpsilon),
	}
}

// EffectiveWindowSize returns the configured KV window size, defaulting to
// the model's MaxSeqLen when unset (0).
func (f File) EffectiveWindowSize() int {
	if f.Runtime.WindowSize <= 0 {
		return f.Model.MaxSeqLen
	}
	return f.Runtime.WindowSize
}
