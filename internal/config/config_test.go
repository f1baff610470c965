package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/embodios/forge/internal/fixedpoint"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	yaml := `
model:
  vocab_size: 100
  embedding_length: 16
  block_count: 2
  attention_head_count: 4
  attention_head_count_kv: 2
  feed_forward_length: 32
  head_dim: 4
  context_length: 64
  rms_epsilon: 0.00001
runtime:
  workers: 2
  window_size: 32
  deterministic: true
  pin_cores: false
  cache_enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 100, cfg.Model.VocabSize)
	require.Equal(t, 2, cfg.Runtime.Workers)
	require.True(t, cfg.Runtime.Deterministic)
}

// TestLoadRejectsUnknownField is the R10-style strict-mode contract: a
// typo'd key must be a load error, not a silently-ignored field.
func TestLoadRejectsUnknownField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "defaults.yaml")
	yaml := "model:\n  vocabulary_size: 100\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEffectiveWindowSizeDefaultsToMaxSeqLen(t *testing.T) {
	cfg := Defaults()
	require.Equal(t, cfg.Model.MaxSeqLen, cfg.EffectiveWindowSize())

	cfg.Runtime.WindowSize = 32
	require.Equal(t, 32, cfg.EffectiveWindowSize())
}

func TestEngineConfigConvertsEpsilonToFixedPoint(t *testing.T) {
	cfg := Defaults()
	ec := cfg.EngineConfig()
	require.Equal(t, cfg.Model.EmbdDim, ec.EmbdDim)
	require.Equal(t, cfg.Model.NumHeads, ec.NumHeads)
	require.Equal(t, fixedpoint.FromFloat64(cfg.Model.RMSEpsilon), ec.RMSEpsilon)
}
