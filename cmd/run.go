package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/embodios/forge/internal/config"
	"github.com/embodios/forge/internal/engine"
	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/scheduler"
	"github.com/embodios/forge/internal/tokenizer"
	"github.com/embodios/forge/internal/weights"
)

var (
	modelPath     string
	configPath    string
	prompt        string
	maxNewTokens  int
	deterministic bool
	workers       int
	temperature   float64
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load a weight file and greedily decode a prompt",
	RunE:  runRun,
}

func init() {
	runCmd.Flags().StringVar(&modelPath, "model", "", "path to a GGUF-shaped weight file (required)")
	runCmd.Flags().StringVar(&configPath, "config", "", "optional YAML runtime-defaults file")
	runCmd.Flags().StringVar(&prompt, "prompt", "", "prompt text to encode and feed before generating")
	runCmd.Flags().IntVar(&maxNewTokens, "tokens", 10, "number of tokens to greedily decode")
	runCmd.Flags().BoolVar(&deterministic, "deterministic", false, "run the scheduler in fixed-partition deterministic mode")
	runCmd.Flags().IntVar(&workers, "workers", 0, "scheduler worker count (0 = runtime default)")
	runCmd.Flags().Float64Var(&temperature, "temperature", 1.0, "sampling temperature (1.0 = no scaling)")
	_ = runCmd.MarkFlagRequired("model")
}

func runRun(cmd *cobra.Command, args []string) error {
	rtCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	container, err := weights.LoadGGUFFile(modelPath)
	if err != nil {
		return fmt.Errorf("run: load model: %w", err)
	}

	n := workers
	if n == 0 {
		n = rtCfg.Runtime.Workers
	}
	pool := scheduler.New(n)
	if deterministic {
		pool.SetDeterministic(true)
	} else if rtCfg.Runtime.Deterministic {
		pool.SetDeterministic(true)
	}
	if rtCfg.Runtime.PinCores {
		pool.PinCores(true)
	}

	state, err := engine.LoadFromContainer(container, rtCfg.EffectiveWindowSize(), pool)
	if err != nil {
		return fmt.Errorf("run: build inference state: %w", err)
	}
	state.Cache.Enable(rtCfg.Runtime.CacheEnabled)

	tok, err := tokenizer.NewBPEFromMetadata(container.Metadata())
	if err != nil {
		return fmt.Errorf("run: build tokenizer: %w", err)
	}

	ids := tok.Encode(prompt, true)
	outLogits := make([]fixedpoint.Fixed, state.Config.VocabSize)

	var generated []int
	for _, id := range ids {
		if err := state.Forward(id, outLogits); err != nil {
			return fmt.Errorf("run: forward (prompt): %w", err)
		}
	}

	temp := fixedpoint.FromFloat64(temperature)
	nextTok := ids[len(ids)-1]
	for i := 0; i < maxNewTokens; i++ {
		if err := state.Forward(nextTok, outLogits); err != nil {
			logrus.Warnf("run: forward stopped early: %v", err)
			break
		}
		nextTok = engine.Sample(outLogits, temp, 0)
		generated = append(generated, nextTok)
	}

	fmt.Println(tok.Decode(generated))
	return nil
}
