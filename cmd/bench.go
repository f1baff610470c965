package cmd

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/embodios/forge/internal/fixedpoint"
	"github.com/embodios/forge/internal/quant"
	"github.com/embodios/forge/internal/scheduler"
)

var (
	benchRows          int
	benchCols          int
	benchIters         int
	benchWorkers       int
	benchDeterministic bool
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Benchmark the work-stealing scheduler over a synthetic quantized matmul",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchRows, "rows", 4096, "matrix rows")
	benchCmd.Flags().IntVar(&benchCols, "cols", 4096, "matrix cols")
	benchCmd.Flags().IntVar(&benchIters, "iters", 10, "number of matmul iterations")
	benchCmd.Flags().IntVar(&benchWorkers, "workers", 0, "scheduler worker count (0 = runtime default)")
	benchCmd.Flags().BoolVar(&benchDeterministic, "deterministic", false, "use fixed-partition scheduling")
}

func runBench(cmd *cobra.Command, args []string) error {
	pool := scheduler.New(benchWorkers)
	pool.SetDeterministic(benchDeterministic)

	blockBytes := quant.BlockBytes(quant.TypeQ8_0)
	elemsPerBlock := quant.ElemsPerBlock(quant.TypeQ8_0)
	blocksPerRow := (benchCols + elemsPerBlock - 1) / elemsPerBlock
	w := make([]byte, benchRows*blocksPerRow*blockBytes)
	x := make([]fixedpoint.Fixed, benchCols)
	out := make([]fixedpoint.Fixed, benchRows)

	logrus.Infof("bench: matvec rows=%d cols=%d iters=%d workers=%d deterministic=%v",
		benchRows, benchCols, benchIters, pool.NumWorkers(), pool.Deterministic())

	start := time.Now()
	for i := 0; i < benchIters; i++ {
		if err := quant.MatVec(pool, quant.TypeQ8_0, w, benchRows, benchCols, x, out); err != nil {
			return fmt.Errorf("bench: matvec: %w", err)
		}
	}
	elapsed := time.Since(start)

	fmt.Printf("total=%s avg_per_iter=%s\n", elapsed, elapsed/time.Duration(benchIters))
	for t := 0; t < pool.NumWorkers(); t++ {
		s := pool.CoreStatsFor(t)
		fmt.Printf("worker %d: items=%d invocations=%d\n", t, s.ItemsDone, s.Invocations)
	}
	return nil
}
