// Package cmd is forgectl's Cobra command tree: one subcommand per
// external operation a human operator needs to drive the inference core
// (run a generation, benchmark the scheduler/quant path, or inspect the
// detected CPU capabilities).
//
// Grounded on inference-sim/inference-sim's cmd/root.go shape: a package
// level rootCmd, one var block per subcommand's flags, and logrus for log
// and diagnostic output; command results are printed with fmt.
package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "forgectl",
	Short: "Bare-metal LLaMA-family inference engine control surface",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("invalid log level %q: %v", logLevel, err)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (debug, info, warn, error)")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(benchCmd)
	rootCmd.AddCommand(cpuinfoCmd)
}
