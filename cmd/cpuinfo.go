package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/embodios/forge/internal/platform"
)

var cpuinfoCmd = &cobra.Command{
	Use:   "cpuinfo",
	Short: "Print detected CPU features and core count",
	Run: func(cmd *cobra.Command, args []string) {
		f := platform.Detect()
		fmt.Printf("arch: %s\n", f.Arch)
		fmt.Printf("num_cpu: %d\n", f.NumCPU)
		switch f.Arch {
		case "amd64":
			fmt.Printf("avx2: %v\n", f.HasAVX2)
			fmt.Printf("avx512f: %v\n", f.HasAVX512F)
			fmt.Printf("fma: %v\n", f.HasFMA)
		case "arm64":
			fmt.Printf("neon: %v\n", f.HasNEON)
			fmt.Printf("sve: %v\n", f.HasSVE)
			fmt.Printf("fp16: %v\n", f.HasARMFPHP)
		}
	},
}
