package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filament-bench",
		Short: "Benchmarks for the filament reactive runtime",
		Long: `filament-bench measures the hot paths of the filament runtime:

  • propagate - change propagation latency through observable/computed grids
  • diff      - sequence diff throughput over generated slices

Latency percentiles come from tachymeter; results render as tables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		propagateCmd(),
		diffCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("filament-bench %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
