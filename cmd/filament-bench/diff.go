package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/filament-dev/filament/pkg/seqdiff"
)

func diffCmd() *cobra.Command {
	var (
		sizes []int
		churn float64
		iters int
		seed  int64
	)

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Measure sequence diff throughput",
		Long: `Generates integer sequences of the given sizes, derives a mutated copy
by replacing, inserting and deleting a 'churn' fraction of elements, and
times seqdiff.Diff between the two.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiff(sizes, churn, iters, seed)
		},
	}

	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 1000, 10000}, "sequence sizes to benchmark")
	cmd.Flags().Float64Var(&churn, "churn", 0.1, "fraction of elements mutated between old and new")
	cmd.Flags().IntVar(&iters, "iters", 50, "timed iterations per size")
	cmd.Flags().Int64Var(&seed, "seed", 1, "random seed for sequence generation")
	return cmd
}

func runDiff(sizes []int, churn float64, iters int, seed int64) error {
	if iters <= 0 {
		return fmt.Errorf("iters must be positive, got %d", iters)
	}
	if churn < 0 || churn > 1 {
		return fmt.Errorf("churn must be in [0,1], got %g", churn)
	}

	rng := rand.New(rand.NewSource(seed))

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetTitle("Sequence diff")
	tbl.AppendHeader(table.Row{"size", "records/diff", "avg", "min", "p75", "p99", "max"})

	for _, size := range sizes {
		old := make([]int, size)
		for i := range old {
			old[i] = rng.Intn(size)
		}
		mutated := mutate(rng, old, churn)

		tach := tachymeter.New(&tachymeter.Config{Size: iters})
		records := 0
		for i := 0; i < iters; i++ {
			start := time.Now()
			script := seqdiff.Diff(old, mutated, seqdiff.Sparse())
			tach.AddTime(time.Since(start))
			records = len(script)
		}

		calc := tach.Calc()
		tbl.AppendRow(table.Row{
			humanize.Comma(int64(size)),
			humanize.Comma(int64(records)),
			calc.Time.Avg,
			calc.Time.Min,
			calc.Time.P75,
			calc.Time.P99,
			calc.Time.Max,
		})
	}

	tbl.Render()
	return nil
}

// mutate derives a churned copy: a third of the budget each for
// replacements, deletions and insertions.
func mutate(rng *rand.Rand, src []int, churn float64) []int {
	out := append([]int(nil), src...)
	budget := int(float64(len(src)) * churn)
	if budget == 0 && churn > 0 {
		budget = 1
	}

	for i := 0; i < budget/3; i++ {
		out[rng.Intn(len(out))] = rng.Intn(len(src) * 2)
	}
	for i := 0; i < budget/3 && len(out) > 1; i++ {
		at := rng.Intn(len(out))
		out = append(out[:at], out[at+1:]...)
	}
	for i := 0; i < budget-2*(budget/3); i++ {
		at := rng.Intn(len(out) + 1)
		out = append(out[:at], append([]int{rng.Intn(len(src) * 2)}, out[at:]...)...)
	}
	return out
}
