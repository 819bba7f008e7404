package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/filament-dev/filament/pkg/filament"
)

func propagateCmd() *cobra.Command {
	var (
		widths   []int
		heights  []int
		iters    int
		deferred bool
	)

	cmd := &cobra.Command{
		Use:   "propagate",
		Short: "Measure change propagation through computed grids",
		Long: `Builds width x height grids: one source observable feeding 'width'
independent chains of 'height' computeds each, with a subscriber at every
chain's end. Each iteration writes the source and times the write until all
subscribers have seen the new value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPropagate(widths, heights, iters, deferred)
		},
	}

	cmd.Flags().IntSliceVar(&widths, "widths", []int{1, 10, 100}, "grid widths to benchmark")
	cmd.Flags().IntSliceVar(&heights, "heights", []int{1, 10, 100}, "grid heights to benchmark")
	cmd.Flags().IntVar(&iters, "iters", 100, "timed iterations per grid")
	cmd.Flags().BoolVar(&deferred, "deferred", false, "extend the source with deferred notifications")
	return cmd
}

func runPropagate(widths, heights []int, iters int, deferred bool) error {
	if iters <= 0 {
		return fmt.Errorf("iters must be positive, got %d", iters)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	title := "Propagation"
	if deferred {
		title += " (deferred)"
	}
	tbl.SetTitle(title)
	tbl.AppendHeader(table.Row{"grid", "deliveries", "avg", "min", "p75", "p99", "max"})

	for _, w := range widths {
		for _, h := range heights {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rt := filament.New()
			src := filament.NewObservable(rt, 1)
			if deferred {
				src.Extend(filament.Deferred())
			}

			delivered := 0
			for i := 0; i < w; i++ {
				get := src.Get
				for j := 0; j < h; j++ {
					prev := get
					c := filament.NewComputed(rt, func() int {
						return prev() + 1
					})
					get = c.Get
				}
				last := get
				filament.NewComputed(rt, func() int {
					return last()
				}).Subscribe(func(int) {
					delivered++
				})
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Peek() + 1)
				rt.Flush()
				tach.AddTime(time.Since(start))
			}

			calc := tach.Calc()
			tbl.AppendRow(table.Row{
				fmt.Sprintf("%d x %d", w, h),
				humanize.Comma(int64(delivered)),
				calc.Time.Avg,
				calc.Time.Min,
				calc.Time.P75,
				calc.Time.P99,
				calc.Time.Max,
			})
		}
	}

	tbl.Render()
	return nil
}
