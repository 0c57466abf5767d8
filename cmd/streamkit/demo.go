package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/pipeline"
)

// demoInput is the sample sequence used by the demo command.
var demoInput = []int{1, 2, 2, 3, 4, 5, 6}

func newDemoCmd(a *app) *cobra.Command {
	var (
		output string
		trace  bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run filter(even) | map(square) | distinct | limit(2) on 1 2 2 3 4 5 6",
		Long: `Runs the sample pipeline and prints [4 16].

With --trace every element pulled from the source is reported on stderr,
showing that 5 and 6 are never read.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src := pipeline.Of(demoInput...)
			if trace {
				errOut := cmd.ErrOrStderr()
				src = src.Tap(func(_ context.Context, v int) error {
					_, err := fmt.Fprintf(errOut, "pull %d\n", v)
					return err
				})
			}
			p := demoPipeline(observability.Observe(src, "demo", "source", a.metrics))

			var out []int
			err := observability.Run(cmd.Context(), "demo", a.metrics, func(ctx context.Context) error {
				var err error
				out, err = pipeline.Collect(ctx, p)
				return err
			})
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), output, out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	cmd.Flags().BoolVar(&trace, "trace", false, "report each pulled source element on stderr")
	return cmd
}

func demoPipeline(src *pipeline.Pipeline[int]) *pipeline.Pipeline[int] {
	squares := src.
		Filter(func(n int) bool { return n%2 == 0 }).
		Map(func(_ context.Context, n int) (int, error) { return n * n, nil })
	return pipeline.Distinct(squares).Limit(2)
}
