package main

import (
	"bufio"
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kbukum/streamkit/errors"
	"github.com/kbukum/streamkit/logger"
	"github.com/kbukum/streamkit/observability"
	"github.com/kbukum/streamkit/pipeline"
	"github.com/kbukum/streamkit/validation"
)

type runOptions struct {
	source   string
	file     string
	filters  []string
	maps     []string
	parallel bool
	fanout   bool
	flatten  string
	distinct bool
	sort     string
	skip     int
	limit    int

	reduce string
	set    bool
	count  bool
	first  bool
	chunk  int

	output string
}

func newRunCmd(a *app) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [integers...]",
		Short: "Build a pipeline from flags and print its result",
		Long: `Reads integers from the arguments, --file or stdin and applies, in order:

  filter -> map -> flatten -> distinct -> sort -> skip -> limit

then one terminal: --reduce, --set, --count, --first, --chunk, or a list.

With --fanout the --map stages run side by side after every other stage and
each element becomes the list of their results. Only --count, --first,
--chunk and the default list apply then.

Filters: even, odd, positive, negative, gt:N, lt:N, div:N
Maps:    square, double, negate, abs, inc, dec, add:N, mul:N

--source naturals reads 0, 1, 2, ... forever and only works with --limit
or --first.`,
		Example: `  streamkit run 1 2 2 3 4 5 6 --filter even --map square --distinct --limit 2
  seq 100 | streamkit run --filter div:7 --reduce sum
  streamkit run --source naturals --map square --filter gt:50 --first
  streamkit run 1 2 3 --fanout --map square --map negate -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, o, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.source, "source", "input", "element source: input or naturals")
	f.StringVarP(&o.file, "file", "f", "", "read whitespace separated integers from a file ('-' for stdin)")
	f.StringSliceVar(&o.filters, "filter", nil, "keep elements matching a predicate (repeatable)")
	f.StringSliceVar(&o.maps, "map", nil, "transform each element (repeatable)")
	f.BoolVar(&o.parallel, "parallel", false, "run --map stages on pipeline.workers goroutines (unordered)")
	f.BoolVar(&o.fanout, "fanout", false, "apply the --map stages side by side, one list of results per element")
	f.StringVar(&o.flatten, "flatten", "", "expand each element: digits or range")
	f.BoolVar(&o.distinct, "distinct", false, "drop repeated elements, keeping first occurrences")
	f.StringVar(&o.sort, "sort", "", "sort elements: asc, desc or abs")
	f.IntVar(&o.skip, "skip", 0, "drop the first N elements")
	f.IntVar(&o.limit, "limit", -1, "keep at most N elements (-1 for no limit)")
	f.StringVar(&o.reduce, "reduce", "", "fold to one value: sum, product, min or max")
	f.BoolVar(&o.set, "set", false, "print the distinct elements in ascending order")
	f.BoolVar(&o.count, "count", false, "print the number of elements")
	f.BoolVar(&o.first, "first", false, "print only the first element")
	f.IntVar(&o.chunk, "chunk", 0, "group elements into lists of N (-1 for pipeline.chunk_size)")
	f.StringVarP(&o.output, "output", "o", "text", "output format: text, json or yaml")
	cmd.MarkFlagsMutuallyExclusive("reduce", "set", "count", "first", "chunk")
	return cmd
}

func (o *runOptions) validate(args []string) error {
	v := validation.New()
	v.OneOf("source", o.source, sourceNames)
	v.OneOf("output", o.output, outputNames)
	v.Min("skip", o.skip, 0)
	v.Min("limit", o.limit, -1)
	v.Min("chunk", o.chunk, -1)
	if o.reduce != "" {
		v.OneOf("reduce", o.reduce, reduceNames)
	}
	if o.sort != "" {
		v.OneOf("sort", o.sort, sortNames)
	}
	v.Check(o.source != "naturals" || (len(args) == 0 && o.file == ""), "source", "naturals takes no input")
	v.Check(len(args) == 0 || o.file == "", "file", "cannot combine --file with arguments")
	if o.fanout {
		v.Check(len(o.maps) > 0, "fanout", "needs at least one --map")
		v.Check(!o.parallel, "fanout", "cannot combine with --parallel")
		v.Check(o.reduce == "" && !o.set, "fanout", "cannot combine with --reduce or --set")
	}
	if err := v.Validate(); err != nil {
		return errors.InvalidArgument("flags", err.Message).WithDetails(err.Details)
	}
	return nil
}

func (a *app) run(cmd *cobra.Command, o *runOptions, args []string) error {
	if err := o.validate(args); err != nil {
		return err
	}
	src, err := o.openSource(cmd, args)
	if err != nil {
		return err
	}
	src = observability.Observe(src, "run", "source", a.metrics)

	p, err := o.build(src, a.cfg.Pipeline.Workers)
	if err != nil {
		return err
	}
	if o.chunk < 0 {
		o.chunk = a.cfg.Pipeline.ChunkSize
	}
	maxElements := a.cfg.Pipeline.MaxElements
	var rows *pipeline.Pipeline[[]int]
	if o.fanout {
		if rows, err = o.fanOut(p, a.metrics); err != nil {
			return err
		}
	}

	var result any
	err = observability.Run(cmd.Context(), "run", a.metrics, func(ctx context.Context) error {
		var err error
		if rows != nil {
			result, err = materialize(ctx, o, observability.Observe(rows, "run", "output", a.metrics), maxElements)
		} else {
			result, err = o.evaluate(ctx, observability.Observe(p, "run", "output", a.metrics), maxElements)
		}
		return err
	})
	if err != nil {
		return err
	}
	a.log.Debug("run complete", logger.Fields(logger.FieldOperation, o.terminalName()))
	return writeResult(cmd.OutOrStdout(), o.output, result)
}

func (o *runOptions) openSource(cmd *cobra.Command, args []string) (*pipeline.Pipeline[int], error) {
	switch {
	case o.source == "naturals":
		return pipeline.Count(0), nil
	case len(args) > 0:
		values := make([]int, len(args))
		for i, arg := range args {
			n, err := strconv.Atoi(arg)
			if err != nil {
				return nil, errors.InvalidArgument("input", fmt.Sprintf("argument %d %q is not an integer", i+1, arg))
			}
			values[i] = n
		}
		return pipeline.FromSlice(values), nil
	case o.file != "" && o.file != "-":
		path := o.file
		return readerSource(func() (io.ReadCloser, error) { return os.Open(path) }), nil
	default:
		in := cmd.InOrStdin()
		return readerSource(func() (io.ReadCloser, error) { return io.NopCloser(in), nil }), nil
	}
}

// build applies the stage flags to src in their fixed order.
func (o *runOptions) build(src *pipeline.Pipeline[int], workers int) (*pipeline.Pipeline[int], error) {
	p := src
	for _, spec := range o.filters {
		pred, err := parseFilter(spec)
		if err != nil {
			return nil, err
		}
		p = p.Filter(pred)
	}
	for _, spec := range o.maps {
		if o.fanout {
			// Applied side by side by fanOut.
			break
		}
		fn, err := parseMap(spec)
		if err != nil {
			return nil, err
		}
		if o.parallel {
			p = pipeline.Parallel(p, workers, fn)
		} else {
			p = p.Map(fn)
		}
	}
	if o.flatten != "" {
		fn, err := parseFlatten(o.flatten)
		if err != nil {
			return nil, err
		}
		p = pipeline.Flatten(p, fn)
	}
	if o.distinct {
		p = pipeline.Distinct(p)
	}
	switch o.sort {
	case "asc":
		p = pipeline.Sorted(p)
	case "desc":
		p = pipeline.SortBy(p, func(v int) int { return v }, true)
	case "abs":
		p = p.SortFunc(func(x, y int) int { return cmp.Compare(abs(x), abs(y)) })
	}
	if o.skip > 0 {
		p = p.Skip(o.skip)
	}
	if o.limit >= 0 {
		p = p.Limit(o.limit)
	}
	return p, nil
}

// fanOut turns each element into the results of every --map spec, in flag
// order, and counts each branch's outputs under its own stage name.
func (o *runOptions) fanOut(p *pipeline.Pipeline[int], m *observability.Metrics) (*pipeline.Pipeline[[]int], error) {
	fns := make([]func(context.Context, int) (int, error), len(o.maps))
	taps := make([]func(context.Context, int) error, len(o.maps))
	for i, spec := range o.maps {
		fn, err := parseMap(spec)
		if err != nil {
			return nil, err
		}
		stage := "map:" + spec
		fns[i] = fn
		taps[i] = func(ctx context.Context, _ int) error {
			m.RecordElements(ctx, "run", stage, 1)
			return nil
		}
	}
	return pipeline.TapEach(pipeline.FanOut(p, fns...), taps...), nil
}

func (o *runOptions) evaluate(ctx context.Context, p *pipeline.Pipeline[int], maxElements int) (any, error) {
	opts := terminalOptions(maxElements)
	switch {
	case o.reduce != "":
		return reduce(ctx, p, o.reduce, opts)
	case o.set:
		set, err := pipeline.ToSet(ctx, p, opts...)
		if err != nil {
			return nil, err
		}
		return append([]int{}, slices.Sorted(maps.Keys(set))...), nil
	default:
		return materialize(ctx, o, p, maxElements)
	}
}

// materialize runs the terminals that work for any element type.
func materialize[T any](ctx context.Context, o *runOptions, p *pipeline.Pipeline[T], maxElements int) (any, error) {
	switch {
	case o.count:
		return pipeline.Len(ctx, p, terminalOptions(maxElements)...)
	case o.first:
		return pipeline.First(ctx, p)
	case o.chunk != 0:
		// Cap elements, not chunks.
		return pipeline.Collect(ctx, pipeline.Chunk(p.MaxElements(maxElements), o.chunk))
	default:
		return pipeline.ToList(ctx, p, terminalOptions(maxElements)...)
	}
}

func terminalOptions(maxElements int) []pipeline.TerminalOption {
	if maxElements <= 0 {
		return nil
	}
	return []pipeline.TerminalOption{pipeline.WithMaxElements(maxElements)}
}

func (o *runOptions) terminalName() string {
	switch {
	case o.reduce != "":
		return "Reduce"
	case o.set:
		return "ToSet"
	case o.count:
		return "Len"
	case o.first:
		return "First"
	case o.chunk != 0:
		return "Chunk"
	default:
		return "ToList"
	}
}

func reduce(ctx context.Context, p *pipeline.Pipeline[int], op string, opts []pipeline.TerminalOption) (int, error) {
	switch op {
	case "sum":
		return pipeline.Reduce(ctx, p, 0, func(acc, v int) (int, error) { return acc + v, nil }, opts...)
	case "product":
		return pipeline.Reduce(ctx, p, 1, func(acc, v int) (int, error) { return acc * v, nil }, opts...)
	case "min":
		return pipeline.ReduceFirst(ctx, p, func(acc, v int) (int, error) { return min(acc, v), nil }, opts...)
	case "max":
		return pipeline.ReduceFirst(ctx, p, func(acc, v int) (int, error) { return max(acc, v), nil }, opts...)
	}
	return 0, unknown("reduce", op, reduceNames)
}

// readerSource lazily scans whitespace separated integers. The reader is
// opened on the first pull and closed with the iterator.
func readerSource(open func() (io.ReadCloser, error)) *pipeline.Pipeline[int] {
	return pipeline.FromFunc(func(context.Context) pipeline.Iterator[int] {
		return &scanIter{open: open}
	})
}

type scanIter struct {
	open    func() (io.ReadCloser, error)
	rc      io.ReadCloser
	scanner *bufio.Scanner
	tokens  int
}

func (it *scanIter) Next(ctx context.Context) (int, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	if it.scanner == nil {
		rc, err := it.open()
		if err != nil {
			return 0, false, errors.InvalidArgument("file", err.Error()).WithCause(err)
		}
		it.rc = rc
		it.scanner = bufio.NewScanner(rc)
		it.scanner.Split(bufio.ScanWords)
	}
	if !it.scanner.Scan() {
		return 0, false, it.scanner.Err()
	}
	it.tokens++
	n, err := strconv.Atoi(it.scanner.Text())
	if err != nil {
		return 0, false, errors.InvalidArgument("input", fmt.Sprintf("token %d %q is not an integer", it.tokens, it.scanner.Text()))
	}
	return n, true, nil
}

func (it *scanIter) Close() error {
	if it.rc == nil {
		return nil
	}
	return it.rc.Close()
}
