package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kbukum/streamkit/errors"
)

// Stage vocabularies accepted by the run flags.
var (
	filterNames  = []string{"even", "odd", "positive", "negative", "gt:N", "lt:N", "div:N"}
	mapNames     = []string{"square", "double", "negate", "abs", "inc", "dec", "add:N", "mul:N"}
	flattenNames = []string{"digits", "range"}
	sortNames    = []string{"asc", "desc", "abs"}
	reduceNames  = []string{"sum", "product", "min", "max"}
	outputNames  = []string{"text", "json", "yaml"}
	sourceNames  = []string{"input", "naturals"}
)

// splitSpec splits "name:arg" and parses arg when the name takes one.
func splitSpec(flag, spec string, withArg map[string]bool) (string, int, error) {
	name, raw, hasArg := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ":")
	if withArg[name] != hasArg {
		if hasArg {
			return "", 0, errors.InvalidArgument(flag, fmt.Sprintf("%q takes no argument", name))
		}
		return "", 0, errors.InvalidArgument(flag, fmt.Sprintf("%q needs an argument, e.g. %s:3", name, name))
	}
	if !hasArg {
		return name, 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, errors.InvalidArgument(flag, fmt.Sprintf("%q is not an integer", raw))
	}
	return name, n, nil
}

func parseFilter(spec string) (func(int) bool, error) {
	name, n, err := splitSpec("filter", spec, map[string]bool{"gt": true, "lt": true, "div": true})
	if err != nil {
		return nil, err
	}
	switch name {
	case "even":
		return func(v int) bool { return v%2 == 0 }, nil
	case "odd":
		return func(v int) bool { return v%2 != 0 }, nil
	case "positive":
		return func(v int) bool { return v > 0 }, nil
	case "negative":
		return func(v int) bool { return v < 0 }, nil
	case "gt":
		return func(v int) bool { return v > n }, nil
	case "lt":
		return func(v int) bool { return v < n }, nil
	case "div":
		if n == 0 {
			return nil, errors.InvalidArgument("filter", "div:0 divides by zero")
		}
		return func(v int) bool { return v%n == 0 }, nil
	}
	return nil, unknown("filter", spec, filterNames)
}

func parseMap(spec string) (func(context.Context, int) (int, error), error) {
	name, n, err := splitSpec("map", spec, map[string]bool{"add": true, "mul": true})
	if err != nil {
		return nil, err
	}
	var fn func(int) int
	switch name {
	case "square":
		fn = func(v int) int { return v * v }
	case "double":
		fn = func(v int) int { return v * 2 }
	case "negate":
		fn = func(v int) int { return -v }
	case "abs":
		fn = abs
	case "inc":
		fn = func(v int) int { return v + 1 }
	case "dec":
		fn = func(v int) int { return v - 1 }
	case "add":
		fn = func(v int) int { return v + n }
	case "mul":
		fn = func(v int) int { return v * n }
	default:
		return nil, unknown("map", spec, mapNames)
	}
	return func(_ context.Context, v int) (int, error) { return fn(v), nil }, nil
}

// parseFlatten returns a function expanding one element into zero or more.
func parseFlatten(spec string) (func(context.Context, int) ([]int, error), error) {
	switch strings.ToLower(spec) {
	case "digits":
		return func(_ context.Context, v int) ([]int, error) { return digits(v), nil }, nil
	case "range":
		return func(_ context.Context, v int) ([]int, error) {
			out := make([]int, 0, max(v, 0))
			for i := range v {
				out = append(out, i)
			}
			return out, nil
		}, nil
	}
	return nil, unknown("flatten", spec, flattenNames)
}

func digits(v int) []int {
	// Negating in uint keeps math.MinInt positive.
	u := uint(v)
	if v < 0 {
		u = -u
	}
	s := strconv.FormatUint(uint64(u), 10)
	out := make([]int, len(s))
	for i, r := range s {
		out[i] = int(r - '0')
	}
	return out
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func unknown(flag, spec string, allowed []string) error {
	return errors.InvalidArgument(flag, fmt.Sprintf("unknown %s %q (want one of %s)", flag, spec, strings.Join(allowed, ", ")))
}
