// Package report summarises per frame metric scores.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type CorrelationMethod struct {
	Name string
	Fn   func(x, y []float64) float64
}

// PrintSummary writes the per metric summary of scores to w, followed by
// the correlations between every pair of metrics.
func PrintSummary(w io.Writer, scores map[string][]float64) {
	if len(scores) == 0 {
		fmt.Fprintln(w, "No scores to report")
		return
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Metric summary")
	fmt.Fprintln(w, "==============")

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		values := scores[name]
		if len(values) == 0 {
			continue
		}
		printMetricSummary(w, name, values)
	}

	if len(names) > 1 {
		methods := DefaultCorrelationMethods()
		printCorrelations(w, scores, names, methods)
	}
}

type Summary struct {
	Min, Max, Mean, Median, StdDev float64
	// Worst is the index of the frame with the lowest score.
	Worst int
}

// Summarize describes values, which must not be empty.
func Summarize(values []float64) Summary {
	var s Summary
	s.Min, s.Max = floats.Min(values), floats.Max(values)
	s.Worst = floats.MinIdx(values)
	s.Mean, s.StdDev = stat.PopMeanStdDev(values, nil)
	s.Median = Median(values)
	return s
}

func printMetricSummary(w io.Writer, name string, values []float64) {
	s := Summarize(values)

	fmt.Fprintln(w)
	fmt.Fprintln(w, name)
	fmt.Fprintln(w, strings.Repeat("-", len(name)))
	fmt.Fprintf(w, "  frames  : %d\n", len(values))
	fmt.Fprintf(w, "  min     : %.6f (frame %d)\n", s.Min, s.Worst)
	fmt.Fprintf(w, "  max     : %.6f\n", s.Max)
	fmt.Fprintf(w, "  average : %.6f\n", s.Mean)
	fmt.Fprintf(w, "  median  : %.6f\n", s.Median)
	fmt.Fprintf(w, "  stddev  : %.6f\n", s.StdDev)
}

// Median averages the two middle values of an even length list.
func Median(values []float64) float64 {
	n := len(values)
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func DefaultCorrelationMethods() []CorrelationMethod {
	return []CorrelationMethod{
		{"Pearson", Pearson},
		{"Spearman", Spearman},
		{"Kendall", Kendall},
	}
}

func printCorrelations(
	w io.Writer,
	scores map[string][]float64,
	names []string,
	methods []CorrelationMethod,
) {
	maxLen := 0
	for _, name := range names {
		if len(name) > maxLen {
			maxLen = len(name)
		}
	}

	formatStr := fmt.Sprintf("  %%-%ds ↔ %%-%ds : %% .6f\n", maxLen, maxLen)

	for _, method := range methods {
		fmt.Fprintln(w)
		fmt.Fprintln(w, method.Name, "correlations")
		fmt.Fprintln(w, strings.Repeat("=", len(method.Name)+13))

		for i := 0; i < len(names); i++ {
			for j := i + 1; j < len(names); j++ {
				a, b := names[i], names[j]
				x, y := scores[a], scores[b]

				if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
					continue
				}

				r := method.Fn(x, y)
				fmt.Fprintf(w, formatStr, a, b, math.Abs(r))
			}
		}
	}
}

// finite maps the NaN gonum returns for constant input to 0.
func finite(r float64) float64 {
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// Pearson returns 0 when the correlation is undefined.
func Pearson(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return finite(stat.Correlation(x, y, nil))
}

func Spearman(x, y []float64) float64 {
	return Pearson(Ranks(x), Ranks(y))
}

func Kendall(x, y []float64) float64 {
	if len(x) < 2 || len(x) != len(y) {
		return 0
	}
	return finite(stat.Kendall(x, y, nil))
}

// Ranks gives each value its position in ascending order.
func Ranks(values []float64) []float64 {
	type pair struct {
		value float64
		index int
	}

	n := len(values)
	pairs := make([]pair, n)
	for i, v := range values {
		pairs[i] = pair{v, i}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	ranks := make([]float64, n)
	for i := 0; i < n; i++ {
		ranks[pairs[i].index] = float64(i)
	}

	return ranks
}
