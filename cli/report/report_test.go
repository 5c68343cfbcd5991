package report_test

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/GreatValueCreamSoda/gossim/cli/report"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func Test_Summarize(t *testing.T) {
	s := report.Summarize([]float64{0.9, 0.5, 0.7, 1.0})

	if s.Min != 0.5 || s.Max != 1.0 {
		t.Fatalf("expected range [0.5, 1], got [%v, %v]", s.Min, s.Max)
	}
	if s.Worst != 1 {
		t.Fatalf("expected worst frame 1, got %d", s.Worst)
	}
	if !near(s.Mean, 0.775) {
		t.Fatalf("expected mean 0.775, got %v", s.Mean)
	}
	if !near(s.Median, 0.8) {
		t.Fatalf("expected median 0.8, got %v", s.Median)
	}

	// Population deviation of the values above.
	want := math.Sqrt((0.125*0.125 + 0.275*0.275 + 0.075*0.075 +
		0.225*0.225) / 4)
	if !near(s.StdDev, want) {
		t.Fatalf("expected stddev %v, got %v", want, s.StdDev)
	}
}

func Test_Median(t *testing.T) {
	values := []float64{3, 1, 2}
	if got := report.Median(values); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if values[0] != 3 {
		t.Fatal("median must not reorder its input")
	}
	if got := report.Median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("expected 2.5, got %v", got)
	}
}

func Test_Ranks(t *testing.T) {
	got := report.Ranks([]float64{0.3, 0.9, 0.1, 0.5})
	want := []float64{1, 3, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ranks %v, got %v", want, got)
		}
	}
}

func Test_Correlations(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5}
	squares := []float64{1, 4, 9, 16, 25}
	reversed := []float64{5, 4, 3, 2, 1}

	if r := report.Spearman(x, squares); !near(r, 1) {
		t.Fatalf("expected monotonic Spearman 1, got %v", r)
	}
	if r := report.Kendall(x, reversed); !near(r, -1) {
		t.Fatalf("expected reversed Kendall -1, got %v", r)
	}
	if r := report.Pearson(x, squares); r <= 0.9 || r >= 1 {
		t.Fatalf("expected Pearson in (0.9, 1), got %v", r)
	}

	if r := report.Pearson(x, []float64{2, 2, 2, 2, 2}); r != 0 {
		t.Fatalf("expected 0 for constant input, got %v", r)
	}
	if r := report.Kendall(x[:1], x[:1]); r != 0 {
		t.Fatalf("expected 0 for a single pair, got %v", r)
	}
}

func Test_PrintSummary(t *testing.T) {
	var out bytes.Buffer
	report.PrintSummary(&out, map[string][]float64{
		"SSIM":    {0.9, 0.5, 0.7},
		"SSIMMin": {0.6, 0.1, 0.4},
	})
	text := out.String()

	for _, want := range []string{"Metric summary", "SSIM\n----",
		"min     : 0.500000 (frame 1)", "SSIMMin", "Pearson correlations",
		"Kendall correlations"} {
		if !strings.Contains(text, want) {
			t.Fatalf("expected %q in summary:\n%s", want, text)
		}
	}
	if strings.Index(text, "SSIM\n") > strings.Index(text, "SSIMMin\n") {
		t.Fatal("expected metrics in name order")
	}
}

func Test_PrintSummary_Empty(t *testing.T) {
	var out bytes.Buffer
	report.PrintSummary(&out, nil)
	if !strings.Contains(out.String(), "No scores to report") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
