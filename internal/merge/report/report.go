// Package report summarizes merge quality: how far apart the matched CP and
// DP centroids were, and whether any CP rows were claimed more than once.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
)

// MatchSummary describes the distribution of nearest-centroid match
// distances within one batch.
type MatchSummary struct {
	Count  int
	Mean   float64
	StdDev float64
	Median float64
	P95    float64
	Max    float64
}

// Summarize computes distribution statistics over match distances.
func Summarize(distances []float64) MatchSummary {
	if len(distances) == 0 {
		return MatchSummary{}
	}
	sorted := append([]float64(nil), distances...)
	sort.Float64s(sorted)

	s := MatchSummary{
		Count:  len(sorted),
		Mean:   stat.Mean(sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, sorted, nil),
		Max:    sorted[len(sorted)-1],
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s
}

// WriteHistogram renders a standalone HTML bar histogram of match distances.
func WriteHistogram(w io.Writer, title string, distances []float64) error {
	labels, counts := histogramBins(distances, 20)

	data := make([]opts.BarData, len(counts))
	for i, c := range counts {
		data[i] = opts.BarData{Value: c}
	}

	summary := Summarize(distances)
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "900px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("n=%d mean=%.2f p95=%.2f max=%.2f", summary.Count, summary.Mean, summary.P95, summary.Max),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "match distance (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "cells"}),
	)
	bar.SetXAxis(labels)
	bar.AddSeries("match distance", data)
	return bar.Render(w)
}

// histogramBins buckets distances into n equal-width bins over [0, max].
func histogramBins(distances []float64, n int) (labels []string, counts []int) {
	max := 0.0
	for _, d := range distances {
		if d > max {
			max = d
		}
	}
	if max == 0 {
		max = 1
	}
	width := max / float64(n)

	labels = make([]string, n)
	counts = make([]int, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("%.1f", float64(i)*width)
	}
	for _, d := range distances {
		bin := int(math.Floor(d / width))
		if bin >= n {
			bin = n - 1
		}
		counts[bin]++
	}
	return labels, counts
}
