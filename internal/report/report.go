// Package report computes descriptive statistics over timing records and
// renders them as a human-readable benchmark report and a JSON analysis
// document.
package report

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/gatewatch/promptbench/internal/correlate"
)

// Summary is the timing summary persisted after the response pass
// (response_timing_data.json).
type Summary struct {
	TotalResponses      int                      `json:"total_responses"`
	ResponsesWithTiming int                      `json:"responses_with_timing"`
	AverageResponseTime *float64                 `json:"average_response_time"`
	MinResponseTime     *float64                 `json:"min_response_time"`
	MaxResponseTime     *float64                 `json:"max_response_time"`
	Responses           []correlate.TimingRecord `json:"responses"`
}

// TypeStats summarizes response times for one prompt type. Records with
// an absent elapsed time are excluded here but still counted in Summary.
type TypeStats struct {
	Count   int     `json:"count"`
	Average float64 `json:"average"`
	Median  float64 `json:"median"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	StdDev  float64 `json:"std_dev"`
}

// OverallStats mirrors Summary's top-level numbers inside the analysis
// document.
type OverallStats struct {
	TotalResponses      int      `json:"total_responses"`
	ResponsesWithTiming int      `json:"responses_with_timing"`
	AverageResponseTime *float64 `json:"average_response_time"`
	MinResponseTime     *float64 `json:"min_response_time"`
	MaxResponseTime     *float64 `json:"max_response_time"`
}

// Analysis is the full benchmark analysis document.
type Analysis struct {
	Overall OverallStats             `json:"overall_stats"`
	ByType  map[string]TypeStats     `json:"by_prompt_type"`
	Fastest []correlate.TimingRecord `json:"fastest_responses"`
	Slowest []correlate.TimingRecord `json:"slowest_responses"`
}

// outlierCount is how many fastest/slowest responses the report surfaces.
const outlierCount = 5

// Summarize builds the persisted timing summary from a run's records.
func Summarize(records []correlate.TimingRecord) Summary {
	s := Summary{
		TotalResponses: len(records),
		Responses:      records,
	}
	times := timedValues(records)
	s.ResponsesWithTiming = len(times)
	if len(times) == 0 {
		return s
	}
	avg := mean(times)
	lo, hi := minMax(times)
	s.AverageResponseTime = &avg
	s.MinResponseTime = &lo
	s.MaxResponseTime = &hi
	return s
}

// Analyze computes per-type statistics and outliers over timing records.
func Analyze(records []correlate.TimingRecord) Analysis {
	summary := Summarize(records)
	a := Analysis{
		Overall: OverallStats{
			TotalResponses:      summary.TotalResponses,
			ResponsesWithTiming: summary.ResponsesWithTiming,
			AverageResponseTime: summary.AverageResponseTime,
			MinResponseTime:     summary.MinResponseTime,
			MaxResponseTime:     summary.MaxResponseTime,
		},
		ByType: make(map[string]TypeStats),
	}

	byType := make(map[string][]float64)
	var timed []correlate.TimingRecord
	for _, rec := range records {
		if rec.ResponseTime == nil {
			continue
		}
		byType[rec.PromptType] = append(byType[rec.PromptType], *rec.ResponseTime)
		timed = append(timed, rec)
	}

	for promptType, times := range byType {
		lo, hi := minMax(times)
		a.ByType[promptType] = TypeStats{
			Count:   len(times),
			Average: mean(times),
			Median:  median(times),
			Min:     lo,
			Max:     hi,
			StdDev:  stdDev(times),
		}
	}

	sort.SliceStable(timed, func(i, j int) bool {
		return *timed[i].ResponseTime < *timed[j].ResponseTime
	})
	if len(timed) > outlierCount {
		a.Fastest = timed[:outlierCount]
		a.Slowest = timed[len(timed)-outlierCount:]
	} else {
		a.Fastest = timed
		a.Slowest = timed
	}

	return a
}

// Render writes the human-readable benchmark report.
func (a Analysis) Render(w io.Writer) {
	line := strings.Repeat("=", 60)
	thin := strings.Repeat("-", 60)

	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "GATEWAY BENCHMARKING REPORT")
	fmt.Fprintln(w, line)

	fmt.Fprintln(w, "\nOVERALL STATISTICS:")
	fmt.Fprintf(w, "  Total Responses: %d\n", a.Overall.TotalResponses)
	if a.Overall.AverageResponseTime != nil {
		fmt.Fprintf(w, "  Average Response Time: %.3fs\n", *a.Overall.AverageResponseTime)
		fmt.Fprintf(w, "  Fastest Response: %.3fs\n", *a.Overall.MinResponseTime)
		fmt.Fprintf(w, "  Slowest Response: %.3fs\n", *a.Overall.MaxResponseTime)
		fmt.Fprintf(w, "  Response Time Range: %.3fs\n", *a.Overall.MaxResponseTime-*a.Overall.MinResponseTime)
	}

	fmt.Fprintln(w, "\nRESPONSE TIME BY PROMPT TYPE:")
	fmt.Fprintln(w, thin)

	for _, promptType := range a.typesByAverage() {
		stats := a.ByType[promptType]
		fmt.Fprintf(w, "\n%s:\n", strings.ToUpper(promptType))
		fmt.Fprintf(w, "  Count: %d\n", stats.Count)
		fmt.Fprintf(w, "  Average: %.3fs\n", stats.Average)
		fmt.Fprintf(w, "  Median: %.3fs\n", stats.Median)
		fmt.Fprintf(w, "  Range: %.3fs - %.3fs\n", stats.Min, stats.Max)
		fmt.Fprintf(w, "  Std Dev: %.3fs\n", stats.StdDev)
		fmt.Fprintf(w, "  Performance: %s\n", performanceBand(stats.Average))
	}

	fmt.Fprintln(w, "\nPERFORMANCE OUTLIERS:")
	fmt.Fprintln(w, thin)
	fmt.Fprintln(w, "\nFASTEST RESPONSES:")
	for _, rec := range a.Fastest {
		fmt.Fprintf(w, "  %s (%s): %.3fs\n", rec.ID, rec.PromptType, *rec.ResponseTime)
	}
	fmt.Fprintln(w, "\nSLOWEST RESPONSES:")
	for _, rec := range a.Slowest {
		fmt.Fprintf(w, "  %s (%s): %.3fs\n", rec.ID, rec.PromptType, *rec.ResponseTime)
	}

	if noisy := a.highVarianceTypes(); len(noisy) > 0 {
		fmt.Fprintln(w, "\nHIGH VARIANCE PROMPT TYPES (inconsistent timing):")
		fmt.Fprintf(w, "  %s\n", strings.Join(noisy, ", "))
	}

	fmt.Fprintln(w, "\n"+line)
}

// typesByAverage returns prompt types sorted fastest-first.
func (a Analysis) typesByAverage() []string {
	types := make([]string, 0, len(a.ByType))
	for promptType := range a.ByType {
		types = append(types, promptType)
	}
	sort.Slice(types, func(i, j int) bool {
		si, sj := a.ByType[types[i]], a.ByType[types[j]]
		if si.Average != sj.Average {
			return si.Average < sj.Average
		}
		return types[i] < types[j]
	})
	return types
}

// highVarianceTypes flags types whose timing spread suggests something
// worth investigating (std dev above 2s over a non-trivial sample).
func (a Analysis) highVarianceTypes() []string {
	var noisy []string
	for _, promptType := range a.typesByAverage() {
		stats := a.ByType[promptType]
		if stats.StdDev > 2.0 && stats.Count > 3 {
			noisy = append(noisy, promptType)
		}
	}
	return noisy
}

func performanceBand(avg float64) string {
	switch {
	case avg < 2.0:
		return "FAST"
	case avg < 4.0:
		return "MODERATE"
	case avg < 8.0:
		return "SLOW"
	default:
		return "VERY SLOW"
	}
}

func timedValues(records []correlate.TimingRecord) []float64 {
	var times []float64
	for _, rec := range records {
		if rec.ResponseTime != nil {
			times = append(times, *rec.ResponseTime)
		}
	}
	return times
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdDev is the sample standard deviation; zero for fewer than two values.
func stdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func minMax(values []float64) (lo, hi float64) {
	lo, hi = values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}
