// Package analyzer provides log analysis capabilities including parse
// statistics, inter-arrival time analysis, structure inspection and message
// template mining.
package analyzer

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bimmerbailey/driftprep/internal/parser"
)

// ParseStats holds aggregate statistics for one parse run.
type ParseStats struct {
	TotalLines  int            `json:"total_lines"`
	Parsed      int            `json:"parsed"`
	Skipped     int            `json:"skipped"`
	SkipRate    float64        `json:"skip_rate"`
	FirstEntry  time.Time      `json:"first_entry,omitempty"`
	LastEntry   time.Time      `json:"last_entry,omitempty"`
	Span        time.Duration  `json:"span"`
	TopMessages []MessageCount `json:"top_messages,omitempty"`
}

// MessageCount tracks a message and how often it appears.
type MessageCount struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// InterArrivalStats describes the gaps between consecutive log entries.
type InterArrivalStats struct {
	Count int `json:"count"`
	// Gaps in seconds, all derived from timestamps sorted ascending.
	Min  float64 `json:"min_seconds"`
	Max  float64 `json:"max_seconds"`
	Mean float64 `json:"mean_seconds"`
	Std  float64 `json:"std_seconds"`
	// Median of the sorted gaps.
	Median float64 `json:"median_seconds"`
	// OutOfOrder counts entries earlier than their predecessor in input order.
	OutOfOrder int   `json:"out_of_order"`
	Histogram  []Bin `json:"histogram,omitempty"`
}

// Bin is one histogram bucket covering [Low, High) seconds.
type Bin struct {
	Low   float64 `json:"low"`
	High  float64 `json:"high"`
	Count int     `json:"count"`
}

// Analyzer performs analysis on parsed log records.
type Analyzer struct{}

// New creates a new Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// ComputeParseStats summarizes a parse result with the topN most frequent messages.
func (a *Analyzer) ComputeParseStats(res parser.Result, topN int) ParseStats {
	stats := ParseStats{
		TotalLines: res.Total,
		Parsed:     len(res.Records),
		Skipped:    res.Skipped,
		SkipRate:   res.SkipRate(),
	}
	if len(res.Records) == 0 {
		return stats
	}

	messageCounts := make(map[string]int)
	for _, r := range res.Records {
		if stats.FirstEntry.IsZero() || r.Timestamp.Before(stats.FirstEntry) {
			stats.FirstEntry = r.Timestamp
		}
		if stats.LastEntry.IsZero() || r.Timestamp.After(stats.LastEntry) {
			stats.LastEntry = r.Timestamp
		}
		messageCounts[r.Message]++
	}
	stats.Span = stats.LastEntry.Sub(stats.FirstEntry)
	stats.TopMessages = topMessages(messageCounts, topN)

	return stats
}

// InterArrival computes gap statistics over timestamps. bins > 0 adds an
// equal-width histogram of the gaps. It reports false with fewer than two
// timestamps.
func (a *Analyzer) InterArrival(timestamps []time.Time, bins int) (InterArrivalStats, bool) {
	if len(timestamps) < 2 {
		return InterArrivalStats{}, false
	}

	var st InterArrivalStats
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Before(timestamps[i-1]) {
			st.OutOfOrder++
		}
	}

	sorted := append([]time.Time(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, len(sorted)-1)
	for i := range gaps {
		gaps[i] = sorted[i+1].Sub(sorted[i]).Seconds()
	}

	st.Count = len(gaps)
	st.Mean, st.Std = stat.PopMeanStdDev(gaps, nil)
	if len(gaps) < 2 || math.IsNaN(st.Std) {
		st.Std = 0
	}
	st.Min = floats.Min(gaps)
	st.Max = floats.Max(gaps)

	// Quantile and Histogram need sorted input.
	sort.Float64s(gaps)
	st.Median = stat.Quantile(0.5, stat.Empirical, gaps, nil)

	if bins > 0 {
		st.Histogram = histogram(gaps, bins)
	}
	return st, true
}

// histogram buckets sorted values into n equal-width bins.
func histogram(sorted []float64, n int) []Bin {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if hi == lo {
		return []Bin{{Low: lo, High: hi, Count: len(sorted)}}
	}

	dividers := make([]float64, n+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram needs the last divider strictly above the maximum.
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	out := make([]Bin, n)
	for i := range out {
		out[i] = Bin{Low: dividers[i], High: dividers[i+1], Count: int(counts[i])}
	}
	return out
}

// topMessages extracts the N most frequent messages.
func topMessages(counts map[string]int, n int) []MessageCount {
	msgs := make([]MessageCount, 0, len(counts))
	for msg, count := range counts {
		msgs = append(msgs, MessageCount{Message: msg, Count: count})
	}

	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Count != msgs[j].Count {
			return msgs[i].Count > msgs[j].Count
		}
		return msgs[i].Message < msgs[j].Message
	})

	if len(msgs) > n {
		msgs = msgs[:n]
	}

	return msgs
}
