// Package window groups timestamped feature rows into time windows and
// aggregates each feature per window.
//
// Windows are anchored to the Unix epoch: window k covers
// [k*stride, k*stride+size). A row belongs to every window that contains it,
// so windows overlap when stride < size and leave gaps when stride > size.
package window

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/frame"
)

// ErrNoValidWindows is returned when no window reaches min_logs_per_window.
var ErrNoValidWindows = errors.New("no valid time windows")

// Row is one parsed record's feature values at its timestamp.
type Row struct {
	Timestamp time.Time
	Values    []float64
}

// Stats counts what happened to the candidate windows of one call.
// A candidate window is one containing at least one row.
type Stats struct {
	Candidates int `json:"candidates"`
	Dropped    int `json:"dropped"`
	Truncated  int `json:"truncated"`
	Kept       int `json:"kept"`
}

// Engine windows rows according to a configuration.
type Engine struct {
	size    time.Duration
	stride  time.Duration
	minLogs int
	maxLogs int
}

// NewEngine creates an Engine from cfg. A nil cfg uses the defaults.
func NewEngine(cfg *config.Config) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		size:    cfg.Window(),
		stride:  cfg.Stride(),
		minLogs: cfg.MinLogsPerWindow(),
		maxLogs: cfg.MaxLogsPerWindow(),
	}
}

// Window aggregates rows into one frame row per surviving window, keyed by
// window start and ordered ascending. names labels the entries of each
// Row.Values. Windows with fewer than min_logs_per_window rows are dropped;
// windows over max_logs_per_window keep their earliest rows.
func (e *Engine) Window(names []string, rows []Row) (*frame.Frame, Stats, error) {
	var st Stats
	for i, r := range rows {
		if len(r.Values) != len(names) {
			return nil, st, fmt.Errorf("row %d has %d values, expected %d", i, len(r.Values), len(names))
		}
	}

	sorted := append([]Row(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})
	nanos := make([]int64, len(sorted))
	for i, r := range sorted {
		nanos[i] = r.Timestamp.UnixNano()
	}

	out := frame.New(frame.ColumnsFor(names))
	size, stride := int64(e.size), int64(e.stride)
	buf := make([]float64, 0, len(sorted))

	for _, k := range e.candidates(nanos) {
		start := k * stride
		lo := sort.Search(len(nanos), func(i int) bool { return nanos[i] >= start })
		hi := sort.Search(len(nanos), func(i int) bool { return nanos[i] >= start+size })
		st.Candidates++

		n := hi - lo
		if n < e.minLogs {
			st.Dropped++
			continue
		}
		if e.maxLogs > 0 && n > e.maxLogs {
			hi = lo + e.maxLogs
			st.Truncated++
		}

		values := make([]float64, 0, out.Width())
		for j := range names {
			buf = buf[:0]
			for _, r := range sorted[lo:hi] {
				buf = append(buf, r.Values[j])
			}
			values = append(values, aggregate(buf)...)
		}
		if err := out.Append(time.Unix(0, start).UTC(), values); err != nil {
			return nil, st, err
		}
		st.Kept++
	}

	if st.Kept == 0 {
		return nil, st, fmt.Errorf("%w: window %s, stride %s, min_logs_per_window %d, %d rows in %d candidate windows",
			ErrNoValidWindows, e.size, e.stride, e.minLogs, len(rows), st.Candidates)
	}
	return out, st, nil
}

// candidates returns the ascending indexes of every window containing at
// least one of the sorted timestamps.
func (e *Engine) candidates(nanos []int64) []int64 {
	size, stride := int64(e.size), int64(e.stride)

	var ks []int64
	next := int64(0)
	for i, t := range nanos {
		first := floorDiv(t-size, stride) + 1
		last := floorDiv(t, stride)
		if i > 0 && first < next {
			first = next
		}
		for k := first; k <= last; k++ {
			ks = append(ks, k)
		}
		next = last + 1
	}
	return ks
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// aggregate returns mean, population std, min and max of a non-empty sample.
func aggregate(x []float64) []float64 {
	mean, std := stat.PopMeanStdDev(x, nil)
	if len(x) < 2 {
		std = 0
	}
	return []float64{mean, std, floats.Min(x), floats.Max(x)}
}
