// Package normalize scales windowed feature columns using statistics that
// are learned once per column and then reused.
//
// The first time a column is seen its statistics (min and max, or mean and
// population standard deviation) are computed from the current data and
// cached. Later batches are scaled against the cached values, so they stay
// comparable with the batch the statistics were learned from. A Normalizer
// is not safe for concurrent use.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/bimmerbailey/driftprep/internal/frame"
)

var (
	// ErrUnknownMethod is returned for a normalization method other than minmax or zscore.
	ErrUnknownMethod = errors.New("unknown normalization method")
	// ErrIncompatibleStats is returned when cached statistics lack the
	// entries the configured method needs.
	ErrIncompatibleStats = errors.New("incompatible feature statistics")
)

// Method is a normalization method.
type Method string

const (
	MinMax Method = "minmax"
	ZScore Method = "zscore"
)

// Statistic names stored per column.
const (
	StatMin  = "min"
	StatMax  = "max"
	StatMean = "mean"
	StatStd  = "std"
)

// ParseMethod converts a method name into a Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MinMax, ZScore:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMethod, s)
}

func (m Method) required() []string {
	if m == ZScore {
		return []string{StatMean, StatStd}
	}
	return []string{StatMin, StatMax}
}

// Stats holds the learned statistics of one column.
type Stats map[string]float64

func (s Stats) clone() Stats {
	out := make(Stats, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Normalizer scales columns with cached per-column statistics.
type Normalizer struct {
	method Method
	stats  map[string]Stats
}

// New creates a Normalizer with an empty cache.
func New(method Method) *Normalizer {
	return &Normalizer{method: method, stats: make(map[string]Stats)}
}

// Method returns the normalization method.
func (n *Normalizer) Method() Method {
	return n.method
}

// FitIfAbsent learns statistics for column from values unless the column is
// already cached. It reports whether new statistics were stored.
func (n *Normalizer) FitIfAbsent(column string, values []float64) bool {
	if _, ok := n.stats[column]; ok || len(values) == 0 {
		return false
	}

	switch n.method {
	case ZScore:
		mean, std := stat.PopMeanStdDev(values, nil)
		if len(values) < 2 || math.IsNaN(std) {
			std = 0
		}
		n.stats[column] = Stats{StatMean: mean, StatStd: std}
	default:
		n.stats[column] = Stats{StatMin: floats.Min(values), StatMax: floats.Max(values)}
	}
	return true
}

// Apply scales values with the cached statistics of column and returns a new
// slice. A constant column (max == min, or std == 0) maps to all zeros.
func (n *Normalizer) Apply(column string, values []float64) ([]float64, error) {
	s, ok := n.stats[column]
	if !ok {
		return nil, fmt.Errorf("%w: no statistics for column %q", ErrIncompatibleStats, column)
	}
	for _, key := range n.method.required() {
		if _, ok := s[key]; !ok {
			return nil, fmt.Errorf("%w: column %q has no %q statistic for %s", ErrIncompatibleStats, column, key, n.method)
		}
	}

	out := make([]float64, len(values))
	switch n.method {
	case ZScore:
		mean, std := s[StatMean], s[StatStd]
		if std > 0 {
			for i, v := range values {
				out[i] = (v - mean) / std
			}
		}
	default:
		lo, hi := s[StatMin], s[StatMax]
		if hi > lo {
			for i, v := range values {
				out[i] = (v - lo) / (hi - lo)
			}
		}
	}
	return out, nil
}

// Normalize fits any unseen columns of f and returns a scaled copy.
// f is not modified.
func (n *Normalizer) Normalize(f *frame.Frame) (*frame.Frame, error) {
	if n.method != MinMax && n.method != ZScore {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, string(n.method))
	}

	out := f.Clone()
	for j, c := range f.Columns {
		values := f.ColumnValues(j)
		n.FitIfAbsent(c.Name(), values)

		scaled, err := n.Apply(c.Name(), values)
		if err != nil {
			return nil, err
		}
		out.SetColumn(j, scaled)
	}
	return out, nil
}

// Reset clears every cached statistic.
func (n *Normalizer) Reset() {
	n.stats = make(map[string]Stats)
}

// Columns returns the cached column names, sorted.
func (n *Normalizer) Columns() []string {
	cols := make([]string, 0, len(n.stats))
	for c := range n.stats {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Export returns a deep copy of the cache.
func (n *Normalizer) Export() map[string]Stats {
	out := make(map[string]Stats, len(n.stats))
	for c, s := range n.stats {
		out[c] = s.clone()
	}
	return out
}

// Import replaces the whole cache with a copy of stats.
func (n *Normalizer) Import(stats map[string]Stats) {
	n.stats = make(map[string]Stats, len(stats))
	for c, s := range stats {
		n.stats[c] = s.clone()
	}
}

// Save writes the cache as JSON: {"column": {"stat": value}}.
func (n *Normalizer) Save(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n.stats)
}

// Load replaces the cache with statistics previously written by Save.
func (n *Normalizer) Load(r io.Reader) error {
	var stats map[string]Stats
	if err := json.NewDecoder(r).Decode(&stats); err != nil {
		return fmt.Errorf("decode feature statistics: %w", err)
	}
	n.Import(stats)
	return nil
}
