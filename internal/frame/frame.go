// Package frame holds the time-indexed feature table produced by windowing.
package frame

import (
	"fmt"
	"strings"
	"time"
)

// Aggregate names, in the order columns are laid out for each feature.
const (
	AggMean = "mean"
	AggStd  = "std"
	AggMin  = "min"
	AggMax  = "max"
)

// Aggregates lists the per-feature aggregates in column order.
var Aggregates = []string{AggMean, AggStd, AggMin, AggMax}

// Column is a two-level column name: a feature and one of its aggregates.
type Column struct {
	Feature   string
	Aggregate string
}

// Name returns "feature.aggregate".
func (c Column) Name() string {
	return c.Feature + "." + c.Aggregate
}

// ParseColumn splits a "feature.aggregate" name at its last dot.
func ParseColumn(name string) (Column, error) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return Column{}, fmt.Errorf("invalid column name %q: expected feature.aggregate", name)
	}
	return Column{Feature: name[:i], Aggregate: name[i+1:]}, nil
}

// ColumnsFor returns the columns for features, each expanded to every aggregate.
func ColumnsFor(features []string) []Column {
	cols := make([]Column, 0, len(features)*len(Aggregates))
	for _, f := range features {
		for _, agg := range Aggregates {
			cols = append(cols, Column{Feature: f, Aggregate: agg})
		}
	}
	return cols
}

// Frame is a table of rows keyed by window start time, ascending.
// Values is row-major: Values[i][j] is row i, column j.
type Frame struct {
	Index   []time.Time
	Columns []Column
	Values  [][]float64
}

// New creates an empty frame with the given columns.
func New(columns []Column) *Frame {
	return &Frame{Columns: append([]Column(nil), columns...)}
}

// Append adds a row. values must have one entry per column.
func (f *Frame) Append(ts time.Time, values []float64) error {
	if len(values) != len(f.Columns) {
		return fmt.Errorf("row has %d values, frame has %d columns", len(values), len(f.Columns))
	}
	f.Index = append(f.Index, ts)
	f.Values = append(f.Values, values)
	return nil
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.Index)
}

// Width returns the number of columns.
func (f *Frame) Width() int {
	return len(f.Columns)
}

// Names returns the flat column names.
func (f *Frame) Names() []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name()
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c.Name() == name {
			return i
		}
	}
	return -1
}

// ColumnValues returns a copy of column j.
func (f *Frame) ColumnValues(j int) []float64 {
	out := make([]float64, len(f.Values))
	for i, row := range f.Values {
		out[i] = row[j]
	}
	return out
}

// SetColumn overwrites column j with values.
func (f *Frame) SetColumn(j int, values []float64) {
	for i := range f.Values {
		f.Values[i][j] = values[i]
	}
}

// Row returns row i as a name-keyed map.
func (f *Frame) Row(i int) map[string]float64 {
	row := make(map[string]float64, len(f.Columns))
	for j, c := range f.Columns {
		row[c.Name()] = f.Values[i][j]
	}
	return row
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	out := &Frame{
		Index:   append([]time.Time(nil), f.Index...),
		Columns: append([]Column(nil), f.Columns...),
		Values:  make([][]float64, len(f.Values)),
	}
	for i, row := range f.Values {
		out.Values[i] = append([]float64(nil), row...)
	}
	return out
}
