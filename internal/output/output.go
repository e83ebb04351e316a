// Package output renders feature frames, parsed records and analysis results.
// It supports csv, text, JSON, and table formats.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"unicode/utf8"

	"github.com/bimmerbailey/driftprep/internal/frame"
	"github.com/bimmerbailey/driftprep/internal/parser"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
)

// TimeLayout keys every output row.
const TimeLayout = "2006-01-02 15:04:05"

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	case "csv":
		return FormatCSV
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w        io.Writer
	format   Format
	colorize bool
}

// New creates a new output Writer with colors disabled.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WithColor enables colors according to mode and returns the writer.
func (wr *Writer) WithColor(mode ColorMode) *Writer {
	wr.colorize = shouldColorize(mode, wr.w)
	return wr
}

// Format returns the configured format.
func (wr *Writer) Format() Format {
	return wr.format
}

// FrameDocument is the JSON form of a frame.
type FrameDocument struct {
	RunID   string     `json:"run_id,omitempty"`
	Columns []string   `json:"columns"`
	Rows    []FrameRow `json:"rows"`
}

// FrameRow is one window in a FrameDocument.
type FrameRow struct {
	Timestamp string             `json:"timestamp"`
	Values    map[string]float64 `json:"values"`
}

// NewFrameDocument converts f into its JSON form.
func NewFrameDocument(f *frame.Frame, runID string) FrameDocument {
	doc := FrameDocument{
		RunID:   runID,
		Columns: f.Names(),
		Rows:    make([]FrameRow, f.Len()),
	}
	for i, ts := range f.Index {
		doc.Rows[i] = FrameRow{Timestamp: ts.Format(TimeLayout), Values: f.Row(i)}
	}
	return doc
}

// WriteFrame outputs a feature frame in the configured format. runID is only
// included in JSON output, and only when non-empty.
func (wr *Writer) WriteFrame(f *frame.Frame, runID string) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(NewFrameDocument(f, runID))
	case FormatTable:
		return wr.writeFrameTable(f)
	case FormatCSV:
		return wr.writeFrameCSV(f)
	default:
		return wr.writeFrameText(f)
	}
}

// WriteRecords outputs parsed records in the configured format.
func (wr *Writer) WriteRecords(records []parser.Record) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(records)
	case FormatTable:
		return wr.writeRecordTable(records)
	case FormatCSV:
		return wr.writeRecordCSV(records)
	default:
		return wr.writeRecordText(records)
	}
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v interface{}) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteFrameFile writes f to path, creating parent directories. A .json
// extension selects JSON; anything else is written as csv.
func WriteFrameFile(path string, f *frame.Frame, runID string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}

	format := FormatCSV
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = FormatJSON
	}
	if err := New(file, format).WriteFrame(f, runID); err != nil {
		file.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return file.Close()
}

func (wr *Writer) writeFrameCSV(f *frame.Frame) error {
	cw := csv.NewWriter(wr.w)
	if err := cw.Write(append([]string{"timestamp"}, f.Names()...)); err != nil {
		return err
	}

	record := make([]string, f.Width()+1)
	for i, ts := range f.Index {
		record[0] = ts.Format(TimeLayout)
		for j, v := range f.Values[i] {
			record[j+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (wr *Writer) writeFrameText(f *frame.Frame) error {
	names := f.Names()
	for i, ts := range f.Index {
		var sb strings.Builder
		sb.WriteString(ts.Format(TimeLayout))
		for j, v := range f.Values[i] {
			fmt.Fprintf(&sb, " %s=%s", names[j], formatValue(v))
		}
		if _, err := fmt.Fprintln(wr.w, sb.String()); err != nil {
			return err
		}
	}
	return nil
}

func (wr *Writer) writeFrameTable(f *frame.Frame) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, wr.header(append([]string{"TIMESTAMP"}, f.Names()...))+"\t")

	for i, ts := range f.Index {
		cells := make([]string, 0, f.Width()+1)
		cells = append(cells, ts.Format(TimeLayout))
		for _, v := range f.Values[i] {
			cells = append(cells, formatValue(v))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t")+"\t")
	}

	return tw.Flush()
}

func (wr *Writer) writeRecordText(records []parser.Record) error {
	for _, r := range records {
		line := r.Timestamp.Format(TimeLayout) + " " + r.Message
		if wr.colorize {
			line = ColorizeLine(line)
		}
		if _, err := fmt.Fprintln(wr.w, line); err != nil {
			return err
		}
	}
	return nil
}

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}

func (wr *Writer) writeRecordTable(records []parser.Record) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, wr.header([]string{"LINE", "TIMESTAMP", "MESSAGE"}))
	fmt.Fprintln(tw, "----\t---------\t-------")

	for i, r := range records {
		msg := Truncate(r.Message, 80)
		if wr.colorize {
			msg = ColorizeLine(msg)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, r.Timestamp.Format(TimeLayout), msg)
	}

	return tw.Flush()
}

func (wr *Writer) writeRecordCSV(records []parser.Record) error {
	cw := csv.NewWriter(wr.w)
	if err := cw.Write([]string{"timestamp", "message"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := cw.Write([]string{r.Timestamp.Format(TimeLayout), r.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// header joins table column titles, bold when colorized.
func (wr *Writer) header(cols []string) string {
	if !wr.colorize {
		return strings.Join(cols, "\t")
	}
	for i, c := range cols {
		cols[i] = colorBold + c + colorReset
	}
	return strings.Join(cols, "\t")
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
