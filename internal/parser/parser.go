// Package parser converts raw log lines into timestamped records.
//
// Each supported log type is a Format. A Parser is bound to one Format and a
// validated configuration; lines that do not match the format are skipped and
// counted rather than reported as errors.
package parser

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bimmerbailey/driftprep/internal/config"
)

var (
	// ErrUnknownFormat is returned for a log type outside the supported set.
	ErrUnknownFormat = errors.New("unknown log format")
	// ErrMissingColumn is returned when tabular input lacks a required column.
	ErrMissingColumn = errors.New("missing required column")
	// ErrInputShape is returned when tabular input carries a value of the wrong type.
	ErrInputShape = errors.New("unsupported input shape")
)

// Timestamps must fall within the range whose UnixNano is defined, since
// windows are computed in nanoseconds since the epoch.
var (
	minTimestamp = time.Unix(0, math.MinInt64).UTC()
	maxTimestamp = time.Unix(0, math.MaxInt64).UTC()
)

// Representable reports whether ts can be windowed.
func Representable(ts time.Time) bool {
	return !ts.Before(minTimestamp) && !ts.After(maxTimestamp)
}

// Format identifies a log type.
type Format string

const (
	FormatDefault   Format = "default"
	FormatHDFS      Format = "hdfs"
	FormatApache    Format = "apache"
	FormatHealthApp Format = "healthapp"
	FormatBGL       Format = "bgl"
	FormatHPC       Format = "hpc"
	FormatLinux     Format = "linux"
	FormatMac       Format = "mac"
)

var formats = []Format{
	FormatDefault,
	FormatHDFS,
	FormatApache,
	FormatHealthApp,
	FormatBGL,
	FormatHPC,
	FormatLinux,
	FormatMac,
}

// Formats returns every supported format.
func Formats() []Format {
	return append([]Format(nil), formats...)
}

// ParseFormat converts a log type name into a Format. Matching ignores case
// and surrounding whitespace.
func ParseFormat(s string) (Format, error) {
	name := Format(strings.ToLower(strings.TrimSpace(s)))
	for _, f := range formats {
		if f == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Record is a single parsed log line. Timestamps are always UTC.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Result is the outcome of parsing a batch of lines.
type Result struct {
	Records []Record
	Skipped int
	Total   int
}

// SkipFunc is called for every line that produced no record. lineNum is 1-based.
type SkipFunc func(lineNum int, line string)

// Option configures a Parser.
type Option func(*Parser)

// WithSkipFunc registers an observer for skipped lines.
func WithSkipFunc(fn SkipFunc) Option {
	return func(p *Parser) {
		p.onSkip = fn
	}
}

// Parser parses lines of a single format.
type Parser struct {
	format Format
	lp     lineParser
	layout string
	onSkip SkipFunc
}

// New creates a Parser for format using the timestamp layouts in cfg.
// A nil cfg uses the default configuration.
func New(format Format, cfg *config.Config, opts ...Option) (*Parser, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	lp, err := newLineParser(format, cfg)
	if err != nil {
		return nil, err
	}

	p := &Parser{
		format: format,
		lp:     lp,
		layout: rowLayout(format, cfg),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Format returns the format the parser was created for.
func (p *Parser) Format() Format {
	return p.format
}

// ParseLine parses one line. It reports false when the line does not match
// the format, yields an empty message or a timestamp outside the
// representable range.
func (p *Parser) ParseLine(line string) (Record, bool) {
	rec, ok := p.lp.parse(line)
	if !ok || rec.Message == "" || !Representable(rec.Timestamp) {
		return Record{}, false
	}
	rec.Timestamp = rec.Timestamp.UTC()
	return rec, true
}

// ParseLines parses lines in order, skipping those that do not match.
func (p *Parser) ParseLines(lines []string) Result {
	res := Result{
		Records: make([]Record, 0, len(lines)),
		Total:   len(lines),
	}
	for i, line := range lines {
		rec, ok := p.ParseLine(line)
		if !ok {
			res.Skipped++
			if p.onSkip != nil {
				p.onSkip(i+1, line)
			}
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res
}

// SkipRate returns the fraction of lines that produced no record.
func (r Result) SkipRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Skipped) / float64(r.Total)
}
