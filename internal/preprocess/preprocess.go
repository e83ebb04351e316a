package preprocess

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/features"
	"github.com/bimmerbailey/driftprep/internal/frame"
	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/parser"
	"github.com/bimmerbailey/driftprep/internal/window"
)

// Preprocessor runs the complete preprocessing pipeline.
//
// The pipeline consists of four stages:
//  1. Parsing - Turn raw lines into timestamped records
//  2. Feature Extraction - Compute basic and pattern features per record
//  3. Windowing - Aggregate features per time window
//  4. Normalization - Scale window aggregates with learned statistics
//
// Usage:
//
//	cfg := config.Default()
//	p := preprocess.New(cfg, preprocess.WithLogger(logger))
//
//	result, err := p.Process(lines, parser.FormatHDFS)
//	if err != nil {
//	    return err
//	}
//
//	fmt.Println(result.Stats())
//
// The Normalizer is owned by the Preprocessor and keeps its statistics
// across calls, so later batches are scaled like the first one. A
// Preprocessor is not safe for concurrent use.
type Preprocessor struct {
	cfg        *config.Config
	extractor  *features.Extractor
	engine     *window.Engine
	normalizer *normalize.Normalizer
	logger     *slog.Logger
	onSkip     parser.SkipFunc
	since      time.Time
	until      time.Time
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Preprocessor) {
		p.logger = logger
	}
}

// WithNormalizer replaces the Preprocessor's own Normalizer, for example
// with one whose statistics were loaded from a store.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(p *Preprocessor) {
		p.normalizer = n
	}
}

// WithSkipFunc registers an observer for lines the parser skips.
func WithSkipFunc(fn parser.SkipFunc) Option {
	return func(p *Preprocessor) {
		p.onSkip = fn
	}
}

// WithTimeRange keeps only records in [since, until]. A zero bound is open.
func WithTimeRange(since, until time.Time) Option {
	return func(p *Preprocessor) {
		p.since = since
		p.until = until
	}
}

// New creates a Preprocessor for cfg. A nil cfg uses the defaults.
func New(cfg *config.Config, opts ...Option) *Preprocessor {
	if cfg == nil {
		cfg = config.Default()
	}

	p := &Preprocessor{
		cfg:        cfg,
		extractor:  features.NewExtractor(cfg),
		engine:     window.NewEngine(cfg),
		normalizer: normalize.New(normalize.Method(cfg.NormalizationMethod())),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return p
}

// Config returns the configuration the Preprocessor was built with.
func (p *Preprocessor) Config() *config.Config {
	return p.cfg
}

// Normalizer returns the Normalizer holding the learned statistics.
func (p *Preprocessor) Normalizer() *normalize.Normalizer {
	return p.normalizer
}

// FeatureNames returns the per-record feature names in output order.
func (p *Preprocessor) FeatureNames() []string {
	return p.extractor.Names()
}

// Reset clears the learned normalization statistics. Call this when
// switching to unrelated logs whose ranges should not be shared.
func (p *Preprocessor) Reset() {
	p.normalizer.Reset()
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID  string
	Format parser.Format

	// Frame holds the normalized window aggregates.
	Frame *frame.Frame
	// Aggregated holds the window aggregates before normalization.
	Aggregated *frame.Frame

	TotalLines int
	Parsed     int
	Skipped    int
	Filtered   int
	Windows    window.Stats
	Duration   time.Duration
}

// SkipRate returns the fraction of input lines that produced no record.
func (r *Result) SkipRate() float64 {
	if r.TotalLines == 0 {
		return 0
	}
	return float64(r.Skipped) / float64(r.TotalLines)
}

// Process parses lines in format and runs the remaining stages.
func (p *Preprocessor) Process(lines []string, format parser.Format) (*Result, error) {
	ps, err := parser.New(format, p.cfg, parser.WithSkipFunc(p.onSkip))
	if err != nil {
		return nil, err
	}

	start := time.Now()
	parsed := ps.ParseLines(lines)

	res := newResult(format)
	res.TotalLines = parsed.Total
	res.Skipped = parsed.Skipped

	p.logger.Debug("parsed lines",
		"run_id", res.RunID,
		"format", format,
		"total", parsed.Total,
		"parsed", len(parsed.Records),
		"skipped", parsed.Skipped,
	)

	return p.run(res, parsed.Records, start)
}

// ProcessRows runs the pipeline over tabular input that already carries
// timestamp and message columns. Malformed rows fail the whole call.
func (p *Preprocessor) ProcessRows(rows []parser.Row, format parser.Format) (*Result, error) {
	ps, err := parser.New(format, p.cfg)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	records, err := ps.ParseRows(rows)
	if err != nil {
		return nil, err
	}

	res := newResult(format)
	res.TotalLines = len(rows)
	return p.run(res, records, start)
}

func newResult(format parser.Format) *Result {
	return &Result{RunID: uuid.NewString(), Format: format}
}

func (p *Preprocessor) run(res *Result, records []parser.Record, start time.Time) (*Result, error) {
	logger := p.logger.With("run_id", res.RunID)

	rows := make([]window.Row, 0, len(records))
	for _, rec := range records {
		if !p.inRange(rec.Timestamp) {
			res.Filtered++
			continue
		}
		values := make([]float64, p.extractor.Len())
		p.extractor.ExtractInto(rec.Message, values)
		rows = append(rows, window.Row{Timestamp: rec.Timestamp, Values: values})
	}
	res.Parsed = len(records)

	if res.Filtered > 0 {
		logger.Debug("filtered records outside time range",
			"filtered", res.Filtered,
			"since", p.since,
			"until", p.until,
		)
	}

	aggregated, ws, err := p.engine.Window(p.extractor.Names(), rows)
	res.Windows = ws
	if err != nil {
		logger.Debug("windowing failed", "error", err, "rows", len(rows))
		return nil, fmt.Errorf("windowing failed: %w", err)
	}
	res.Aggregated = aggregated

	logger.Debug("windowed records",
		"window", p.cfg.Window(),
		"stride", p.cfg.Stride(),
		"candidates", ws.Candidates,
		"dropped", ws.Dropped,
		"truncated", ws.Truncated,
		"kept", ws.Kept,
	)

	fittedBefore := len(p.normalizer.Columns())
	normalized, err := p.normalizer.Normalize(aggregated)
	if err != nil {
		return nil, fmt.Errorf("normalization failed: %w", err)
	}
	res.Frame = normalized
	res.Duration = time.Since(start)

	logger.Info("preprocessing complete",
		"format", res.Format,
		"lines", res.TotalLines,
		"records", res.Parsed,
		"skipped", res.Skipped,
		"windows", normalized.Len(),
		"columns", normalized.Width(),
		"new_stats", len(p.normalizer.Columns())-fittedBefore,
		"duration", res.Duration,
	)

	return res, nil
}

func (p *Preprocessor) inRange(ts time.Time) bool {
	if !p.since.IsZero() && ts.Before(p.since) {
		return false
	}
	if !p.until.IsZero() && ts.After(p.until) {
		return false
	}
	return true
}
