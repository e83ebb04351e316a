package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/features"
	"github.com/bimmerbailey/driftprep/internal/input"
	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/parser"
)

// logTypeAuto asks for format detection on the input.
const logTypeAuto = "auto"

// newLogger returns the CLI logger: errors only by default, info with
// --verbose and debug with --debug.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelError
	switch {
	case viper.GetBool("debug"):
		level = slog.LevelDebug
	case viper.GetBool("verbose"):
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// outputFormat returns the --format value, or fallback when it is unset.
func outputFormat(fallback output.Format) output.Format {
	if s := viper.GetString("format"); s != "" {
		return output.ParseFormat(s)
	}
	return fallback
}

// colorMode maps --no-color to a ColorMode.
func colorMode(cmd *cobra.Command) output.ColorMode {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		return output.ColorNever
	}
	return output.ColorAuto
}

// addFormatFlags registers the log type and time range flags.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("log-type", "t", "", "log format: auto, "+joinFormats()+" (default from config, else auto)")
	cmd.Flags().String("since", "", "only include records since timestamp (RFC3339, date, or relative like '1h')")
	cmd.Flags().String("until", "", "only include records until timestamp (RFC3339, date, or relative like '1h')")
}

// addInputFlags registers the flags shared by every command that reads whole files.
func addInputFlags(cmd *cobra.Command) {
	addFormatFlags(cmd)
	cmd.Flags().String("encoding", "", "input encoding (utf-8, utf-16le, utf-16be, iso-8859-1, windows-1252); detected when empty")
}

// addPreprocessFlags registers the flags that override preprocessing settings.
func addPreprocessFlags(cmd *cobra.Command) {
	cmd.Flags().String("window", "", "window size (e.g. 30s, 5min, 1h)")
	cmd.Flags().String("stride", "", "window stride; defaults to the window size")
	cmd.Flags().String("method", "", "normalization method (minmax, zscore)")
	cmd.Flags().Int("min-logs", 0, "minimum records per window")
	cmd.Flags().Int("max-logs", 0, "maximum records per window; extra records are dropped")
	cmd.Flags().StringSlice("builtin-patterns", nil, "add built-in pattern features ("+strings.Join(features.BuiltInNames(), ", ")+")")
	cmd.Flags().String("stats-in", "", "load learned normalization statistics from file")
	cmd.Flags().String("stats-out", "", "save learned normalization statistics to file")
}

// addRedactFlags registers the flags that mask sensitive values in output.
func addRedactFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("redact", false, "mask sensitive values with stable placeholders")
	cmd.Flags().StringSlice("redact-patterns", nil, "built-in patterns masked by --redact (default "+strings.Join(features.DefaultRedactPatterns, ", ")+")")
}

// newRedactor returns the Redactor selected by --redact, or nil.
func newRedactor(cmd *cobra.Command) (*features.Redactor, error) {
	if on, _ := cmd.Flags().GetBool("redact"); !on {
		return nil, nil
	}
	names, _ := cmd.Flags().GetStringSlice("redact-patterns")
	return features.NewRedactor(names)
}

func joinFormats() string {
	names := make([]string, 0, len(parser.Formats()))
	for _, f := range parser.Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// buildConfig applies flag overrides to settings and validates the result.
func buildConfig(cmd *cobra.Command, settings config.Settings) (*config.Config, error) {
	flags := cmd.Flags()
	if f := flags.Lookup("window"); f != nil && f.Changed {
		settings.WindowSize = f.Value.String()
	}
	if f := flags.Lookup("stride"); f != nil && f.Changed {
		settings.WindowStride = f.Value.String()
	}
	if f := flags.Lookup("method"); f != nil && f.Changed {
		settings.NormalizationMethod = strings.ToLower(f.Value.String())
	}
	if flags.Changed("min-logs") {
		settings.MinLogsPerWindow, _ = flags.GetInt("min-logs")
	}
	if flags.Changed("max-logs") {
		settings.MaxLogsPerWindow, _ = flags.GetInt("max-logs")
	}
	if flags.Changed("builtin-patterns") {
		names, _ := flags.GetStringSlice("builtin-patterns")
		patterns, err := features.WithBuiltIns(settings.CustomPatterns, names)
		if err != nil {
			return nil, err
		}
		settings.CustomPatterns = patterns
	}
	return config.New(settings)
}

// readInput expands globs and reads every file, concatenating their lines.
func readInput(cmd *cobra.Command, args []string, logger *slog.Logger) ([]string, error) {
	files, err := config.ExpandGlobs(args)
	if err != nil {
		return nil, err
	}

	var opts []input.Option
	if enc, _ := cmd.Flags().GetString("encoding"); enc != "" {
		opts = append(opts, input.WithEncoding(enc))
	}

	var lines []string
	for _, file := range files {
		doc, err := input.ReadLines(file, opts...)
		if err != nil {
			return nil, err
		}
		logger.Debug("read input", "path", file, "lines", len(doc.Lines), "encoding", doc.Encoding)
		lines = append(lines, doc.Lines...)
	}
	return lines, nil
}

// resolveFormat returns the --log-type format, falling back to the config
// log_type, and detects it from lines when it is "auto".
func resolveFormat(cmd *cobra.Command, lines []string, cfg *config.Config, logger *slog.Logger) (parser.Format, error) {
	format, ok, err := explicitFormat(cmd)
	if err != nil || ok {
		return format, err
	}

	det, ok := parser.Detect(lines, cfg)
	if !ok {
		return "", fmt.Errorf("could not detect log type from %d lines; use --log-type", min(len(lines), parser.DetectSampleSize))
	}
	logger.Info("detected log type", "format", det.Format, "matched", det.Matched)
	return det.Format, nil
}

// explicitFormat returns the configured format; ok is false for "auto".
func explicitFormat(cmd *cobra.Command) (format parser.Format, ok bool, err error) {
	name, _ := cmd.Flags().GetString("log-type")
	if name == "" {
		name = viper.GetString("log_type")
	}
	if name == "" || strings.EqualFold(name, logTypeAuto) {
		return "", false, nil
	}
	format, err = parser.ParseFormat(name)
	return format, err == nil, err
}

// timeRange parses --since and --until.
func timeRange(cmd *cobra.Command) (since, until time.Time, err error) {
	if s, _ := cmd.Flags().GetString("since"); s != "" {
		if since, err = config.ParseTimeRef(s); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --since value: %w", err)
		}
	}
	if s, _ := cmd.Flags().GetString("until"); s != "" {
		if until, err = config.ParseTimeRef(s); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --until value: %w", err)
		}
	}
	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return time.Time{}, time.Time{}, fmt.Errorf("--until is before --since")
	}
	return since, until, nil
}

// statsStores holds where learned statistics are loaded from and saved to.
type statsStores struct {
	load, save normalize.Store
	required   bool
	closers    []io.Closer
}

// openStatsStores resolves the statistics stores. Without --stats-in and
// --stats-out, a redis store serves both directions when stats.store is
// redis; otherwise the flags name files, falling back to stats.path.
// Statistics named by --stats-in must exist.
func openStatsStores(ctx context.Context, cmd *cobra.Command, app config.App) (*statsStores, error) {
	in, _ := cmd.Flags().GetString("stats-in")
	out, _ := cmd.Flags().GetString("stats-out")

	s := &statsStores{required: in != ""}
	if app.Stats.Store == "redis" && in == "" && out == "" {
		rs, err := normalize.DialRedisStore(ctx, app.Stats.Redis)
		if err != nil {
			return nil, fmt.Errorf("connecting to stats store: %w", err)
		}
		s.load, s.save = rs, rs
		s.closers = append(s.closers, rs)
		return s, nil
	}

	if in == "" {
		in = app.Stats.Path
	}
	if out == "" {
		out = app.Stats.Path
	}
	if in != "" {
		s.load = normalize.NewFileStore(in)
	}
	if out != "" {
		s.save = normalize.NewFileStore(out)
	}
	return s, nil
}

// loadInto fills n from the load store, if any.
func (s *statsStores) loadInto(ctx context.Context, n *normalize.Normalizer, logger *slog.Logger) error {
	if s.load == nil {
		return nil
	}
	err := n.LoadFrom(ctx, s.load)
	if errors.Is(err, normalize.ErrNoStats) && !s.required {
		logger.Info("no saved statistics, fitting from scratch")
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading statistics: %w", err)
	}
	logger.Info("loaded statistics", "columns", len(n.Columns()))
	return nil
}

// saveFrom persists n to the save store, if any.
func (s *statsStores) saveFrom(ctx context.Context, n *normalize.Normalizer) error {
	if s.save == nil {
		return nil
	}
	if err := n.SaveTo(ctx, s.save); err != nil {
		return fmt.Errorf("saving statistics: %w", err)
	}
	return nil
}

func (s *statsStores) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
