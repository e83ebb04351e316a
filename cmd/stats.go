package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/analyzer"
	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/parser"
)

var statsCmd = &cobra.Command{
	Use:   "stats [flags] <file>...",
	Short: "Show log file statistics",
	Long: `Display a statistical summary of log files: parse success rate,
time range, inter-arrival times between entries, line length and level
keyword distribution, the most frequent messages and message templates.

Examples:
  driftprep stats HDFS_2k.log
  driftprep stats --format json --bins 10 app.log
  driftprep stats --templates 0 --since "2024-01-01" app.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStats,
}

func init() {
	addInputFlags(statsCmd)
	statsCmd.Flags().Int("top", 10, "number of top messages to show")
	statsCmd.Flags().Int("bins", 0, "inter-arrival histogram bins (0 disables)")
	statsCmd.Flags().Int("templates", 10, "number of message templates to show (0 disables)")
	statsCmd.Flags().Int("samples", 3, "number of raw sample lines to show")
	statsCmd.Flags().Bool("no-color", false, "disable colored output")
	addRedactFlags(statsCmd)

	rootCmd.AddCommand(statsCmd)
}

// StatsReport is the output of the stats command.
type StatsReport struct {
	Format       parser.Format               `json:"format"`
	Parse        analyzer.ParseStats         `json:"parse"`
	InterArrival *analyzer.InterArrivalStats `json:"inter_arrival,omitempty"`
	Structure    analyzer.Structure          `json:"structure"`
	Templates    []analyzer.Template         `json:"templates,omitempty"`
}

func runStats(cmd *cobra.Command, args []string) error {
	topN, _ := cmd.Flags().GetInt("top")
	bins, _ := cmd.Flags().GetInt("bins")
	templates, _ := cmd.Flags().GetInt("templates")
	samples, _ := cmd.Flags().GetInt("samples")
	logger := newLogger(cmd.ErrOrStderr())

	if topN < 0 || bins < 0 || templates < 0 || samples < 0 {
		return fmt.Errorf("--top, --bins, --templates and --samples must not be negative")
	}

	redactor, err := newRedactor(cmd)
	if err != nil {
		return err
	}

	_, settings, err := loadApp()
	if err != nil {
		return err
	}
	cfg, err := buildConfig(cmd, settings)
	if err != nil {
		return err
	}
	since, until, err := timeRange(cmd)
	if err != nil {
		return err
	}

	lines, err := readInput(cmd, args, logger)
	if err != nil {
		return err
	}
	format, err := resolveFormat(cmd, lines, cfg, logger)
	if err != nil {
		return err
	}

	p, err := parser.New(format, cfg)
	if err != nil {
		return err
	}
	res := p.ParseLines(lines)
	if !since.IsZero() || !until.IsZero() {
		kept := res.Records[:0]
		for _, r := range res.Records {
			if (since.IsZero() || !r.Timestamp.Before(since)) && (until.IsZero() || !r.Timestamp.After(until)) {
				kept = append(kept, r)
			}
		}
		res.Records = kept
	}

	if redactor != nil {
		for i := range res.Records {
			res.Records[i].Message = redactor.Redact(res.Records[i].Message)
		}
	}

	anlz := analyzer.New()
	report := StatsReport{
		Format:    format,
		Parse:     anlz.ComputeParseStats(res, topN),
		Structure: anlz.Structure(lines, samples),
	}

	timestamps := make([]time.Time, len(res.Records))
	messages := make([]string, len(res.Records))
	for i, r := range res.Records {
		timestamps[i] = r.Timestamp
		messages[i] = r.Message
	}
	if redactor != nil {
		for i, line := range report.Structure.Samples {
			report.Structure.Samples[i] = redactor.Redact(line)
		}
	}
	if ia, ok := anlz.InterArrival(timestamps, bins); ok {
		report.InterArrival = &ia
	}
	if templates > 0 {
		report.Templates = anlz.Templates(messages, templates)
	}

	switch outputFormat(output.FormatText) {
	case output.FormatJSON:
		return output.New(cmd.OutOrStdout(), output.FormatJSON).WriteJSON(report)
	default:
		return writeStatsText(cmd.OutOrStdout(), report, colorMode(cmd))
	}
}

func writeStatsText(w io.Writer, r StatsReport, mode output.ColorMode) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	ps := r.Parse

	fmt.Fprintf(tw, "Format:\t%s\n", r.Format)
	fmt.Fprintf(tw, "Lines:\t%d (%d parsed, %d skipped, %.1f%%)\n", ps.TotalLines, ps.Parsed, ps.Skipped, ps.SkipRate*100)
	if ps.Parsed > 0 {
		fmt.Fprintf(tw, "Time range:\t%s to %s (span %s)\n",
			ps.FirstEntry.Format(output.TimeLayout), ps.LastEntry.Format(output.TimeLayout), ps.Span)
	}

	if ia := r.InterArrival; ia != nil {
		fmt.Fprintf(tw, "Inter-arrival:\tmin %.3fs, max %.3fs, mean %.3fs, std %.3fs, median %.3fs\n",
			ia.Min, ia.Max, ia.Mean, ia.Std, ia.Median)
		if ia.OutOfOrder > 0 {
			fmt.Fprintf(tw, "Out of order:\t%d entries\n", ia.OutOfOrder)
		}
		for _, b := range ia.Histogram {
			fmt.Fprintf(tw, "  [%.3f, %.3f)\t%d\n", b.Low, b.High, b.Count)
		}
	}

	st := r.Structure
	fmt.Fprintf(tw, "Line length:\tavg %.1f, min %d, max %d\n", st.AvgLength, st.MinLength, st.MaxLength)
	if st.TimestampPattern != "" {
		fmt.Fprintf(tw, "Timestamp:\t%s\n", st.TimestampPattern)
	}
	if len(st.LevelCounts) > 0 {
		levels := make([]string, 0, len(st.LevelCounts))
		for level := range st.LevelCounts {
			levels = append(levels, level)
		}
		sort.Strings(levels)
		for _, level := range levels {
			fmt.Fprintf(tw, "  %s\t%d\n", level, st.LevelCounts[level])
		}
	}

	if len(ps.TopMessages) > 0 {
		fmt.Fprintln(tw, "\nTop messages:")
		for _, m := range ps.TopMessages {
			fmt.Fprintf(tw, "  %d\t%s\n", m.Count, output.Truncate(m.Message, 100))
		}
	}

	if len(r.Templates) > 0 {
		fmt.Fprintln(tw, "\nTemplates:")
		for _, t := range r.Templates {
			fmt.Fprintf(tw, "  %d\t%s\n", t.Count, output.Truncate(t.Pattern, 100))
		}
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	if len(st.Samples) > 0 {
		fmt.Fprintln(w, "\nSamples:")
		sw := output.New(w, output.FormatText)
		for _, line := range st.Samples {
			if err := sw.WriteColoredLine("  "+line, mode); err != nil {
				return err
			}
		}
	}
	return nil
}
