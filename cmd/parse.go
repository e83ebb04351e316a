package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/parser"
)

var parseCmd = &cobra.Command{
	Use:   "parse [flags] <file>...",
	Short: "Parse log files into timestamped records",
	Long: `Parse log lines with one of the supported formats and print the
resulting timestamp and message records. Lines the format does not match
are skipped and counted.

Examples:
  driftprep parse --log-type hdfs HDFS_2k.log
  driftprep parse --count --log-type apache Apache_2k.log
  driftprep parse --since 2024-03-15 --until 1h --format json app.log
  driftprep parse --redact --redact-patterns ipv4,hdfs_block HDFS_2k.log`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	addInputFlags(parseCmd)
	parseCmd.Flags().BoolP("count", "c", false, "only print the number of parsed records")
	parseCmd.Flags().Bool("no-color", false, "disable colored output")
	addRedactFlags(parseCmd)

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	countOnly, _ := cmd.Flags().GetBool("count")
	logger := newLogger(cmd.ErrOrStderr())

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

	firstSkipped := 0
	p, err := parser.New(format, cfg, parser.WithSkipFunc(func(lineNum int, _ string) {
		if firstSkipped == 0 {
			firstSkipped = lineNum
		}
	}))
	if err != nil {
		return err
	}
	res := p.ParseLines(lines)

	records := make([]parser.Record, 0, len(res.Records))
	for _, r := range res.Records {
		if !since.IsZero() && r.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && r.Timestamp.After(until) {
			continue
		}
		if redactor != nil {
			r.Message = redactor.Redact(r.Message)
		}
		records = append(records, r)
	}

	logger.Info("parsed input",
		"format", format,
		"total", res.Total,
		"parsed", len(res.Records),
		"skipped", res.Skipped,
		"first_skipped_line", firstSkipped,
		"in_range", len(records),
	)

	if countOnly {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), len(records))
		return err
	}

	w := output.New(cmd.OutOrStdout(), outputFormat(output.FormatText)).WithColor(colorMode(cmd))
	return w.WriteRecords(records)
}
