package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/preprocess"
)

var processCmd = &cobra.Command{
	Use:   "process [flags] <file>...",
	Short: "Preprocess log files into a normalized feature table",
	Long: `Run the full pipeline over one or more log files: parse each line,
extract per-line features, aggregate them over time windows and normalize
the aggregates.

Normalization statistics learned from a previous run can be loaded with
--stats-in so that later batches are scaled like the first one; --stats-out
saves the statistics after the run.

The table is written to stdout (csv unless --format says otherwise) or to
--output, where a .json extension selects JSON.

Examples:
  driftprep process --log-type hdfs HDFS_2k.log
  driftprep process --window 1min --stride 30s --method zscore app.log
  driftprep process --stats-out stats.json -o out/train.csv train.log
  driftprep process --stats-in stats.json --format table "logs/*.log"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

func init() {
	addInputFlags(processCmd)
	addPreprocessFlags(processCmd)
	processCmd.Flags().StringP("output", "o", "", "write the feature table to this file instead of stdout")
	processCmd.Flags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cmd.ErrOrStderr())

	app, settings, err := loadApp()
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

	stores, err := openStatsStores(ctx, cmd, app)
	if err != nil {
		return err
	}
	defer stores.Close()

	normalizer := normalize.New(normalize.Method(cfg.NormalizationMethod()))
	if err := stores.loadInto(ctx, normalizer, logger); err != nil {
		return err
	}

	pre := preprocess.New(cfg,
		preprocess.WithLogger(logger),
		preprocess.WithNormalizer(normalizer),
		preprocess.WithTimeRange(since, until),
	)

	res, err := pre.Process(lines, format)
	if err != nil {
		return err
	}

	if err := stores.saveFrom(ctx, normalizer); err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("output"); path != "" {
		if err := output.WriteFrameFile(path, res.Frame, res.RunID); err != nil {
			return err
		}
	} else {
		w := output.New(cmd.OutOrStdout(), outputFormat(output.FormatCSV)).WithColor(colorMode(cmd))
		if err := w.WriteFrame(res.Frame, res.RunID); err != nil {
			return err
		}
	}

	if app.Verbose {
		fmt.Fprintln(cmd.ErrOrStderr(), res.Stats())
	}
	return nil
}
