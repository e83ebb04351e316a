package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/parser"
	"github.com/bimmerbailey/driftprep/internal/preprocess"
	"github.com/bimmerbailey/driftprep/internal/tail"
	"github.com/bimmerbailey/driftprep/internal/window"
)

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <file>",
	Short: "Preprocess a growing log file batch by batch",
	Long: `Follow a log file like 'tail -f' and run the pipeline over each batch
of newly written lines. Every batch is normalized with the statistics learned
so far, so features stay on the same scale across batches. Statistics can be
seeded with --stats-in and are saved after each batch with --stats-out.

Batches too small to fill a window are reported and skipped.

Examples:
  driftprep watch --log-type hdfs /var/log/hadoop/datanode.log
  driftprep watch --stats-in train.json --stats-out live.json app.log
  driftprep watch --from-start --follow-rotate --format json app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	addFormatFlags(watchCmd)
	addPreprocessFlags(watchCmd)
	watchCmd.Flags().StringP("pattern", "p", "", "only process lines matching regex pattern")
	watchCmd.Flags().IntP("lines", "n", 0, "number of existing trailing lines to process first")
	watchCmd.Flags().Bool("from-start", false, "process the whole existing file first")
	watchCmd.Flags().Bool("no-follow", false, "process existing lines and exit (don't follow)")
	watchCmd.Flags().Bool("follow-rotate", false, "follow through log rotations (continue when file is renamed/removed)")
	watchCmd.Flags().Bool("no-color", false, "disable colored output")

	rootCmd.AddCommand(watchCmd)
}

// batchProcessor runs the pipeline over each batch delivered by the tailer.
type batchProcessor struct {
	ctx        context.Context
	cfg        *config.Config
	pre        *preprocess.Preprocessor
	normalizer *normalize.Normalizer
	stores     *statsStores
	format     parser.Format // empty until detected
	writer     *output.Writer
	logger     *slog.Logger
	batches    int
}

func (b *batchProcessor) handle(lines []string) error {
	b.batches++
	logger := b.logger.With("batch", b.batches)

	if b.format == "" {
		det, ok := parser.Detect(lines, b.cfg)
		if !ok {
			logger.Warn("could not detect log type, skipping batch", "lines", len(lines))
			return nil
		}
		b.format = det.Format
		logger.Info("detected log type", "format", det.Format, "matched", det.Matched)
	}

	res, err := b.pre.Process(lines, b.format)
	if errors.Is(err, window.ErrNoValidWindows) {
		logger.Info("batch produced no windows", "lines", len(lines))
		return nil
	}
	if err != nil {
		return err
	}

	if err := b.stores.saveFrom(b.ctx, b.normalizer); err != nil {
		return err
	}
	return b.writer.WriteFrame(res.Frame, res.RunID)
}

func runWatch(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	patternStr, _ := cmd.Flags().GetString("pattern")
	lines, _ := cmd.Flags().GetInt("lines")
	fromStart, _ := cmd.Flags().GetBool("from-start")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	followRotate, _ := cmd.Flags().GetBool("follow-rotate")
	logger := newLogger(cmd.ErrOrStderr())

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	var pattern *regexp.Regexp
	if patternStr != "" {
		var err error
		pattern, err = regexp.Compile(patternStr)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}

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
	format, _, err := explicitFormat(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := openStatsStores(ctx, cmd, app)
	if err != nil {
		return err
	}
	defer stores.Close()

	normalizer := normalize.New(normalize.Method(cfg.NormalizationMethod()))
	if err := stores.loadInto(ctx, normalizer, logger); err != nil {
		return err
	}

	bp := &batchProcessor{
		ctx: ctx,
		cfg: cfg,
		pre: preprocess.New(cfg,
			preprocess.WithLogger(logger),
			preprocess.WithNormalizer(normalizer),
			preprocess.WithTimeRange(since, until),
		),
		normalizer: normalizer,
		stores:     stores,
		format:     format,
		writer:     output.New(cmd.OutOrStdout(), outputFormat(output.FormatText)).WithColor(colorMode(cmd)),
		logger:     logger,
	}

	tailer := tail.New(tail.Options{
		FilePath:     filePath,
		Lines:        lines,
		FromStart:    fromStart,
		Follow:       !noFollow,
		FollowRotate: followRotate,
		Pattern:      pattern,
		OnLines:      bp.handle,
		Logger:       logger,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- tailer.Run(ctx)
	}()

	select {
	case <-sigChan:
		cancel()
		<-errChan
		return nil
	case err := <-errChan:
		if err != nil && !errors.Is(err, tail.ErrRotated) {
			return err
		}
		return nil
	}
}
