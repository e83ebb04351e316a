package cmd

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/output"
	"github.com/bimmerbailey/driftprep/internal/parser"
	"github.com/bimmerbailey/driftprep/internal/preprocess"
)

func newWatchTestCmd(out, errOut *bytes.Buffer) *cobra.Command {
	return newTestCmd("watch", out, errOut, addFormatFlags, addPreprocessFlags, func(c *cobra.Command) {
		c.Flags().StringP("pattern", "p", "", "")
		c.Flags().IntP("lines", "n", 0, "")
		c.Flags().Bool("from-start", false, "")
		c.Flags().Bool("no-follow", false, "")
		c.Flags().Bool("follow-rotate", false, "")
		c.Flags().Bool("no-color", false, "")
	})
}

func newTestBatchProcessor(t *testing.T, out *bytes.Buffer, format parser.Format, statsPath string) *batchProcessor {
	t.Helper()
	s := config.DefaultSettings()
	s.WindowSize = "1min"
	cfg, err := config.New(s)
	if err != nil {
		t.Fatalf("config.New() error = %v", err)
	}

	stores := &statsStores{}
	if statsPath != "" {
		stores.save = normalize.NewFileStore(statsPath)
	}
	n := normalize.New(normalize.MinMax)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &batchProcessor{
		ctx:        context.Background(),
		cfg:        cfg,
		pre:        preprocess.New(cfg, preprocess.WithLogger(logger), preprocess.WithNormalizer(n)),
		normalizer: n,
		stores:     stores,
		format:     format,
		writer:     output.New(out, output.FormatText),
		logger:     logger,
	}
}

func TestBatchProcessorSharesStatistics(t *testing.T) {
	statsPath := filepath.Join(t.TempDir(), "stats.json")
	var out bytes.Buffer
	bp := newTestBatchProcessor(t, &out, parser.FormatDefault, statsPath)

	if err := bp.handle(fiveLines[:3]); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	fitted := len(bp.normalizer.Columns())
	if fitted == 0 {
		t.Fatal("expected statistics after the first batch")
	}
	if _, err := os.Stat(statsPath); err != nil {
		t.Fatalf("expected statistics saved after the batch: %v", err)
	}

	if err := bp.handle(fiveLines[3:]); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if got := len(bp.normalizer.Columns()); got != fitted {
		t.Errorf("expected statistics reused, columns went from %d to %d", fitted, got)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 windows over two batches, got %d:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[3], "2024-03-15 10:03:00 ") {
		t.Errorf("unexpected second batch row: %s", lines[3])
	}
}

func TestBatchProcessorDetectsFormat(t *testing.T) {
	var out bytes.Buffer
	bp := newTestBatchProcessor(t, &out, "", "")

	if err := bp.handle([]string{"nothing to see", "still nothing"}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if bp.format != "" || out.Len() != 0 {
		t.Fatalf("expected undetectable batch to be skipped, format %q, output %q", bp.format, out.String())
	}

	if err := bp.handle(hdfsLines); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if bp.format != parser.FormatHDFS {
		t.Errorf("expected hdfs, got %q", bp.format)
	}
	if !strings.HasPrefix(out.String(), "2008-11-09 20:35:00 ") {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestBatchProcessorSkipsEmptyWindows(t *testing.T) {
	var out bytes.Buffer
	bp := newTestBatchProcessor(t, &out, parser.FormatDefault, "")

	// Parses nothing, so no window survives.
	if err := bp.handle([]string{"garbage"}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestWatchNoFollowFromStart(t *testing.T) {
	resetViper()
	dir := t.TempDir()
	// Trailing newline so the tailer sees the last line as complete.
	file := writeTempFile(t, dir, "app.log", append(append([]string(nil), fiveLines...), ""))
	statsPath := filepath.Join(dir, "stats.json")

	var out, errOut bytes.Buffer
	cmd := newWatchTestCmd(&out, &errOut)
	setFlags(t, cmd,
		"from-start", "true",
		"no-follow", "true",
		"window", "1min",
		"pattern", "ERROR",
		"stats-out", statsPath,
	)

	if err := runWatch(cmd, []string{file}); err != nil {
		t.Fatalf("runWatch() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 windows for the ERROR lines, got %d:\n%s", len(lines), out.String())
	}
	if _, err := os.Stat(statsPath); err != nil {
		t.Errorf("expected statistics at %s: %v", statsPath, err)
	}
}

func TestWatchMissingFile(t *testing.T) {
	resetViper()
	var out, errOut bytes.Buffer
	err := runWatch(newWatchTestCmd(&out, &errOut), []string{filepath.Join(t.TempDir(), "nope.log")})
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}
