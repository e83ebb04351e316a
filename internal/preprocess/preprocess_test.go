package preprocess

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimmerbailey/driftprep/internal/config"
	"github.com/bimmerbailey/driftprep/internal/normalize"
	"github.com/bimmerbailey/driftprep/internal/parser"
	"github.com/bimmerbailey/driftprep/internal/window"
)

var fiveLines = []string{
	"2024-03-15 10:00:00 ERROR Connection failed",
	"2024-03-15 10:01:00 INFO User john logged in from 192.168.1.100",
	"2024-03-15 10:02:00 WARNING High CPU usage: 95%",
	"2024-03-15 10:03:00 INFO Request completed in 120ms",
	"2024-03-15 10:04:00 ERROR Disk failure on /dev/sda",
}

func newPreprocessor(t *testing.T, mutate func(*config.Settings), opts ...Option) *Preprocessor {
	t.Helper()
	s := config.DefaultSettings()
	if mutate != nil {
		mutate(&s)
	}
	cfg, err := config.New(s)
	require.NoError(t, err)
	return New(cfg, opts...)
}

func TestProcessFiveLines(t *testing.T) {
	p := newPreprocessor(t, func(s *config.Settings) { s.WindowSize = "2min" })

	res, err := p.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	require.Equal(t, 3, res.Frame.Len())
	assert.Equal(t, []time.Time{base, base.Add(2 * time.Minute), base.Add(4 * time.Minute)}, res.Frame.Index)
	assert.Equal(t, len(p.FeatureNames())*4, res.Frame.Width())
	assert.Equal(t, res.Aggregated.Names(), res.Frame.Names())

	for _, name := range p.FeatureNames() {
		for _, agg := range []string{"mean", "std", "min", "max"} {
			assert.GreaterOrEqual(t, res.Frame.ColumnIndex(name+"."+agg), 0, name+"."+agg)
		}
	}

	assert.Equal(t, 5, res.TotalLines)
	assert.Equal(t, 5, res.Parsed)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, window.Stats{Candidates: 3, Kept: 3}, res.Windows)

	_, err = uuid.Parse(res.RunID)
	assert.NoError(t, err)
}

func TestProcessMinMaxRange(t *testing.T) {
	p := newPreprocessor(t, func(s *config.Settings) { s.WindowSize = "1min" })

	res, err := p.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)

	for _, row := range res.Frame.Values {
		for _, v := range row {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestProcessHDFS(t *testing.T) {
	p := newPreprocessor(t, nil)

	res, err := p.Process([]string{
		"081109 203518 148 INFO dfs.DataNode$PacketResponder: PacketResponder 1 for block blk_38865049064139660 terminating",
		"081109 203519 145 INFO dfs.DataNode$PacketResponder: Received block blk_-6952295868487656571 of size 67108864 from /10.251.42.84",
		"not an hdfs line",
	}, parser.FormatHDFS)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Frame.Len())
	assert.Equal(t, time.Date(2008, 11, 9, 20, 35, 0, 0, time.UTC), res.Frame.Index[0])
	assert.Equal(t, 1, res.Skipped)
	assert.InDelta(t, 1.0/3.0, res.SkipRate(), 1e-9)

	j := res.Aggregated.ColumnIndex("pattern_ip_address.max")
	require.GreaterOrEqual(t, j, 0)
	assert.Equal(t, 1.0, res.Aggregated.Values[0][j])
}

func TestProcessSkipFunc(t *testing.T) {
	var skipped []string
	p := newPreprocessor(t, nil, WithSkipFunc(func(lineNum int, line string) {
		skipped = append(skipped, line)
	}))

	lines := append([]string{"garbage one"}, fiveLines...)
	lines = append(lines, "garbage two")

	res, err := p.Process(lines, parser.FormatDefault)
	require.NoError(t, err)
	assert.Equal(t, []string{"garbage one", "garbage two"}, skipped)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 7, res.TotalLines)
}

func TestProcessNoValidWindows(t *testing.T) {
	p := newPreprocessor(t, func(s *config.Settings) {
		s.WindowSize = "1min"
		s.MinLogsPerWindow = 100
	})

	res, err := p.Process(fiveLines, parser.FormatDefault)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, window.ErrNoValidWindows)

	res, err = p.Process([]string{"nothing parses here"}, parser.FormatDefault)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, window.ErrNoValidWindows)
}

func TestProcessSkipsUnrepresentableYears(t *testing.T) {
	p := newPreprocessor(t, nil)

	res, err := p.Process([]string{
		"1500-01-01 10:00:00 a",
		"1500-01-01 10:01:00 b",
		"1500-01-01 10:07:00 c",
	}, parser.FormatDefault)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, window.ErrNoValidWindows)

	res, err = p.Process(append([]string{"1500-01-01 10:00:00 a"}, fiveLines...), parser.FormatDefault)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 5, res.Parsed)
	assert.Equal(t, time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC), res.Frame.Index[0])
}

func TestProcessRowsRejectsZeroTimestamp(t *testing.T) {
	_, err := newPreprocessor(t, nil).ProcessRows([]parser.Row{
		{"timestamp": time.Time{}, "message": "x"},
	}, parser.FormatDefault)
	assert.ErrorIs(t, err, parser.ErrInputShape)
}

func TestProcessUnknownFormat(t *testing.T) {
	_, err := newPreprocessor(t, nil).Process(fiveLines, parser.Format("json"))
	assert.ErrorIs(t, err, parser.ErrUnknownFormat)
}

func TestProcessTimeRange(t *testing.T) {
	since := time.Date(2024, 3, 15, 10, 1, 0, 0, time.UTC)
	until := time.Date(2024, 3, 15, 10, 3, 0, 0, time.UTC)
	p := newPreprocessor(t, func(s *config.Settings) { s.WindowSize = "1min" }, WithTimeRange(since, until))

	res, err := p.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Filtered)
	assert.Equal(t, 3, res.Frame.Len())
	assert.Equal(t, since, res.Frame.Index[0])
}

func TestNormalizerPersistsAcrossBatches(t *testing.T) {
	p := newPreprocessor(t, func(s *config.Settings) { s.WindowSize = "1min" })

	first, err := p.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)
	learned := p.Normalizer().Export()
	require.NotEmpty(t, learned)

	// A single window would normalize to all zeros if stats were refit.
	second, err := p.Process(fiveLines[2:3], parser.FormatDefault)
	require.NoError(t, err)
	assert.Equal(t, learned, p.Normalizer().Export())
	assert.Equal(t, first.Frame.Values[2], second.Frame.Values[0])

	p.Reset()
	assert.Empty(t, p.Normalizer().Columns())
}

func TestWithNormalizerLoadedStats(t *testing.T) {
	mutate := func(s *config.Settings) {
		s.WindowSize = "2min"
		s.NormalizationMethod = config.MethodZScore
	}

	first := newPreprocessor(t, mutate)
	want, err := first.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, first.Normalizer().Save(&buf))

	n := normalize.New(normalize.ZScore)
	require.NoError(t, n.Load(&buf))

	second := newPreprocessor(t, mutate, WithNormalizer(n))
	got, err := second.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)

	for i := range want.Frame.Values {
		assert.InDeltaSlice(t, want.Frame.Values[i], got.Frame.Values[i], 1e-12)
	}
	assert.Same(t, n, second.Normalizer())
}

func TestProcessRows(t *testing.T) {
	p := newPreprocessor(t, nil)

	res, err := p.ProcessRows([]parser.Row{
		{"timestamp": "2024-03-15 10:00:00", "message": "ERROR Connection failed"},
		{"timestamp": time.Date(2024, 3, 15, 10, 1, 0, 0, time.UTC), "message": "ok"},
	}, parser.FormatDefault)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 1, res.Frame.Len())

	_, err = p.ProcessRows([]parser.Row{{"message": "no timestamp"}}, parser.FormatDefault)
	assert.ErrorIs(t, err, parser.ErrMissingColumn)
}

func TestProcessLogsRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p := newPreprocessor(t, nil, WithLogger(logger))

	res, err := p.Process(fiveLines, parser.FormatDefault)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=\"preprocessing complete\"")
	assert.Contains(t, out, "run_id="+res.RunID)
	assert.Contains(t, out, "msg=\"parsed lines\"")
}

func TestResultStats(t *testing.T) {
	p := newPreprocessor(t, func(s *config.Settings) { s.WindowSize = "2min" })

	res, err := p.Process(append([]string{"junk"}, fiveLines...), parser.FormatDefault)
	require.NoError(t, err)

	stats := res.Stats()
	assert.Equal(t, 6, stats.InputLines)
	assert.Equal(t, 5, stats.ParsedRecords)
	assert.Equal(t, 1, stats.SkippedLines)
	assert.Equal(t, 3, stats.OutputWindows)
	assert.Equal(t, res.Frame.Width(), stats.OutputColumns)

	s := stats.String()
	assert.True(t, strings.HasPrefix(s, "Processed 6 lines into 5 records (1 skipped, 16.7%"), s)
	assert.Contains(t, s, "Windows: 3 kept, 0 dropped, 0 truncated of 3 candidates")
	assert.Contains(t, s, "2024-03-15 10:00:00 to 2024-03-15 10:04:00")
}

func BenchmarkProcess(b *testing.B) {
	lines := make([]string, 0, 1000)
	base := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 1000; i++ {
		ts := base.Add(time.Duration(i) * time.Second).Format(time.DateTime)
		lines = append(lines, ts+" INFO request from 10.0.0.1 took 12ms user alice")
	}
	p := New(config.Default())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Reset()
		if _, err := p.Process(lines, parser.FormatDefault); err != nil {
			b.Fatal(err)
		}
	}
}
