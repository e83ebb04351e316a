package cmd

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bimmerbailey/driftprep/internal/parser"
)

func newParseTestCmd(out, errOut *bytes.Buffer) *cobra.Command {
	return newTestCmd("parse", out, errOut, addInputFlags, addRedactFlags, func(c *cobra.Command) {
		c.Flags().BoolP("count", "c", false, "")
		c.Flags().Bool("no-color", false, "")
	})
}

func TestParseText(t *testing.T) {
	resetViper()
	file := writeTempFile(t, t.TempDir(), "app.log", []string{
		"2024-03-15 10:00:00   ERROR   Connection failed",
		"not a log line",
		"2024-03-15 10:01:00 INFO ok",
	})

	var out, errOut bytes.Buffer
	cmd := newParseTestCmd(&out, &errOut)
	setFlags(t, cmd, "log-type", "default")

	if err := runParse(cmd, []string{file}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}

	expected := "2024-03-15 10:00:00 ERROR   Connection failed\n2024-03-15 10:01:00 INFO ok\n"
	if out.String() != expected {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestParseCountTimeRange(t *testing.T) {
	resetViper()
	file := writeTempFile(t, t.TempDir(), "app.log", fiveLines)

	var out, errOut bytes.Buffer
	cmd := newParseTestCmd(&out, &errOut)
	setFlags(t, cmd,
		"count", "true",
		"since", "2024-03-15T10:01:00Z",
		"until", "2024-03-15T10:03:00Z",
	)

	if err := runParse(cmd, []string{file}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}
	if out.String() != "3\n" {
		t.Fatalf("unexpected count output: %s", out.String())
	}
}

func TestParseJSONMultiFile(t *testing.T) {
	resetViper()
	viper.Set("format", "json")
	dir := t.TempDir()
	a := writeTempFile(t, dir, "a.log", hdfsLines[:1])
	b := writeTempFile(t, dir, "b.log", hdfsLines[1:])

	var out, errOut bytes.Buffer
	cmd := newParseTestCmd(&out, &errOut)
	setFlags(t, cmd, "log-type", "HDFS")

	if err := runParse(cmd, []string{a, b}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}

	var records []parser.Record
	if err := json.Unmarshal(out.Bytes(), &records); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if !strings.HasPrefix(records[0].Message, "148 INFO dfs.DataNode$PacketResponder") {
		t.Errorf("unexpected message: %s", records[0].Message)
	}
}

func TestParseGlob(t *testing.T) {
	resetViper()
	dir := t.TempDir()
	writeTempFile(t, dir, "a.log", fiveLines[:2])
	writeTempFile(t, dir, "b.log", fiveLines[2:])

	var out, errOut bytes.Buffer
	cmd := newParseTestCmd(&out, &errOut)
	setFlags(t, cmd, "count", "true")

	if err := runParse(cmd, []string{dir + "/*.log"}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}
	if out.String() != "5\n" {
		t.Fatalf("unexpected count output: %s", out.String())
	}
}

func TestParseInvalidInputs(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		want  string
	}{
		{"unknown log type", []string{"log-type", "xml"}, "unknown log format"},
		{"bad since", []string{"since", "yesterday-ish"}, "invalid --since value"},
		{"until before since", []string{"since", "2024-03-16", "until", "2024-03-15"}, "--until is before --since"},
		{"bad encoding", []string{"encoding", "ebcdic"}, "unknown encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			file := writeTempFile(t, t.TempDir(), "app.log", fiveLines)

			var out, errOut bytes.Buffer
			cmd := newParseTestCmd(&out, &errOut)
			setFlags(t, cmd, tt.flags...)

			err := runParse(cmd, []string{file})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseRedact(t *testing.T) {
	resetViper()
	file := writeTempFile(t, t.TempDir(), "hdfs.log", hdfsLines[1:])

	var out, errOut bytes.Buffer
	cmd := newParseTestCmd(&out, &errOut)
	setFlags(t, cmd, "log-type", "hdfs", "redact", "true", "redact-patterns", "ipv4,hdfs_block")

	if err := runParse(cmd, []string{file}); err != nil {
		t.Fatalf("runParse() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 records, got %d", len(lines))
	}
	if strings.Contains(out.String(), "10.250.") || strings.Contains(out.String(), "blk_") {
		t.Errorf("expected addresses and blocks masked:\n%s", out.String())
	}
	// Both lines name the same block, so they share its placeholder.
	block := lines[0][strings.Index(lines[0], "[HDFS_BLOCK:"):][:len("[HDFS_BLOCK:0000]")]
	if !strings.Contains(lines[1], block) {
		t.Errorf("expected %s in %s", block, lines[1])
	}
}
