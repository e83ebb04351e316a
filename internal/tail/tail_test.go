package tail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"
)

// Helper function to create a temporary log file
func createTempLogFile(t *testing.T, content string) string {
	t.Helper()
	filePath := filepath.Join(t.TempDir(), "test.log")

	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	return filePath
}

// collector records delivered batches (thread-safe).
type collector struct {
	mu      sync.Mutex
	batches [][]string
}

func (c *collector) onLines(lines []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, append([]string(nil), lines...))
	return nil
}

func (c *collector) lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, b := range c.batches {
		out = append(out, b...)
	}
	return out
}

func (c *collector) batchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func appendToFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("Failed to open file for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestTailer_ReadInitialLines(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		lines     int
		fromStart bool
		expected  []string
	}{
		{
			name:     "last 3 lines from 5 line file",
			content:  "line 1\nline 2\nline 3\nline 4\nline 5\n",
			lines:    3,
			expected: []string{"line 3", "line 4", "line 5"},
		},
		{
			name:     "request more lines than exist",
			content:  "line 1\nline 2\n",
			lines:    10,
			expected: []string{"line 1", "line 2"},
		},
		{
			name:     "empty file",
			content:  "",
			lines:    10,
			expected: nil,
		},
		{
			name:     "partial last line held back",
			content:  "line 1\nline 2\npart",
			lines:    5,
			expected: []string{"line 1", "line 2"},
		},
		{
			name:     "blank lines dropped",
			content:  "line 1\n\n   \nline 2\n",
			lines:    5,
			expected: []string{"line 1", "line 2"},
		},
		{
			name:      "from start ignores line limit",
			content:   "a\nb\nc\n",
			lines:     1,
			fromStart: true,
			expected:  []string{"a", "b", "c"},
		},
		{
			name:     "no initial lines",
			content:  "a\nb\n",
			lines:    0,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &collector{}
			tailer := New(Options{
				FilePath:  createTempLogFile(t, tt.content),
				Lines:     tt.lines,
				FromStart: tt.fromStart,
				OnLines:   c.onLines,
			})

			if err := tailer.Run(context.Background()); err != nil {
				t.Fatalf("Run() error = %v", err)
			}

			if got := c.lines(); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
			if len(tt.expected) > 0 && c.batchCount() != 1 {
				t.Errorf("Expected a single initial batch, got %d", c.batchCount())
			}
		})
	}
}

func TestTailer_PatternFiltering(t *testing.T) {
	c := &collector{}
	tailer := New(Options{
		FilePath:  createTempLogFile(t, "user login\nsystem boot\nuser logout\n"),
		FromStart: true,
		Pattern:   regexp.MustCompile(`user`),
		OnLines:   c.onLines,
	})

	if err := tailer.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	expected := []string{"user login", "user logout"}
	if got := c.lines(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}

func TestTailer_RequiresCallback(t *testing.T) {
	tailer := New(Options{FilePath: createTempLogFile(t, "a\n")})
	if err := tailer.Run(context.Background()); err == nil {
		t.Error("Expected error without OnLines callback")
	}
}

func TestTailer_MissingFile(t *testing.T) {
	c := &collector{}
	tailer := New(Options{FilePath: filepath.Join(t.TempDir(), "missing.log"), OnLines: c.onLines})
	if err := tailer.Run(context.Background()); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestTailer_CallbackErrorStopsRun(t *testing.T) {
	boom := errors.New("boom")
	tailer := New(Options{
		FilePath:  createTempLogFile(t, "a\n"),
		FromStart: true,
		OnLines:   func([]string) error { return boom },
	})
	if err := tailer.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Expected callback error, got %v", err)
	}
}

func TestTailer_FollowMode(t *testing.T) {
	filePath := createTempLogFile(t, "line 1\nline 2\n")

	c := &collector{}
	tailer := New(Options{
		FilePath: filePath,
		Follow:   true,
		OnLines:  c.onLines,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tailer.Run(ctx)
	}()

	// Give the watcher time to start.
	time.Sleep(200 * time.Millisecond)
	if n := len(c.lines()); n != 0 {
		t.Errorf("Expected no initial lines, got %d", n)
	}

	appendToFile(t, filePath, "line 3\nline 4\npar")
	waitFor(t, func() bool { return len(c.lines()) >= 2 })

	expected := []string{"line 3", "line 4"}
	if got := c.lines(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %q, got %q", expected, got)
	}

	// Completing the partial line delivers it whole.
	appendToFile(t, filePath, "tial\n")
	waitFor(t, func() bool { return len(c.lines()) >= 3 })

	if got := c.lines(); len(got) < 3 || got[2] != "partial" {
		t.Errorf("Expected third line %q, got %q", "partial", got)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("Tailer did not stop within timeout")
	}
}

func TestTailer_RotationWithoutFollowRotate(t *testing.T) {
	filePath := createTempLogFile(t, "line 1\n")

	c := &collector{}
	tailer := New(Options{FilePath: filePath, Follow: true, OnLines: c.onLines})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- tailer.Run(ctx)
	}()

	time.Sleep(200 * time.Millisecond)
	if err := os.Rename(filePath, filePath+".1"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrRotated) {
			t.Errorf("Expected ErrRotated, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Error("Tailer did not stop after rotation")
	}
}

func TestCompleteLength(t *testing.T) {
	tests := map[string]int64{
		"":         0,
		"abc":      0,
		"abc\n":    4,
		"a\nb":     2,
		"a\nb\nc\n": 6,
	}
	for in, want := range tests {
		if got := completeLength([]byte(in)); got != want {
			t.Errorf("completeLength(%q) = %d, expected %d", in, got, want)
		}
	}
}

func TestSplitLines(t *testing.T) {
	got := splitLines([]byte("  a  \n\nb\r\n"))
	expected := []string{"a", "b"}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %q, got %q", expected, got)
	}
	if strings.Join(splitLines(nil), "") != "" {
		t.Error("Expected no lines for empty input")
	}
}
