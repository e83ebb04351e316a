// Package tail follows a growing log file and hands new lines to a callback
// in batches.
//
// It implements "tail -f" like functionality with an optional line filter
// and log rotation detection. Each write event yields one batch of the
// complete, non-empty lines appended since the previous batch; a trailing
// partial line is held back until its newline arrives.
package tail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ErrRotated is returned by Run when the file is rotated and FollowRotate is off.
var ErrRotated = errors.New("file rotated")

// Options configures the tailer behavior.
type Options struct {
	FilePath     string                    // Path to the log file
	Lines        int                       // Number of trailing lines delivered before following
	FromStart    bool                      // Deliver the whole existing file as the first batch
	Follow       bool                      // Whether to follow the file for new content
	FollowRotate bool                      // Whether to follow through log rotations
	Pattern      *regexp.Regexp            // Optional regex pattern to filter lines
	OnLines      func(lines []string) error // Called once per non-empty batch
	Logger       *slog.Logger
}

// Tailer handles tailing a log file.
type Tailer struct {
	opts    Options
	logger  *slog.Logger
	file    *os.File
	offset  int64
	watcher *fsnotify.Watcher
}

// New creates a new Tailer with the given options.
func New(opts Options) *Tailer {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tailer{opts: opts, logger: logger}
}

// Run starts the tailing process. It blocks until context is cancelled or an error occurs.
func (t *Tailer) Run(ctx context.Context) error {
	if t.opts.OnLines == nil {
		return errors.New("tail: OnLines callback is required")
	}

	if err := t.openFile(); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer t.close()

	if err := t.readInitialLines(); err != nil {
		return fmt.Errorf("failed to read initial lines: %w", err)
	}

	if !t.opts.Follow {
		return nil
	}

	if err := t.setupWatcher(); err != nil {
		return fmt.Errorf("failed to setup watcher: %w", err)
	}

	return t.watch(ctx)
}

func (t *Tailer) openFile() error {
	f, err := os.Open(t.opts.FilePath)
	if err != nil {
		return err
	}
	t.file = f
	return nil
}

// readInitialLines delivers the existing content the options ask for and
// leaves the offset after the last complete line.
func (t *Tailer) readInitialLines() error {
	data, err := t.readFrom(0)
	if err != nil {
		return err
	}
	n := completeLength(data)
	t.offset = n
	if !t.opts.FromStart && t.opts.Lines <= 0 {
		return nil
	}

	lines := t.filter(splitLines(data[:n]))
	if !t.opts.FromStart && len(lines) > t.opts.Lines {
		lines = lines[len(lines)-t.opts.Lines:]
	}
	return t.deliver(lines)
}

func (t *Tailer) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	t.watcher = watcher
	return watcher.Add(t.opts.FilePath)
}

// watch monitors the file for changes and delivers new lines.
func (t *Tailer) watch(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-t.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed unexpectedly")
			}

			if err := t.handleEvent(ctx, event); err != nil {
				return err
			}

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (t *Tailer) handleEvent(ctx context.Context, event fsnotify.Event) error {
	switch {
	case event.Has(fsnotify.Write):
		return t.readNewContent()

	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		return t.handleRotation(ctx)
	}

	// Chmod and create events carry no new content.
	return nil
}

// readNewContent delivers the complete lines appended since the last read.
func (t *Tailer) readNewContent() error {
	stat, err := t.file.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < t.offset {
		// Truncated in place (copytruncate rotation).
		t.logger.Info("file truncated, reading from start", "path", t.opts.FilePath)
		t.offset = 0
	}

	data, err := t.readFrom(t.offset)
	if err != nil {
		return err
	}
	n := completeLength(data)
	if n == 0 {
		return nil
	}
	t.offset += n

	return t.deliver(t.filter(splitLines(data[:n])))
}

func (t *Tailer) handleRotation(ctx context.Context) error {
	if !t.opts.FollowRotate {
		t.logger.Warn("file rotated, stopping", "path", t.opts.FilePath)
		return ErrRotated
	}

	if t.file != nil {
		t.file.Close()
		t.file = nil
	}

	timeout := time.After(10 * time.Second)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timeout:
			return fmt.Errorf("timeout waiting for rotated file to reappear")
		case <-ticker.C:
			f, err := os.Open(t.opts.FilePath)
			if err != nil {
				continue
			}
			t.file = f
			t.offset = 0

			if err := t.watcher.Add(t.opts.FilePath); err != nil {
				return fmt.Errorf("failed to watch rotated file: %w", err)
			}

			t.logger.Info("file rotated, following new file", "path", t.opts.FilePath)
			// Content written before the watch was re-added.
			return t.readNewContent()
		}
	}
}

func (t *Tailer) readFrom(offset int64) ([]byte, error) {
	if _, err := t.file.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(t.file)
}

func (t *Tailer) filter(lines []string) []string {
	if t.opts.Pattern == nil {
		return lines
	}
	out := lines[:0]
	for _, line := range lines {
		if t.opts.Pattern.MatchString(line) {
			out = append(out, line)
		}
	}
	return out
}

func (t *Tailer) deliver(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	return t.opts.OnLines(lines)
}

func (t *Tailer) close() {
	if t.file != nil {
		t.file.Close()
	}
	if t.watcher != nil {
		t.watcher.Close()
	}
}

// completeLength returns the length of data up to and including its last newline.
func completeLength(data []byte) int64 {
	return int64(bytes.LastIndexByte(data, '\n') + 1)
}

// splitLines splits complete content into trimmed, non-empty lines.
func splitLines(data []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
