package output

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	"golang.org/x/term"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts "auto", "always" or "never" to a ColorMode,
// defaulting to auto.
func ParseColorMode(s string) ColorMode {
	switch strings.ToLower(s) {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

// Severity is the level keyword found in a message, used only for coloring.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityDebug
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityWords = map[string]Severity{
	"DEBUG":    SeverityDebug,
	"TRACE":    SeverityDebug,
	"WARN":     SeverityWarn,
	"WARNING":  SeverityWarn,
	"ERROR":    SeverityError,
	"ERR":      SeverityError,
	"FATAL":    SeverityFatal,
	"CRITICAL": SeverityFatal,
	"PANIC":    SeverityFatal,
}

// DetectSeverity returns the most severe level keyword in line. Keywords
// match whole words, case-insensitively.
func DetectSeverity(line string) Severity {
	best := SeverityNone
	words := strings.FieldsFunc(line, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		if s, ok := severityWords[strings.ToUpper(w)]; ok && s > best {
			best = s
		}
	}
	return best
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w interface{}) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// colorize wraps text in the color for severity.
func colorize(severity Severity, text string) string {
	switch severity {
	case SeverityDebug:
		return colorGray + text + colorReset
	case SeverityWarn:
		return colorYellow + text + colorReset
	case SeverityError:
		return colorRed + text + colorReset
	case SeverityFatal:
		return colorBold + colorRed + text + colorReset
	default:
		return text // INFO and unmarked lines use the default color
	}
}

// ColorizeLine colors an entire line by the most severe level keyword it contains.
func ColorizeLine(line string) string {
	return colorize(DetectSeverity(line), line)
}

// WriteColoredLine writes a line, colored by severity when mode allows it.
func (wr *Writer) WriteColoredLine(line string, mode ColorMode) error {
	if shouldColorize(mode, wr.w) {
		line = ColorizeLine(line)
	}
	_, err := fmt.Fprintln(wr.w, line)
	return err
}
