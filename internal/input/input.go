// Package input reads log files into trimmed, non-empty lines.
//
// Files are decoded to UTF-8 before splitting. A byte order mark selects
// UTF-8 or UTF-16; otherwise valid UTF-8 is used as is and anything else is
// read as ISO-8859-1, which accepts every byte sequence.
package input

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Encoding names reported in Document.Encoding and accepted by WithEncoding.
const (
	UTF8        = "utf-8"
	UTF16LE     = "utf-16le"
	UTF16BE     = "utf-16be"
	ISO88591    = "iso-8859-1"
	Windows1252 = "windows-1252"
)

// ErrUnknownEncoding is returned by WithEncoding for an unsupported name.
var ErrUnknownEncoding = errors.New("unknown encoding")

var encodings = map[string]encoding.Encoding{
	UTF8:        unicode.UTF8,
	UTF16LE:     unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	UTF16BE:     unicode.UTF16(unicode.BigEndian, unicode.UseBOM),
	ISO88591:    charmap.ISO8859_1,
	Windows1252: charmap.Windows1252,
}

// Document is the decoded content of a log file.
type Document struct {
	Lines    []string
	Encoding string
}

type options struct {
	maxLines int
	encoding string
}

// Option configures a read.
type Option func(*options)

// WithMaxLines stops reading after n non-empty lines. n <= 0 reads everything.
func WithMaxLines(n int) Option {
	return func(o *options) {
		o.maxLines = n
	}
}

// WithEncoding disables detection and decodes with the named encoding.
// Invalid sequences become U+FFFD.
func WithEncoding(name string) Option {
	return func(o *options) {
		o.encoding = strings.ToLower(strings.TrimSpace(name))
	}
}

// ReadLines reads the file at path.
func ReadLines(path string, opts ...Option) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	doc, err := ReadLinesFrom(f, opts...)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	return doc, nil
}

// ReadLinesFrom reads and decodes everything from r.
func ReadLinesFrom(r io.Reader, opts ...Option) (Document, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return Document{}, err
	}

	var (
		text string
		name string
	)
	if o.encoding != "" {
		enc, ok := encodings[o.encoding]
		if !ok {
			return Document{}, fmt.Errorf("%w: %q", ErrUnknownEncoding, o.encoding)
		}
		text, err = decode(enc, raw)
		name = o.encoding
	} else {
		text, name, err = detect(raw)
	}
	if err != nil {
		return Document{}, fmt.Errorf("decode %s: %w", name, err)
	}

	return Document{Lines: splitLines(text, o.maxLines), Encoding: name}, nil
}

func detect(raw []byte) (string, string, error) {
	switch {
	case bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}):
		text, err := decode(unicode.UTF8BOM, raw)
		return text, UTF8, err
	case bytes.HasPrefix(raw, []byte{0xFF, 0xFE}):
		text, err := decode(encodings[UTF16LE], raw)
		return text, UTF16LE, err
	case bytes.HasPrefix(raw, []byte{0xFE, 0xFF}):
		text, err := decode(encodings[UTF16BE], raw)
		return text, UTF16BE, err
	case utf8.Valid(raw):
		return string(raw), UTF8, nil
	default:
		text, err := decode(charmap.ISO8859_1, raw)
		return text, ISO88591, err
	}
}

func decode(enc encoding.Encoding, raw []byte) (string, error) {
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitLines(text string, max int) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if max > 0 && len(lines) == max {
			break
		}
	}
	return lines
}
