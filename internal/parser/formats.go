package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/driftprep/internal/config"
)

// lineParser turns one raw line into a record for a single format.
type lineParser interface {
	parse(line string) (Record, bool)
}

func newLineParser(format Format, cfg *config.Config) (lineParser, error) {
	switch format {
	case FormatDefault:
		return defaultParser{layout: cfg.TimestampFormat()}, nil
	case FormatHDFS:
		return hdfsParser{}, nil
	case FormatApache:
		return apacheParser{layout: cfg.ApacheTimestampFormat()}, nil
	case FormatHealthApp:
		return healthAppParser{layout: cfg.HealthAppTimestampFormat()}, nil
	case FormatBGL:
		return bglParser{}, nil
	case FormatHPC:
		return hpcParser{}, nil
	case FormatLinux, FormatMac:
		return syslogParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, string(format))
	}
}

var (
	defaultTimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`)
	whitespaceRun           = regexp.MustCompile(`\s+`)
)

// defaultParser handles "YYYY-MM-DD HH:MM:SS message" anywhere in the line.
type defaultParser struct {
	layout string
}

func (p defaultParser) parse(line string) (Record, bool) {
	loc := defaultTimestampPattern.FindStringIndex(line)
	if loc == nil {
		return Record{}, false
	}
	raw := whitespaceRun.ReplaceAllString(line[loc[0]:loc[1]], " ")
	ts, err := time.Parse(p.layout, raw)
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: ts, Message: strings.TrimSpace(line[loc[1]:])}, true
}

// hdfsParser handles "YYMMDD HHMMSS thread level component: message".
// The message keeps the thread id and everything after it.
type hdfsParser struct{}

func (hdfsParser) parse(line string) (Record, bool) {
	parts := splitFields(line, 4)
	if len(parts) < 4 {
		return Record{}, false
	}

	date, ok := digitGroups(parts[0])
	if !ok {
		return Record{}, false
	}
	clock, ok := digitGroups(parts[1])
	if !ok {
		return Record{}, false
	}

	year, month, day := 2000+date[0], date[1], date[2]
	hour, minute, second := clock[0], clock[1], clock[2]
	if month < 1 || month > 12 || day < 1 || day > daysIn(year, month) ||
		hour > 23 || minute > 59 || second > 59 {
		return Record{}, false
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.UTC)
	msg := strings.TrimSpace(splitFields(line, 3)[2])
	return Record{Timestamp: ts, Message: msg}, true
}

// splitFields splits s on whitespace runs into at most n fields. The last
// field keeps its interior spacing.
func splitFields(s string, n int) []string {
	var out []string
	rest := strings.TrimLeft(s, " \t")
	for len(out) < n-1 && rest != "" {
		i := strings.IndexAny(rest, " \t")
		if i < 0 {
			break
		}
		out = append(out, rest[:i])
		rest = strings.TrimLeft(rest[i:], " \t")
	}
	if rest != "" {
		out = append(out, rest)
	}
	return out
}

// digitGroups splits a six-digit field into three two-digit numbers.
func digitGroups(s string) ([3]int, bool) {
	var out [3]int
	if len(s) != 6 {
		return out, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return out, false
		}
		out[i/2] = out[i/2]*10 + int(s[i]-'0')
	}
	return out, true
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

var apacheTimestampPattern = regexp.MustCompile(`\[([\w\s:]+)\]`)

// apacheParser handles "[Sun Dec 04 04:47:44 2005] [notice] message".
// The message starts after the second closing bracket in the line, so the
// timestamp bracket must be the first bracketed group.
type apacheParser struct {
	layout string
}

func (p apacheParser) parse(line string) (Record, bool) {
	m := apacheTimestampPattern.FindStringSubmatch(line)
	if m == nil {
		return Record{}, false
	}
	ts, err := time.Parse(p.layout, m[1])
	if err != nil {
		return Record{}, false
	}

	first := strings.IndexByte(line, ']')
	second := strings.IndexByte(line[first+1:], ']')
	if second < 0 {
		return Record{}, false
	}
	msg := strings.TrimSpace(line[first+1+second+1:])
	return Record{Timestamp: ts, Message: msg}, true
}

// healthAppParser handles "YYYYMMDD-HH:MM:SS:mmm|component|id|message".
type healthAppParser struct {
	layout string
}

func (p healthAppParser) parse(line string) (Record, bool) {
	parts := strings.Split(line, "|")
	if len(parts) < 4 {
		return Record{}, false
	}
	segs := strings.Split(strings.TrimSpace(parts[0]), ":")
	if len(segs) < 3 {
		return Record{}, false
	}
	ts, err := time.Parse(p.layout, strings.Join(segs[:3], ":"))
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: ts, Message: strings.TrimSpace(strings.Join(parts[1:], "|"))}, true
}

var bglTimestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}-\d{2}\.\d{2}\.\d{2}\.\d+`)

// bglParser handles BlueGene/L lines carrying "2005-06-03-15.42.50.675872".
type bglParser struct{}

func (bglParser) parse(line string) (Record, bool) {
	loc := bglTimestampPattern.FindStringIndex(line)
	if loc == nil {
		return Record{}, false
	}
	ts, err := time.Parse("2006-01-02-15.04.05.999999999", line[loc[0]:loc[1]])
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: ts, Message: strings.TrimSpace(line[loc[1]:])}, true
}

var hpcTimestampPattern = regexp.MustCompile(`\d{10}`)

// hpcParser handles lines carrying a ten-digit Unix timestamp in seconds.
type hpcParser struct{}

func (hpcParser) parse(line string) (Record, bool) {
	loc := hpcTimestampPattern.FindStringIndex(line)
	if loc == nil {
		return Record{}, false
	}
	sec, err := strconv.ParseInt(line[loc[0]:loc[1]], 10, 64)
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: time.Unix(sec, 0).UTC(), Message: strings.TrimSpace(line[loc[1]:])}, true
}

var syslogTimestampPattern = regexp.MustCompile(`^([A-Za-z]{3})\s+(\d{1,2})\s+(\d{2}:\d{2}:\d{2})`)

// syslogParser handles Linux and Mac lines starting with "Jun 14 15:16:01".
// These logs carry no year; 2000 is assumed.
type syslogParser struct{}

func (syslogParser) parse(line string) (Record, bool) {
	m := syslogTimestampPattern.FindStringSubmatchIndex(line)
	if m == nil {
		return Record{}, false
	}
	raw := fmt.Sprintf("%s %s %s 2000", line[m[2]:m[3]], line[m[4]:m[5]], line[m[6]:m[7]])
	ts, err := time.Parse("Jan 2 15:04:05 2006", raw)
	if err != nil {
		return Record{}, false
	}
	return Record{Timestamp: ts, Message: strings.TrimSpace(line[m[1]:])}, true
}
