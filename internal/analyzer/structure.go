package analyzer

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Structure describes the raw shape of a log sample before parsing.
type Structure struct {
	TotalLines       int            `json:"total_lines"`
	AvgLength        float64        `json:"avg_length"`
	MinLength        int            `json:"min_length"`
	MaxLength        int            `json:"max_length"`
	TimestampPattern string         `json:"timestamp_pattern,omitempty"`
	LevelCounts      map[string]int `json:"level_counts"`
	Samples          []string       `json:"samples,omitempty"`
}

// structureScanLines bounds the timestamp pattern search.
const structureScanLines = 100

var timestampShapes = []struct {
	name string
	re   *regexp.Regexp
}{
	{"YYMMDD HHMMSS", regexp.MustCompile(`\d{6}\s+\d{6}`)},
	{"YYYY-MM-DD HH:MM:SS", regexp.MustCompile(`\d{4}-\d{2}-\d{2}\s+\d{2}:\d{2}:\d{2}`)},
	{"Mon DD HH:MM:SS", regexp.MustCompile(`\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}`)},
}

var structureLevels = []string{"ERROR", "WARN", "INFO", "DEBUG", "CRITICAL"}

// Structure inspects raw lines: length distribution, the first recognizable
// timestamp shape and how often each level keyword appears as " LEVEL " or
// "[LEVEL]". The first samples lines are kept as examples.
func (a *Analyzer) Structure(lines []string, samples int) Structure {
	s := Structure{
		TotalLines:  len(lines),
		LevelCounts: make(map[string]int),
	}
	if len(lines) == 0 {
		return s
	}

	lengths := make([]float64, len(lines))
	for i, line := range lines {
		lengths[i] = float64(utf8.RuneCountInString(line))
		for _, level := range structureLevels {
			if strings.Contains(line, " "+level+" ") || strings.Contains(line, "["+level+"]") {
				s.LevelCounts[level]++
			}
		}
	}
	s.AvgLength = stat.Mean(lengths, nil)
	s.MinLength = int(floats.Min(lengths))
	s.MaxLength = int(floats.Max(lengths))

	scan := lines
	if len(scan) > structureScanLines {
		scan = scan[:structureScanLines]
	}
	for _, line := range scan {
		if name := timestampShape(line); name != "" {
			s.TimestampPattern = name
			break
		}
	}

	if samples > len(lines) {
		samples = len(lines)
	}
	if samples > 0 {
		s.Samples = append([]string(nil), lines[:samples]...)
	}
	return s
}

func timestampShape(line string) string {
	for _, shape := range timestampShapes {
		if shape.re.MatchString(line) {
			return shape.name
		}
	}
	return ""
}
