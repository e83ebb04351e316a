package parser

import (
	"github.com/bimmerbailey/driftprep/internal/config"
)

// DetectSampleSize is the number of leading lines Detect examines.
const DetectSampleSize = 100

// Detection is the outcome of format detection.
type Detection struct {
	Format Format
	// Matched is the fraction of sampled lines the format parsed.
	Matched float64
}

// Detect guesses the format of lines by parsing a leading sample with every
// format and picking the one that parses the most lines. Ties go to the
// format listed first in Formats. ok is false when no format parses any line.
func Detect(lines []string, cfg *config.Config) (Detection, bool) {
	sample := lines
	if len(sample) > DetectSampleSize {
		sample = sample[:DetectSampleSize]
	}
	if len(sample) == 0 {
		return Detection{}, false
	}

	var best Detection
	bestCount := 0
	for _, f := range formats {
		p, err := New(f, cfg)
		if err != nil {
			continue
		}
		n := len(p.ParseLines(sample).Records)
		if n > bestCount {
			bestCount = n
			best = Detection{Format: f, Matched: float64(n) / float64(len(sample))}
		}
	}
	return best, bestCount > 0
}
