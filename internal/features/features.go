// Package features turns log messages into numeric feature vectors.
//
// Two kinds of features are produced: basic lexical counts (length, words,
// digits, special characters, letter case) and pattern counts, the number of
// case-insensitive, non-overlapping matches of each configured pattern.
package features

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/bimmerbailey/driftprep/internal/config"
)

// PatternPrefix is prepended to a pattern name to form its feature name.
const PatternPrefix = "pattern_"

// Vector maps feature names to values.
type Vector map[string]float64

// Extractor computes the features enabled in a configuration.
// It holds no mutable state and is safe for concurrent use.
type Extractor struct {
	basic    []string
	enabled  map[string]bool
	patterns []config.Pattern
	names    []string
}

// NewExtractor creates an Extractor for cfg. A nil cfg uses the defaults.
func NewExtractor(cfg *config.Config) *Extractor {
	if cfg == nil {
		cfg = config.Default()
	}

	e := &Extractor{enabled: make(map[string]bool)}
	for _, name := range config.BasicFeatureNames {
		if cfg.BasicFeatureEnabled(name) {
			e.basic = append(e.basic, name)
			e.enabled[name] = true
		}
	}
	if cfg.PatternFeatures() {
		// Already sorted by name.
		e.patterns = cfg.Patterns()
	}

	e.names = append(e.names, e.basic...)
	for _, p := range e.patterns {
		e.names = append(e.names, PatternPrefix+p.Name)
	}
	return e
}

// Names returns the feature names in output order: enabled basic features in
// canonical order, then pattern features sorted by pattern name.
func (e *Extractor) Names() []string {
	return append([]string(nil), e.names...)
}

// Len returns the number of features per message.
func (e *Extractor) Len() int {
	return len(e.names)
}

// Extract returns the feature vector for message.
func (e *Extractor) Extract(message string) Vector {
	values := make([]float64, len(e.names))
	e.ExtractInto(message, values)

	v := make(Vector, len(e.names))
	for i, name := range e.names {
		v[name] = values[i]
	}
	return v
}

// ExtractInto writes the features of message into dst in Names order.
// It panics if dst is shorter than Len.
func (e *Extractor) ExtractInto(message string, dst []float64) {
	if len(dst) < len(e.names) {
		panic(fmt.Sprintf("features: destination has %d slots, need %d", len(dst), len(e.names)))
	}

	i := 0
	if len(e.basic) > 0 {
		c := count(message)
		for _, name := range e.basic {
			dst[i] = c.value(name)
			i++
		}
	}
	for _, p := range e.patterns {
		dst[i] = float64(len(p.Regex.FindAllStringIndex(message, -1)))
		i++
	}
}

type counts struct {
	runes, words, numbers, special, upper, lower int
}

func (c counts) value(name string) float64 {
	switch name {
	case config.FeatureLogLength:
		return float64(c.runes)
	case config.FeatureWordCount:
		return float64(c.words)
	case config.FeatureNumericCount:
		return float64(c.numbers)
	case config.FeatureSpecialCharCount:
		return float64(c.special)
	case config.FeatureUppercaseCount:
		return float64(c.upper)
	case config.FeatureLowercaseCount:
		return float64(c.lower)
	}
	return 0
}

// count computes every basic feature in one pass. Letters and digits are
// Unicode classes, so "é" counts as lowercase rather than special.
func count(message string) counts {
	c := counts{words: len(strings.Fields(message))}
	inNumber := false
	for _, r := range message {
		c.runes++
		isDigit := unicode.IsDigit(r)
		if isDigit && !inNumber {
			c.numbers++
		}
		inNumber = isDigit

		switch {
		case unicode.IsUpper(r):
			c.upper++
		case unicode.IsLower(r):
			c.lower++
		}
		if !isDigit && !unicode.IsLetter(r) && !unicode.IsSpace(r) {
			c.special++
		}
	}
	return c
}
