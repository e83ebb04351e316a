// Package config provides configuration types and helpers for driftprep.
//
// Preprocessing parameters live in two forms. Settings is the raw, tagged
// record that is read from flags, YAML files and key-value maps. Config is
// the validated, read-only form produced by New; every pipeline stage takes a
// *Config and never sees an unvalidated Settings value.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidConfig is wrapped by every configuration validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Basic feature names accepted in Settings.BasicFeatures, in canonical order.
const (
	FeatureLogLength        = "log_length"
	FeatureWordCount        = "word_count"
	FeatureNumericCount     = "numeric_count"
	FeatureSpecialCharCount = "special_char_count"
	FeatureUppercaseCount   = "uppercase_count"
	FeatureLowercaseCount   = "lowercase_count"
)

// BasicFeatureNames lists the fixed set of basic features in canonical order.
var BasicFeatureNames = []string{
	FeatureLogLength,
	FeatureWordCount,
	FeatureNumericCount,
	FeatureSpecialCharCount,
	FeatureUppercaseCount,
	FeatureLowercaseCount,
}

// Normalization methods.
const (
	MethodMinMax = "minmax"
	MethodZScore = "zscore"
)

// App holds the application-wide configuration read through viper.
type App struct {
	Format        string      `mapstructure:"format"`
	Verbose       bool        `mapstructure:"verbose"`
	Debug         bool        `mapstructure:"debug"`
	LogType       string      `mapstructure:"log_type"`
	Preprocessing Settings    `mapstructure:"preprocessing"`
	Stats         StatsConfig `mapstructure:"stats"`
}

// StatsConfig selects where learned normalization statistics are persisted.
type StatsConfig struct {
	// Store is "file" or "redis"
	Store string      `mapstructure:"store"`
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig holds the connection settings for the redis statistics store.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	TTL      time.Duration `mapstructure:"ttl"` // 0 keeps the key forever
}

// Settings is the raw preprocessing parameter bundle.
type Settings struct {
	TimestampFormat          string            `mapstructure:"timestamp_format" yaml:"timestamp_format" validate:"required"`
	ApacheTimestampFormat    string            `mapstructure:"apache_timestamp_format" yaml:"apache_timestamp_format" validate:"required"`
	HealthAppTimestampFormat string            `mapstructure:"healthapp_timestamp_format" yaml:"healthapp_timestamp_format" validate:"required"`
	WindowSize               string            `mapstructure:"window_size" yaml:"window_size" validate:"duration"`
	WindowStride             string            `mapstructure:"window_stride" yaml:"window_stride,omitempty" validate:"omitempty,duration"`
	MinLogsPerWindow         int               `mapstructure:"min_logs_per_window" yaml:"min_logs_per_window" validate:"gte=1"`
	MaxLogsPerWindow         int               `mapstructure:"max_logs_per_window" yaml:"max_logs_per_window,omitempty" validate:"gte=0"`
	BasicFeatures            []string          `mapstructure:"basic_features" yaml:"basic_features" validate:"dive,basic_feature"`
	PatternFeatures          bool              `mapstructure:"pattern_features" yaml:"pattern_features"`
	CustomPatterns           map[string]string `mapstructure:"custom_patterns" yaml:"custom_patterns"`
	NormalizationMethod      string            `mapstructure:"normalization_method" yaml:"normalization_method" validate:"oneof=minmax zscore"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		TimestampFormat:          "2006-01-02 15:04:05",
		ApacheTimestampFormat:    "Mon Jan 02 15:04:05 2006",
		HealthAppTimestampFormat: "20060102-15:04:05",
		WindowSize:               "5min",
		MinLogsPerWindow:         1,
		BasicFeatures:            append([]string(nil), BasicFeatureNames...),
		PatternFeatures:          true,
		CustomPatterns: map[string]string{
			"error":      `error|exception|fail|failed|failure`,
			"warning":    `warn|warning|high|critical`,
			"ip_address": `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
			"metrics":    `\d+%|\d+(?:\.\d+)?(?:GB|MB|KB|ms|sec)`,
			"user":       `user\s*\w+|username|userid`,
		},
		NormalizationMethod: MethodMinMax,
	}
}

// Pattern is a compiled custom pattern. Matching is case-insensitive.
type Pattern struct {
	Name   string
	Source string
	Regex  *regexp.Regexp
}

// Config is a validated, read-only preprocessing configuration.
type Config struct {
	settings Settings
	window   time.Duration
	stride   time.Duration
	patterns []Pattern
}

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *FieldError) Unwrap() error {
	return ErrInvalidConfig
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their key-value names rather than Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		_, err := ParseDuration(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("basic_feature", func(fl validator.FieldLevel) bool {
		return isBasicFeature(fl.Field().String())
	})

	return v
}

func isBasicFeature(name string) bool {
	for _, f := range BasicFeatureNames {
		if f == name {
			return true
		}
	}
	return false
}

// New validates s and returns the resulting Config. Any invalid field fails
// the whole construction; no partially valid Config is ever returned.
func New(s Settings) (*Config, error) {
	s = s.clone()

	var errs []error
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		for _, fe := range verrs {
			errs = append(errs, translate(fe))
		}
	}

	if s.MaxLogsPerWindow > 0 && s.MaxLogsPerWindow < s.MinLogsPerWindow {
		errs = append(errs, &FieldError{
			Field:  "max_logs_per_window",
			Value:  s.MaxLogsPerWindow,
			Reason: fmt.Sprintf("must be greater than or equal to min_logs_per_window (%d)", s.MinLogsPerWindow),
		})
	}

	patterns, perrs := compilePatterns(s.CustomPatterns)
	errs = append(errs, perrs...)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// Both parse: the validator already accepted them.
	window, _ := ParseDuration(s.WindowSize)
	stride := window
	if s.WindowStride != "" {
		stride, _ = ParseDuration(s.WindowStride)
	}

	return &Config{
		settings: s,
		window:   window,
		stride:   stride,
		patterns: patterns,
	}, nil
}

// MustNew is like New but panics on error. Intended for tests and defaults.
func MustNew(s Settings) *Config {
	cfg, err := New(s)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Default returns the validated default configuration.
func Default() *Config {
	return MustNew(DefaultSettings())
}

func compilePatterns(src map[string]string) ([]Pattern, []error) {
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	patterns := make([]Pattern, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, &FieldError{Field: "custom_patterns", Value: fmt.Sprintf("%q", name), Reason: "pattern name is empty"})
			continue
		}
		re, err := regexp.Compile("(?i)" + src[name])
		if err != nil {
			errs = append(errs, &FieldError{
				Field:  "custom_patterns." + name,
				Value:  fmt.Sprintf("%q", src[name]),
				Reason: fmt.Sprintf("invalid regular expression: %v", err),
			})
			continue
		}
		patterns = append(patterns, Pattern{Name: name, Source: src[name], Regex: re})
	}
	return patterns, errs
}

func translate(fe validator.FieldError) error {
	field := fe.Namespace()
	if _, rest, ok := strings.Cut(field, "."); ok {
		field = rest
	}

	var reason string
	switch fe.Tag() {
	case "duration":
		reason = "expected <positive integer><unit> with unit s, sec, m, min, h, hr, d or day (e.g. 5min, 2h, 1d)"
	case "basic_feature":
		reason = fmt.Sprintf("unknown basic feature, valid features are %s", strings.Join(BasicFeatureNames, ", "))
	case "oneof":
		reason = fmt.Sprintf("must be one of %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		reason = fmt.Sprintf("must be at least %s", fe.Param())
	case "required":
		reason = "is required"
	default:
		reason = fmt.Sprintf("failed %q validation", fe.Tag())
	}

	return &FieldError{Field: field, Value: fmt.Sprintf("%q", fmt.Sprint(fe.Value())), Reason: reason}
}

func (s Settings) clone() Settings {
	out := s
	out.BasicFeatures = append([]string(nil), s.BasicFeatures...)
	if s.CustomPatterns != nil {
		out.CustomPatterns = make(map[string]string, len(s.CustomPatterns))
		for k, v := range s.CustomPatterns {
			out.CustomPatterns[k] = v
		}
	}
	return out
}

// Settings returns a copy of the settings the Config was built from.
func (c *Config) Settings() Settings { return c.settings.clone() }

// Window returns the window duration.
func (c *Config) Window() time.Duration { return c.window }

// Stride returns the distance between consecutive window starts. It equals
// Window when no stride was configured.
func (c *Config) Stride() time.Duration { return c.stride }

// MinLogsPerWindow returns the minimum record count for a window to be kept.
func (c *Config) MinLogsPerWindow() int { return c.settings.MinLogsPerWindow }

// MaxLogsPerWindow returns the per-window record cap, or 0 when unset.
func (c *Config) MaxLogsPerWindow() int { return c.settings.MaxLogsPerWindow }

// BasicFeatures returns the enabled basic feature names in configured order.
func (c *Config) BasicFeatures() []string {
	return append([]string(nil), c.settings.BasicFeatures...)
}

// BasicFeatureEnabled reports whether name is one of the enabled basic features.
func (c *Config) BasicFeatureEnabled(name string) bool {
	for _, f := range c.settings.BasicFeatures {
		if f == name {
			return true
		}
	}
	return false
}

// PatternFeatures reports whether pattern-count features are extracted.
func (c *Config) PatternFeatures() bool { return c.settings.PatternFeatures }

// Patterns returns the compiled custom patterns sorted by name.
func (c *Config) Patterns() []Pattern {
	return append([]Pattern(nil), c.patterns...)
}

// NormalizationMethod returns "minmax" or "zscore".
func (c *Config) NormalizationMethod() string { return c.settings.NormalizationMethod }

// TimestampFormat returns the Go layout used by the default format.
func (c *Config) TimestampFormat() string { return c.settings.TimestampFormat }

// ApacheTimestampFormat returns the Go layout used for Apache timestamps.
func (c *Config) ApacheTimestampFormat() string { return c.settings.ApacheTimestampFormat }

// HealthAppTimestampFormat returns the Go layout used for HealthApp timestamps.
func (c *Config) HealthAppTimestampFormat() string { return c.settings.HealthAppTimestampFormat }
