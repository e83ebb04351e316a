package config

import (
	"fmt"
	"io"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

// ToMap returns the configuration as a plain key-value map. Unset optional
// fields (window_stride, max_logs_per_window) are encoded as nil.
func (c *Config) ToMap() map[string]interface{} {
	s := c.Settings()

	patterns := make(map[string]interface{}, len(s.CustomPatterns))
	for k, v := range s.CustomPatterns {
		patterns[k] = v
	}
	features := make([]interface{}, len(s.BasicFeatures))
	for i, f := range s.BasicFeatures {
		features[i] = f
	}

	m := map[string]interface{}{
		"timestamp_format":           s.TimestampFormat,
		"apache_timestamp_format":    s.ApacheTimestampFormat,
		"healthapp_timestamp_format": s.HealthAppTimestampFormat,
		"window_size":                s.WindowSize,
		"window_stride":              nil,
		"min_logs_per_window":        s.MinLogsPerWindow,
		"max_logs_per_window":        nil,
		"basic_features":             features,
		"pattern_features":           s.PatternFeatures,
		"custom_patterns":            patterns,
		"normalization_method":       s.NormalizationMethod,
	}
	if s.WindowStride != "" {
		m["window_stride"] = s.WindowStride
	}
	if s.MaxLogsPerWindow > 0 {
		m["max_logs_per_window"] = s.MaxLogsPerWindow
	}
	return m
}

// FromMap builds a Config from a key-value map produced by ToMap or read from
// a file. Missing keys take their default values; unknown keys are rejected.
// The result goes through the same validation as New.
func FromMap(m map[string]interface{}) (*Config, error) {
	s, err := DecodeSettings(m)
	if err != nil {
		return nil, err
	}
	return New(s)
}

// DecodeSettings decodes m on top of DefaultSettings without validating.
func DecodeSettings(m map[string]interface{}) (Settings, error) {
	s := DefaultSettings()

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &s,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		ZeroFields:       true,
	})
	if err != nil {
		return Settings{}, err
	}
	if err := dec.Decode(m); err != nil {
		return Settings{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return s, nil
}

// Load reads a YAML document of preprocessing settings and validates it.
func Load(r io.Reader) (*Config, error) {
	var m map[string]interface{}
	if err := yaml.NewDecoder(r).Decode(&m); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: decode yaml: %v", ErrInvalidConfig, err)
	}
	if m == nil {
		m = map[string]interface{}{}
	}
	return FromMap(m)
}

// WriteYAML writes the configuration as a YAML document readable by Load.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.settings); err != nil {
		return err
	}
	return enc.Close()
}
