// Package preprocess turns raw log lines into a normalized, time-indexed
// feature table.
//
// The pipeline runs four stages in order:
//
//  1. Parsing - Format-specific extraction of timestamp and message
//  2. Feature Extraction - Lexical counts and pattern match counts per message
//  3. Windowing - Epoch-anchored time windows with mean, std, min and max per feature
//  4. Normalization - Min-max or z-score scaling with cached per-column statistics
//
// Basic usage:
//
//	cfg, err := config.New(settings)
//	if err != nil {
//	    return err
//	}
//	p := preprocess.New(cfg)
//	result, err := p.Process(lines, parser.FormatApache)
//
// Lines that do not match the format are skipped and counted in
// Result.Skipped. A run fails with window.ErrNoValidWindows when no window
// reaches min_logs_per_window.
//
// Configuration via ~/.driftprep.yaml:
//
//	preprocessing:
//	  window_size: 5min
//	  min_logs_per_window: 1
//	  normalization_method: minmax
//	  custom_patterns:
//	    error: error|exception|fail
package preprocess
