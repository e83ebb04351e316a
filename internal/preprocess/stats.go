package preprocess

import (
	"fmt"
	"time"
)

// ProcessStats contains summary statistics about a pipeline run.
type ProcessStats struct {
	RunID            string
	InputLines       int
	ParsedRecords    int
	SkippedLines     int
	FilteredRecords  int
	SkipRate         float64
	CandidateWindows int
	DroppedWindows   int
	TruncatedWindows int
	OutputWindows    int
	OutputColumns    int
	FirstWindow      time.Time
	LastWindow       time.Time
	Duration         time.Duration
}

// Stats summarizes r.
func (r *Result) Stats() *ProcessStats {
	s := &ProcessStats{
		RunID:            r.RunID,
		InputLines:       r.TotalLines,
		ParsedRecords:    r.Parsed,
		SkippedLines:     r.Skipped,
		FilteredRecords:  r.Filtered,
		SkipRate:         r.SkipRate(),
		CandidateWindows: r.Windows.Candidates,
		DroppedWindows:   r.Windows.Dropped,
		TruncatedWindows: r.Windows.Truncated,
		OutputWindows:    r.Windows.Kept,
		Duration:         r.Duration,
	}
	if r.Frame != nil && r.Frame.Len() > 0 {
		s.OutputColumns = r.Frame.Width()
		s.FirstWindow = r.Frame.Index[0]
		s.LastWindow = r.Frame.Index[r.Frame.Len()-1]
	}
	return s
}

// String returns a human-readable summary of the processing statistics.
func (s *ProcessStats) String() string {
	return fmt.Sprintf(
		"Processed %d lines into %d records (%d skipped, %.1f%%; %d outside time range)\n"+
			"Windows: %d kept, %d dropped, %d truncated of %d candidates\n"+
			"Output: %d rows x %d columns, %s to %s",
		s.InputLines,
		s.ParsedRecords,
		s.SkippedLines,
		s.SkipRate*100,
		s.FilteredRecords,
		s.OutputWindows,
		s.DroppedWindows,
		s.TruncatedWindows,
		s.CandidateWindows,
		s.OutputWindows,
		s.OutputColumns,
		s.FirstWindow.Format(time.DateTime),
		s.LastWindow.Format(time.DateTime),
	)
}
