package parser

import (
	"fmt"
	"strings"
	"time"

	"github.com/bimmerbailey/driftprep/internal/config"
)

// Column names required in tabular input.
const (
	ColumnTimestamp = "timestamp"
	ColumnMessage   = "message"
)

// Row is one already-split record from tabular input, keyed by column name.
type Row map[string]any

func rowLayout(format Format, cfg *config.Config) string {
	switch format {
	case FormatApache:
		return cfg.ApacheTimestampFormat()
	case FormatHealthApp:
		return cfg.HealthAppTimestampFormat()
	default:
		return cfg.TimestampFormat()
	}
}

// ParseRows converts tabular input into records. Every row must carry both a
// timestamp and a message column; the first row that does not fails the call.
// Timestamp values may be time.Time or a string in the format's layout, and
// must be Representable.
func (p *Parser) ParseRows(rows []Row) ([]Record, error) {
	records := make([]Record, 0, len(rows))
	for i, row := range rows {
		rawTS, ok := row[ColumnTimestamp]
		if !ok {
			return nil, fmt.Errorf("row %d: %w %q", i, ErrMissingColumn, ColumnTimestamp)
		}
		rawMsg, ok := row[ColumnMessage]
		if !ok {
			return nil, fmt.Errorf("row %d: %w %q", i, ErrMissingColumn, ColumnMessage)
		}

		var ts time.Time
		switch v := rawTS.(type) {
		case time.Time:
			ts = v
		case string:
			parsed, err := time.Parse(p.layout, strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("row %d: parse timestamp: %w", i, err)
			}
			ts = parsed
		default:
			return nil, fmt.Errorf("row %d: %w: timestamp is %T", i, ErrInputShape, rawTS)
		}

		if !Representable(ts) {
			return nil, fmt.Errorf("row %d: %w: timestamp %s out of range", i, ErrInputShape, ts.Format(time.RFC3339))
		}

		msg, ok := rawMsg.(string)
		if !ok {
			return nil, fmt.Errorf("row %d: %w: message is %T", i, ErrInputShape, rawMsg)
		}

		records = append(records, Record{Timestamp: ts.UTC(), Message: msg})
	}
	return records, nil
}
