package features

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownPattern is returned for a built-in pattern name that does not exist.
var ErrUnknownPattern = errors.New("unknown built-in pattern")

// BuiltInPattern is a named regular expression that can be added to the
// custom pattern set by name.
type BuiltInPattern struct {
	Name        string
	Source      string
	Description string
}

// BuiltInPatterns contains the pattern catalogue. Sources are compiled
// case-insensitively like any custom pattern.
var BuiltInPatterns = map[string]BuiltInPattern{
	"error": {
		Name:        "error",
		Source:      `error|exception|fail|failed|failure`,
		Description: "Error keywords",
	},
	"warning": {
		Name:        "warning",
		Source:      `warn|warning|high|critical`,
		Description: "Warning keywords",
	},
	"ip_address": {
		Name:        "ip_address",
		Source:      `\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`,
		Description: "Dotted quads, loosely matched",
	},
	"metrics": {
		Name:        "metrics",
		Source:      `\d+%|\d+(?:\.\d+)?(?:GB|MB|KB|ms|sec)`,
		Description: "Percentages, sizes and latencies",
	},
	"user": {
		Name:        "user",
		Source:      `user\s*\w+|username|userid`,
		Description: "User references",
	},
	"ipv4": {
		Name:        "ipv4",
		Source:      `\b(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)(?:\.(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)){3}\b`,
		Description: "IPv4 addresses",
	},
	"email": {
		Name:        "email",
		Source:      `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		Description: "Email addresses",
	},
	"uuid": {
		Name:        "uuid",
		Source:      `\b[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}\b`,
		Description: "UUIDs",
	},
	"mac_address": {
		Name:        "mac_address",
		Source:      `\b(?:[0-9a-f]{2}[:-]){5}[0-9a-f]{2}\b`,
		Description: "MAC addresses",
	},
	"hdfs_block": {
		Name:        "hdfs_block",
		Source:      `blk_-?\d+`,
		Description: "HDFS block identifiers",
	},
	"exception": {
		Name:        "exception",
		Source:      `\b[\w.$]+(?:Exception|Error)\b`,
		Description: "Java-style exception class names",
	},
	"http_status": {
		Name:        "http_status",
		Source:      `\b[45]\d{2}\b`,
		Description: "HTTP 4xx and 5xx status codes",
	},
	"duration": {
		Name:        "duration",
		Source:      `\b\d+(?:\.\d+)?\s?(?:ms|us|ns|s)\b`,
		Description: "Durations with a unit",
	},
}

// BuiltInNames returns the names in the catalogue, sorted.
func BuiltInNames() []string {
	names := make([]string, 0, len(BuiltInPatterns))
	for name := range BuiltInPatterns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WithBuiltIns returns a copy of custom with the named built-in patterns
// added. Custom entries win over built-ins of the same name.
func WithBuiltIns(custom map[string]string, names []string) (map[string]string, error) {
	out := make(map[string]string, len(custom)+len(names))
	for _, raw := range names {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		p, ok := BuiltInPatterns[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q (available: %s)", ErrUnknownPattern, name, strings.Join(BuiltInNames(), ", "))
		}
		out[name] = p.Source
	}
	for k, v := range custom {
		out[k] = v
	}
	return out, nil
}
