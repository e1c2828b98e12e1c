// Package dateutil parses the heterogeneous timestamp formats the
// provider collectors receive and normalizes them to Unix seconds, the
// form buildmodel.Build stores.
package dateutil

import (
	"fmt"
	"time"
)

// layouts are tried in order by Parse, which every provider collector
// shares, so the edge-case handling (fractional seconds, missing zone)
// lives in one place.
var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Parse attempts every known layout and returns the first match as
// Unix seconds.
func Parse(value string) (int64, error) {
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t.Unix(), nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("unrecognized timestamp format %q: %w", value, lastErr)
}

// ParseOptional is Parse but returns (nil, nil) for an empty string,
// matching providers whose "finished at" field is absent while a build
// is still running.
func ParseOptional(value string) (*int64, error) {
	if value == "" {
		return nil, nil
	}
	ts, err := Parse(value)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

// ParseUnixMillis converts an epoch-millisecond timestamp to Unix
// seconds.
func ParseUnixMillis(ms int64) int64 {
	return ms / 1000
}
