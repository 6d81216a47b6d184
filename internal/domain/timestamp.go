package domain

import (
	"strings"
	"time"
)

// DisplayLayout is the human readable timestamp form written into comment
// metadata and embedding preambles.
const DisplayLayout = "January 02, 2006 at 15:04 UTC"

// EpochSentinel is returned by the watermark scan when nothing parses, so a
// cold store triggers a full resync.
var EpochSentinel = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)

// timestampLayouts are tried in order; the first successful parse wins.
// Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	DisplayLayout,
	"January 2, 2006 at 15:04 UTC",
	"January 2 2006 at 15:04 UTC",
}

// ParseTimestamp parses an ISO-8601 value or the display form and normalizes
// it to UTC. The boolean is false when no layout matches.
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), true
		}
	}

	return time.Time{}, false
}

// FormatDisplay renders a timestamp in DisplayLayout.
func FormatDisplay(t time.Time) string {
	return t.UTC().Format(DisplayLayout)
}

// FormatISO renders a timestamp as RFC3339 with a trailing Z.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
