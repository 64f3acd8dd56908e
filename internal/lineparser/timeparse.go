package lineparser

import (
	"strings"
	"time"
)

// heuristicLayouts is the ordered list of layouts the heuristic human-time
// parser tries when a logfile's "time" row field declares no explicit
// format: high-precision/explicit-zone formats first, looser layouts last.
var heuristicLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04:05.000000",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"02/Jan/2006:15:04:05 -0700",
	time.ANSIC,
	time.UnixDate,
	time.RFC1123Z,
	time.RFC1123,
}

// parseHeuristicTime applies the heuristic human-time parser used when a
// row_fields "time" entry declares no explicit format: try a fixed set of
// common layouts in order and return the first one that matches.
func parseHeuristicTime(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}

	for _, layout := range heuristicLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// parseFormattedTime applies an explicit Go time layout, as declared by a
// row_fields entry's "format".
func parseFormattedTime(text, format string) (time.Time, bool) {
	t, err := time.Parse(format, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}
