package scan

import "time"

// ScanType tags which predicate language LogfileScanParams.Condition is
// written in. SQL is the only variant this module compiles (Regex and
// Substring variants are reserved); the coordinator owns the dispatch on
// this tag, the local adapter only ever sees the already compiled
// predicate.
type ScanType string

const ScanTypeSQL ScanType = "SQL"

// LogfileScanParams is the caller-supplied shape of one scan request.
type LogfileScanParams struct {
	EndTime   time.Time `json:"end_time"`
	Columns   []string  `json:"columns,omitempty"`
	ReturnRaw bool      `json:"return_raw,omitempty"`
	ScanType  ScanType  `json:"scan_type"`
	Condition string    `json:"condition,omitempty"`
}

// Line is one projected row of a scan result: the timestamp always
// present, the raw source line present iff requested, then each
// projected column's text value in request order.
type Line struct {
	Time    time.Time `json:"time"`
	Raw     string    `json:"raw,omitempty"`
	Columns []string  `json:"columns,omitempty"`
}
