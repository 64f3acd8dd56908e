// Package lineparser compiles a logfile's regex once, resolves each
// matched line against the
// logfile's declared row_fields/source_fields, and derives the row's
// timestamp either via an explicit format or the heuristic human-time
// parser. Lines that fail to match, or whose timestamp fails to parse,
// are dropped silently -- never a hard error -- per the ingestion
// invariant that malformed input must not interrupt a batch.
package lineparser

import (
	"regexp"
	"time"

	"github.com/sirupsen/logrus"

	"logscan/pkg/configdir"
	"logscan/pkg/errs"
	"logscan/pkg/wire"
)

const component = "lineparser"

// DropReason explains why Parse declined to produce a row; it labels the
// trace-level log line and the drop counter, the only observability a
// silent drop gets.
type DropReason string

const (
	DropRegexMiss    DropReason = "regex_miss"
	DropTimeParseErr DropReason = "time_parse_error"
)

// Parser matches lines of one logfile against its compiled regex and
// builds wire rows from the captures.
type Parser struct {
	logfileName string
	re          *regexp.Regexp
	timeGroup   int
	timeField   configdir.Field
	matchFields map[int]configdir.Field // capture group index -> declared row field
	log         *logrus.Logger
}

// New compiles def's regex and resolves its named captures against
// row_fields. It returns errs.IllegalState, without touching any storage,
// when the regex has no named capture group matching a declared "time"
// row field -- a logfile cannot be ingested without a resolvable
// timestamp.
func New(def configdir.LogfileDefinition, log *logrus.Logger) (*Parser, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}

	re, err := regexp.Compile(def.Regex)
	if err != nil {
		return nil, errs.Runtime(component, "New", "invalid logfile regex").Wrap(err)
	}

	timeField, hasTimeField := def.TimeField()

	names := re.SubexpNames()
	timeGroup := -1
	matchFields := make(map[int]configdir.Field, len(names))

	declared := make(map[string]configdir.Field, len(def.RowFields)+len(def.SourceFields))
	for _, f := range def.RowFields {
		declared[f.Name] = f
	}
	for _, f := range def.SourceFields {
		declared[f.Name] = f
	}

	for i, name := range names {
		if name == "" {
			continue
		}
		if f, ok := declared[name]; ok {
			matchFields[i] = f
		}
		if name == "time" {
			timeGroup = i
		}
	}

	if !hasTimeField || timeGroup == -1 {
		return nil, errs.IllegalState(component, "New", "logfile \""+def.Name+"\" cannot be imported without a resolvable time column")
	}

	return &Parser{
		logfileName: def.Name,
		re:          re,
		timeGroup:   timeGroup,
		timeField:   timeField,
		matchFields: matchFields,
		log:         log,
	}, nil
}

// sourceFieldIDs resolves caller-supplied source_fields (name -> literal
// value, fixed for the whole ingestion call) to schema field ids, using
// def.SourceFields' declared names. Fields supplied by the caller with no
// matching declaration are skipped: there is no id to encode them under.
func sourceFieldIDs(def configdir.LogfileDefinition, sourceFields map[string]string) map[uint32]string {
	out := make(map[uint32]string, len(sourceFields))
	for _, f := range def.SourceFields {
		if v, ok := sourceFields[f.Name]; ok {
			out[f.ID] = v
		}
	}
	return out
}

// Parse matches line against the compiled regex and, on success, builds a
// wire row plus its resolved event timestamp. ok is false whenever the
// line is silently dropped, and reason then says why (regex miss or time
// parse miss); Parse never returns an error.
func (p *Parser) Parse(def configdir.LogfileDefinition, line string, sourceFields map[string]string) (row wire.Row, ts time.Time, ok bool, reason DropReason) {
	match := p.re.FindStringSubmatch(line)
	if match == nil {
		p.log.WithFields(logrus.Fields{
			"logfile": p.logfileName,
			"reason":  DropRegexMiss,
		}).Trace("dropped log line: regex did not match")
		return nil, time.Time{}, false, DropRegexMiss
	}

	timeText := match[p.timeGroup]
	t, parsed := p.resolveTime(timeText)
	if !parsed {
		p.log.WithFields(logrus.Fields{
			"logfile": p.logfileName,
			"reason":  DropTimeParseErr,
			"value":   timeText,
		}).Trace("dropped log line: time field did not parse")
		return nil, time.Time{}, false, DropTimeParseErr
	}

	row = wire.Row{
		schemaRawFieldID: wire.StringValue(line),
	}

	for idx, field := range p.matchFields {
		if idx >= len(match) {
			continue
		}
		captured := match[idx]
		if field.Type == configdir.FieldTypeDateTime && field.Format != "" {
			if ft, ok := parseFormattedTime(captured, field.Format); ok {
				row[field.ID] = wire.TimeValue(ft.UnixMicro())
				continue
			}
		}
		row[field.ID] = wire.StringValue(captured)
	}

	for id, v := range sourceFieldIDs(def, sourceFields) {
		row[id] = wire.StringValue(v)
	}

	return row, t, true, ""
}

// resolveTime applies def's declared format if present, otherwise falls
// back to the heuristic human-time parser.
func (p *Parser) resolveTime(text string) (time.Time, bool) {
	if p.timeField.Format != "" {
		return parseFormattedTime(text, p.timeField.Format)
	}
	return parseHeuristicTime(text)
}

// schemaRawFieldID mirrors schema.RawFieldID; keeping the constant local
// spares this package a dependency on the schema package.
const schemaRawFieldID uint32 = 1
