package scan

import (
	"time"

	"logscan/internal/schema"
	"logscan/pkg/sqlrt"
	"logscan/pkg/tsdb"
)

// LocalScan reads one of namespace's partitions directly from the local
// store, applies the compiled predicate, and builds the ordered
// projection for each matching row -- time first, then raw iff
// requested, then each declared column in request order -- stopping once
// limit matching lines have been collected. A partition with no
// materialized file is a legitimate empty result, not an error. Rows at
// or after params.EndTime are skipped: counted against rows_scanned but
// never against the result or its capacity. A zero EndTime means no
// caller-supplied upper bound. A non-positive limit yields nothing:
// callers aren't required to pre-clamp what comes off the wire.
func LocalScan(store *tsdb.Store, namespace, tableName string, windowStart time.Time, partitionSize time.Duration, pred sqlrt.Predicate, fieldIDs map[string]uint32, params LogfileScanParams, limit int) ([]Line, int, error) {
	if limit <= 0 {
		return nil, 0, nil
	}

	p, ok, err := store.FindPartition(namespace, tableName, windowStart, partitionSize)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, 0, nil
	}

	matched := make([]Line, 0, limit)
	scanned := 0
	for _, row := range p.Rows {
		scanned++
		if !params.EndTime.IsZero() && !row.Timestamp.Before(params.EndTime) {
			continue
		}
		if pred != nil && !pred.Match(row.Row) {
			continue
		}
		matched = append(matched, projectRow(row, fieldIDs, params))
		if len(matched) >= limit {
			break
		}
	}
	return matched, scanned, nil
}

// projectRow builds one result line from a stored row: time always
// first (carried on Line itself), raw iff requested, then each requested
// column resolved to its wire id and rendered as text.
func projectRow(row tsdb.StoredRow, fieldIDs map[string]uint32, params LogfileScanParams) Line {
	line := Line{Time: row.Timestamp}

	if params.ReturnRaw {
		if v, ok := row.Row[schema.RawFieldID]; ok {
			line.Raw = v.String()
		}
	}

	if len(params.Columns) > 0 {
		line.Columns = make([]string, len(params.Columns))
		for i, name := range params.Columns {
			id, known := fieldIDs[name]
			if !known {
				continue
			}
			if v, ok := row.Row[id]; ok {
				line.Columns[i] = v.String()
			}
		}
	}

	return line
}
