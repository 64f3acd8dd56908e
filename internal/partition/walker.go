// Package partition enumerates a table's candidate partition windows
// newest-first, in fixed 10-minute steps, capped at a 90-day lookback.
package partition

import (
	"time"

	"logscan/internal/schema"
)

// MaxLookback bounds how far back a scan ever walks: 90 days of 10-minute
// windows is 12,960 partitions.
const MaxLookback = 90 * 24 * time.Hour

// MaxPartitions is MaxLookback expressed in partition-window units.
const MaxPartitions = int(MaxLookback / schema.PartitionWindow)

// Walker yields successive candidate partition timestamps, newest first,
// stopping at MaxLookback. It starts at the caller's end_time verbatim,
// unaligned to a window boundary. Aligning a step's timestamp to its
// partition's window boundary is the storage layer's time-window
// partitioner's job (tsdb.KeyFor), not the walker's: end_time need not
// itself land on a 10-minute boundary.
type Walker struct {
	t      time.Time
	oldest time.Time
	steps  int
}

// NewWalker starts a walk at endTime and steps backward in
// schema.PartitionWindow increments until MaxLookback is reached.
func NewWalker(endTime time.Time) *Walker {
	endTime = endTime.UTC()
	return &Walker{
		t:      endTime,
		oldest: endTime.Add(-MaxLookback),
	}
}

// Next returns the next (older) candidate timestamp, or ok=false once the
// lookback limit is reached.
func (w *Walker) Next() (time.Time, bool) {
	if w.steps >= MaxPartitions || !w.t.After(w.oldest) {
		return time.Time{}, false
	}
	current := w.t
	w.t = w.t.Add(-schema.PartitionWindow)
	w.steps++
	return current, true
}
