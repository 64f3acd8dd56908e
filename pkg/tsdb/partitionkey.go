package tsdb

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// PartitionKey is the 20-byte content-addressed identifier of one
// partition, derived deterministically from (table name, partition window
// start, partition size) -- two callers computing the key for the same
// table/window/size always land on the same partition, with no
// coordination required.
type PartitionKey [20]byte

func (k PartitionKey) String() string {
	return hex.EncodeToString(k[:])
}

// KeyFor is the storage layer's time-window partitioner. t need not fall
// on a window boundary, KeyFor floors it to one before hashing, so a
// walker that steps by raw end_time (unaligned) and a writer that floors
// at insert time always land on the same key for the same window.
func KeyFor(tableName string, t time.Time, partitionSize time.Duration) PartitionKey {
	ws := WindowStart(t, partitionSize)
	input := fmt.Sprintf("%s|%d|%d", tableName, ws.UnixNano(), int64(partitionSize))
	return PartitionKey(sha1.Sum([]byte(input)))
}

// WindowStart floors t to the start of its partition window.
func WindowStart(t time.Time, partitionSize time.Duration) time.Time {
	t = t.UTC()
	return t.Truncate(partitionSize)
}
