// Package tsdb is a time-window-partitioned table store: an in-memory
// map guarded by a RWMutex, mirrored to one JSON file per partition
// under a base directory and reloaded on startup. The scan coordinator
// and ingestion pipeline only depend on the narrow Store surface this
// package exposes, so a full columnar engine can replace it without
// touching either.
package tsdb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"logscan/pkg/errs"
	"logscan/pkg/wire"
)

const component = "tsdb"

// RecordID is the 160-bit random identifier assigned to each record at
// ingestion time. It has no bearing on partition routing or dedup --
// ingestion is at-least-once -- but is carried along so a real storage
// layer can use it as its record key.
type RecordID [20]byte

func (id RecordID) String() string {
	return fmt.Sprintf("%x", id[:])
}

// RecordEnvelope is one wire-encoded row plus the event timestamp used to
// route it to a partition and the record id assigned when it was read off
// the line source. Namespace is the owning customer: two customers may
// each declare a logfile with the same name, so a record is only
// addressable as (namespace, table, partition, id), never by table
// alone. Data is the row as produced by wire.EncodeRow; the store
// decodes it back into columns at insert time so partition scans can
// evaluate predicates without re-parsing.
type RecordEnvelope struct {
	Namespace string
	RecordID  RecordID
	Data      []byte
	Timestamp time.Time
}

// StoredRow is one materialized row plus the event timestamp it was
// inserted under -- the timestamp a scan's end_time bound and "time"
// projection column are both read from, since a row's own schema fields
// may or may not carry a parsed datetime value for it.
type StoredRow struct {
	Timestamp time.Time `json:"timestamp"`
	Row       wire.Row  `json:"row"`
}

// Partition is one time-window partition's materialized rows.
type Partition struct {
	Key           PartitionKey  `json:"-"`
	Namespace     string        `json:"namespace"`
	TableName     string        `json:"table_name"`
	WindowStart   time.Time     `json:"window_start"`
	PartitionSize time.Duration `json:"partition_size"`
	Rows          []StoredRow   `json:"rows"`
}

// tableKey addresses one customer's table. The partition key itself is
// derived from the table name alone, so the namespace axis has to live
// here: without it, two customers' identically-named logfiles would
// share one table.
type tableKey struct {
	Namespace string
	Table     string
}

// Store is the table store: insert records, find a partition by its
// content-addressed key, always scoped to a namespace. Table existence
// is implicit -- insert creates partitions for any (namespace, table)
// lazily, matching this store's narrow-capability role rather than a
// full schema-enforcing engine.
type Store struct {
	dir    string
	log    *logrus.Logger
	mu     sync.RWMutex
	tables map[tableKey]map[PartitionKey]*Partition
}

// NewStore opens (and if necessary creates) a store rooted at dir,
// reloading any partitions already persisted there.
func NewStore(dir string, log *logrus.Logger) (*Store, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errs.Runtime(component, "NewStore", "create store directory").Wrap(err)
	}

	s := &Store{dir: dir, log: log, tables: make(map[tableKey]map[PartitionKey]*Partition)}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := filepath.Glob(filepath.Join(s.dir, "partition_*.json"))
	if err != nil {
		return errs.Runtime(component, "loadAll", "glob store directory").Wrap(err)
	}

	loaded := 0
	for _, path := range entries {
		data, err := os.ReadFile(path)
		if err != nil {
			s.log.WithError(err).WithField("file", path).Warn("failed to read persisted partition")
			continue
		}
		var p Partition
		if err := json.Unmarshal(data, &p); err != nil {
			s.log.WithError(err).WithField("file", path).Warn("failed to unmarshal persisted partition")
			continue
		}
		key := KeyFor(p.TableName, p.WindowStart, p.PartitionSize)
		p.Key = key
		s.put(tableKey{Namespace: p.Namespace, Table: p.TableName}, key, &p)
		loaded++
	}
	if loaded > 0 {
		s.log.WithField("loaded_count", loaded).Info("loaded persisted partitions")
	}
	return nil
}

func (s *Store) put(tk tableKey, key PartitionKey, p *Partition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tables[tk] == nil {
		s.tables[tk] = make(map[PartitionKey]*Partition)
	}
	s.tables[tk][key] = p
}

// InsertRecords appends records to whichever partition each record's
// timestamp belongs to, under each record's own namespace, persisting
// every touched partition to disk before returning. Each partition's rows
// are added in memory before that partition is written, so they are
// visible to scan from that point on, even if the write then fails and
// InsertRecords returns an error.
func (s *Store) InsertRecords(tableName string, partitionSize time.Duration, records []RecordEnvelope) (int, error) {
	type bucket struct {
		tk     tableKey
		window time.Time
		rows   []StoredRow
	}
	type bucketKey struct {
		tk  tableKey
		key PartitionKey
	}
	buckets := make(map[bucketKey]*bucket)

	for _, rec := range records {
		row, err := wire.DecodeRow(rec.Data)
		if err != nil {
			return 0, errs.Runtime(component, "InsertRecords", "decode record "+rec.RecordID.String()).Wrap(err)
		}
		ws := WindowStart(rec.Timestamp, partitionSize)
		bk := bucketKey{
			tk:  tableKey{Namespace: rec.Namespace, Table: tableName},
			key: KeyFor(tableName, ws, partitionSize),
		}
		b, ok := buckets[bk]
		if !ok {
			b = &bucket{tk: bk.tk, window: ws}
			buckets[bk] = b
		}
		b.rows = append(b.rows, StoredRow{Timestamp: rec.Timestamp, Row: row})
	}

	inserted := 0
	for bk, b := range buckets {
		s.mu.Lock()
		if s.tables[b.tk] == nil {
			s.tables[b.tk] = make(map[PartitionKey]*Partition)
		}
		p, ok := s.tables[b.tk][bk.key]
		if !ok {
			p = &Partition{Key: bk.key, Namespace: b.tk.Namespace, TableName: b.tk.Table, WindowStart: b.window, PartitionSize: partitionSize}
			s.tables[b.tk][bk.key] = p
		}
		p.Rows = append(p.Rows, b.rows...)
		snapshot := *p
		snapshot.Rows = append([]StoredRow(nil), p.Rows...)
		s.mu.Unlock()

		if err := s.persist(&snapshot); err != nil {
			return inserted, err
		}
		inserted += len(b.rows)
	}

	return inserted, nil
}

func (s *Store) persist(p *Partition) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errs.Runtime(component, "persist", "marshal partition").Wrap(err)
	}
	// The content-addressed key alone doesn't distinguish two namespaces'
	// identically-named tables, so the namespace is part of the filename.
	path := filepath.Join(s.dir, fmt.Sprintf("partition_%s_%s.json", p.Namespace, p.Key.String()))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Runtime(component, "persist", "write partition file").Wrap(err)
	}
	return nil
}

// FindPartition looks up one namespace's partition by its
// content-addressed key. ok is false, with no error, when no partition
// has ever been materialized for that window -- an unscanned/empty
// partition, not a failure: the scan yields zero rows for it and
// continues the walk.
func (s *Store) FindPartition(namespace, tableName string, windowStart time.Time, partitionSize time.Duration) (*Partition, bool, error) {
	key := KeyFor(tableName, windowStart, partitionSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[tableKey{Namespace: namespace, Table: tableName}]
	if !ok {
		return nil, false, nil
	}
	p, ok := table[key]
	if !ok {
		return nil, false, nil
	}
	return p, true, nil
}
