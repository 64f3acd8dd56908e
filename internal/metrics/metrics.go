// Package metrics exposes the Prometheus counters and histograms for
// ingestion and scan activity, promauto-registered against the default
// registry at package init.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsIngestedTotal counts rows successfully parsed and flushed to
	// storage, per customer/logfile.
	RowsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_rows_ingested_total",
			Help: "Total number of rows parsed and persisted by the ingestion pipeline",
		},
		[]string{"customer", "logfile"},
	)

	// RowsDroppedTotal counts lines silently dropped by the line parser,
	// labeled by the reason (regex_miss or time_parse_error).
	RowsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_rows_dropped_total",
			Help: "Total number of log lines dropped during parsing",
		},
		[]string{"customer", "logfile", "reason"},
	)

	// IngestBatchesFlushedTotal counts batch flushes to storage.
	IngestBatchesFlushedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_ingest_batches_flushed_total",
			Help: "Total number of ingestion batches flushed to storage",
		},
		[]string{"customer", "logfile"},
	)

	// IngestBatchFlushDuration times each batch flush to storage.
	IngestBatchFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logscan_ingest_batch_flush_duration_seconds",
			Help:    "Time spent flushing an ingestion batch to storage",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"customer", "logfile"},
	)

	// ScanPartitionsVisitedTotal counts partitions visited by the scan
	// coordinator, labeled by whether the partition was local or remote.
	ScanPartitionsVisitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_scan_partitions_visited_total",
			Help: "Total number of partitions visited by the scan coordinator",
		},
		[]string{"table", "locality"},
	)

	// ScanRemoteFailoversTotal counts a remote scan adapter trying a
	// second (or later) replica host for one partition.
	ScanRemoteFailoversTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_scan_remote_failovers_total",
			Help: "Total number of remote scan failovers to a subsequent replica host",
		},
		[]string{"table"},
	)

	// ScanCapacityStopsTotal counts scans that stopped because the result
	// buffer reached capacity before the partition walk was exhausted.
	ScanCapacityStopsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logscan_scan_capacity_stops_total",
			Help: "Total number of scans that stopped early because the result buffer was full",
		},
		[]string{"table"},
	)

	// ScanDuration times a full Coordinator.Scan call.
	ScanDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logscan_scan_duration_seconds",
			Help:    "Time spent executing a full partition scan",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"table"},
	)
)
