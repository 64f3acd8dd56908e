// Package scan implements the scan coordinator and its local and remote
// partition adapters: sequential, newest-first, per-partition scanning
// of a table, dispatching each partition to the local store or a remote
// replica, accumulating matches into a bounded result buffer.
package scan

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"logscan/internal/metrics"
	"logscan/internal/partition"
	"logscan/internal/tracing"
	"logscan/pkg/errs"
	"logscan/pkg/replication"
	"logscan/pkg/sqlrt"
	"logscan/pkg/tsdb"
)

// Result is the bounded, append-only scan buffer. Lines accumulate
// until either capacity is reached or the
// partition walk is exhausted. ScannedUntil decreases monotonically (it
// is always the oldest timestamp for which a partition has been fully
// examined so far); RowsScanned only ever increases.
type Result struct {
	Capacity     int
	Lines        []Line
	ScannedUntil time.Time
	RowsScanned  int
}

// IsFull reports whether the buffer has reached capacity.
func (r *Result) IsFull() bool {
	return r.Capacity > 0 && len(r.Lines) >= r.Capacity
}

// Coordinator drives a sequential, newest-first scan across a table's
// partitions, never more than one partition in flight at a time.
type Coordinator struct {
	store  *tsdb.Store
	repl   *replication.Map
	remote *RemoteAdapter
	log    *logrus.Logger
	tracer *tracing.Manager
}

func NewCoordinator(store *tsdb.Store, repl *replication.Map, remote *RemoteAdapter, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{store: store, repl: repl, remote: remote, log: log}
}

// WithTracer attaches a tracing manager so each partition dispatch opens
// a "scan.partition" span; the coordinator works identically without one.
func (c *Coordinator) WithTracer(tracer *tracing.Manager) *Coordinator {
	c.tracer = tracer
	return c
}

// Scan walks customer's tableName partitions newest-first from params.EndTime,
// filtering rows through params.Condition (currently only the SQL
// scan_type is supported; empty matches everything) compiled against
// fieldIDs, until capacity lines have been collected or the 90-day
// lookback is exhausted. Every matching row is projected per params
// (time, raw iff requested, then each declared column) before being
// appended to the result; rows at or after params.EndTime are skipped,
// never counted against capacity. onPartition,
// if set, is invoked once per partition boundary -- never mid-partition
// -- with the result accumulated so far and whether the scan is done.
// The flag is advisory to the callback; termination is decided here,
// from IsFull alone.
func (c *Coordinator) Scan(ctx context.Context, customer, tableName string, partitionSize time.Duration, fieldIDs map[string]uint32, params LogfileScanParams, capacity int, onPartition func(Result, bool)) (Result, error) {
	if params.ScanType != "" && params.ScanType != ScanTypeSQL {
		return Result{}, errs.IllegalState(component, "Scan", "unsupported scan type: "+string(params.ScanType))
	}

	var pred sqlrt.Predicate
	if params.Condition != "" {
		var err error
		pred, err = sqlrt.Compile(params.Condition, fieldIDs)
		if err != nil {
			return Result{}, err
		}
	}

	result := Result{Capacity: capacity}
	walker := partition.NewWalker(params.EndTime)
	start := time.Now()
	defer func() {
		metrics.ScanDuration.WithLabelValues(tableName).Observe(time.Since(start).Seconds())
	}()

	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		window, ok := walker.Next()
		if !ok {
			break
		}

		key := tsdb.KeyFor(tableName, window, partitionSize)
		remaining := capacity - len(result.Lines)
		local := c.repl.HasLocalReplica(key)

		spanCtx := ctx
		var span oteltrace.Span
		if c.tracer != nil {
			spanCtx, span = c.tracer.StartPartitionSpan(ctx, tableName, window, local)
		}

		var (
			matched []Line
			scanned int
			err     error
		)

		locality := "local"
		if !local {
			locality = "remote"
		}
		metrics.ScanPartitionsVisitedTotal.WithLabelValues(tableName, locality).Inc()

		if local {
			matched, scanned, err = LocalScan(c.store, customer, tableName, window, partitionSize, pred, fieldIDs, params, remaining)
		} else {
			hosts := c.repl.RemoteAddrsFor(key)
			hostsTried, resp, rerr := c.remote.Scan(spanCtx, hosts, RemoteScanRequest{
				Namespace:     customer,
				Table:         tableName,
				WindowStart:   window,
				PartitionSize: partitionSize,
				SQLFilter:     params.Condition,
				FieldIDs:      fieldIDs,
				EndTime:       params.EndTime,
				Columns:       params.Columns,
				ReturnRaw:     params.ReturnRaw,
				Limit:         remaining,
			})
			if hostsTried > 1 {
				metrics.ScanRemoteFailoversTotal.WithLabelValues(tableName).Add(float64(hostsTried - 1))
			}
			err = rerr
			if err == nil {
				matched, scanned = resp.Lines, resp.RowsScanned
			}
		}

		if span != nil {
			tracing.RecordError(span, err)
			span.End()
		}

		if err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"table":  tableName,
				"window": window,
			}).Warn("partition scan aborted")
			return result, err
		}

		result.Lines = append(result.Lines, matched...)
		result.RowsScanned += scanned
		result.ScannedUntil = window

		done := result.IsFull()
		if onPartition != nil {
			onPartition(result, done)
		}

		if done {
			metrics.ScanCapacityStopsTotal.WithLabelValues(tableName).Inc()
			break
		}
	}

	return result, nil
}
