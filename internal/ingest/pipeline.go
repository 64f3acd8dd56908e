// Package ingest implements the ingestion pipeline: it pulls lines from
// a pluggable LineSource, parses each one against the logfile's compiled
// regex, and flushes parsed rows to storage in batches of up to 1024
// rows. Ingestion is at-least-once: a row is only
// considered durable once InsertRecords returns, and a source
// reconnecting after a failure may redeliver lines already ingested.
package ingest

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/sirupsen/logrus"
	oteltrace "go.opentelemetry.io/otel/trace"

	"logscan/internal/lineparser"
	"logscan/internal/logfile"
	"logscan/internal/metrics"
	"logscan/internal/schema"
	"logscan/internal/tracing"
	"logscan/pkg/tsdb"
	"logscan/pkg/wire"
)

// IDGenerator produces the 160-bit random record id assigned to each row
// at ingestion time. Injected so tests can supply a deterministic
// generator instead of crypto/rand.
type IDGenerator func() tsdb.RecordID

// randomRecordID is the default IDGenerator, drawing 160 bits from
// crypto/rand.
func randomRecordID() tsdb.RecordID {
	var id tsdb.RecordID
	if _, err := rand.Read(id[:]); err != nil {
		panic(err)
	}
	return id
}

const (
	component = "ingest"
	// BatchSize is the row count threshold that triggers a flush to
	// storage mid-stream.
	BatchSize = 1024
)

// LineSource produces the raw lines of one ingestion call. Its channel
// closes when the source is exhausted (end of upload body, tailed file
// truncated and not reopened, consumer group rebalanced away, ...);
// closing it is how a source signals "no more lines for this call".
type LineSource interface {
	Lines(ctx context.Context) (<-chan string, error)
}

// Result reports what one Ingest call actually did, for the HTTP API and
// metrics layer to surface.
type Result struct {
	RowsParsed  int
	RowsDropped int
}

// Pipeline wires the logfile registry (to resolve the parsing regex and
// schema) to the storage collaborator.
type Pipeline struct {
	registry *logfile.Registry
	store    *tsdb.Store
	log      *logrus.Logger
	tracer   *tracing.Manager
	newID    IDGenerator
}

func New(registry *logfile.Registry, store *tsdb.Store, log *logrus.Logger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{registry: registry, store: store, log: log, newID: randomRecordID}
}

// WithIDGenerator overrides the default crypto/rand-backed record id
// generator, for deterministic tests.
func (p *Pipeline) WithIDGenerator(gen IDGenerator) *Pipeline {
	p.newID = gen
	return p
}

// WithTracer attaches a tracing manager so each call opens an
// "ingest.flush" span; the pipeline works identically without one.
func (p *Pipeline) WithTracer(tracer *tracing.Manager) *Pipeline {
	p.tracer = tracer
	return p
}

// Ingest resolves customer/logfileName's definition and regex, then reads
// src until it closes or ctx is canceled, parsing and batching rows into
// storage along the way. The caller-supplied sourceFields are applied as
// constants to every row produced by this call.
func (p *Pipeline) Ingest(ctx context.Context, customer, logfileName string, sourceFields map[string]string, src LineSource) (Result, error) {
	if p.tracer != nil {
		var span oteltrace.Span
		ctx, span = p.tracer.StartIngestSpan(ctx, customer, logfileName)
		defer span.End()
	}

	def, err := p.registry.MustFind(customer, logfileName)
	if err != nil {
		return Result{}, err
	}

	parser, err := lineparser.New(*def, p.log)
	if err != nil {
		return Result{}, err
	}

	lines, err := src.Lines(ctx)
	if err != nil {
		return Result{}, err
	}

	tableName := schema.TableName(def.Name)
	batch := make([]tsdb.RecordEnvelope, 0, BatchSize)
	var result Result

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		flushStart := time.Now()
		n, err := p.store.InsertRecords(tableName, schema.PartitionWindow, batch)
		result.RowsParsed += n
		batch = batch[:0]
		metrics.IngestBatchesFlushedTotal.WithLabelValues(customer, logfileName).Inc()
		metrics.IngestBatchFlushDuration.WithLabelValues(customer, logfileName).Observe(time.Since(flushStart).Seconds())
		if err == nil {
			metrics.RowsIngestedTotal.WithLabelValues(customer, logfileName).Add(float64(n))
		}
		return err
	}

	for {
		select {
		case <-ctx.Done():
			if err := flush(); err != nil {
				return result, err
			}
			return result, ctx.Err()

		case line, ok := <-lines:
			if !ok {
				if err := flush(); err != nil {
					return result, err
				}
				return result, nil
			}

			row, ts, matched, reason := parser.Parse(*def, line, sourceFields)
			if !matched {
				result.RowsDropped++
				metrics.RowsDroppedTotal.WithLabelValues(customer, logfileName, string(reason)).Inc()
				continue
			}

			batch = append(batch, tsdb.RecordEnvelope{Namespace: customer, RecordID: p.newID(), Data: wire.EncodeRow(row), Timestamp: ts})
			if len(batch) >= BatchSize {
				start := time.Now()
				if err := flush(); err != nil {
					return result, err
				}
				p.log.WithFields(logrus.Fields{
					"customer": customer,
					"logfile":  logfileName,
					"took":     time.Since(start),
				}).Debug("flushed ingestion batch")
			}
		}
	}
}
