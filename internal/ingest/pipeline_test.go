package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"logscan/internal/logfile"
	"logscan/internal/schema"
	"logscan/pkg/configdir"
	"logscan/pkg/tsdb"
)

type fakeSource struct {
	lines []string
}

func (f fakeSource) Lines(ctx context.Context) (<-chan string, error) {
	out := make(chan string, len(f.lines))
	for _, l := range f.lines {
		out <- l
	}
	close(out)
	return out, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *logfile.Registry) {
	t.Helper()
	dir, err := configdir.NewFileDirectory(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { dir.Close() })

	require.NoError(t, dir.UpdateCustomerConfig(&configdir.CustomerConfig{
		Customer: "acme",
		LogfileImportConfig: configdir.LogfileImportConfig{
			Logfiles: []configdir.LogfileDefinition{
				{
					Name:  "web",
					Regex: `(?P<time>\S+ \S+) (?P<status>\d+)`,
					RowFields: []configdir.Field{
						{ID: 2, Name: "time", Type: configdir.FieldTypeDateTime, Format: "2006-01-02 15:04:05"},
						{ID: 3, Name: "status", Type: configdir.FieldTypeString},
					},
				},
			},
		},
	}))

	registry := logfile.NewRegistry(dir)
	store, err := tsdb.NewStore(t.TempDir(), nil)
	require.NoError(t, err)

	return New(registry, store, nil), registry
}

func TestPipeline_IngestParsesAndStoresRows(t *testing.T) {
	p, _ := newTestPipeline(t)

	src := fakeSource{lines: []string{
		"2024-01-02 03:04:05 200",
		"not a matching line",
		"2024-01-02 03:05:05 404",
	}}

	result, err := p.Ingest(context.Background(), "acme", "web", nil, src)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowsParsed)
	require.Equal(t, 1, result.RowsDropped)

	ws := time.Date(2024, 1, 2, 3, 0, 0, 0, time.UTC)
	part, ok, err := p.store.FindPartition("acme", schema.TableName("web"), ws, schema.PartitionWindow)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, part.Rows, 2)
	require.Equal(t, "acme", part.Namespace)

	// The rows were inserted under the ingesting customer's namespace
	// only; another customer's identically-named logfile sees nothing.
	_, ok, err = p.store.FindPartition("globex", schema.TableName("web"), ws, schema.PartitionWindow)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPipeline_UnknownLogfileIsNotFound(t *testing.T) {
	p, _ := newTestPipeline(t)

	_, err := p.Ingest(context.Background(), "acme", "missing", nil, fakeSource{})
	require.Error(t, err)
}

func TestPipeline_WithIDGeneratorOverridesDefault(t *testing.T) {
	p, _ := newTestPipeline(t)

	var calls int
	p.WithIDGenerator(func() tsdb.RecordID {
		calls++
		var id tsdb.RecordID
		id[0] = byte(calls)
		return id
	})

	src := fakeSource{lines: []string{
		"2024-01-02 03:04:05 200",
		"2024-01-02 03:05:05 404",
	}}

	result, err := p.Ingest(context.Background(), "acme", "web", nil, src)
	require.NoError(t, err)
	require.Equal(t, 2, result.RowsParsed)
	require.Equal(t, 2, calls)
}

func TestPipeline_FlushesAtBatchThreshold(t *testing.T) {
	p, _ := newTestPipeline(t)

	lines := make([]string, BatchSize+5)
	for i := range lines {
		lines[i] = "2024-01-02 03:04:05 200"
	}

	result, err := p.Ingest(context.Background(), "acme", "web", nil, fakeSource{lines: lines})
	require.NoError(t, err)
	require.Equal(t, BatchSize+5, result.RowsParsed)
}
