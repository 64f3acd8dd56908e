// Package source implements the Ingestion Pipeline's pluggable line
// sources: HTTP upload body, tailed files, a Kafka consumer group and
// tailed Docker container logs. Each satisfies ingest.LineSource.
package source

import (
	"bufio"
	"context"
	"io"
)

// Upload adapts an already-decompressed HTTP request body into a
// LineSource: one line per call to the scanner, channel closed when the
// body is exhausted or errors.
type Upload struct {
	Body io.Reader
}

func (u Upload) Lines(ctx context.Context) (<-chan string, error) {
	out := make(chan string)
	scanner := bufio.NewScanner(u.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	go func() {
		defer close(out)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			case out <- scanner.Text():
			}
		}
	}()

	return out, nil
}
