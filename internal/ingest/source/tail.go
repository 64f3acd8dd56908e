package source

import (
	"context"
	"io"

	"github.com/nxadm/tail"
	"github.com/sirupsen/logrus"

	"logscan/pkg/errs"
)

const component = "ingest.source"

// SeekStrategy controls where a newly-opened Tail starts reading from.
type SeekStrategy string

const (
	SeekBeginning SeekStrategy = "beginning"
	SeekEnd       SeekStrategy = "end"
)

// Tail follows a file on disk, reopening it across log rotation, and
// emits each appended line.
type Tail struct {
	Path   string
	Seek   SeekStrategy
	Logger *logrus.Logger
}

func (t Tail) Lines(ctx context.Context) (<-chan string, error) {
	log := t.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	seek := &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	if t.Seek == SeekEnd {
		seek = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	tf, err := tail.TailFile(t.Path, tail.Config{
		Follow:   true,
		ReOpen:   true,
		Location: seek,
		Poll:     false,
		Logger:   tail.DiscardingLogger,
	})
	if err != nil {
		return nil, errs.Runtime(component, "Tail.Lines", "open tail file "+t.Path).Wrap(err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		defer tf.Cleanup()

		for {
			select {
			case <-ctx.Done():
				_ = tf.Stop()
				return
			case line, ok := <-tf.Lines:
				if !ok {
					if err := tf.Err(); err != nil {
						log.WithError(err).WithField("file", t.Path).Warn("tail ended with error")
					}
					return
				}
				if line.Err != nil {
					log.WithError(line.Err).WithField("file", t.Path).Warn("tail line error")
					continue
				}
				select {
				case <-ctx.Done():
					return
				case out <- line.Text:
				}
			}
		}
	}()

	return out, nil
}
