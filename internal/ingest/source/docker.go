package source

import (
	"bufio"
	"context"
	"io"
	"sync"

	dockertypes "github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/sirupsen/logrus"

	"logscan/pkg/errs"
)

// Docker streams a running container's stdout/stderr log, demultiplexed
// via stdcopy. Discovery of which containers to tail is a configuration
// concern, not this source's job.
type Docker struct {
	Client      *client.Client
	ContainerID string
	Follow      bool
	Logger      *logrus.Logger
}

func (d Docker) Lines(ctx context.Context) (<-chan string, error) {
	log := d.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	stream, err := d.Client.ContainerLogs(ctx, d.ContainerID, dockertypes.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     d.Follow,
	})
	if err != nil {
		return nil, errs.Runtime(component, "Docker.Lines", "open container log stream").Wrap(err)
	}

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()

	go func() {
		_, err := stdcopy.StdCopy(outW, errW, stream)
		outW.CloseWithError(err)
		errW.CloseWithError(err)
		stream.Close()
	}()

	out := make(chan string)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); scanInto(ctx, out, outR, log, d.ContainerID) }()
	go func() { defer wg.Done(); scanInto(ctx, out, errR, log, d.ContainerID) }()
	go func() {
		wg.Wait()
		close(out)
	}()

	return out, nil
}

func scanInto(ctx context.Context, out chan<- string, r io.Reader, log *logrus.Logger, containerID string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case out <- scanner.Text():
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).WithField("container", containerID).Warn("docker log scan error")
	}
}
