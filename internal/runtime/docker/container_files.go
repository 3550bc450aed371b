package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

const (
	stopTimeout    = 5 * time.Second
	reapTimeout    = 15 * time.Second
	maxLogCapture  = 64 << 20
	killSignalName = "SIGKILL"
)

// maxArtifactBytes caps a build artifact copied out of the compile container.
const maxArtifactBytes = 512 << 20

type fileSpec struct {
	Name string
	Mode int64
	Data []byte
}

// copyFiles streams files into workdir as a tar archive.
func (c *containerEngine) copyFiles(ctx context.Context, containerID, workdir string, files []fileSpec) error {
	if len(files) == 0 {
		return nil
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeArchive(pw, files))
	}()

	err := c.cli.CopyToContainer(ctx, containerID, workdir, pr, types.CopyToContainerOptions{AllowOverwriteDirWithFile: true})
	// Unblocks the writer when the daemon stopped reading early.
	_ = pr.Close()
	if err != nil {
		return fmt.Errorf("copy %d file(s) to %s: %w", len(files), workdir, err)
	}
	return nil
}

func writeArchive(w io.Writer, files []fileSpec) error {
	tw := tar.NewWriter(w)
	modTime := time.Now()
	for _, file := range files {
		mode := file.Mode
		if mode == 0 {
			mode = 0o644
		}
		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     file.Name,
			Mode:     mode,
			Size:     int64(len(file.Data)),
			ModTime:  modTime,
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("archive %s: %w", file.Name, err)
		}
		if _, err := tw.Write(file.Data); err != nil {
			return fmt.Errorf("archive %s: %w", file.Name, err)
		}
	}
	return tw.Close()
}

// readArtifact copies a single regular file out of a container.
func (c *containerEngine) readArtifact(ctx context.Context, containerID, sourcePath string) ([]byte, error) {
	rc, _, err := c.cli.CopyFromContainer(ctx, containerID, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("copy %s from container: %w", sourcePath, err)
	}
	defer rc.Close()

	tr := tar.NewReader(rc)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: no regular file in container archive", sourcePath)
		}
		if err != nil {
			return nil, fmt.Errorf("read archive of %s: %w", sourcePath, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxArtifactBytes {
			return nil, fmt.Errorf("%s: artifact is %d bytes, limit is %d", sourcePath, header.Size, maxArtifactBytes)
		}
		return io.ReadAll(tr)
	}
}

// handleTimeLimit kills the container's process tree and reports a time limit
// result with whatever output was produced so far.
func (c *containerEngine) handleTimeLimit(containerID string, start time.Time) (*execution.Result, error) {
	stopCtx, cancelStop := context.WithTimeout(context.Background(), stopTimeout)
	defer cancelStop()

	immediate := 0
	if err := c.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Signal: killSignalName, Timeout: &immediate}); err != nil && !client.IsErrNotFound(err) {
		return nil, fmt.Errorf("stop container after time limit: %w", err)
	}
	duration := time.Since(start)

	waitCtx, cancelWait := context.WithTimeout(context.Background(), reapTimeout)
	defer cancelWait()

	status, waitErr := c.waitForExit(waitCtx, containerID)
	if waitErr != nil && !errors.Is(waitErr, context.DeadlineExceeded) && !client.IsErrNotFound(waitErr) {
		return nil, fmt.Errorf("wait for container after time limit: %w", waitErr)
	}

	output, err := c.fetchLogs(context.Background(), containerID)
	if err != nil {
		return nil, fmt.Errorf("fetch logs: %w", err)
	}

	exitCode := int64(-1)
	if status != nil {
		exitCode = status.StatusCode
	}

	c.logger.Debug("time limit exceeded", zap.String("container", shortID(containerID)), zap.Duration("elapsed", duration))

	return &execution.Result{
		Status:          execution.StatusTimeLimit,
		Stdout:          output.stdout,
		Stderr:          output.stderr,
		OutputTruncated: output.truncated,
		ExitCode:        exitCode,
		Duration:        duration,
	}, nil
}

func (c *containerEngine) waitForExit(ctx context.Context, containerID string) (*container.WaitResponse, error) {
	statusCh, errCh := c.cli.ContainerWait(ctx, containerID, container.WaitConditionNotRunning)
	select {
	case status := <-statusCh:
		if status.Error != nil {
			return nil, fmt.Errorf("container error: %s", status.Error.Message)
		}
		return &status, nil
	case err := <-errCh:
		return nil, fmt.Errorf("wait for container: %w", err)
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for container: %w", ctx.Err())
	}
}

// capturedOutput holds the demultiplexed streams of a container. truncated is
// set when the logs exceeded the capture limit.
type capturedOutput struct {
	stdout    string
	stderr    string
	truncated bool
}

func (c *containerEngine) fetchLogs(ctx context.Context, containerID string) (capturedOutput, error) {
	logs, err := c.cli.ContainerLogs(ctx, containerID, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return capturedOutput{}, err
	}
	defer logs.Close()

	limit := c.logCapture
	if limit <= 0 {
		limit = maxLogCapture
	}
	limited := &io.LimitedReader{R: logs, N: limit}

	var stdoutBuf, stderrBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdoutBuf, &stderrBuf, limited); err != nil {
		return capturedOutput{}, err
	}

	out := capturedOutput{stdout: stdoutBuf.String(), stderr: stderrBuf.String()}
	if limited.N <= 0 {
		var probe [1]byte
		if n, _ := io.ReadFull(logs, probe[:]); n > 0 {
			out.truncated = true
		}
	}
	return out, nil
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
