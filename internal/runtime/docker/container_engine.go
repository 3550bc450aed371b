package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	typesimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

const (
	defaultNanoCPUs = 1_000_000_000
	runTmpfsOptions = "rw,nosuid,size=64m"
	// stdinDrainGrace bounds how long an exited program's stdin writer may linger.
	stdinDrainGrace = 2 * time.Second
)

type containerEngine struct {
	cli            dockerClient
	defaultLimits  execution.RunLimits
	compileTimeout time.Duration
	sandbox        SandboxConfig
	logger         *zap.Logger
	// logCapture caps the bytes read from container logs; zero means maxLogCapture.
	logCapture int64
}

func newContainerEngine(cli dockerClient, cfg Config, logger *zap.Logger) *containerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	sandbox := cfg.Sandbox
	if sandbox.NanoCPUs <= 0 {
		sandbox.NanoCPUs = defaultNanoCPUs
	}
	compileTimeout := cfg.CompileTimeout
	if compileTimeout < 0 {
		compileTimeout = 0
	}
	return &containerEngine{
		cli:            cli,
		defaultLimits:  normalizeLimits(cfg.DefaultLimits),
		compileTimeout: compileTimeout,
		sandbox:        sandbox,
		logger:         logger,
	}
}

// ensureImage pulls ref unless it is already present locally.
func (c *containerEngine) ensureImage(ctx context.Context, ref string) error {
	_, _, err := c.cli.ImageInspectWithRaw(ctx, ref)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image %s: %w", ref, translateDockerErr(err))
	}
	return c.pullImage(ctx, ref)
}

func (c *containerEngine) pullImage(ctx context.Context, ref string) error {
	start := time.Now()
	reader, err := c.cli.ImagePull(ctx, ref, typesimage.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", ref, translateDockerErr(err))
	}
	defer reader.Close()
	_, err = io.Copy(io.Discard, reader)
	if err != nil {
		return fmt.Errorf("consume pull output for %s: %w", ref, err)
	}
	c.logger.Debug("pulled image", zap.String("image", ref), zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *containerEngine) effectiveLimits(request execution.RunLimits) execution.RunLimits {
	return request.Over(c.defaultLimits)
}

// runProgram executes command in a fresh container and always removes it afterwards.
func (c *containerEngine) runProgram(
	ctx context.Context,
	runtime *languageRuntime,
	limits execution.RunLimits,
	command []string,
	files []fileSpec,
	stdin string,
) (*execution.Result, error) {
	containerID, cleanup, err := c.createContainer(ctx, runtime, runtime.runImage(), limits, command, true)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	if err := c.copyFiles(ctx, containerID, runtime.config.Workdir, files); err != nil {
		return nil, fmt.Errorf("copy files: %w", err)
	}

	attachCtx := ctx
	if attachCtx.Err() != nil {
		attachCtx = context.Background()
	}
	attach, err := c.cli.ContainerAttach(attachCtx, containerID, container.AttachOptions{
		Stream: true,
		Stdin:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("attach container: %w", err)
	}
	var closeOnce sync.Once
	closeAttach := func() {
		if attach.Conn != nil {
			closeOnce.Do(attach.Close)
		}
	}
	defer closeAttach()

	start := time.Now()
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}

	// stdin is fed concurrently so a program that never reads it still runs
	// under the time limit. Closing the attach conn unblocks the writer.
	stdinDone := make(chan error, 1)
	go func() {
		stdinDone <- writeStdin(attach, stdin)
	}()

	status, err := c.waitWithLimit(ctx, containerID, limits.TimeLimit)
	if err != nil {
		closeAttach()
		c.logStdinError(containerID, <-stdinDone)
		if errors.Is(err, context.DeadlineExceeded) && limits.TimeLimit > 0 && ctx.Err() == nil {
			return c.handleTimeLimit(containerID, start)
		}
		return nil, err
	}
	duration := time.Since(start)

	select {
	case stdinErr := <-stdinDone:
		c.logStdinError(containerID, stdinErr)
	case <-time.After(stdinDrainGrace):
		closeAttach()
		c.logStdinError(containerID, <-stdinDone)
	}

	output, oomKilled, err := c.collect(ctx, containerID)
	if err != nil {
		return nil, err
	}

	result := &execution.Result{
		Status:          execution.StatusOK,
		Stdout:          output.stdout,
		Stderr:          output.stderr,
		OutputTruncated: output.truncated,
		ExitCode:        status.StatusCode,
		Duration:        duration,
	}
	if oomKilled {
		result.Status = execution.StatusMemoryLimit
	}

	return result, nil
}

// compile builds source into the language's artifact. A non-nil result reports a
// build failure carrying the toolchain diagnostics.
func (c *containerEngine) compile(ctx context.Context, runtime *languageRuntime, source string) ([]byte, *execution.Result, error) {
	cfg := runtime.config
	buildLimits := execution.RunLimits{TimeLimit: c.compileTimeout}

	containerID, cleanup, err := c.createContainer(ctx, runtime, cfg.Image, buildLimits, cfg.CompileCmd, false)
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	if err := c.copyFiles(ctx, containerID, cfg.Workdir, []fileSpec{
		{
			Name: cfg.SourceFile,
			Mode: 0o644,
			Data: []byte(source),
		},
	}); err != nil {
		return nil, nil, fmt.Errorf("copy source: %w", err)
	}

	start := time.Now()
	if err := c.cli.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return nil, nil, fmt.Errorf("start container: %w", err)
	}

	status, err := c.waitWithLimit(ctx, containerID, buildLimits.TimeLimit)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && buildLimits.TimeLimit > 0 && ctx.Err() == nil {
			result, handleErr := c.handleTimeLimit(containerID, start)
			if handleErr != nil {
				return nil, nil, handleErr
			}
			return nil, result, nil
		}
		return nil, nil, err
	}
	duration := time.Since(start)

	output, oomKilled, err := c.collect(ctx, containerID)
	if err != nil {
		return nil, nil, err
	}

	if oomKilled || status.StatusCode != 0 {
		build := &execution.Result{
			Status:          execution.StatusBuildFail,
			Stdout:          output.stdout,
			Stderr:          output.stderr,
			OutputTruncated: output.truncated,
			ExitCode:        status.StatusCode,
			Duration:        duration,
		}
		if oomKilled {
			build.Status = execution.StatusMemoryLimit
		}
		c.logger.Debug("compilation failed",
			zap.String("language", string(runtime.language)),
			zap.Int64("exit_code", status.StatusCode),
			zap.Duration("elapsed", duration),
		)
		return nil, build, nil
	}

	artifactPath := strings.TrimSuffix(cfg.Workdir, "/") + "/" + cfg.ArtifactFile
	artifact, err := c.readArtifact(ctx, containerID, artifactPath)
	if err != nil {
		return nil, nil, fmt.Errorf("extract compiled artifact: %w", err)
	}

	c.logger.Debug("compiled solution",
		zap.String("language", string(runtime.language)),
		zap.Int("artifact_bytes", len(artifact)),
		zap.Duration("elapsed", duration),
	)
	return artifact, nil, nil
}

func (c *containerEngine) createContainer(ctx context.Context, runtime *languageRuntime, image string, limits execution.RunLimits, cmd []string, attachStdin bool) (string, func(), error) {
	hostConfig := &container.HostConfig{
		CapDrop:     []string{"ALL"},
		SecurityOpt: []string{"no-new-privileges"},
		Resources: container.Resources{
			NanoCPUs: c.sandbox.NanoCPUs,
		},
	}
	if !c.sandbox.AllowNetwork {
		hostConfig.NetworkMode = "none"
	}
	if c.sandbox.PidsLimit > 0 {
		pids := c.sandbox.PidsLimit
		hostConfig.Resources.PidsLimit = &pids
	}
	if limits.MemoryLimitBytes > 0 {
		hostConfig.Resources.Memory = limits.MemoryLimitBytes
		hostConfig.Resources.MemorySwap = limits.MemoryLimitBytes
	}
	// Only run containers are sealed; compilers write to HOME and build caches.
	sealed := attachStdin && c.sandbox.ReadOnlyRootfs
	if sealed {
		hostConfig.ReadonlyRootfs = true
		hostConfig.Mounts = []mount.Mount{{Type: mount.TypeVolume, Target: runtime.config.Workdir}}
		hostConfig.Tmpfs = map[string]string{"/tmp": runTmpfsOptions}
	}

	resp, err := c.cli.ContainerCreate(
		ctx,
		&container.Config{
			Image:           image,
			Cmd:             cmd,
			Env:             runtime.env(),
			AttachStdout:    true,
			AttachStderr:    true,
			AttachStdin:     attachStdin,
			OpenStdin:       attachStdin,
			StdinOnce:       attachStdin,
			WorkingDir:      runtime.config.Workdir,
			NetworkDisabled: !c.sandbox.AllowNetwork,
		},
		hostConfig,
		nil,
		nil,
		"",
	)
	if err != nil {
		return "", nil, fmt.Errorf("create container: %w", translateDockerErr(err))
	}

	cleanup := func() {
		_ = c.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true, RemoveVolumes: sealed})
	}

	return resp.ID, cleanup, nil
}

func (c *containerEngine) waitWithLimit(ctx context.Context, containerID string, limit time.Duration) (*container.WaitResponse, error) {
	waitCtx := ctx
	var cancel context.CancelFunc
	if limit > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, limit)
	}
	status, err := c.waitForExit(waitCtx, containerID)
	if cancel != nil {
		cancel()
	}
	return status, err
}

// collect reads the exit state and captured streams of a stopped container.
func (c *containerEngine) collect(ctx context.Context, containerID string) (capturedOutput, bool, error) {
	readCtx := ctx
	if readCtx.Err() != nil {
		readCtx = context.Background()
	}

	inspect, err := c.cli.ContainerInspect(readCtx, containerID)
	if err != nil {
		return capturedOutput{}, false, fmt.Errorf("inspect container: %w", err)
	}

	output, err := c.fetchLogs(readCtx, containerID)
	if err != nil {
		return capturedOutput{}, false, fmt.Errorf("fetch logs: %w", err)
	}

	oomKilled := false
	if inspect.ContainerJSONBase != nil && inspect.State != nil {
		oomKilled = inspect.State.OOMKilled
	}
	return output, oomKilled, nil
}

func writeStdin(attach types.HijackedResponse, stdin string) error {
	if attach.Conn == nil {
		return nil
	}
	if _, err := io.Copy(attach.Conn, strings.NewReader(stdin)); err != nil {
		return fmt.Errorf("write stdin: %w", err)
	}
	if closer, ok := attach.Conn.(interface{ CloseWrite() error }); ok {
		_ = closer.CloseWrite()
	}
	return nil
}

// logStdinError records a failed stdin write. A program may exit or be killed
// before consuming its input, so the run itself is not failed.
func (c *containerEngine) logStdinError(containerID string, err error) {
	if err != nil {
		c.logger.Debug("stdin not fully delivered", zap.String("container", shortID(containerID)), zap.Error(err))
	}
}

func normalizeLimits(l execution.RunLimits) execution.RunLimits {
	if l.TimeLimit < 0 {
		l.TimeLimit = 0
	}
	if l.MemoryLimitBytes < 0 {
		l.MemoryLimitBytes = 0
	}
	return l
}
