package docker

import (
	"context"
	"errors"
	"fmt"

	"github.com/docker/docker/client"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
	runtimex "github.com/soryxie/code-contests/internal/runtime"
)

// ErrDockerUnavailable is returned when the Docker daemon cannot be reached.
var ErrDockerUnavailable = errors.New("docker daemon unreachable")

// Engine implements runtime.Engine backed by Docker containers.
type Engine struct {
	registry *runtimex.Registry
	client   dockerClient
}

var _ runtimex.Engine = (*Engine)(nil)

// New constructs an Engine using the supplied configuration.
func New(cfg Config, logger *zap.Logger) (*Engine, error) {
	if len(cfg.Languages) == 0 {
		return nil, fmt.Errorf("docker runtime: at least one language must be configured")
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker runtime: create client: %w", translateDockerErr(err))
	}

	engine, err := newEngineWithClient(cli, cfg, logger)
	if err != nil {
		_ = cli.Close()
		return nil, err
	}

	return engine, nil
}

// Prepare delegates to the underlying registry.
func (e *Engine) Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
	return e.registry.Prepare(ctx, solution, limits)
}

// Ping checks that the Docker daemon is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if _, err := e.client.Ping(ctx); err != nil {
		return translateDockerErr(err)
	}
	return nil
}

// Languages lists the configured languages.
func (e *Engine) Languages() []execution.Language {
	return e.registry.Languages()
}

// Close releases module resources and the Docker client.
func (e *Engine) Close() error {
	var errs []error
	if err := e.registry.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("docker client: %w", err))
	}
	return errors.Join(errs...)
}

func newEngineWithClient(cli dockerClient, cfg Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	env := newContainerEngine(cli, cfg, logger)

	modules := make([]runtimex.Module, 0, len(cfg.Languages))
	for lang, langCfg := range cfg.Languages {
		module, err := newModule(lang, langCfg, env)
		if err != nil {
			return nil, err
		}
		modules = append(modules, module)
	}

	registry, err := runtimex.NewRegistry(modules...)
	if err != nil {
		return nil, err
	}

	return &Engine{
		registry: registry,
		client:   cli,
	}, nil
}

func translateDockerErr(err error) error {
	if err == nil {
		return nil
	}
	if client.IsErrConnectionFailed(err) {
		return fmt.Errorf("%w: %v", ErrDockerUnavailable, err)
	}
	return err
}
