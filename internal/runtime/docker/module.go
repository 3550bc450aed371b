package docker

import (
	"context"
	"fmt"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
	runtimex "github.com/soryxie/code-contests/internal/runtime"
)

// module prepares solutions for one language. Interpreted and compiled languages
// share the same code path and differ only in their LanguageConfig.
type module struct {
	runtime *languageRuntime
}

func newModule(lang execution.Language, cfg LanguageConfig, engine *containerEngine) (runtimex.Module, error) {
	runtime, err := newLanguageRuntime(lang, cfg, engine)
	if err != nil {
		return nil, err
	}
	return &module{runtime: runtime}, nil
}

func (m *module) Language() execution.Language {
	return m.runtime.language
}

func (m *module) Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
	if solution.Language != m.runtime.language {
		return nil, nil, fmt.Errorf("docker runtime: solution language %q does not match module %q", solution.Language, m.runtime.language)
	}

	if err := m.runtime.ensureImage(ctx); err != nil {
		return nil, nil, err
	}

	runLimits := m.runtime.engine.effectiveLimits(limits)
	cfg := m.runtime.config

	if !cfg.Compiled() {
		return &preparedSolution{
			runtime: m.runtime,
			limits:  runLimits,
			files: []fileSpec{{
				Name: cfg.SourceFile,
				Mode: 0o644,
				Data: []byte(solution.Source),
			}},
		}, nil, nil
	}

	artifact, build, err := m.runtime.engine.compile(ctx, m.runtime, solution.Source)
	if err != nil || build != nil {
		return nil, build, err
	}

	return &preparedSolution{
		runtime: m.runtime,
		limits:  runLimits,
		files: []fileSpec{{
			Name: cfg.ArtifactFile,
			Mode: 0o755,
			Data: artifact,
		}},
	}, nil, nil
}

func (m *module) Close() error {
	return nil
}

// preparedSolution runs the solution's files in a fresh container per call.
type preparedSolution struct {
	runtime *languageRuntime
	limits  execution.RunLimits
	files   []fileSpec
}

func (p *preparedSolution) Run(ctx context.Context, stdin string) (*execution.Result, error) {
	return p.runtime.engine.runProgram(ctx, p.runtime, p.limits, p.runtime.config.RunCmd, p.files, stdin)
}

func (p *preparedSolution) Close() error {
	return nil
}
