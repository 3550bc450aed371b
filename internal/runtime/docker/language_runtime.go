package docker

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

type languageRuntime struct {
	language execution.Language
	config   LanguageConfig
	engine   *containerEngine

	pullOnce sync.Once
	pullErr  error
}

func newLanguageRuntime(lang execution.Language, cfg LanguageConfig, engine *containerEngine) (*languageRuntime, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("docker runtime: language %q missing image configuration", lang)
	}
	if cfg.SourceFile == "" {
		return nil, fmt.Errorf("docker runtime: language %q missing source file name", lang)
	}
	if len(cfg.RunCmd) == 0 {
		return nil, fmt.Errorf("docker runtime: language %q missing run command", lang)
	}
	if cfg.Compiled() && cfg.ArtifactFile == "" {
		return nil, fmt.Errorf("docker runtime: compiled language %q missing artifact file", lang)
	}
	if cfg.Workdir == "" {
		cfg.Workdir = defaultWorkdir
	}
	if cfg.RunImage == "" {
		cfg.RunImage = cfg.Image
	}
	return &languageRuntime{
		language: lang,
		config:   cfg,
		engine:   engine,
	}, nil
}

func (l *languageRuntime) ensureImage(ctx context.Context) error {
	l.pullOnce.Do(func() {
		if err := l.engine.ensureImage(ctx, l.config.Image); err != nil {
			l.pullErr = err
			return
		}
		if l.config.RunImage != l.config.Image {
			if err := l.engine.ensureImage(ctx, l.config.RunImage); err != nil {
				l.pullErr = err
				return
			}
		}
	})
	return l.pullErr
}

// runImage returns the image used for test runs.
func (l *languageRuntime) runImage() string {
	if l.config.RunImage != "" {
		return l.config.RunImage
	}
	return l.config.Image
}

func (l *languageRuntime) env() []string {
	env := append([]string(nil), l.config.Env...)
	if l.config.LibraryPathEnv != "" && len(l.config.LibraryPaths) > 0 {
		env = append(env, l.config.LibraryPathEnv+"="+strings.Join(l.config.LibraryPaths, ":"))
	}
	return env
}
