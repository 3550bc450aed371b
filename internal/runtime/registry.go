package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

// ErrUnsupportedLanguage is returned when no module handles a solution's language.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Registry wires language modules into a single Engine implementation.
type Registry struct {
	mu      sync.RWMutex
	modules map[execution.Language]Module
}

// NewRegistry constructs a registry from the supplied modules.
func NewRegistry(mods ...Module) (*Registry, error) {
	reg := &Registry{
		modules: make(map[execution.Language]Module, len(mods)),
	}

	for _, module := range mods {
		if module == nil {
			return nil, fmt.Errorf("runtime module cannot be nil")
		}

		lang := module.Language()
		if lang == "" {
			return nil, fmt.Errorf("runtime module missing language identifier")
		}
		if _, exists := reg.modules[lang]; exists {
			return nil, fmt.Errorf("duplicate runtime module for language %q", lang)
		}

		reg.modules[lang] = module
	}

	if len(reg.modules) == 0 {
		return nil, fmt.Errorf("at least one runtime module must be registered")
	}

	return reg, nil
}

// Prepare dispatches the request to the module responsible for the solution's language.
func (r *Registry) Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
	module, err := r.moduleFor(solution.Language)
	if err != nil {
		return nil, nil, err
	}
	return module.Prepare(ctx, solution, limits)
}

// Languages lists the registered languages in lexical order.
func (r *Registry) Languages() []execution.Language {
	r.mu.RLock()
	defer r.mu.RUnlock()

	langs := make([]execution.Language, 0, len(r.modules))
	for lang := range r.modules {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Close releases resources held by each module.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for lang, module := range r.modules {
		if err := module.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", lang, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) moduleFor(lang execution.Language) (Module, error) {
	r.mu.RLock()
	module, ok := r.modules[lang]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no runtime module registered for %q", ErrUnsupportedLanguage, lang)
	}
	return module, nil
}
