package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

type stubModule struct {
	lang     execution.Language
	prepared int
	closeErr error
	closed   bool
}

func (m *stubModule) Language() execution.Language { return m.lang }

func (m *stubModule) Prepare(ctx context.Context, solution execution.Solution, limits execution.RunLimits) (ports.PreparedSolution, *execution.Result, error) {
	m.prepared++
	return nil, &execution.Result{Status: execution.StatusBuildFail}, nil
}

func (m *stubModule) Close() error {
	m.closed = true
	return m.closeErr
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(); err == nil {
		t.Fatalf("expected error for empty registry")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatalf("expected error for nil module")
	}
	if _, err := NewRegistry(&stubModule{}); err == nil {
		t.Fatalf("expected error for module without language")
	}
	if _, err := NewRegistry(&stubModule{lang: execution.LanguageCPP}, &stubModule{lang: execution.LanguageCPP}); err == nil {
		t.Fatalf("expected error for duplicate module")
	}
}

func TestRegistryDispatchesByLanguage(t *testing.T) {
	t.Parallel()

	python := &stubModule{lang: execution.LanguagePython3}
	cpp := &stubModule{lang: execution.LanguageCPP}
	reg, err := NewRegistry(python, cpp)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	_, build, err := reg.Prepare(context.Background(), execution.Solution{Language: execution.LanguageCPP}, execution.RunLimits{})
	if err != nil {
		t.Fatalf("Prepare returned error: %v", err)
	}
	if build == nil || build.Status != execution.StatusBuildFail {
		t.Fatalf("expected build result from module, got %#v", build)
	}
	if cpp.prepared != 1 || python.prepared != 0 {
		t.Fatalf("unexpected dispatch counts cpp=%d python=%d", cpp.prepared, python.prepared)
	}

	_, _, err = reg.Prepare(context.Background(), execution.Solution{Language: execution.LanguageJava}, execution.RunLimits{})
	if !errors.Is(err, ErrUnsupportedLanguage) {
		t.Fatalf("expected ErrUnsupportedLanguage, got %v", err)
	}

	langs := reg.Languages()
	if len(langs) != 2 || langs[0] != execution.LanguageCPP || langs[1] != execution.LanguagePython3 {
		t.Fatalf("unexpected languages %v", langs)
	}
}

func TestRegistryCloseJoinsErrors(t *testing.T) {
	t.Parallel()

	closeErr := errors.New("boom")
	failing := &stubModule{lang: execution.LanguageGo, closeErr: closeErr}
	ok := &stubModule{lang: execution.LanguageC}
	reg, err := NewRegistry(failing, ok)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	if err := reg.Close(); !errors.Is(err, closeErr) {
		t.Fatalf("expected joined close error, got %v", err)
	}
	if !failing.closed || !ok.closed {
		t.Fatalf("expected every module to be closed")
	}
}
