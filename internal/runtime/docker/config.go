package docker

import (
	"time"

	"github.com/soryxie/code-contests/internal/domain/execution"
)

// Config describes how to create a Docker-backed runtime engine.
type Config struct {
	Languages     map[execution.Language]LanguageConfig
	DefaultLimits execution.RunLimits
	// CompileTimeout bounds the build step. Zero means no limit.
	CompileTimeout time.Duration
	Sandbox        SandboxConfig
}

// SandboxConfig hardens every container started by the engine.
type SandboxConfig struct {
	NanoCPUs     int64
	PidsLimit    int64
	AllowNetwork bool
	// ReadOnlyRootfs seals the root filesystem of run containers. The workdir
	// is backed by a volume and /tmp by a tmpfs so both stay writable.
	ReadOnlyRootfs bool
}

// LanguageConfig locates the toolchain for a single language.
//
// Languages without CompileCmd are interpreted: the source file is copied into
// every run container. Compiled languages build once and copy ArtifactFile instead.
type LanguageConfig struct {
	Image string
	// RunImage overrides Image for test runs.
	RunImage   string
	Workdir    string
	SourceFile string
	CompileCmd []string
	// ArtifactFile is produced by CompileCmd inside Workdir.
	ArtifactFile string
	RunCmd       []string
	// LibraryPaths are exported through LibraryPathEnv, joined with ':'.
	LibraryPaths   []string
	LibraryPathEnv string
	Env            []string
}

// Compiled reports whether the language needs a build step.
func (c LanguageConfig) Compiled() bool {
	return len(c.CompileCmd) > 0
}
