// Package config loads judgebox settings from judgebox.yaml and JUDGEBOX_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/runtime/docker"
)

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RunnerConfig struct {
	PoolSize           int           `mapstructure:"pool_size"`
	StopOnFirstFailure bool          `mapstructure:"stop_on_first_failure"`
	TimeLimit          time.Duration `mapstructure:"time_limit"`
	MemoryLimitBytes   int64         `mapstructure:"memory_limit_bytes"`
	Comparator         string        `mapstructure:"comparator"`
	CompileTimeout     time.Duration `mapstructure:"compile_timeout"`
	MaxParallelJobs    int           `mapstructure:"max_parallel_jobs"`
	MaxJobs            int           `mapstructure:"max_jobs"`
}

type SandboxConfig struct {
	NanoCPUs       int64 `mapstructure:"nano_cpus"`
	PidsLimit      int64 `mapstructure:"pids_limit"`
	AllowNetwork   bool  `mapstructure:"allow_network"`
	ReadOnlyRootfs bool  `mapstructure:"read_only_rootfs"`
}

// LanguageConfig overrides fields of a built-in language runtime. Empty fields
// keep the built-in value.
type LanguageConfig struct {
	Image        string   `mapstructure:"image"`
	RunImage     string   `mapstructure:"run_image"`
	Workdir      string   `mapstructure:"workdir"`
	SourceFile   string   `mapstructure:"source_file"`
	CompileCmd   []string `mapstructure:"compile_cmd"`
	ArtifactFile string   `mapstructure:"artifact_file"`
	RunCmd       []string `mapstructure:"run_cmd"`
	LibraryPaths []string `mapstructure:"library_paths"`
	Env          []string `mapstructure:"env"`
}

type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	JobsTopic    string   `mapstructure:"jobs_topic"`
	ResultsTopic string   `mapstructure:"results_topic"`
	GroupID      string   `mapstructure:"group_id"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

type Config struct {
	Log       LogConfig                 `mapstructure:"log"`
	Runner    RunnerConfig              `mapstructure:"runner"`
	Sandbox   SandboxConfig             `mapstructure:"sandbox"`
	Enabled   []string                  `mapstructure:"languages_enabled"`
	Languages map[string]LanguageConfig `mapstructure:"languages"`
	Kafka     KafkaConfig               `mapstructure:"kafka"`
	Storage   StorageConfig             `mapstructure:"storage"`
	HTTP      HTTPConfig                `mapstructure:"http"`
}

// Load reads configuration. An explicit path must exist; otherwise judgebox.yaml
// is looked up in the working directory and $HOME/.judgebox and may be absent.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("judgebox")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.judgebox")
	}

	v.SetEnvPrefix("JUDGEBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Kafka.Brokers = parseBrokerList(c.Kafka.Brokers)
	if c.Runner.MaxParallelJobs <= 0 {
		c.Runner.MaxParallelJobs = 1
	}
	if c.Runner.MaxJobs < 0 {
		c.Runner.MaxJobs = 0
	}
}

// parseBrokerList accepts both YAML lists and comma separated env values.
func parseBrokerList(raw []string) []string {
	var brokers []string
	for _, entry := range raw {
		for _, part := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				brokers = append(brokers, trimmed)
			}
		}
	}
	return brokers
}

func setDefaults(v *viper.Viper) {
	defaults := execution.DefaultOptions()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("runner.pool_size", defaults.PoolSize)
	v.SetDefault("runner.stop_on_first_failure", defaults.StopOnFirstFailure)
	v.SetDefault("runner.time_limit", 10*time.Second)
	v.SetDefault("runner.memory_limit_bytes", int64(256<<20))
	v.SetDefault("runner.comparator", "exact")
	v.SetDefault("runner.compile_timeout", time.Minute)
	v.SetDefault("runner.max_parallel_jobs", 1)
	v.SetDefault("runner.max_jobs", 0)

	v.SetDefault("sandbox.nano_cpus", int64(1_000_000_000))
	v.SetDefault("sandbox.pids_limit", int64(64))
	v.SetDefault("sandbox.allow_network", false)
	v.SetDefault("sandbox.read_only_rootfs", true)

	v.SetDefault("kafka.brokers", []string{"kafka:9092"})
	v.SetDefault("kafka.jobs_topic", "jobs")
	v.SetDefault("kafka.results_topic", "run-results")
	v.SetDefault("kafka.group_id", "judgebox-runner")

	v.SetDefault("storage.db_path", "")
	v.SetDefault("http.addr", ":8080")
}

// Options returns the harness options used when a job does not override them.
func (c *Config) Options() execution.Options {
	return execution.Options{
		PoolSize:           c.Runner.PoolSize,
		StopOnFirstFailure: c.Runner.StopOnFirstFailure,
		TimeLimit:          c.Runner.TimeLimit,
		MemoryLimitBytes:   c.Runner.MemoryLimitBytes,
		Comparator:         c.Runner.Comparator,
	}
}

// Docker merges the configured overrides onto the built-in language catalogue.
// When languages_enabled is set only those languages are registered.
func (c *Config) Docker() (docker.Config, error) {
	overrides := make(map[execution.Language]LanguageConfig, len(c.Languages))
	for raw, override := range c.Languages {
		lang, err := execution.ParseLanguage(raw)
		if err != nil {
			return docker.Config{}, fmt.Errorf("languages: %w", err)
		}
		overrides[lang] = override
	}

	builtin := docker.DefaultLanguages()
	selected := make([]execution.Language, 0, len(builtin))
	if len(c.Enabled) == 0 {
		for lang := range builtin {
			selected = append(selected, lang)
		}
	} else {
		for _, raw := range c.Enabled {
			lang, err := execution.ParseLanguage(raw)
			if err != nil {
				return docker.Config{}, fmt.Errorf("languages_enabled: %w", err)
			}
			_, known := builtin[lang]
			_, custom := overrides[lang]
			if !known && !custom {
				return docker.Config{}, fmt.Errorf("languages_enabled: no runtime for %q", lang)
			}
			selected = append(selected, lang)
		}
	}

	languages := make(map[execution.Language]docker.LanguageConfig, len(selected))
	for _, lang := range selected {
		cfg := builtin[lang]
		if override, ok := overrides[lang]; ok {
			cfg = override.apply(cfg)
		}
		languages[lang] = cfg
	}

	return docker.Config{
		Languages: languages,
		DefaultLimits: execution.RunLimits{
			TimeLimit:        c.Runner.TimeLimit,
			MemoryLimitBytes: c.Runner.MemoryLimitBytes,
		},
		CompileTimeout: c.Runner.CompileTimeout,
		Sandbox: docker.SandboxConfig{
			NanoCPUs:       c.Sandbox.NanoCPUs,
			PidsLimit:      c.Sandbox.PidsLimit,
			AllowNetwork:   c.Sandbox.AllowNetwork,
			ReadOnlyRootfs: c.Sandbox.ReadOnlyRootfs,
		},
	}, nil
}

func (o LanguageConfig) apply(base docker.LanguageConfig) docker.LanguageConfig {
	if o.Image != "" {
		base.Image = o.Image
	}
	if o.RunImage != "" {
		base.RunImage = o.RunImage
	}
	if o.Workdir != "" {
		base.Workdir = o.Workdir
	}
	if o.SourceFile != "" {
		base.SourceFile = o.SourceFile
	}
	if len(o.CompileCmd) > 0 {
		base.CompileCmd = o.CompileCmd
	}
	if o.ArtifactFile != "" {
		base.ArtifactFile = o.ArtifactFile
	}
	if len(o.RunCmd) > 0 {
		base.RunCmd = o.RunCmd
	}
	if len(o.LibraryPaths) > 0 {
		base.LibraryPaths = o.LibraryPaths
	}
	if len(o.Env) > 0 {
		base.Env = o.Env
	}
	return base
}
