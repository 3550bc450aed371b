package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/app/executor"
	"github.com/soryxie/code-contests/internal/config"
	"github.com/soryxie/code-contests/internal/logging"
	"github.com/soryxie/code-contests/internal/metrics"
	"github.com/soryxie/code-contests/internal/runtime/docker"
)

// app holds the collaborators shared by every subcommand that runs solutions.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	engine  *docker.Engine
	metrics *metrics.Recorder
	service *executor.Service
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevelFlag != "" {
		cfg.Log.Level = logLevelFlag
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func setup() (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dockerCfg, err := cfg.Docker()
	if err != nil {
		return nil, fmt.Errorf("docker config: %w", err)
	}
	engine, err := docker.New(dockerCfg, logger.Named("docker"))
	if err != nil {
		return nil, fmt.Errorf("initializing docker engine: %w", err)
	}

	recorder := metrics.New()
	harness := executor.NewHarness(engine,
		executor.WithLogger(logger.Named("harness")),
		executor.WithObserver(recorder),
	)

	return &app{
		cfg:     cfg,
		logger:  logger,
		engine:  engine,
		metrics: recorder,
		service: executor.NewService(harness, logger.Named("executor")),
	}, nil
}

func (a *app) Close() {
	if err := a.service.Close(); err != nil {
		a.logger.Warn("failed to close runtime", zap.Error(err))
	}
	_ = a.logger.Sync()
}
