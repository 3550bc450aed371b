package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/httpapi"
	"github.com/soryxie/code-contests/internal/infra/sqlite"
)

var addrFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start an HTTP server that runs solutions on request.

Endpoints:
  POST /v1/runs               run a job (same body as a Kafka job message)
  GET  /v1/runs/{id}          fetch a stored run (needs storage.db_path)
  GET  /v1/runs?job_id={job}  list stored run ids of a job, newest first
  GET  /healthz               check the Docker daemon
  GET  /metrics               Prometheus metrics

Examples:
  judgebox serve
  judgebox serve --addr :9090`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&addrFlag, "addr", "", "Address to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := httpapi.Config{
		Executor: a.service,
		Defaults: a.cfg.Options(),
		Pinger:   a.engine,
		Metrics:  a.metrics,
		Logger:   a.logger.Named("http"),
	}
	if a.cfg.Storage.DBPath != "" {
		store, err := sqlite.Open(a.cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer closeQuietly(a.logger, "sqlite store", store.Close)
		cfg.Store = store
	}

	addr := a.cfg.HTTP.Addr
	if addrFlag != "" {
		addr = addrFlag
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpapi.New(cfg).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
