package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
	kafkainfra "github.com/soryxie/code-contests/internal/infra/kafka"
	"github.com/soryxie/code-contests/internal/infra/sqlite"
	"github.com/soryxie/code-contests/internal/ports"
)

var metricsAddrFlag string

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Run jobs consumed from Kafka and publish their results",
	Long: `Consume solution jobs from the configured Kafka topic, run each one and
publish the result envelope to the results topic. Results are also stored in
SQLite when storage.db_path is set.`,
	RunE: runConsume,
}

func init() {
	consumeCmd.Flags().StringVar(&metricsAddrFlag, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(consumeCmd)
}

func runConsume(cmd *cobra.Command, _ []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer, err := kafkainfra.NewConsumer(kafkainfra.Config{
		Brokers:  a.cfg.Kafka.Brokers,
		Topic:    a.cfg.Kafka.JobsTopic,
		GroupID:  a.cfg.Kafka.GroupID,
		Defaults: a.cfg.Options(),
	}, a.logger.Named("kafka"))
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "kafka consumer", consumer.Close)

	publisher, err := kafkainfra.NewPublisher(kafkainfra.PublisherConfig{
		Brokers: a.cfg.Kafka.Brokers,
		Topic:   a.cfg.Kafka.ResultsTopic,
	})
	if err != nil {
		return err
	}
	defer closeQuietly(a.logger, "kafka publisher", publisher.Close)

	var store ports.RunReportStore
	if a.cfg.Storage.DBPath != "" {
		sqliteStore, err := sqlite.Open(a.cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer closeQuietly(a.logger, "sqlite store", sqliteStore.Close)
		store = sqliteStore
	}

	if metricsAddrFlag != "" {
		srv := &http.Server{Addr: metricsAddrFlag, Handler: a.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	a.logger.Info("consuming jobs",
		zap.Strings("brokers", a.cfg.Kafka.Brokers),
		zap.String("topic", a.cfg.Kafka.JobsTopic),
		zap.Int("max_parallel", a.cfg.Runner.MaxParallelJobs),
	)

	return a.service.ExecuteFromProducer(ctx, consumer, a.cfg.Runner.MaxJobs, a.cfg.Runner.MaxParallelJobs,
		func(report execution.RunReport) {
			handleReport(ctx, a.logger, publisher, store, report)
		},
	)
}

func handleReport(ctx context.Context, logger *zap.Logger, publisher ports.RunReportPublisher, store ports.RunReportStore, report execution.RunReport) {
	fields := []zap.Field{zap.String("job_id", report.Job.ID)}
	if report.Err != nil {
		logger.Warn("job failed", append(fields, zap.Error(report.Err))...)
	} else {
		summary := report.Result.Summary()
		logger.Info("job finished", append(fields,
			zap.String("compilation", string(report.Result.Compilation.Status)),
			zap.Int("passed", summary.Passed),
			zap.Int("total", summary.Total),
		)...)
	}

	// Results are still delivered while shutting down.
	deliverCtx := context.WithoutCancel(ctx)
	if err := publisher.PublishRunReport(deliverCtx, report); err != nil {
		logger.Error("failed to publish result", append(fields, zap.Error(err))...)
	}
	if store != nil {
		if err := store.SaveRunReport(deliverCtx, report); err != nil {
			logger.Error("failed to store result", append(fields, zap.Error(err))...)
		}
	}
}

func closeQuietly(logger *zap.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("failed to close "+what, zap.Error(err))
	}
}
