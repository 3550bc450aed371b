package kafka

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
	"github.com/soryxie/code-contests/internal/wire"
)

// Config describes how to connect to a Kafka cluster for consuming jobs.
type Config struct {
	Brokers  []string
	Topic    string
	GroupID  string
	MinBytes int
	MaxBytes int
	MaxWait  time.Duration
	// Defaults fill in options a job message leaves out.
	Defaults execution.Options
}

var _ ports.JobProducer = (*Consumer)(nil)

// Consumer wraps a kafka-go reader to implement ports.JobProducer.
type Consumer struct {
	reader   messageReader
	defaults execution.Options
	logger   *zap.Logger
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	Close() error
}

// NewConsumer builds a new Consumer from the provided configuration.
func NewConsumer(cfg Config, logger *zap.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}
	if cfg.GroupID == "" {
		cfg.GroupID = "judgebox-runner"
	}

	readerConfig := kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
		MaxWait:  cfg.MaxWait,
	}

	if readerConfig.MinBytes == 0 {
		readerConfig.MinBytes = 1
	}
	if readerConfig.MaxBytes == 0 {
		readerConfig.MaxBytes = 10 * 1024 * 1024
	}
	if readerConfig.MaxWait == 0 {
		readerConfig.MaxWait = time.Second
	}

	return newConsumer(kafkago.NewReader(readerConfig), cfg.Defaults, logger), nil
}

func newConsumer(reader messageReader, defaults execution.Options, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.PoolSize <= 0 {
		defaults = execution.DefaultOptions()
	}
	return &Consumer{reader: reader, defaults: defaults, logger: logger}
}

// NextJob blocks until the next valid job message is available in Kafka or the
// context is cancelled. Messages that do not describe a valid job are logged and
// skipped so one bad submission cannot stall the topic.
func (c *Consumer) NextJob(ctx context.Context) (execution.Job, error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return execution.Job{}, err
		}

		job, err := decodeJobMessage(msg, c.defaults)
		if errors.Is(err, wire.ErrInvalidJob) {
			c.logger.Warn("dropping invalid job message",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
			continue
		}
		return job, err
	}
}

// Close releases the underlying Kafka reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
