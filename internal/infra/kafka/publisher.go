package kafka

import (
	"context"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/ports"
)

var _ ports.RunReportPublisher = (*Publisher)(nil)

// Header keys set on every result message so consumers can route on them
// without decoding the payload.
const (
	HeaderLanguage    = "judgebox-language"
	HeaderCompilation = "judgebox-compilation"
	HeaderVerdict     = "judgebox-verdict"
)

// Verdicts carried in HeaderVerdict.
const (
	VerdictAccepted = "accepted"
	VerdictRejected = "rejected"
	VerdictError    = "error"
)

// PublisherConfig configures the Kafka result publisher.
type PublisherConfig struct {
	Brokers []string
	Topic   string
	// BatchTimeout bounds how long results are buffered before a write. Defaults to 10ms.
	BatchTimeout time.Duration
}

// Publisher writes result envelopes to Kafka, keyed by job ID so results of
// the same job land on one partition.
type Publisher struct {
	writer messageWriter
	now    func() time.Time
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker must be provided")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic must be provided")
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 10 * time.Millisecond
	}

	return newPublisher(&kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		AllowAutoTopicCreation: true,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		BatchTimeout:           cfg.BatchTimeout,
	}), nil
}

func newPublisher(writer messageWriter) *Publisher {
	return &Publisher{writer: writer, now: time.Now}
}

// PublishRunReport encodes report as a result envelope and writes it.
func (p *Publisher) PublishRunReport(ctx context.Context, report execution.RunReport) error {
	if p.writer == nil {
		return fmt.Errorf("publisher is not initialized")
	}

	payload, err := encodeRunReport(report)
	if err != nil {
		return err
	}

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	msg := kafkago.Message{
		Key:     []byte(report.Job.ID),
		Value:   payload,
		Headers: reportHeaders(report),
		Time:    now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

func reportHeaders(report execution.RunReport) []kafkago.Header {
	headers := []kafkago.Header{
		{Key: HeaderLanguage, Value: []byte(report.Job.Solution.Language)},
		{Key: HeaderVerdict, Value: []byte(verdict(report))},
	}
	if report.Result != nil {
		headers = append(headers, kafkago.Header{
			Key:   HeaderCompilation,
			Value: []byte(report.Result.Compilation.Status),
		})
	}
	return headers
}

func verdict(report execution.RunReport) string {
	switch {
	case report.Err != nil || report.Result == nil:
		return VerdictError
	case report.Result.AllPassed():
		return VerdictAccepted
	default:
		return VerdictRejected
	}
}
