package kafka

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/soryxie/code-contests/internal/domain/execution"
	"github.com/soryxie/code-contests/internal/wire"
)

const (
	messageTypeJob  = "job"
	messageTypeDone = "done"
)

func decodeJobMessage(msg kafkago.Message, defaults execution.Options) (execution.Job, error) {
	var envelope wire.JobEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return execution.Job{}, fmt.Errorf("decode message: %w", err)
	}

	msgType := envelope.Type
	if msgType == "" {
		msgType = messageTypeJob
	}

	switch msgType {
	case messageTypeJob:
		return envelope.ToJob(defaults, messageID(msg))
	case messageTypeDone:
		return execution.Job{}, io.EOF
	default:
		return execution.Job{}, fmt.Errorf("unknown message type %q", msgType)
	}
}

// messageID identifies a job that did not name itself: the key, or else its
// position in the log.
func messageID(msg kafkago.Message) string {
	if len(msg.Key) > 0 {
		return string(msg.Key)
	}
	return fmt.Sprintf("%s:%d:%d", msg.Topic, msg.Partition, msg.Offset)
}

func encodeRunReport(report execution.RunReport) ([]byte, error) {
	payload, err := json.Marshal(wire.NewResultEnvelope(report, time.Now()))
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return payload, nil
}
