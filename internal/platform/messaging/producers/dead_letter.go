package producers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trading-account-engine/internal/config"
)

// Dead letter reasons
const (
	ReasonUndecodable  = "undecodable"
	ReasonInvalidEvent = "invalid_event"
)

// Header keys set on every dead letter
const (
	HeaderReason      = "dlq-reason"
	HeaderSourceTopic = "dlq-source-topic"
	HeaderError       = "dlq-error"
)

// ErrDLQDisabled is returned when publishing through a producer that was never initialized
var ErrDLQDisabled = errors.New("DLQ producer not initialized")

// DeadLetter is a consumed message the processor gave up on
type DeadLetter struct {
	SourceTopic string
	Key         []byte
	Value       []byte
	Reason      string
	Cause       error
}

type deadLetterEnvelope struct {
	SourceTopic   string          `json:"source_topic"`
	OriginalKey   string          `json:"original_key"`
	OriginalValue json.RawMessage `json:"original_value,omitempty"`
	RawValue      string          `json:"raw_value,omitempty"`
	Reason        string          `json:"reason"`
	Error         string          `json:"error,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (l DeadLetter) envelope(now time.Time) deadLetterEnvelope {
	env := deadLetterEnvelope{
		SourceTopic: l.SourceTopic,
		OriginalKey: string(l.Key),
		Reason:      l.Reason,
		Timestamp:   now.UTC(),
	}
	// Keep valid JSON inline so the letter stays queryable
	if json.Valid(l.Value) {
		env.OriginalValue = l.Value
	} else {
		env.RawValue = string(l.Value)
	}
	if l.Cause != nil {
		env.Error = l.Cause.Error()
	}
	return env
}

func (l DeadLetter) headers() []kafka.Header {
	headers := []kafka.Header{
		{Key: HeaderReason, Value: []byte(l.Reason)},
		{Key: HeaderSourceTopic, Value: []byte(l.SourceTopic)},
	}
	if l.Cause != nil {
		headers = append(headers, kafka.Header{Key: HeaderError, Value: []byte(l.Cause.Error())})
	}
	return headers
}

// DLQProducer writes dead letters synchronously to the configured DLQ topic
type DLQProducer struct {
	logger   *slog.Logger
	writer   KafkaWriter
	dlqTopic string
	now      func() time.Time
}

// NewDLQProducer returns a nil producer if cfg.DLQTopic is empty (DLQ disabled)
func NewDLQProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DLQProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("DLQ topic is not configured, unprocessable messages will be dropped")
		return nil, nil
	}

	if err := EnsureTopic(cfg.Brokers, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure DLQ topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return newDLQProducer(logger, writer, cfg.DLQTopic), nil
}

func newDLQProducer(logger *slog.Logger, writer KafkaWriter, topic string) *DLQProducer {
	return &DLQProducer{
		logger:   logger.With("topic", topic),
		writer:   writer,
		dlqTopic: topic,
		now:      time.Now,
	}
}

func (p *DLQProducer) PublishToDLQ(ctx context.Context, letter DeadLetter) error {
	if p == nil || p.writer == nil {
		return ErrDLQDisabled
	}

	value, err := json.Marshal(letter.envelope(p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	msg := kafka.Message{
		Key:     letter.Key,
		Value:   value,
		Headers: letter.headers(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message to DLQ %s: %w", p.dlqTopic, err)
	}

	p.logger.Warn("Dead-lettered message",
		"source_topic", letter.SourceTopic,
		"key", string(letter.Key),
		"reason", letter.Reason,
	)
	return nil
}

func (p *DLQProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dlq kafka writer for topic %s: %w", p.dlqTopic, err)
	}
	p.logger.Info("Closed DLQ producer")
	return nil
}

var _ DeadLetterPublisher = (*DLQProducer)(nil)
