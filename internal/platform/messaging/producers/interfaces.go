package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// Publisher writes JSON values to one topic. Values sharing a key land on the same
// partition, which keeps every account's messages in order.
type Publisher interface {
	Publish(ctx context.Context, key string, value any) error
	Close() error
}

// DeadLetterPublisher parks messages the processor cannot handle
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, letter DeadLetter) error
	Close() error
}

// KafkaWriter is the subset of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ KafkaWriter = (*kafka.Writer)(nil)
	_ Publisher   = (*TopicProducer)(nil)
)
