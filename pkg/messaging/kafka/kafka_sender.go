package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/numena-dex/bookd/pkg/messaging"
)

// KafkaMessageSender implements MessageSender using Kafka
type KafkaMessageSender struct {
	writer *kafka.Writer
	topic  string
}

// NewKafkaMessageSender creates a new Kafka message sender
func NewKafkaMessageSender(brokerAddr, topic string) (*KafkaMessageSender, error) {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerAddr),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &KafkaMessageSender{
		writer: writer,
		topic:  topic,
	}, nil
}

// SendExecutionMessage sends an execution report to Kafka
func (k *KafkaMessageSender) SendExecutionMessage(ctx context.Context, exec *messaging.ExecutionMessage) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution message: %w", err)
	}

	// Key by book so a partition preserves per-book ordering
	msg := kafka.Message{
		Key:   []byte(exec.BookID),
		Value: data,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = k.writer.WriteMessages(ctx, msg)
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka writer
func (k *KafkaMessageSender) Close() error {
	return k.writer.Close()
}

// Ensure KafkaMessageSender implements MessageSender
var _ messaging.MessageSender = (*KafkaMessageSender)(nil)
