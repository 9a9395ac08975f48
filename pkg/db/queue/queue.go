package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/numena-dex/bookd/pkg/messaging"
)

var (
	mu         sync.RWMutex
	brokerList = "localhost:9092"
	topic      = "bookd-trades"
)

// SetBrokerList overrides the Kafka broker address used by new senders
// and consumers.
func SetBrokerList(addr string) {
	mu.Lock()
	defer mu.Unlock()
	brokerList = addr
}

// SetTopic overrides the Kafka topic used by new senders and consumers.
func SetTopic(t string) {
	mu.Lock()
	defer mu.Unlock()
	topic = t
}

func currentBroker() string {
	mu.RLock()
	defer mu.RUnlock()
	return brokerList
}

func currentTopic() string {
	mu.RLock()
	defer mu.RUnlock()
	return topic
}

// QueueMessageSender implements the MessageSender interface
// for sending execution reports to Kafka via sarama.
type QueueMessageSender struct {
	producer sarama.SyncProducer
	topic    string
}

// NewQueueMessageSender creates a sender with its own sync producer.
func NewQueueMessageSender() (*QueueMessageSender, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer([]string{currentBroker()}, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &QueueMessageSender{
		producer: producer,
		topic:    currentTopic(),
	}, nil
}

// newQueueMessageSenderWithProducer is used by tests to inject a mock producer.
func newQueueMessageSenderWithProducer(producer sarama.SyncProducer) *QueueMessageSender {
	return &QueueMessageSender{
		producer: producer,
		topic:    currentTopic(),
	}
}

// SendExecutionMessage publishes the execution report to the Kafka queue
func (q *QueueMessageSender) SendExecutionMessage(_ context.Context, exec *messaging.ExecutionMessage) error {
	data, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(exec.BookID),
		Value: sarama.ByteEncoder(data),
	}

	_, _, err = q.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to Kafka: %w", err)
	}

	return nil
}

// Close closes the underlying producer.
func (q *QueueMessageSender) Close() error {
	return q.producer.Close()
}

// Ensure QueueMessageSender implements MessageSender
var _ messaging.MessageSender = (*QueueMessageSender)(nil)
