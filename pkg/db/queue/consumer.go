package queue

import (
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/numena-dex/bookd/pkg/messaging"
)

// QueueMessageConsumer reads execution reports back off the Kafka queue.
type QueueMessageConsumer struct {
	consumer sarama.Consumer
	topic    string
	done     chan struct{}
}

// NewQueueMessageConsumer creates a consumer connected to the configured broker.
func NewQueueMessageConsumer() (*QueueMessageConsumer, error) {
	consumer, err := sarama.NewConsumer([]string{currentBroker()}, sarama.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    currentTopic(),
		done:     make(chan struct{}),
	}, nil
}

// newQueueMessageConsumerWithConsumer is used by tests to inject a mock consumer.
func newQueueMessageConsumerWithConsumer(consumer sarama.Consumer) *QueueMessageConsumer {
	return &QueueMessageConsumer{
		consumer: consumer,
		topic:    currentTopic(),
		done:     make(chan struct{}),
	}
}

// ConsumeExecutionMessages reads messages from partition 0 and invokes the
// handler for each decoded report. It blocks until Close is called or the
// partition consumer is drained.
func (c *QueueMessageConsumer) ConsumeExecutionMessages(handler func(*messaging.ExecutionMessage) error) error {
	partitionConsumer, err := c.consumer.ConsumePartition(c.topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}
	defer partitionConsumer.Close()

	for {
		select {
		case msg, ok := <-partitionConsumer.Messages():
			if !ok {
				return nil
			}
			exec := &messaging.ExecutionMessage{}
			if err := json.Unmarshal(msg.Value, exec); err != nil {
				return fmt.Errorf("failed to unmarshal execution message: %w", err)
			}
			if err := handler(exec); err != nil {
				return err
			}
		case kerr, ok := <-partitionConsumer.Errors():
			if !ok {
				return nil
			}
			return fmt.Errorf("consumer error: %w", kerr.Err)
		case <-c.done:
			return nil
		}
	}
}

// Close stops consumption and closes the underlying consumer.
func (c *QueueMessageConsumer) Close() error {
	close(c.done)
	return c.consumer.Close()
}
