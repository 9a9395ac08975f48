package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numena-dex/bookd/pkg/messaging"
)

type mockConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (m *mockConsumer) ConsumePartition(topic string, partition int32, offset int64) (sarama.PartitionConsumer, error) {
	return &mockPartitionConsumer{
		messages: m.messages,
		errors:   m.errors,
	}, nil
}

func (m *mockConsumer) Topics() ([]string, error) {
	return []string{}, nil
}

func (m *mockConsumer) Partitions(topic string) ([]int32, error) {
	return []int32{}, nil
}

func (m *mockConsumer) HighWaterMarks() map[string]map[int32]int64 {
	return nil
}

func (m *mockConsumer) Close() error {
	return nil
}

func (m *mockConsumer) Pause(topicPartitions map[string][]int32) {}

func (m *mockConsumer) Resume(topicPartitions map[string][]int32) {}

func (m *mockConsumer) PauseAll() {}

func (m *mockConsumer) ResumeAll() {}

type mockPartitionConsumer struct {
	messages chan *sarama.ConsumerMessage
	errors   chan *sarama.ConsumerError
}

func (m *mockPartitionConsumer) AsyncClose() {}

func (m *mockPartitionConsumer) Close() error {
	return nil
}

func (m *mockPartitionConsumer) Messages() <-chan *sarama.ConsumerMessage {
	return m.messages
}

func (m *mockPartitionConsumer) Errors() <-chan *sarama.ConsumerError {
	return m.errors
}

func (m *mockPartitionConsumer) HighWaterMarkOffset() int64 {
	return 0
}

func (m *mockPartitionConsumer) Pause() {}

func (m *mockPartitionConsumer) Resume() {}

func (m *mockPartitionConsumer) IsPaused() bool {
	return false
}

func TestSendExecutionMessage(t *testing.T) {
	producer := &mockProducer{}
	sender := newQueueMessageSenderWithProducer(producer)

	exec := &messaging.ExecutionMessage{
		OrderID:      "order-1",
		BookID:       "ETH-USD",
		Side:         "buy",
		Kind:         "limit",
		Status:       "filled",
		ExecutedQty:  "5",
		RemainingQty: "0",
		Trades: []messaging.Trade{
			{ID: "t-1", Price: "100.5", Quantity: "5"},
		},
	}

	err := sender.SendExecutionMessage(context.Background(), exec)
	require.NoError(t, err)
	require.Len(t, producer.sentMessages, 1)

	sent := producer.sentMessages[0]
	key, err := sent.Key.Encode()
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", string(key))

	value, err := sent.Value.Encode()
	require.NoError(t, err)

	decoded := &messaging.ExecutionMessage{}
	require.NoError(t, json.Unmarshal(value, decoded))
	assert.Equal(t, "order-1", decoded.OrderID)
	assert.Equal(t, "filled", decoded.Status)
	require.Len(t, decoded.Trades, 1)
	assert.Equal(t, "100.5", decoded.Trades[0].Price)
}

func TestConsumeExecutionMessages(t *testing.T) {
	messages := make(chan *sarama.ConsumerMessage, 1)
	errors := make(chan *sarama.ConsumerError)

	consumer := newQueueMessageConsumerWithConsumer(&mockConsumer{
		messages: messages,
		errors:   errors,
	})

	payload, err := json.Marshal(&messaging.ExecutionMessage{
		OrderID: "order-2",
		BookID:  "BTC-USD",
		Status:  "open",
	})
	require.NoError(t, err)
	messages <- &sarama.ConsumerMessage{Value: payload}

	received := make(chan *messaging.ExecutionMessage, 1)
	go func() {
		_ = consumer.ConsumeExecutionMessages(func(exec *messaging.ExecutionMessage) error {
			received <- exec
			return nil
		})
	}()

	select {
	case exec := <-received:
		assert.Equal(t, "order-2", exec.OrderID)
		assert.Equal(t, "BTC-USD", exec.BookID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for execution message")
	}

	require.NoError(t, consumer.Close())
}
