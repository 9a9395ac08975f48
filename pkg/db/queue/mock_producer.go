package queue

import (
	"github.com/IBM/sarama"
)

// mockProducer is the sarama.SyncProducer used by the execution-report
// sender tests. It records every produced message so tests can inspect
// keys and payloads; the transactional surface is stubbed out since the
// sender never opens a transaction.
type mockProducer struct {
	sentMessages []*sarama.ProducerMessage
}

func (m *mockProducer) SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error) {
	m.sentMessages = append(m.sentMessages, msg)
	return 0, 0, nil
}

func (m *mockProducer) SendMessages(msgs []*sarama.ProducerMessage) error {
	m.sentMessages = append(m.sentMessages, msgs...)
	return nil
}

func (m *mockProducer) Close() error { return nil }

// Transactions are unused by the execution-report path.

func (m *mockProducer) TxnStatus() sarama.ProducerTxnStatusFlag { return 0 }

func (m *mockProducer) IsTransactional() bool { return false }

func (m *mockProducer) BeginTxn() error { return nil }

func (m *mockProducer) CommitTxn() error { return nil }

func (m *mockProducer) AbortTxn() error { return nil }

func (m *mockProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (m *mockProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

var _ sarama.SyncProducer = (*mockProducer)(nil)
