package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records execution messages for testing.
type MockMessageSender struct {
	mu   sync.Mutex
	Sent []*ExecutionMessage
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// SendExecutionMessage records the message.
func (m *MockMessageSender) SendExecutionMessage(_ context.Context, exec *ExecutionMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, exec)
	return nil
}

// Messages returns a copy of everything sent so far.
func (m *MockMessageSender) Messages() []*ExecutionMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*ExecutionMessage, len(m.Sent))
	copy(out, m.Sent)
	return out
}

// Close does nothing.
func (m *MockMessageSender) Close() error {
	return nil
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
