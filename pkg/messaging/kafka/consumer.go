package kafka

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/numena-dex/bookd/pkg/db/queue"
	"github.com/numena-dex/bookd/pkg/messaging"
)

// SetupConsumer initializes and starts the Kafka consumer for processing
// execution reports
func SetupConsumer(ctx context.Context, logger zerolog.Logger) (*queue.QueueMessageConsumer, error) {
	kafkaConsumer, err := queue.NewQueueMessageConsumer()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to create Kafka consumer - continuing without Kafka support")
		return nil, err
	}

	// Start Kafka consumer in a goroutine
	go func() {
		logger.Info().Msg("Starting Kafka consumer")
		err := kafkaConsumer.ConsumeExecutionMessages(func(exec *messaging.ExecutionMessage) error {
			logger.Info().
				Str("order_id", exec.OrderID).
				Str("book_id", exec.BookID).
				Str("status", exec.Status).
				Str("executed_qty", exec.ExecutedQty).
				Str("remaining_qty", exec.RemainingQty).
				Int("trades", len(exec.Trades)).
				Msg("Received execution message")
			return nil
		})
		if err != nil {
			logger.Error().Err(err).Msg("Kafka consumer error")
		}
	}()

	return kafkaConsumer, nil
}
