package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEngineMetricsConcurrentInit(t *testing.T) {
	const goroutines = 32

	results := make([]*EngineMetrics, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func(i int) {
			defer wg.Done()
			results[i] = GetEngineMetrics()
		}(i)
	}
	wg.Wait()

	first := results[0]
	assert.NotNil(t, first)
	for _, m := range results[1:] {
		assert.Same(t, first, m)
	}

	// Recording through the shared instance must not panic even before
	// an exporter is configured.
	first.RecordOrder(context.Background(), "ETH-USD", "OPEN")
	first.RecordTrades(context.Background(), "ETH-USD", 1)
}
