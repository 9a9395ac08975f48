package testutil

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// SkipIfRedisUnavailable skips the test when no Redis answers at addr.
func SkipIfRedisUnavailable(t *testing.T, addr string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	if _, err := client.Ping(ctx).Result(); err != nil {
		t.Skipf("Skipping test: Redis not available at %s - %v", addr, err)
	}
}

// SkipIfKafkaUnavailable skips the test when no Kafka broker answers at
// addr.
func SkipIfKafkaUnavailable(t *testing.T, addr string) {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		t.Skipf("Skipping test: Kafka not available at %s - %v", addr, err)
		return
	}
	_ = conn.Close()
}
