package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/numena-dex/bookd/pkg/core"
)

// RedisOptions represents configuration options for the Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

var defaultOptions = &RedisOptions{
	Addr:     "localhost:6379",
	Password: "",
	DB:       0,
}

// SetDefaultRedisOptions sets the default options for Redis connections
func SetDefaultRedisOptions(options *RedisOptions) {
	defaultOptions = options
}

// GetRedisClient creates a new Redis client using the default options
func GetRedisClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     defaultOptions.Addr,
		Password: defaultOptions.Password,
		DB:       defaultOptions.DB,
	})
}

// writeQueueSize bounds how many trade batches may wait for the Redis
// writer before further batches are discarded.
const writeQueueSize = 1024

type tradeBatch struct {
	bookID string
	trades []core.Trade
}

// RedisArchive retains recent trades per book in Redis lists. Each book
// gets one list keyed by prefix, trimmed to capacity on every write.
// Publishes are queued and written by a background goroutine so the
// matching path never waits on Redis.
type RedisArchive struct {
	client   *redis.Client
	prefix   string
	capacity int
	logger   zerolog.Logger

	queue     chan tradeBatch
	done      chan struct{}
	closeOnce sync.Once
	dropped   uint64
}

// NewRedisArchive creates an archive backed by the given client and
// starts its writer. A capacity of zero falls back to DefaultCapacity.
func NewRedisArchive(client *redis.Client, prefix string, capacity int) *RedisArchive {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	a := &RedisArchive{
		client:   client,
		prefix:   prefix,
		capacity: capacity,
		logger:   log.With().Str("component", "archive").Logger(),
		queue:    make(chan tradeBatch, writeQueueSize),
		done:     make(chan struct{}),
	}
	go a.writeLoop()
	return a
}

func (a *RedisArchive) writeLoop() {
	defer close(a.done)
	for batch := range a.queue {
		a.store(batch)
	}
}

func (a *RedisArchive) tradesKey(bookID string) string {
	return fmt.Sprintf("%s:trades:%s", a.prefix, bookID)
}

// PublishDelta implements core.EventSink. Depth changes are not archived.
func (a *RedisArchive) PublishDelta(*core.BookDelta) {}

// PublishTrades implements core.EventSink. The batch is handed to the
// writer goroutine without blocking; when the write queue is full the
// batch is discarded, since history retention is best effort.
func (a *RedisArchive) PublishTrades(bookID string, trades []core.Trade) {
	if len(trades) == 0 {
		return
	}
	select {
	case a.queue <- tradeBatch{bookID: bookID, trades: trades}:
	default:
		atomic.AddUint64(&a.dropped, 1)
		a.logger.Warn().Str("book_id", bookID).Msg("archive queue full, trade batch discarded")
	}
}

// DroppedBatches returns how many trade batches were discarded because
// the write queue was full.
func (a *RedisArchive) DroppedBatches() uint64 {
	return atomic.LoadUint64(&a.dropped)
}

func (a *RedisArchive) store(batch tradeBatch) {
	ctx := context.Background()
	key := a.tradesKey(batch.bookID)

	values := make([]interface{}, 0, len(batch.trades))
	for _, t := range batch.trades {
		data, err := json.Marshal(t)
		if err != nil {
			a.logger.Error().Err(err).Str("book_id", batch.bookID).Msg("failed to marshal trade")
			return
		}
		values = append(values, data)
	}

	pipe := a.client.Pipeline()
	pipe.LPush(ctx, key, values...)
	pipe.LTrim(ctx, key, 0, int64(a.capacity)-1)
	if _, err := pipe.Exec(ctx); err != nil {
		a.logger.Error().Err(err).Str("book_id", batch.bookID).Msg("failed to archive trades")
	}
}

// RecentTrades implements TradeArchive.
func (a *RedisArchive) RecentTrades(ctx context.Context, bookID string, limit int) ([]core.Trade, error) {
	if limit <= 0 {
		return []core.Trade{}, nil
	}
	if limit > a.capacity {
		limit = a.capacity
	}

	raw, err := a.client.LRange(ctx, a.tradesKey(bookID), 0, int64(limit)-1).Result()
	if err != nil {
		if err == redis.Nil {
			return []core.Trade{}, nil
		}
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	out := make([]core.Trade, 0, len(raw))
	for _, item := range raw {
		var t core.Trade
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trade: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

// Close drains the write queue, stops the writer and closes the client.
func (a *RedisArchive) Close() error {
	a.closeOnce.Do(func() {
		close(a.queue)
		<-a.done
	})
	return a.client.Close()
}

var _ TradeArchive = (*RedisArchive)(nil)
