package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nikolaydubina/fpdecimal"
	"github.com/redis/go-redis/v9"

	"github.com/numena-dex/bookd/pkg/archive"
	"github.com/numena-dex/bookd/pkg/core"
)

const (
	redisAddr = "localhost:6379"
	redisDB   = 0
	prefix    = "bookd-example"
)

func main() {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddr,
		DB:   redisDB,
	})

	ctx := context.Background()
	pong, err := client.Ping(ctx).Result()
	if err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	fmt.Printf("Redis connection established: %s\n", pong)

	// Trades flow from the book into Redis through the archive sink.
	trades := archive.NewRedisArchive(client, prefix, 100)
	book := core.NewBook("ETH-USD", core.DefaultConfig(), trades)

	maker, err := core.GenerateTraderAddress()
	if err != nil {
		panic(err)
	}
	taker, err := core.GenerateTraderAddress()
	if err != nil {
		panic(err)
	}

	now := time.Now().Unix()
	if _, err := book.Submit(ctx, core.SubmitRequest{
		BookID:   "ETH-USD",
		Side:     core.Sell,
		Kind:     core.KindLimit,
		Price:    fpdecimal.FromFloat(10.0),
		Quantity: 10,
		Trader:   maker,
		Nonce:    now,
		Expiry:   now + 3600,
	}); err != nil {
		panic(err)
	}

	result, err := book.Submit(ctx, core.SubmitRequest{
		BookID:   "ETH-USD",
		Side:     core.Buy,
		Kind:     core.KindLimit,
		Price:    fpdecimal.FromFloat(10.0),
		Quantity: 5,
		Trader:   taker,
		Nonce:    now,
		Expiry:   now + 3600,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Matched %d units across %d trade(s)\n", result.Executed, len(result.Trades))

	// Read the history back from Redis. The archive writes in the
	// background, so give it a moment to land.
	var recent []core.Trade
	for i := 0; i < 20 && len(recent) == 0; i++ {
		time.Sleep(50 * time.Millisecond)
		if recent, err = trades.RecentTrades(ctx, "ETH-USD", 10); err != nil {
			panic(err)
		}
	}
	fmt.Println("\nTrade history from Redis:")
	for _, t := range recent {
		fmt.Printf("- %s: price=%s quantity=%d at %s\n",
			t.ID, t.Price.String(), t.Quantity, t.Timestamp.Format(time.RFC3339))
	}
}
