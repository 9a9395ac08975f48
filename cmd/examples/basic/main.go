package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nikolaydubina/fpdecimal"

	"github.com/numena-dex/bookd/pkg/core"
)

func main() {
	book := core.NewBook("ETH-USD", core.DefaultConfig(), nil)

	maker, err := core.GenerateTraderAddress()
	if err != nil {
		panic(err)
	}
	taker, err := core.GenerateTraderAddress()
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	now := time.Now().Unix()

	// Rest a sell limit order.
	sellResult, err := book.Submit(ctx, core.SubmitRequest{
		BookID:   "ETH-USD",
		Side:     core.Sell,
		Kind:     core.KindLimit,
		Price:    fpdecimal.FromFloat(10.0),
		Quantity: 10,
		Trader:   maker,
		Nonce:    now,
		Expiry:   now + 3600,
	})
	if err != nil {
		panic(err)
	}
	fmt.Printf("Created sell order: %s\n", sellResult.Order.ID())

	// A crossing buy executes at the maker's price.
	buyResult, err := book.Submit(ctx, core.SubmitRequest{
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

	fmt.Printf("Processing buy order: %s\n", buyResult.Order.ID())
	for _, t := range buyResult.Trades {
		fmt.Printf("Trade executed: price=%s quantity=%d sell=%s buy=%s\n",
			t.Price.String(), t.Quantity, t.SellOrderID, t.BuyOrderID)
	}
	fmt.Printf("Buy order executed quantity: %d\n", buyResult.Executed)

	// The sell order still rests with the remainder.
	snapshot := book.Snapshot(0)
	fmt.Println("\nBook after matching:")
	for _, lvl := range snapshot.Asks {
		fmt.Printf("- Ask: price=%s size=%d\n", lvl.Price.String(), lvl.Size)
	}
	for _, lvl := range snapshot.Bids {
		fmt.Printf("- Bid: price=%s size=%d\n", lvl.Price.String(), lvl.Size)
	}
}
