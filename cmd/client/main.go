package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	serverAddr = flag.String("addr", "http://localhost:8080", "The server base URL")
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Check if we have enough arguments
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	// Get the command
	command := os.Args[1]

	// Remove the command from os.Args to make flag parsing work
	os.Args = append(os.Args[:1], os.Args[2:]...)

	client := &apiClient{
		base: *serverAddr,
		http: &http.Client{Timeout: 10 * time.Second},
	}

	// Execute the appropriate command
	switch command {
	case "create-book":
		createBook(client)
	case "list-books":
		listBooks(client)
	case "create-order":
		createOrder(client, os.Args[1:]...)
	case "get-order":
		if len(os.Args) < 2 {
			fmt.Println("Usage: get-order <id>")
			os.Exit(1)
		}
		getOrder(client, os.Args[1])
	case "cancel-order":
		if len(os.Args) < 3 {
			fmt.Println("Usage: cancel-order <id> <trader>")
			os.Exit(1)
		}
		cancelOrder(client, os.Args[1], os.Args[2])
	case "get-book":
		if len(os.Args) < 2 {
			fmt.Println("Usage: get-book <book>")
			os.Exit(1)
		}
		if err := printOrderBook(client, os.Args[1]); err != nil {
			log.Fatal().Err(err).Msg("Failed to print order book")
		}
	case "trades":
		if len(os.Args) < 2 {
			fmt.Println("Usage: trades <book>")
			os.Exit(1)
		}
		printTrades(client, os.Args[1])
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

type apiClient struct {
	base string
	http *http.Client
}

func (c *apiClient) do(method, path string, body interface{}, headers map[string]string) (map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		if e, ok := out["error"].(map[string]interface{}); ok {
			return out, fmt.Errorf("%v: %v", e["code"], e["message"])
		}
		return out, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return out, nil
}

func createBook(c *apiClient) {
	bookID := flag.String("name", "default", "Book id")
	flag.Parse()

	resp, err := c.do(http.MethodPost, "/api/books", map[string]string{"book_id": *bookID}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("CreateBook failed")
	}

	log.Info().
		Str("book_id", *bookID).
		Bool("created", resp["created"] == true).
		Msg("Created book")
}

func listBooks(c *apiClient) {
	resp, err := c.do(http.MethodGet, "/api/books", nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("ListBooks failed")
	}

	books, _ := resp["books"].([]interface{})
	log.Info().Int("count", len(books)).Msg("Listed books")
	for i, b := range books {
		book, _ := b.(map[string]interface{})
		log.Info().
			Int("index", i+1).
			Interface("book_id", book["book_id"]).
			Interface("open_orders", book["open_orders"]).
			Msg("Book")
	}
}

func createOrder(c *apiClient, args ...string) {
	bookID := flag.String("book", "", "Book id")
	side := flag.String("side", "", "Order side (buy/sell)")
	kind := flag.String("kind", "limit", "Order kind (market/limit)")
	quantity := flag.Int64("qty", 0, "Order quantity in base units")
	price := flag.Float64("price", 0, "Order price (0 for market)")
	trader := flag.String("trader", "", "Trader address")
	flag.Parse()

	// If no flags are set, use positional arguments
	if *bookID == "" && len(args) >= 6 {
		bookID = &args[0]
		side = &args[1]
		kind = &args[2]
		q, err := strconv.ParseInt(args[3], 10, 64)
		if err != nil {
			log.Fatal().Str("qty", args[3]).Msg("Invalid quantity")
		}
		quantity = &q
		p, err := strconv.ParseFloat(args[4], 64)
		if err != nil {
			log.Fatal().Str("price", args[4]).Msg("Invalid price")
		}
		price = &p
		trader = &args[5]
	}

	if *bookID == "" || *side == "" || *quantity == 0 || *trader == "" {
		fmt.Println("Usage: create-order <book> <side> <kind> <quantity> <price> <trader>")
		fmt.Println("   or: create-order --book=<id> --side=<side> --kind=<kind> --qty=<quantity> --price=<price> --trader=<address>")
		os.Exit(1)
	}

	now := time.Now().Unix()
	resp, err := c.do(http.MethodPost, "/api/orders", map[string]interface{}{
		"book_id":   *bookID,
		"side":      strings.ToLower(*side),
		"kind":      strings.ToLower(*kind),
		"price":     *price,
		"quantity":  *quantity,
		"trader":    *trader,
		"nonce":     now,
		"expiry":    now + 3600,
		"signature": "cli",
	}, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("CreateOrder failed")
	}

	if resp["success"] != true {
		e, _ := resp["error"].(map[string]interface{})
		log.Error().Interface("code", e["code"]).Msg("Order rejected")
		return
	}

	order, _ := resp["order"].(map[string]interface{})
	log.Info().
		Interface("order_id", order["order_id"]).
		Interface("status", order["status"]).
		Interface("executed", resp["executed_quantity"]).
		Interface("remaining", resp["remaining_quantity"]).
		Msg("Created order")

	if trades, ok := resp["trades"].([]interface{}); ok {
		for i, t := range trades {
			trade, _ := t.(map[string]interface{})
			log.Info().
				Int("index", i+1).
				Interface("price", trade["price"]).
				Interface("quantity", trade["quantity"]).
				Msg("Trade")
		}
	}
}

func getOrder(c *apiClient, orderID string) {
	resp, err := c.do(http.MethodGet, "/api/orders/"+orderID, nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("GetOrder failed")
	}

	order, _ := resp["order"].(map[string]interface{})
	log.Info().
		Interface("order_id", order["order_id"]).
		Interface("book_id", order["book_id"]).
		Interface("side", order["side"]).
		Interface("kind", order["kind"]).
		Interface("price", order["price"]).
		Interface("quantity", order["quantity"]).
		Interface("remaining", order["remaining_quantity"]).
		Interface("status", order["status"]).
		Msg("Retrieved order")
}

func cancelOrder(c *apiClient, orderID, trader string) {
	_, err := c.do(http.MethodDelete, "/api/orders/"+orderID, nil, map[string]string{"X-Trader": trader})
	if err != nil {
		log.Fatal().Err(err).Msg("CancelOrder failed")
	}

	log.Info().Str("order_id", orderID).Msg("Order cancelled")
}

func printOrderBook(c *apiClient, bookID string) error {
	color.NoColor = false
	cyan := color.New(color.FgCyan).SprintfFunc()
	red := color.New(color.FgRed).SprintfFunc()
	green := color.New(color.FgGreen).SprintfFunc()

	resp, err := c.do(http.MethodGet, "/api/books/"+bookID+"/orderbook", nil, nil)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight)

	fmt.Fprintf(w, "%15s|%15s|%s\n",
		cyan("Price"),
		cyan("Size"),
		cyan("Side"))
	fmt.Fprintf(w, "%15s|%15s|%s\n",
		"---------------",
		"---------------",
		"----")

	// Asks print top down so the spread sits in the middle
	asks, _ := resp["asks"].([]interface{})
	for i := len(asks) - 1; i >= 0; i-- {
		level, _ := asks[i].(map[string]interface{})
		fmt.Fprintf(w, "%15.3f|%15.0f|%s\n",
			toFloat(level["price"]),
			toFloat(level["size"]),
			red("ASK"))
	}

	fmt.Fprintf(w, "%15s|%15s|%s\n",
		"---------------",
		"---------------",
		"----")

	bids, _ := resp["bids"].([]interface{})
	for _, b := range bids {
		level, _ := b.(map[string]interface{})
		fmt.Fprintf(w, "%15.3f|%15.0f|%s\n",
			toFloat(level["price"]),
			toFloat(level["size"]),
			green("BID"))
	}

	return w.Flush()
}

func printTrades(c *apiClient, bookID string) {
	resp, err := c.do(http.MethodGet, "/api/books/"+bookID+"/trades", nil, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Trades failed")
	}

	trades, _ := resp["trades"].([]interface{})
	log.Info().Int("count", len(trades)).Msg("Recent trades")
	for i, t := range trades {
		trade, _ := t.(map[string]interface{})
		log.Info().
			Int("index", i+1).
			Interface("price", trade["price"]).
			Interface("quantity", trade["quantity"]).
			Interface("trade_id", trade["trade_id"]).
			Msg("Trade")
	}
}

func toFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  create-book --name=<id>")
	fmt.Println("  list-books")
	fmt.Println("  create-order <book> <side> <kind> <quantity> <price> <trader>")
	fmt.Println("  get-order <id>")
	fmt.Println("  cancel-order <id> <trader>")
	fmt.Println("  get-book <book>")
	fmt.Println("  trades <book>")
	fmt.Println("\nExamples:")
	fmt.Println("  create-book --name=ETH-USD")
	fmt.Println("  create-order ETH-USD sell limit 5 100.0 0x1234567890123456789012345678901234567890")
	fmt.Println("  create-order ETH-USD buy market 1 0 0x1234567890123456789012345678901234567890")
	fmt.Println("  get-book ETH-USD")
}
