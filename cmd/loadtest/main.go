package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/numena-dex/bookd/pkg/core"
)

// loadConfig reads the load test parameters from environment variables.
type loadConfig struct {
	ServerAddr      string
	BookID          string
	NumWorkers      int
	OrdersPerWorker int
	MaxRatePerSec   int
}

func loadConfigFromEnv() *loadConfig {
	v := viper.New()

	v.SetDefault("BOOKD_SERVER_ADDR", "http://localhost:8080")
	v.SetDefault("BOOKD_LOADTEST_BOOK", "load-test-book")
	v.SetDefault("NUM_WORKERS", 50)
	v.SetDefault("ORDERS_PER_WORKER", 200)
	v.SetDefault("MAX_RATE_PER_SEC", 1000)

	v.AutomaticEnv()

	return &loadConfig{
		ServerAddr:      v.GetString("BOOKD_SERVER_ADDR"),
		BookID:          v.GetString("BOOKD_LOADTEST_BOOK"),
		NumWorkers:      v.GetInt("NUM_WORKERS"),
		OrdersPerWorker: v.GetInt("ORDERS_PER_WORKER"),
		MaxRatePerSec:   v.GetInt("MAX_RATE_PER_SEC"),
	}
}

func main() {
	cfg := loadConfigFromEnv()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		log.Println("Received interrupt signal, cleaning up...")
		cancel()
	}()

	client := &http.Client{Timeout: 10 * time.Second}

	// Create the test book
	if err := post(ctx, client, cfg.ServerAddr+"/api/books", map[string]string{"book_id": cfg.BookID}); err != nil {
		log.Fatalf("Failed to create book: %v", err)
	}
	log.Printf("Created book: %s", cfg.BookID)

	// Latency histogram: 1us to 10s, 3 significant figures
	hist := hdrhistogram.New(1, 10_000_000, 3)
	var histMu sync.Mutex

	limiter := rate.NewLimiter(rate.Limit(cfg.MaxRatePerSec), cfg.MaxRatePerSec)
	var wg sync.WaitGroup
	errChan := make(chan error, cfg.NumWorkers*cfg.OrdersPerWorker)

	start := time.Now()
	log.Printf("Starting %d workers, %d orders per worker...", cfg.NumWorkers, cfg.OrdersPerWorker)

	for i := 0; i < cfg.NumWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			trader, err := core.GenerateTraderAddress()
			if err != nil {
				errChan <- fmt.Errorf("failed to generate trader address: %v", err)
				return
			}
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

			for j := 0; j < cfg.OrdersPerWorker; j++ {
				if err := limiter.Wait(ctx); err != nil {
					return
				}

				body := randomOrder(r, cfg.BookID, trader)
				reqStart := time.Now()
				err := post(ctx, client, cfg.ServerAddr+"/api/orders", body)
				elapsed := time.Since(reqStart)

				histMu.Lock()
				_ = hist.RecordValue(elapsed.Microseconds())
				histMu.Unlock()

				if err != nil {
					errChan <- fmt.Errorf("failed to submit order: %v", err)
				}
			}
		}(i)
	}

	wg.Wait()
	duration := time.Since(start)
	close(errChan)

	var errors []error
	for err := range errChan {
		errors = append(errors, err)
	}

	total := cfg.NumWorkers * cfg.OrdersPerWorker
	log.Printf("Load test completed in %v", duration)
	log.Printf("Total orders attempted: %d (%.0f/sec)", total, float64(total)/duration.Seconds())
	log.Printf("Errors encountered: %d", len(errors))
	log.Printf("Latency p50: %dus  p90: %dus  p99: %dus  max: %dus",
		hist.ValueAtQuantile(50),
		hist.ValueAtQuantile(90),
		hist.ValueAtQuantile(99),
		hist.Max())

	if len(errors) > 0 {
		log.Printf("First error: %v", errors[0])
		os.Exit(1)
	}
}

// randomOrder builds a limit order around a fixed mid price so a healthy
// share of submissions cross and match.
func randomOrder(r *rand.Rand, bookID, trader string) map[string]interface{} {
	side := "buy"
	if r.Float64() < 0.5 {
		side = "sell"
	}
	price := 100.0 + float64(r.Intn(11)-5)
	now := time.Now().Unix()

	return map[string]interface{}{
		"book_id":   bookID,
		"side":      side,
		"kind":      "limit",
		"price":     price,
		"quantity":  int64(1 + r.Intn(10)),
		"trader":    trader,
		"nonce":     now,
		"expiry":    now + 3600,
		"signature": "loadtest",
	}
}

func post(ctx context.Context, client *http.Client, url string, body interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}
