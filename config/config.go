package config

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/numena-dex/bookd/pkg/db/queue"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		HTTPAddr  string `yaml:"http_addr"`
		LogLevel  string `yaml:"log_level"`
		LogFormat string `yaml:"log_format"`
	} `yaml:"server"`

	Engine struct {
		ExpiryHorizon   time.Duration `yaml:"expiry_horizon"`
		NonceWindow     time.Duration `yaml:"nonce_window"`
		MaxSlippageBps  int64         `yaml:"max_slippage_bps"`
		SnapshotDepth   int           `yaml:"snapshot_depth"`
		SweepInterval   time.Duration `yaml:"sweep_interval"`
		SubscriberQueue int           `yaml:"subscriber_queue"`
	} `yaml:"engine"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled    bool   `yaml:"enabled"`
		BrokerAddr string `yaml:"broker_addr"`
		Topic      string `yaml:"topic"`
	} `yaml:"kafka"`
}

// Default configuration values
var (
	configFile = flag.String("config", "", "Path to config file (YAML)")
	httpPort   = flag.Int("http_port", 8080, "The HTTP server port")
	logLevel   = flag.String("log_level", "info", "Log level: debug, info, warn, error")
	logFormat  = flag.String("log_format", "pretty", "Log format: json, pretty")
)

// LoadConfig loads the configuration from command line flags and optionally from a config file
func LoadConfig() (*Config, error) {
	// Parse command line flags
	flag.Parse()

	// Create default configuration
	config := &Config{}
	config.Server.HTTPAddr = fmt.Sprintf(":%d", *httpPort)
	config.Server.LogLevel = *logLevel
	config.Server.LogFormat = *logFormat
	config.Engine.ExpiryHorizon = 24 * time.Hour
	config.Engine.NonceWindow = 60 * time.Second
	config.Engine.MaxSlippageBps = 0
	config.Engine.SnapshotDepth = 20
	config.Engine.SweepInterval = time.Second
	config.Engine.SubscriberQueue = 256
	config.Redis.Addr = "localhost:6379"
	config.Kafka.BrokerAddr = "localhost:9092"
	config.Kafka.Topic = "bookd-trades"

	// Load configuration from file if specified
	if *configFile != "" {
		yamlFile, err := os.ReadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Parse YAML configuration
		if err := yaml.Unmarshal(yamlFile, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Override Kafka configuration in package variables
		queue.SetBrokerList(config.Kafka.BrokerAddr)
		queue.SetTopic(config.Kafka.Topic)

		// Log loaded configuration
		log.Printf("Loaded configuration from %s", *configFile)
	}

	return config, nil
}
