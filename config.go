package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries the engine's environment configuration.
type Config struct {
	Port             string
	Env              string
	RedisURL         string
	KafkaBrokers     []string
	OrderEventsTopic string
	SNSTopicARN      string
	WalletMaxBalance decimal.Decimal
	LockMaxWait      time.Duration
}

// LoadConfig reads configuration from the environment. Postgres settings
// are read by the database package itself.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		Env:              getEnv("ENV", "development"),
		RedisURL:         os.Getenv("REDIS_URL"),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order.events"),
		SNSTopicARN:      os.Getenv("SNS_TOPIC_ARN"),
		WalletMaxBalance: decimal.Zero,
		LockMaxWait:      2 * time.Second,
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if raw := os.Getenv("WALLET_MAX_BALANCE"); raw != "" {
		max, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid WALLET_MAX_BALANCE %q: %w", raw, err)
		}
		cfg.WalletMaxBalance = max
	}

	if raw := os.Getenv("LOCK_MAX_WAIT_MS"); raw != "" {
		ms, err := strconv.Atoi(raw)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid LOCK_MAX_WAIT_MS %q", raw)
		}
		cfg.LockMaxWait = time.Duration(ms) * time.Millisecond
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
