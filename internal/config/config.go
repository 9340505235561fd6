package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pappertech/dispatch-core/internal/core/service"
)

// Config carries everything that is policy rather than mechanism: limits,
// thresholds, and connection endpoints all come from the environment.
type Config struct {
	HTTPAddr  string
	MySQLDSN  string
	RedisAddr string

	RateLimit       int
	RateLimitWindow time.Duration

	Risk service.RiskConfig

	AuditQueueSize int
	AuditWorkers   int
}

func Load() Config {
	risk := service.DefaultRiskConfig()
	risk.FlagThreshold = getEnvInt("RISK_FLAG_THRESHOLD", risk.FlagThreshold)
	risk.BlockThreshold = getEnvInt("RISK_BLOCK_THRESHOLD", risk.BlockThreshold)
	risk.LinkedAccountLimit = getEnvInt("RISK_LINKED_ACCOUNT_LIMIT", risk.LinkedAccountLimit)
	risk.LowValueThreshold = decimal.NewFromInt(int64(getEnvInt("RISK_LOW_VALUE_THRESHOLD", 100)))
	risk.LinkageLookupTimeout = time.Duration(getEnvInt("RISK_LINKAGE_TIMEOUT_MS", 500)) * time.Millisecond

	return Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8080"),
		MySQLDSN:        getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/dispatch?parseTime=true"),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RateLimit:       getEnvInt("RATE_LIMIT", 10),
		RateLimitWindow: time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MS", 60000)) * time.Millisecond,
		Risk:            risk,
		AuditQueueSize:  getEnvInt("AUDIT_QUEUE_SIZE", 10000),
		AuditWorkers:    getEnvInt("AUDIT_WORKERS", 4),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
