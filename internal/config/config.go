package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                     string
	DatabaseURL              string
	OverdueScanInterval      time.Duration
	OverdueBatchSize         int
	RateLimitPerMinute       int
	RateLimitBurst           int
	AgencyRateLimitPerMinute int
	AgencyRateLimitBurst     int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                     port,
		DatabaseURL:              os.Getenv("DB_DSN"),
		OverdueScanInterval:      readDurationSeconds("OVERDUE_SCAN_INTERVAL_SECONDS", 300),
		OverdueBatchSize:         readInt("OVERDUE_BATCH_SIZE", 100),
		RateLimitPerMinute:       readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:           readInt("RATE_LIMIT_BURST", 30),
		AgencyRateLimitPerMinute: readInt("AGENCY_RATE_LIMIT_PER_MIN", 600),
		AgencyRateLimitBurst:     readInt("AGENCY_RATE_LIMIT_BURST", 120),
	}
}

func readDurationSeconds(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		return 0
	}
	return time.Duration(value) * time.Second
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
