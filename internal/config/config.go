package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

type Config struct {
	RecordsURL     string
	DatabaseURL    string
	ReferenceFile  string
	Port           string
	HTTPTimeout    time.Duration
	LogLevel       slog.Level
	Location       *time.Location
	FetchWorkers   int
	FetchChunkSize int
	RollupWorkers  int
	RetryAttempts  int
	RetryBase      time.Duration
}

func FromEnv() Config {
	to := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			to = d
		}
	}
	lvl := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	}
	loc := time.UTC
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}
	return Config{
		RecordsURL:     os.Getenv("RECORDS_API_URL"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ReferenceFile:  os.Getenv("REFERENCE_FILE"),
		Port:           envOr("PORT", "8080"),
		HTTPTimeout:    to,
		LogLevel:       lvl,
		Location:       loc,
		FetchWorkers:   clamp(intOr("FETCH_CONCURRENCY", 4), 1, 32),
		FetchChunkSize: clamp(intOr("FETCH_CHUNK_SIZE", 150), 1, 1000),
		RollupWorkers:  clamp(intOr("ROLLUP_WORKERS", 1), 1, 64),
		RetryAttempts:  clamp(intOr("RETRY_ATTEMPTS", 2), 0, 10),
		RetryBase:      100 * time.Millisecond,
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func intOr(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
