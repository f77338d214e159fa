package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Storage
	DataDir string // uploaded files live here
	DBPath  string // sqlite kv; empty means in-memory

	// Remote persistence service (overrides DBPath when set)
	RemoteKVURL    string
	RemoteKVAPIKey string

	// Upload limits
	MaxUploadBytes int64

	// Chunking
	TargetChunkSize int
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8091"),

		APIKey: os.Getenv("INGEST_API_KEY"),

		DataDir: envOr("DATA_DIR", "./data"),
		DBPath:  os.Getenv("DB_PATH"),

		RemoteKVURL:    os.Getenv("REMOTE_KV_URL"),
		RemoteKVAPIKey: os.Getenv("REMOTE_KV_API_KEY"),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		TargetChunkSize: envInt("TARGET_CHUNK_SIZE", 2000),
	}

	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.TargetChunkSize <= 0 {
		cfg.TargetChunkSize = 2000
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("INGEST_API_KEY is required")
	}
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}
