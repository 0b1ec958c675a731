// Package config は環境変数ベースの設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Cache（未設定の場合、キャッシュ層はcompute直接実行へ縮退する）
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Search（外部検索クラスタは任意構成）
	SearchClusterURL        string
	SearchClusterAPIKey     string
	SearchClusterCollection string
	SearchUseFulltext       bool

	// Query
	QueryTimeout time.Duration

	// Recommend
	RecommendHistoryLimit int

	// Worker
	WorkerPollInterval time.Duration
	FetchTimeout       time.Duration
	FetchMaxSize       int64

	// Rate Limit
	RateLimitGeneral     int
	RateLimitSyncEnqueue int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvString("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", 5*time.Minute)

	cfg.SearchClusterURL = getEnvString("SEARCH_CLUSTER_URL", "")
	cfg.SearchClusterAPIKey = getEnvString("SEARCH_CLUSTER_API_KEY", "")
	cfg.SearchClusterCollection = getEnvString("SEARCH_CLUSTER_COLLECTION", "articles")
	cfg.SearchUseFulltext = getEnvBool("SEARCH_USE_FULLTEXT", true)

	cfg.QueryTimeout = getEnvDuration("QUERY_TIMEOUT", 5*time.Second)
	cfg.RecommendHistoryLimit = getEnvInt("RECOMMEND_HISTORY_LIMIT", 20)

	cfg.WorkerPollInterval = getEnvDuration("WORKER_POLL_INTERVAL", 10*time.Second)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", 10*time.Second)
	cfg.FetchMaxSize = getEnvInt64("FETCH_MAX_SIZE", 5242880)

	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSyncEnqueue = getEnvInt("RATE_LIMIT_SYNC_ENQUEUE", 10)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

// CacheEnabled はキャッシュバックエンドが構成されているかを返す。
func (c *Config) CacheEnabled() bool {
	return c.RedisAddr != ""
}

// SearchClusterEnabled は外部検索クラスタが構成されているかを返す。
func (c *Config) SearchClusterEnabled() bool {
	return c.SearchClusterURL != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
