// Package cache はcache-aside方式の汎用キャッシュ層を提供する。
// バックエンド障害時はフェイルオープンし、キャッシュが可用性の
// 単一障害点となることを防ぐ。
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store はキャッシュバックエンドのインターフェース。
// 実装は並行利用に対して安全であること。
type Store interface {
	// Get は指定キーの値を取得する。キーが存在しない場合は(nil, false, nil)を返す。
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set は指定キーに値をTTL付きで保存する。既存の値は上書きされる。
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisStore はRedisを使用したStore実装。
type RedisStore struct {
	rdb *redis.Client
}

// RedisConfig はRedis接続の設定を保持する。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisStore はRedisStoreを生成する。
// 接続確認は行わない（キャッシュ層はフェイルオープンのため、
// 起動時にRedisが落ちていてもアプリケーションは動作する）。
func NewRedisStore(cfg RedisConfig) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return &RedisStore{rdb: rdb}
}

// Get は指定キーの値を取得する。redis.Nilはミスとして扱う。
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("キャッシュの取得に失敗しました: %w", err)
	}
	return b, true, nil
}

// Set は指定キーに値をTTL付きで保存する。
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("キャッシュの保存に失敗しました: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// compile-time interface check
var _ Store = (*RedisStore)(nil)
