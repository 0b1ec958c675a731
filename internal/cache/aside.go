package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// defaultWriteTimeout はミス時の非同期キャッシュ書き込みのタイムアウト。
const defaultWriteTimeout = 3 * time.Second

// MetricsRecorder はキャッシュのヒット/ミスを記録するインターフェース。
// metrics.Collectorが満たす。nilの場合は記録しない。
type MetricsRecorder interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// Cache はcache-aside方式の「計算またはキャッシュ取得」ラッパー。
//
// フェイルオープンポリシー: バックエンドのあらゆるエラー
// （接続障害、シリアライズ失敗、タイムアウト）はミスとして扱い、
// computeを実行してその結果を返す。この層のエラーが上位へ
// 伝播することはない。キャッシュは純粋な最適化である。
//
// storeがnilの場合はcomputeの直接実行へ縮退する。
type Cache struct {
	store   Store
	logger  *slog.Logger
	metrics MetricsRecorder

	// wg はミス時の書き込みゴルーチンを追跡する。
	// 書き込みはリードパスに対してfire-and-forgetであり、
	// 呼び出し元は書き込み完了を待たない。
	wg sync.WaitGroup
}

// New はCacheを生成する。storeにnilを渡すとキャッシュ無効の
// パススルー動作となる。metricsはnil可。
func New(store Store, logger *slog.Logger, metrics MetricsRecorder) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger, metrics: metrics}
}

// recordHit はキャッシュヒットをメトリクスに記録する。
func (c *Cache) recordHit() {
	if c.metrics != nil {
		c.metrics.RecordCacheHit()
	}
}

// recordMiss はキャッシュミス（フェイルオープンを含む）をメトリクスに記録する。
func (c *Cache) recordMiss() {
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
}

// Enabled はキャッシュバックエンドが構成されているかを返す。
func (c *Cache) Enabled() bool {
	return c != nil && c.store != nil
}

// Flush は実行中の非同期キャッシュ書き込みの完了を待つ。
// グレースフルシャットダウンおよびテストから使用する。
func (c *Cache) Flush() {
	if c != nil {
		c.wg.Wait()
	}
}

// GetOrCompute はキャッシュからkeyの値を取得し、ヒットすれば
// デシリアライズして返す。ミスの場合はcomputeを実行し、結果を
// シリアライズしてTTL付きで保存（ベストエフォート・非同期）した上で返す。
//
// computeのエラーはそのまま呼び出し元へ返す。キャッシュバックエンドの
// エラーはすべてミスとして扱われ、呼び出し元には届かない。
//
// 同一キーへの並行ミスは両方computeを実行し両方書き込む
// （single-flightによる重複排除は行わない）。computeはストアへの
// 読み取りのみで副作用を持たない前提であり、許容されるレースである。
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, compute func(context.Context) (T, error)) (T, error) {
	if !c.Enabled() {
		return compute(ctx)
	}

	// キャッシュ参照。エラーはミス扱い（フェイルオープン）。
	b, hit, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("キャッシュの参照に失敗しました（フェイルオープンで継続）",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	} else if hit {
		var value T
		if err := json.Unmarshal(b, &value); err != nil {
			// デシリアライズ失敗もミス扱い。computeへフォールバックする。
			c.logger.Warn("キャッシュ値のデシリアライズに失敗しました（ミス扱い）",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		} else {
			c.recordHit()
			return value, nil
		}
	}

	c.recordMiss()
	value, err := compute(ctx)
	if err != nil {
		return value, err
	}

	c.storeAsync(key, ttl, value)

	return value, nil
}

// storeAsync は計算結果をバックグラウンドで保存する。
// 書き込み失敗はログのみでレスポンスには影響しない。
func (c *Cache) storeAsync(key string, ttl time.Duration, value any) {
	b, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("キャッシュ値のシリアライズに失敗しました（保存を省略）",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		// リクエストコンテキストから独立した書き込み用タイムアウト
		ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
		defer cancel()

		if err := c.store.Set(ctx, key, b, ttl); err != nil {
			c.logger.Warn("キャッシュの保存に失敗しました（ベストエフォート）",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}()
}
