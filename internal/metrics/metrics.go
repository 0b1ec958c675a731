// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 検索リゾルバ、レコメンドエンジン、インジェスションワーカーから利用する。
type MetricsCollector interface {
	RecordSearch(tier string)
	RecordSearchFailure(tier string)
	RecordRecommendTier(tier string)
	RecordViewRecorded()
	RecordSyncJobCompleted()
	RecordSyncJobFailed()
	RecordArticlesUpserted(count int)
	RecordCacheHit()
	RecordCacheMiss()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	searchRequests   *prometheus.CounterVec
	searchFailures   *prometheus.CounterVec
	recommendTiers   *prometheus.CounterVec
	viewsRecorded    prometheus.Counter
	syncJobCompleted prometheus.Counter
	syncJobFailed    prometheus.Counter
	articlesUpserted prometheus.Counter
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsflow_search_requests_total",
			Help: "検索リクエストのティア別合計数",
		}, []string{"tier"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsflow_search_failures_total",
			Help: "検索バックエンド失敗のティア別合計数",
		}, []string{"tier"}),
		recommendTiers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "newsflow_recommend_tier_total",
			Help: "レコメンド結果を確定させたティア別の合計数",
		}, []string{"tier"}),
		viewsRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_views_recorded_total",
			Help: "記録された閲覧イベントの合計数",
		}),
		syncJobCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_sync_jobs_completed_total",
			Help: "完了した同期ジョブの合計数",
		}),
		syncJobFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_sync_jobs_failed_total",
			Help: "失敗した同期ジョブの合計数",
		}),
		articlesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_articles_upserted_total",
			Help: "アップサートされた記事の合計数",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_cache_hits_total",
			Help: "キャッシュヒットの合計数",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "newsflow_cache_misses_total",
			Help: "キャッシュミスの合計数（バックエンドエラーのフェイルオープンを含む）",
		}),
	}

	reg.MustRegister(
		c.searchRequests,
		c.searchFailures,
		c.recommendTiers,
		c.viewsRecorded,
		c.syncJobCompleted,
		c.syncJobFailed,
		c.articlesUpserted,
		c.cacheHits,
		c.cacheMisses,
	)

	return c
}

// RecordSearch は検索リクエストをティア別に記録する。
func (c *Collector) RecordSearch(tier string) {
	c.searchRequests.WithLabelValues(tier).Inc()
}

// RecordSearchFailure は検索バックエンドの失敗をティア別に記録する。
func (c *Collector) RecordSearchFailure(tier string) {
	c.searchFailures.WithLabelValues(tier).Inc()
}

// RecordRecommendTier はレコメンド結果を確定させたティアを記録する。
func (c *Collector) RecordRecommendTier(tier string) {
	c.recommendTiers.WithLabelValues(tier).Inc()
}

// RecordViewRecorded は閲覧イベントの記録を記録する。
func (c *Collector) RecordViewRecorded() {
	c.viewsRecorded.Inc()
}

// RecordSyncJobCompleted は同期ジョブの完了を記録する。
func (c *Collector) RecordSyncJobCompleted() {
	c.syncJobCompleted.Inc()
}

// RecordSyncJobFailed は同期ジョブの失敗を記録する。
func (c *Collector) RecordSyncJobFailed() {
	c.syncJobFailed.Inc()
}

// RecordArticlesUpserted はアップサートされた記事数を記録する。
func (c *Collector) RecordArticlesUpserted(count int) {
	c.articlesUpserted.Add(float64(count))
}

// RecordCacheHit はキャッシュヒットを記録する。
func (c *Collector) RecordCacheHit() {
	c.cacheHits.Inc()
}

// RecordCacheMiss はキャッシュミスを記録する。
func (c *Collector) RecordCacheMiss() {
	c.cacheMisses.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
