package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsflow/internal/middleware"
)

// HealthChecker はヘルスチェック対象のインターフェース。
// DB接続のPingを想定する。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// APIリクエスト配下のバックエンド呼び出しに適用するデッドライン。
	// 0以下の場合はデッドラインを設定しない
	QueryTimeout time.Duration

	// ヘルスチェック
	HealthChecker HealthChecker

	// Prometheusスクレイプ用ハンドラー。nilの場合は/metricsを公開しない
	MetricsHandler http.Handler

	// 検索
	SearchService SearchServiceInterface

	// レコメンド
	RecommendService RecommendServiceInterface

	// 記事
	ArticleService ArticleServiceInterface

	// ソース
	SourceService SourceServiceInterface

	// 同期ジョブ
	SyncQueue SyncQueueInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → QueryTimeout → RateLimit(General)
//
// ヘルスチェック（/health）はレート制限の外に配置する。
// フェッチを誘発するエンドポイント（ソース登録・同期ジョブ投入）には
// インジェスト専用のレート制限を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORSとセキュリティヘッダーは全ルートに効く
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())

	searchHandler := NewSearchHandler(deps.SearchService)
	recommendHandler := NewRecommendHandler(deps.RecommendService)
	articleHandler := NewArticleHandler(deps.ArticleService)
	sourceHandler := NewSourceHandler(deps.SourceService)
	syncHandler := NewSyncHandler(deps.SyncQueue)

	// ヘルスチェックとメトリクス（レート制限・リクエストログの外）
	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: Logging → QueryTimeout → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
		r.Use(middleware.NewQueryTimeoutMiddleware(deps.QueryTimeout))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 検索・レコメンド・トレンド
		r.Get("/api/search", searchHandler.Search)
		r.Get("/api/recommendations", recommendHandler.Recommend)
		r.Get("/api/trending", articleHandler.Trending)

		// 記事
		r.Route("/api/articles/{id}", func(r chi.Router) {
			r.Get("/", articleHandler.GetArticle)
			r.Post("/view", articleHandler.RecordView)
		})

		// ソース管理
		r.Route("/api/sources", func(r chi.Router) {
			// POST /api/sources - ソース登録（インジェスト専用レート制限を追加）
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/", sourceHandler.Register)
			r.Get("/", sourceHandler.List)
		})

		// 同期ジョブ
		r.Route("/api/sync-jobs", func(r chi.Router) {
			// POST /api/sync-jobs - ジョブ投入（インジェスト専用レート制限を追加）
			r.With(deps.RateLimiter.IngestMiddleware()).Post("/", syncHandler.Enqueue)
			r.Get("/{id}", syncHandler.Status)
		})
	})

	return r
}

// healthHandler はヘルスチェックのHTTPハンドラーを返す。
// DBにPingできれば200、できなければ503を返す。
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.Ping(); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unavailable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
