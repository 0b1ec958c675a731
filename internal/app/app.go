// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newsflow/internal/article"
	"github.com/hitoshi/newsflow/internal/cache"
	"github.com/hitoshi/newsflow/internal/config"
	"github.com/hitoshi/newsflow/internal/database"
	"github.com/hitoshi/newsflow/internal/handler"
	"github.com/hitoshi/newsflow/internal/logger"
	"github.com/hitoshi/newsflow/internal/metrics"
	"github.com/hitoshi/newsflow/internal/middleware"
	"github.com/hitoshi/newsflow/internal/recommend"
	"github.com/hitoshi/newsflow/internal/repository"
	"github.com/hitoshi/newsflow/internal/search"
	"github.com/hitoshi/newsflow/internal/searchcluster"
	"github.com/hitoshi/newsflow/internal/security"
	"github.com/hitoshi/newsflow/internal/source"
	"github.com/hitoshi/newsflow/internal/worker/ingest"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	articleRepo := repository.NewPostgresArticleRepo(db)
	prefRepo := repository.NewPostgresPreferenceRepo(db)
	viewRepo := repository.NewPostgresViewEventRepo(db)
	sourceRepo := repository.NewPostgresSourceRepo(db)
	syncJobRepo := repository.NewPostgresSyncJobRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. キャッシュ層の初期化。
	// Redis未構成の場合はcompute直接実行へ縮退する（フェイルオープン）。
	var store cache.Store
	if cfg.CacheEnabled() {
		redisStore := cache.NewRedisStore(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisStore.Close()
		store = redisStore
		slog.Info("cache backend configured", slog.String("addr", cfg.RedisAddr))
	} else {
		slog.Info("cache backend not configured, running without cache")
	}
	appCache := cache.New(store, slog.Default(), collector)

	// 5. 検索ティアの選択（起動時に1回だけ。リクエストごとの再評価は行わない）
	var clusterSearcher search.ClusterSearcher
	var clusterPinger search.ClusterPinger
	if cfg.SearchClusterEnabled() {
		clusterClient := searchcluster.NewClient(searchcluster.Config{
			BaseURL:    cfg.SearchClusterURL,
			APIKey:     cfg.SearchClusterAPIKey,
			Collection: cfg.SearchClusterCollection,
			Timeout:    cfg.QueryTimeout,
		}, slog.Default())
		clusterSearcher = clusterClient
		clusterPinger = clusterClient
	}

	tierCtx, tierCancel := context.WithTimeout(context.Background(), cfg.QueryTimeout)
	tier := search.SelectTier(tierCtx, clusterPinger, cfg.SearchUseFulltext, slog.Default())
	tierCancel()

	slog.Info("search tier selected", slog.String("tier", string(tier)))

	resolver := search.NewResolver(
		tier, clusterSearcher, articleRepo,
		appCache, cfg.CacheTTL, collector, slog.Default(),
	)

	// 6. ドメインサービスの初期化
	engine := recommend.NewEngine(
		prefRepo, articleRepo, viewRepo,
		appCache, cfg.CacheTTL, cfg.RecommendHistoryLimit,
		collector, slog.Default(),
	)

	articleService := article.NewService(articleRepo, viewRepo, collector, slog.Default())

	ssrfGuard := security.NewSSRFGuard()
	detector := source.NewDetector(ssrfGuard, cfg.FetchTimeout, cfg.FetchMaxSize)
	sourceService := source.NewService(sourceRepo, detector, slog.Default())

	syncQueue := ingest.NewQueue(syncJobRepo, sourceRepo, slog.Default())

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのレート値はreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rateLimit(cfg.RateLimitGeneral)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.IngestRate = rateLimit(cfg.RateLimitSyncEnqueue)
	rateLimiterCfg.IngestBurst = cfg.RateLimitSyncEnqueue

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		QueryTimeout:      cfg.QueryTimeout,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		SearchService:    resolver,
		RecommendService: engine,
		ArticleService:   articleService,
		SourceService:    sourceService,
		SyncQueue:        syncQueue,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("search_tier", string(tier)),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 実行中の非同期キャッシュ書き込みを待ってから終了する
	appCache.Flush()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はインジェスションワーカーモードで起動する。
// DB接続を開き、同期ジョブキューのポーリングワーカーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	articleRepo := repository.NewPostgresArticleRepo(db)
	sourceRepo := repository.NewPostgresSourceRepo(db)
	syncJobRepo := repository.NewPostgresSyncJobRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. フェッチャーの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	fetcher := ingest.NewFetcher(
		articleRepo, ssrfGuard, sanitizer,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize, cfg.QueryTimeout,
	)

	// 5. ワーカーの初期化
	worker := ingest.NewWorker(
		syncJobRepo, sourceRepo, fetcher,
		collector, slog.Default(), cfg.WorkerPollInterval, cfg.QueryTimeout,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// Prometheusスクレイプ用のメトリクスエンドポイントをバックグラウンドで公開
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		slog.Info("worker metrics endpoint starting", slog.String("addr", metricsServer.Addr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.WorkerPollInterval),
	)

	// ポーリングワーカーをメインgoroutineで実行（ブロッキング）
	worker.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimit はreq/min単位の設定値をreq/sec単位のレートに変換する。
func rateLimit(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
