// Package recommend は多段フォールバック型のレコメンドエンジンを提供する。
// 嗜好スコアリング → 協調フィルタリング → 全体トレンドの順に縮退し、
// 最初に空でない結果を返したティアが勝つ。ティア間でスコアの合成は行わない。
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsflow/internal/cache"
	"github.com/hitoshi/newsflow/internal/metrics"
	"github.com/hitoshi/newsflow/internal/model"
)

// ティア名（メトリクスとログで使用）
const (
	tierPreference    = "preference"
	tierCollaborative = "collaborative"
	tierTrending      = "trending"
)

// defaultCount はレコメンド件数のデフォルト値。
const defaultCount = 10

// PreferenceFinder はユーザー嗜好設定の取得インターフェース。
type PreferenceFinder interface {
	FindByUserID(ctx context.Context, userID string) (*model.UserPreference, error)
}

// ArticleLister は記事一覧取得のインターフェース。
// repository.ArticleRepositoryのサブセット。
type ArticleLister interface {
	ListScoredByPreferences(ctx context.Context, pref *model.UserPreference, limit int) ([]model.Article, error)
	ListTrending(ctx context.Context, limit int) ([]model.Article, error)
}

// ViewLister は閲覧履歴取得のインターフェース。
type ViewLister interface {
	ListRecentArticleIDsByUser(ctx context.Context, userID string, limit int) ([]string, error)
	ListCoViewedArticles(ctx context.Context, userID string, articleIDs []string, limit int) ([]model.Article, error)
}

// Engine は多段フォールバック型のレコメンドエンジン。
type Engine struct {
	prefs        PreferenceFinder
	articles     ArticleLister
	views        ViewLister
	cache        *cache.Cache
	cacheTTL     time.Duration
	historyLimit int
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
}

// NewEngine はEngineを生成する。metricsはnil可。
// historyLimitは協調フィルタリングで参照する直近閲覧履歴の上限件数。
func NewEngine(
	prefs PreferenceFinder,
	articles ArticleLister,
	views ViewLister,
	c *cache.Cache,
	cacheTTL time.Duration,
	historyLimit int,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Engine {
	if historyLimit <= 0 {
		historyLimit = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		prefs:        prefs,
		articles:     articles,
		views:        views,
		cache:        c,
		cacheTTL:     cacheTTL,
		historyLimit: historyLimit,
		metrics:      collector,
		logger:       logger,
	}
}

// Recommend はユーザー（または匿名訪問者）向けの記事一覧を返す。
//
// ティアは相互排他で、順に試行し最初に1件以上を返したティアで確定する:
//  1. userIDが空の場合はトレンドティアへ直行する（匿名に個人化は行わない）
//  2. 嗜好スコアティア。嗜好が未登録でも実行され、全件スコア0の
//     日付順として返る。結果が本当に空の場合のみ次へ進む
//  3. 協調フィルタリングティア。閲覧履歴が空ならスキップする
//  4. トレンドティア。コーパスが空でない限り空を返さず、チェーンを終端する
func (e *Engine) Recommend(ctx context.Context, userID string, count int) ([]model.Article, error) {
	if count < 1 {
		count = defaultCount
	}

	// ティア1: 匿名はトレンドへ直行
	if userID == "" {
		return e.trending(ctx, count)
	}

	// ティア2: 嗜好スコアリング
	articles, err := e.byPreferences(ctx, userID, count)
	if err != nil {
		return nil, err
	}
	if len(articles) > 0 {
		e.recordTier(tierPreference)
		return articles, nil
	}

	// ティア3: 協調フィルタリング（閲覧履歴がある場合のみ）
	articles, err = e.byCoViews(ctx, userID, count)
	if err != nil {
		return nil, err
	}
	if len(articles) > 0 {
		e.recordTier(tierCollaborative)
		return articles, nil
	}

	// ティア4: 全体トレンド
	return e.trending(ctx, count)
}

// byPreferences は嗜好スコア順の記事一覧を返す。
// 嗜好レコードが存在しないユーザーには空の嗜好として実行し、
// スコア0の日付順へ縮退させる（ここでは空振りさせない）。
func (e *Engine) byPreferences(ctx context.Context, userID string, count int) ([]model.Article, error) {
	pref, err := e.prefs.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("嗜好設定の取得に失敗しました: %w", err)
	}
	if pref == nil {
		pref = &model.UserPreference{UserID: userID}
	}

	articles, err := e.articles.ListScoredByPreferences(ctx, pref, count)
	if err != nil {
		return nil, fmt.Errorf("嗜好スコアティアでの取得に失敗しました: %w", err)
	}

	return articles, nil
}

// byCoViews は「Xを見た人はYも見ている」協調フィルタリングを実行する。
// 学習モデルではなく単純な共起結合であり、順位は他ユーザーの閲覧日時降順。
func (e *Engine) byCoViews(ctx context.Context, userID string, count int) ([]model.Article, error) {
	history, err := e.views.ListRecentArticleIDsByUser(ctx, userID, e.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("閲覧履歴の取得に失敗しました: %w", err)
	}
	if len(history) == 0 {
		return nil, nil
	}

	articles, err := e.views.ListCoViewedArticles(ctx, userID, history, count)
	if err != nil {
		return nil, fmt.Errorf("協調フィルタリングティアでの取得に失敗しました: %w", err)
	}

	return articles, nil
}

// trending は可視記事をviews降順で返す最終フォールバック。
// 全呼び出し元で共有されるためcache-asideでラップする。
func (e *Engine) trending(ctx context.Context, count int) ([]model.Article, error) {
	key := fmt.Sprintf("recommend:trending:%d", count)
	articles, err := cache.GetOrCompute(ctx, e.cache, key, e.cacheTTL, func(ctx context.Context) ([]model.Article, error) {
		return e.articles.ListTrending(ctx, count)
	})
	if err != nil {
		return nil, fmt.Errorf("トレンドティアでの取得に失敗しました: %w", err)
	}

	e.recordTier(tierTrending)
	return articles, nil
}

// recordTier は結果を確定させたティアをメトリクスに記録する。
func (e *Engine) recordTier(tier string) {
	if e.metrics != nil {
		e.metrics.RecordRecommendTier(tier)
	}
}
