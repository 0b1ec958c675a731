// Package search は多段フォールバック型の検索リゾルバを提供する。
// 外部検索クラスタ → リレーショナル全文検索 → パターンマッチの順に
// 能力の低いバックエンドへ縮退する。使用するティアは起動時に1回だけ
// 決定され、リクエストごとの再評価は行わない。
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/newsflow/internal/cache"
	"github.com/hitoshi/newsflow/internal/metrics"
	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/searchcluster"
)

// Tier は検索バックエンドのティアを表す。
// 構成から1回だけ選択される明示的な列挙であり、オブジェクトの有無による
// 暗黙のティア判定は行わない。選択結果はログとメトリクスから検査可能。
type Tier string

const (
	// TierCluster は外部検索クラスタティア。順位付けはクラスタが所有する。
	TierCluster Tier = "cluster"
	// TierFulltext はリレーショナル全文検索ティア。ストアの関連度スコア順。
	TierFulltext Tier = "fulltext"
	// TierPattern は部分文字列マッチの最終フォールバックティア。公開日時順。
	TierPattern Tier = "pattern"
)

// ClusterSearcher は外部検索クラスタの検索インターフェース。
type ClusterSearcher interface {
	Search(ctx context.Context, query string, page, perPage int) (*searchcluster.Result, error)
}

// ClusterPinger は外部検索クラスタの到達性確認インターフェース。
type ClusterPinger interface {
	Ping(ctx context.Context) error
}

// ArticleSearcher はリレーショナルストア側の検索インターフェース。
// repository.ArticleRepositoryのサブセット。
type ArticleSearcher interface {
	SearchFulltext(ctx context.Context, query string, limit, offset int) ([]model.Article, error)
	CountFulltext(ctx context.Context, query string) (int, error)
	SearchPattern(ctx context.Context, query string, limit, offset int) ([]model.Article, error)
	CountPattern(ctx context.Context, query string) (int, error)
}

// SelectTier は構成と到達性から検索ティアを1回だけ選択する。
// クラスタが構成されていて到達可能ならTierCluster、
// 到達不能または未構成で全文検索が有効ならTierFulltext、
// それ以外はTierPatternを返す。
// デプロイごとにランキング挙動が安定するという単純さ優先のトレードオフであり、
// リクエスト中の再評価やティアの混在は行わない。
func SelectTier(ctx context.Context, pinger ClusterPinger, useFulltext bool, logger *slog.Logger) Tier {
	if pinger != nil {
		if err := pinger.Ping(ctx); err == nil {
			return TierCluster
		} else {
			logger.Warn("検索クラスタに到達できないため下位ティアへ縮退します",
				slog.String("error", err.Error()),
			)
		}
	}
	if useFulltext {
		return TierFulltext
	}
	return TierPattern
}

// Result は検索結果のページを表す。
type Result struct {
	Articles    []model.Article `json:"articles"`
	TotalPages  int             `json:"total_pages"`
	CurrentPage int             `json:"current_page"`
}

// Resolver は多段フォールバック型の検索リゾルバ。
// ティアはプロセス起動時に固定され、全リクエストで同一ティアを使用する。
type Resolver struct {
	tier     Tier
	cluster  ClusterSearcher
	articles ArticleSearcher
	cache    *cache.Cache
	cacheTTL time.Duration
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewResolver はResolverを生成する。
// tierがTierClusterの場合はclusterが必須。metricsはnil可。
func NewResolver(
	tier Tier,
	cluster ClusterSearcher,
	articles ArticleSearcher,
	c *cache.Cache,
	cacheTTL time.Duration,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		tier:     tier,
		cluster:  cluster,
		articles: articles,
		cache:    c,
		cacheTTL: cacheTTL,
		metrics:  collector,
		logger:   logger,
	}
}

// Tier は選択中の検索ティアを返す。
func (r *Resolver) Tier() Tier {
	return r.tier
}

// Search は検索を実行し、記事一覧と総ページ数を返す。
//
// queryはトリム後に空であってはならない。空の場合はバックエンドを
// 呼び出すことなく入力エラーを返す。
// バックエンド障害はキャッシュ層と異なり呼び出し元へ伝播する。
// 誤った/空の結果を返すことは明示的なエラーより悪いため。
func (r *Resolver) Search(ctx context.Context, query string, page, limit int) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.NewQueryRequiredError()
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	if r.metrics != nil {
		r.metrics.RecordSearch(string(r.tier))
	}

	key := fmt.Sprintf("search:%s:%s:p%d:l%d", r.tier, query, page, limit)
	result, err := cache.GetOrCompute(ctx, r.cache, key, r.cacheTTL, func(ctx context.Context) (*Result, error) {
		return r.searchBackend(ctx, query, page, limit)
	})
	if err != nil {
		if r.metrics != nil {
			r.metrics.RecordSearchFailure(string(r.tier))
		}
		return nil, err
	}

	return result, nil
}

// searchBackend は選択中のティアで検索を実行する。
func (r *Resolver) searchBackend(ctx context.Context, query string, page, limit int) (*Result, error) {
	switch r.tier {
	case TierCluster:
		return r.searchCluster(ctx, query, page, limit)
	case TierFulltext:
		return r.searchFulltext(ctx, query, page, limit)
	default:
		return r.searchPattern(ctx, query, page, limit)
	}
}

// searchCluster は外部検索クラスタへクエリとページネーションをそのまま転送する。
// 順位付けはクラスタが所有し、リゾルバは並べ替えを行わない。
func (r *Resolver) searchCluster(ctx context.Context, query string, page, limit int) (*Result, error) {
	res, err := r.cluster.Search(ctx, query, page, limit)
	if err != nil {
		return nil, fmt.Errorf("検索クラスタティアでの検索に失敗しました: %w", err)
	}

	articles := make([]model.Article, 0, len(res.Documents))
	for _, doc := range res.Documents {
		articles = append(articles, fromDocument(doc))
	}

	return &Result{
		Articles:    articles,
		TotalPages:  totalPages(res.Found, limit),
		CurrentPage: page,
	}, nil
}

// searchFulltext はリレーショナルストアの全文検索インデックスを使用する。
// 件数は同一述語の並行カウントクエリから計算する。
func (r *Resolver) searchFulltext(ctx context.Context, query string, page, limit int) (*Result, error) {
	offset := (page - 1) * limit

	articles, err := r.articles.SearchFulltext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("全文検索ティアでの検索に失敗しました: %w", err)
	}

	total, err := r.articles.CountFulltext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("全文検索ティアでの件数取得に失敗しました: %w", err)
	}

	return &Result{
		Articles:    articles,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

// searchPattern は部分文字列マッチの最終フォールバック。
// 関連度スコアは利用できず、公開日時降順となる。
func (r *Resolver) searchPattern(ctx context.Context, query string, page, limit int) (*Result, error) {
	offset := (page - 1) * limit

	articles, err := r.articles.SearchPattern(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("パターン検索ティアでの検索に失敗しました: %w", err)
	}

	total, err := r.articles.CountPattern(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("パターン検索ティアでの件数取得に失敗しました: %w", err)
	}

	return &Result{
		Articles:    articles,
		TotalPages:  totalPages(total, limit),
		CurrentPage: page,
	}, nil
}

// totalPages はceil(found / limit)を計算する。
func totalPages(found, limit int) int {
	if found <= 0 {
		return 0
	}
	return (found + limit - 1) / limit
}

// fromDocument は検索クラスタのドキュメントをArticleへ変換する。
func fromDocument(doc searchcluster.Document) model.Article {
	return model.Article{
		ID:          doc.ID,
		Title:       doc.Title,
		Description: doc.Description,
		Body:        doc.Body,
		Category:    doc.Category,
		Tags:        doc.Tags,
		PublishedAt: time.Unix(doc.PublishedAt, 0).UTC(),
		Views:       doc.Views,
	}
}
