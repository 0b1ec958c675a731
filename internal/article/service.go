// Package article は記事に対する読み取り系のユースケースを提供する。
package article

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsflow/internal/metrics"
	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/repository"
)

// Service は記事の取得・閲覧記録を担うサービス。
type Service struct {
	articles repository.ArticleRepository
	views    repository.ViewEventRepository
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。metricsはnil可。
func NewService(
	articles repository.ArticleRepository,
	views repository.ViewEventRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		articles: articles,
		views:    views,
		metrics:  collector,
		logger:   logger,
	}
}

// FindByID は指定IDの可視記事を返す。
// 記事が存在しない場合、およびscheduled_forが未来で公開前の場合は
// ARTICLE_NOT_FOUNDエラーを返す。公開前の記事はIDを知っていても参照できない。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Article, error) {
	article, err := s.articles.FindVisibleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	if article == nil {
		return nil, model.NewArticleNotFoundError(id)
	}
	return article, nil
}

// RecordView は記事の閲覧を記録する。
//
// 閲覧数はストア側でアトミックにインクリメントし（views = views + 1）、
// アプリケーション側でのread-modify-writeは行わない。並行する閲覧は
// すべて正確に計上される。userIDが空でない場合は協調フィルタリング用の
// 閲覧イベントも追記する。イベント追記の失敗は閲覧数の計上を妨げない。
func (s *Service) RecordView(ctx context.Context, articleID, userID string) error {
	found, err := s.articles.IncrementViews(ctx, articleID)
	if err != nil {
		return fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}
	if !found {
		return model.NewArticleNotFoundError(articleID)
	}

	if s.metrics != nil {
		s.metrics.RecordViewRecorded()
	}

	// 匿名閲覧はカウントのみで履歴は残さない
	if userID == "" {
		return nil
	}

	event := &model.ViewEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		ArticleID: articleID,
		ViewedAt:  time.Now(),
	}
	if err := s.views.Create(ctx, event); err != nil {
		// 閲覧数の計上は成功しているため、履歴の欠損はログのみで続行する
		s.logger.Warn("閲覧イベントの記録に失敗しました",
			slog.String("article_id", articleID),
			slog.String("error", err.Error()),
		)
	}

	return nil
}

// Trending は可視記事をviews降順で返す。
func (s *Service) Trending(ctx context.Context, limit int) ([]model.Article, error) {
	if limit < 1 {
		limit = 10
	}
	articles, err := s.articles.ListTrending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("トレンド記事の取得に失敗しました: %w", err)
	}
	return articles, nil
}
