package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/repository"
)

// FeedURLDetector はフィード検出のインターフェース。
// テスタビリティのためDetectorを抽象化する。
type FeedURLDetector interface {
	DetectFeedURL(ctx context.Context, inputURL string) (string, error)
}

// Service はソース登録・参照のサービス層。
// 検出 → 重複チェック → 保存のフローを統括する。
type Service struct {
	sources  repository.SourceRepository
	detector FeedURLDetector
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(sources repository.SourceRepository, detector FeedURLDetector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		sources:  sources,
		detector: detector,
		logger:   logger,
	}
}

// Register はURLからフィードを検出し、ソースとして登録する。
// フロー: 入力検証 → ソース名の重複チェック → フィードURL自動検出 → 保存
func (s *Service) Register(ctx context.Context, name, inputURL, category string) (*model.Source, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, model.NewInvalidRequestError("ソース名（name）が指定されていません")
	}
	if strings.TrimSpace(inputURL) == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}

	existing, err := s.sources.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateSourceError(name)
	}

	feedURL, err := s.detector.DetectFeedURL(ctx, inputURL)
	if err != nil {
		return nil, err
	}

	src := &model.Source{
		ID:        uuid.New().String(),
		Name:      name,
		URL:       inputURL,
		FeedURL:   feedURL,
		Category:  category,
		CreatedAt: time.Now(),
	}
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("ソースの保存に失敗しました: %w", err)
	}

	s.logger.Info("source registered",
		slog.String("source_id", src.ID),
		slog.String("name", src.Name),
		slog.String("feed_url", src.FeedURL),
	)

	return src, nil
}

// FindByName はソース名でソースを取得する。
// 見つからない場合はSOURCE_NOT_FOUNDエラーを返す。
func (s *Service) FindByName(ctx context.Context, name string) (*model.Source, error) {
	src, err := s.sources.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
	}
	if src == nil {
		return nil, model.NewSourceNotFoundError(name)
	}
	return src, nil
}

// ListAll は登録済みの全ソースを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Source, error) {
	sources, err := s.sources.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	return sources, nil
}
