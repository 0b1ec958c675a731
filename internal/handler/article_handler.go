package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsflow/internal/middleware"
	"github.com/hitoshi/newsflow/internal/model"
)

// defaultTrendingLimit はトレンド一覧のデフォルト件数。
const defaultTrendingLimit = 10

// ArticleServiceInterface は記事ハンドラーが必要とするサービスインターフェース。
type ArticleServiceInterface interface {
	// FindByID は指定IDの記事を返す。
	FindByID(ctx context.Context, id string) (*model.Article, error)
	// RecordView は閲覧数のインクリメントと閲覧イベントの追記を行う。
	RecordView(ctx context.Context, articleID, userID string) error
	// Trending は可視記事をviews降順で返す。
	Trending(ctx context.Context, limit int) ([]model.Article, error)
}

// ArticleHandler は記事APIのHTTPハンドラー。
type ArticleHandler struct {
	service ArticleServiceInterface
}

// NewArticleHandler はArticleHandlerを生成する。
func NewArticleHandler(service ArticleServiceInterface) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// trendingResponse はトレンド一覧のレスポンス。
type trendingResponse struct {
	Articles []articleResponse `json:"articles"`
}

// GetArticle は記事詳細を取得する。
// GET /api/articles/{id}
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	article, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toArticleDetail(*article))
}

// RecordView は記事の閲覧を記録する。
// POST /api/articles/{id}/view
// ユーザーIDはX-User-IDヘッダーで任意に申告される。匿名閲覧は
// カウントのみで閲覧履歴を残さない。
func (h *ArticleHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	userID := middleware.UserID(r)

	if err := h.service.RecordView(r.Context(), id, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Trending は閲覧数降順の記事一覧を取得する。
// GET /api/trending?limit=10
func (h *ArticleHandler) Trending(w http.ResponseWriter, r *http.Request) {
	limit := parsePositiveInt(r.URL.Query().Get("limit"), defaultTrendingLimit)

	articles, err := h.service.Trending(r.Context(), limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, trendingResponse{
		Articles: toArticleSummaries(articles),
	})
}
