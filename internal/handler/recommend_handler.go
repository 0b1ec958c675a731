package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/newsflow/internal/middleware"
	"github.com/hitoshi/newsflow/internal/model"
)

// defaultRecommendCount はレコメンド件数のデフォルト値。
const defaultRecommendCount = 10

// RecommendServiceInterface はレコメンドハンドラーが必要とするサービスインターフェース。
type RecommendServiceInterface interface {
	Recommend(ctx context.Context, userID string, count int) ([]model.Article, error)
}

// RecommendHandler はレコメンドAPIのHTTPハンドラー。
type RecommendHandler struct {
	service RecommendServiceInterface
}

// NewRecommendHandler はRecommendHandlerを生成する。
func NewRecommendHandler(service RecommendServiceInterface) *RecommendHandler {
	return &RecommendHandler{service: service}
}

// recommendResponse はレコメンド結果のレスポンス。
type recommendResponse struct {
	Articles []articleResponse `json:"articles"`
}

// Recommend はユーザー（または匿名訪問者）向けのレコメンド記事一覧を返す。
// GET /api/recommendations?count=10
// ユーザーIDはX-User-IDヘッダーで任意に申告される。未申告は匿名扱い。
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	count := parsePositiveInt(r.URL.Query().Get("count"), defaultRecommendCount)

	articles, err := h.service.Recommend(r.Context(), userID, count)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, recommendResponse{
		Articles: toArticleSummaries(articles),
	})
}
