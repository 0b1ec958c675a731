package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/hitoshi/newsflow/internal/search"
)

// defaultSearchLimit は検索結果の1ページあたりのデフォルト件数。
const defaultSearchLimit = 10

// SearchServiceInterface は検索ハンドラーが必要とするサービスインターフェース。
type SearchServiceInterface interface {
	Search(ctx context.Context, query string, page, limit int) (*search.Result, error)
}

// SearchHandler は検索APIのHTTPハンドラー。
type SearchHandler struct {
	service SearchServiceInterface
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(service SearchServiceInterface) *SearchHandler {
	return &SearchHandler{service: service}
}

// searchResponse は検索結果のレスポンス。
type searchResponse struct {
	Articles    []articleResponse `json:"articles"`
	TotalPages  int               `json:"total_pages"`
	CurrentPage int               `json:"current_page"`
}

// Search は記事を検索する。
// GET /api/search?q=keyword&page=1&limit=10
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	page := parsePositiveInt(r.URL.Query().Get("page"), 1)
	limit := parsePositiveInt(r.URL.Query().Get("limit"), defaultSearchLimit)

	result, err := h.service.Search(r.Context(), query, page, limit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Articles:    toArticleSummaries(result.Articles),
		TotalPages:  result.TotalPages,
		CurrentPage: result.CurrentPage,
	})
}

// parsePositiveInt は正の整数のクエリパラメータをパースする。
// 空・不正・0以下の場合はフォールバック値を返す。
func parsePositiveInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
