// Package handler はAPIエンドポイントのHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/newsflow/internal/model"
)

// apiErrorResponse はAPIエラーレスポンスの統一フォーマット。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// articleResponse は記事のAPIレスポンス。
type articleResponse struct {
	ID          string    `json:"id"`
	SourceID    string    `json:"source_id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Body        string    `json:"body,omitempty"` // サニタイズ済みHTML。一覧では省略
	Category    string    `json:"category"`
	Tags        []string  `json:"tags"`
	PublishedAt time.Time `json:"published_at"`
	Views       int64     `json:"views"`
}

// toArticleSummary はmodel.Articleから一覧用レスポンス（本文なし）に変換する。
// タグなしの記事もnullではなく空配列としてシリアライズする。
func toArticleSummary(a model.Article) articleResponse {
	tags := a.Tags
	if tags == nil {
		tags = []string{}
	}
	return articleResponse{
		ID:          a.ID,
		SourceID:    a.SourceID,
		Title:       a.Title,
		Description: a.Description,
		Category:    a.Category,
		Tags:        tags,
		PublishedAt: a.PublishedAt,
		Views:       a.Views,
	}
}

// toArticleDetail はmodel.Articleから詳細用レスポンス（本文付き）に変換する。
func toArticleDetail(a model.Article) articleResponse {
	resp := toArticleSummary(a)
	resp.Body = a.Body
	return resp
}

// toArticleSummaries は記事スライスを一覧用レスポンスに変換する。
// nilスライスも空配列としてシリアライズする。
func toArticleSummaries(articles []model.Article) []articleResponse {
	out := make([]articleResponse, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleSummary(a))
	}
	return out
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	writeJSON(w, statusCode, apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeQueryRequired, model.ErrCodeInvalidURL, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeArticleNotFound, model.ErrCodeJobNotFound, model.ErrCodeSourceNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateSource:
		return http.StatusConflict
	case model.ErrCodeFeedNotDetected:
		return http.StatusUnprocessableEntity
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeFetchFailed:
		return http.StatusBadGateway
	case model.ErrCodeQueueUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
