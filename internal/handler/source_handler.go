package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hitoshi/newsflow/internal/model"
)

// SourceServiceInterface はソースハンドラーが必要とするサービスインターフェース。
type SourceServiceInterface interface {
	// Register はURLからフィードを検出し、ソースとして登録する。
	Register(ctx context.Context, name, inputURL, category string) (*model.Source, error)
	// ListAll は登録済みの全ソースを返す。
	ListAll(ctx context.Context) ([]*model.Source, error)
}

// SourceHandler はソースAPIのHTTPハンドラー。
type SourceHandler struct {
	service SourceServiceInterface
}

// NewSourceHandler はSourceHandlerを生成する。
func NewSourceHandler(service SourceServiceInterface) *SourceHandler {
	return &SourceHandler{service: service}
}

// registerSourceRequest はソース登録リクエストのボディ。
type registerSourceRequest struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category"`
}

// sourceResponse はソースのAPIレスポンス。
type sourceResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	FeedURL   string    `json:"feed_url"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// sourceListResponse はソース一覧のレスポンス。
type sourceListResponse struct {
	Sources []sourceResponse `json:"sources"`
}

// toSourceResponse はmodel.SourceからAPIレスポンスに変換する。
func toSourceResponse(src *model.Source) sourceResponse {
	return sourceResponse{
		ID:        src.ID,
		Name:      src.Name,
		URL:       src.URL,
		FeedURL:   src.FeedURL,
		Category:  src.Category,
		CreatedAt: src.CreatedAt,
	}
}

// Register はソースを登録する。
// POST /api/sources
// URLからフィードを自動検出し、検出できたフィードURLとともに保存する。
func (h *SourceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("リクエストボディのJSONが不正です"))
		return
	}

	src, err := h.service.Register(r.Context(), req.Name, req.URL, req.Category)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSourceResponse(src))
}

// List は登録済みソースの一覧を取得する。
// GET /api/sources
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := sourceListResponse{Sources: make([]sourceResponse, 0, len(sources))}
	for _, src := range sources {
		resp.Sources = append(resp.Sources, toSourceResponse(src))
	}

	writeJSON(w, http.StatusOK, resp)
}
