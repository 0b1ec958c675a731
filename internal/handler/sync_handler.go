package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsflow/internal/model"
)

// SyncQueueInterface は同期ジョブハンドラーが必要とするサービスインターフェース。
type SyncQueueInterface interface {
	// Enqueue は同期ジョブをキューに投入する。
	Enqueue(ctx context.Context, source string) (*model.SyncJob, error)
	// Status は指定IDのジョブの現在の状態を返す。
	Status(ctx context.Context, id string) (*model.SyncJob, error)
}

// SyncHandler は同期ジョブAPIのHTTPハンドラー。
type SyncHandler struct {
	queue SyncQueueInterface
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(queue SyncQueueInterface) *SyncHandler {
	return &SyncHandler{queue: queue}
}

// syncJobRequest は同期ジョブ投入リクエストのボディ。
type syncJobRequest struct {
	Source string `json:"source"` // ソース名。省略時は全ソース対象
}

// syncJobResponse は同期ジョブのレスポンス。
type syncJobResponse struct {
	ID            string     `json:"id"`
	Source        string     `json:"source"`
	Status        string     `json:"status"`
	EnqueuedAt    time.Time  `json:"enqueued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	InsertedCount int        `json:"inserted_count"`
	ErrorMessage  string     `json:"error_message,omitempty"`
}

// toSyncJobResponse はmodel.SyncJobからAPIレスポンスに変換する。
func toSyncJobResponse(job *model.SyncJob) syncJobResponse {
	return syncJobResponse{
		ID:            job.ID,
		Source:        job.Source,
		Status:        string(job.Status),
		EnqueuedAt:    job.EnqueuedAt,
		StartedAt:     job.StartedAt,
		FinishedAt:    job.FinishedAt,
		InsertedCount: job.InsertedCount,
		ErrorMessage:  job.ErrorMessage,
	}
}

// Enqueue は同期ジョブを投入する。
// POST /api/sync-jobs
// 投入は非同期であり、202 Acceptedとpending状態のジョブを返す。
func (h *SyncHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req syncJobRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("リクエストボディのJSONが不正です"))
			return
		}
	}

	job, err := h.queue.Enqueue(r.Context(), req.Source)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toSyncJobResponse(job))
}

// Status は同期ジョブの状態を取得する。
// GET /api/sync-jobs/{id}
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, err := h.queue.Status(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toSyncJobResponse(job))
}
