package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/repository"
)

// Queue は同期ジョブの投入と照会を提供するサービス。
// APIサーバープロセスから使用され、処理自体はワーカープロセスが行う。
type Queue struct {
	jobs    repository.SyncJobRepository
	sources repository.SourceRepository
	logger  *slog.Logger
}

// NewQueue はQueueを生成する。
func NewQueue(jobs repository.SyncJobRepository, sources repository.SourceRepository, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		jobs:    jobs,
		sources: sources,
		logger:  logger,
	}
}

// Enqueue は同期ジョブをpending状態でキューに投入する。
// sourceが空の場合はワイルドカード（全ソース対象）として扱う。
// 名前指定の場合は登録済みソースであることを検証する。
// 投入は非同期であり、呼び出し元は処理完了を待たずにジョブIDを受け取る。
func (q *Queue) Enqueue(ctx context.Context, source string) (*model.SyncJob, error) {
	if source == "" {
		source = model.SyncJobSourceAll
	}

	if source != model.SyncJobSourceAll {
		src, err := q.sources.FindByName(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
		}
		if src == nil {
			return nil, model.NewSourceNotFoundError(source)
		}
	}

	job := &model.SyncJob{
		ID:         uuid.New().String(),
		Source:     source,
		Status:     model.JobStatusPending,
		EnqueuedAt: time.Now(),
	}
	if err := q.jobs.Enqueue(ctx, job); err != nil {
		return nil, model.NewQueueUnavailableError()
	}

	q.logger.Info("sync job enqueued",
		slog.String("job_id", job.ID),
		slog.String("source", job.Source),
	)

	return job, nil
}

// Status は指定IDのジョブの現在の状態を返す。
// 見つからない場合はJOB_NOT_FOUNDエラーを返す。
func (q *Queue) Status(ctx context.Context, id string) (*model.SyncJob, error) {
	job, err := q.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ジョブの取得に失敗しました: %w", err)
	}
	if job == nil {
		return nil, model.NewJobNotFoundError(id)
	}
	return job, nil
}
