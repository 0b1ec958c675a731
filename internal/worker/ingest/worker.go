package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsflow/internal/metrics"
	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/repository"
)

// SourceFetcherService はソースフェッチの実行インターフェース。
type SourceFetcherService interface {
	// FetchSource はソースのフィードをフェッチし、新規挿入された記事数を返す。
	FetchSource(ctx context.Context, src *model.Source) (int, error)
}

// Worker は同期ジョブキューをポーリングで消化するワーカー。
//
// ジョブはFOR UPDATE SKIP LOCKEDで1件ずつ排他的にリースされ、
// pending → active → completed | failed と遷移する。自動リトライは
// 行わない。失敗ジョブはエラー内容と共にfailedのまま残り、
// 必要であれば新しいジョブとして再投入される。
type Worker struct {
	jobs         repository.SyncJobRepository
	sources      repository.SourceRepository
	fetcher      SourceFetcherService
	metrics      metrics.MetricsCollector
	logger       *slog.Logger
	pollInterval time.Duration
	queryTimeout time.Duration
}

// NewWorker はWorkerを生成する。metricsはnil可。
// queryTimeoutはリース・状態遷移・ソース解決などストア呼び出し1件ごとの上限。
// ワーカーのコンテキストは長命であるため、デッドラインなしでストアへ
// 問い合わせると応答しない接続がポーリングループ全体を停止させる。
func NewWorker(
	jobs repository.SyncJobRepository,
	sources repository.SourceRepository,
	fetcher SourceFetcherService,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	pollInterval time.Duration,
	queryTimeout time.Duration,
) *Worker {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		jobs:         jobs,
		sources:      sources,
		fetcher:      fetcher,
		metrics:      collector,
		logger:       logger,
		pollInterval: pollInterval,
		queryTimeout: queryTimeout,
	}
}

// Start はポーリングループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
// キューが空になるまで連続でジョブを消化し、空になったら
// ポーリング間隔だけ待機する。
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("ingest worker started",
		slog.Duration("poll_interval", w.pollInterval),
	)

	// 起動直後に1回キューを消化
	w.drainQueue(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ingest worker stopped")
			return
		case <-ticker.C:
			w.drainQueue(ctx)
		}
	}
}

// drainQueue はpendingジョブがなくなるまでリースと処理を繰り返す。
func (w *Worker) drainQueue(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("ジョブのリースに失敗しました",
				slog.String("error", err.Error()),
			)
			return
		}
		if !processed {
			return
		}
	}
}

// RunOnce はpendingジョブを1件リースして処理する。
// ジョブを処理した場合はtrueを、キューが空の場合はfalseを返す。
// ジョブ自体の失敗はfailedへの遷移として記録され、エラーとしては返さない。
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.leaseNext(ctx)
	if err != nil {
		return false, fmt.Errorf("ジョブのリースに失敗しました: %w", err)
	}
	if job == nil {
		return false, nil
	}

	w.logger.Info("sync job leased",
		slog.String("job_id", job.ID),
		slog.String("source", job.Source),
	)

	inserted, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Error("sync job failed",
			slog.String("job_id", job.ID),
			slog.String("source", job.Source),
			slog.String("error", err.Error()),
		)
		if markErr := w.markFailed(ctx, job.ID, err.Error()); markErr != nil {
			w.logger.Error("ジョブの失敗記録に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("error", markErr.Error()),
			)
		}
		if w.metrics != nil {
			w.metrics.RecordSyncJobFailed()
		}
		return true, nil
	}

	if err := w.markCompleted(ctx, job.ID, inserted); err != nil {
		w.logger.Error("ジョブの完了記録に失敗しました",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	if w.metrics != nil {
		w.metrics.RecordSyncJobCompleted()
		w.metrics.RecordArticlesUpserted(inserted)
	}

	w.logger.Info("sync job completed",
		slog.String("job_id", job.ID),
		slog.String("source", job.Source),
		slog.Int("inserted_count", inserted),
	)

	return true, nil
}

// processJob はジョブの対象ソースを解決し、順にフェッチする。
// 挿入記事数の合計を返す。いずれかのソースのフェッチが失敗した場合、
// ジョブ全体を失敗として扱う（それまでの挿入は取り消さない）。
func (w *Worker) processJob(ctx context.Context, job *model.SyncJob) (int, error) {
	targets, err := w.resolveSources(ctx, job.Source)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, src := range targets {
		inserted, err := w.fetcher.FetchSource(ctx, src)
		total += inserted
		if err != nil {
			return total, fmt.Errorf("ソース %s の取り込みに失敗しました: %w", src.Name, err)
		}
	}

	return total, nil
}

// resolveSources はジョブの対象ソースを解決する。
// ワイルドカード指定（*）は登録済みの全ソースを対象とする。
func (w *Worker) resolveSources(ctx context.Context, name string) ([]*model.Source, error) {
	storeCtx, cancel := w.storeCtx(ctx)
	defer cancel()

	if name == model.SyncJobSourceAll {
		sources, err := w.sources.ListAll(storeCtx)
		if err != nil {
			return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
		}
		return sources, nil
	}

	src, err := w.sources.FindByName(storeCtx, name)
	if err != nil {
		return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("対象ソースが見つかりません: %s", name)
	}

	return []*model.Source{src}, nil
}

// storeCtx はストア呼び出し1件分の有界コンテキストを生成する。
func (w *Worker) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, w.queryTimeout)
}

// leaseNext は有界コンテキストでジョブをリースする。
func (w *Worker) leaseNext(ctx context.Context) (*model.SyncJob, error) {
	storeCtx, cancel := w.storeCtx(ctx)
	defer cancel()
	return w.jobs.LeaseNext(storeCtx)
}

// markCompleted は有界コンテキストでジョブを完了状態へ遷移させる。
func (w *Worker) markCompleted(ctx context.Context, id string, inserted int) error {
	storeCtx, cancel := w.storeCtx(ctx)
	defer cancel()
	return w.jobs.MarkCompleted(storeCtx, id, inserted)
}

// markFailed は有界コンテキストでジョブを失敗状態へ遷移させる。
func (w *Worker) markFailed(ctx context.Context, id string, errorMessage string) error {
	storeCtx, cancel := w.storeCtx(ctx)
	defer cancel()
	return w.jobs.MarkFailed(storeCtx, id, errorMessage)
}
