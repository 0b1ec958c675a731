package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsflow/internal/model"
)

// syncJobColumns はSyncJobのSELECT対象カラム。scanSyncJobと対で維持する。
const syncJobColumns = `id, source, status, enqueued_at, started_at, finished_at,
       inserted_count, error_message`

// PostgresSyncJobRepo はPostgreSQLを使用した同期ジョブキューリポジトリ。
// FOR UPDATE SKIP LOCKEDにより、1ジョブにつき最大1ワーカーのリースを保証する。
type PostgresSyncJobRepo struct {
	db *sql.DB
}

// NewPostgresSyncJobRepo はPostgresSyncJobRepoを生成する。
func NewPostgresSyncJobRepo(db *sql.DB) *PostgresSyncJobRepo {
	return &PostgresSyncJobRepo{db: db}
}

// scanSyncJob は1行分の同期ジョブをスキャンする。
func scanSyncJob(s rowScanner) (*model.SyncJob, error) {
	job := &model.SyncJob{}
	var startedAt, finishedAt sql.NullTime

	if err := s.Scan(
		&job.ID, &job.Source, &job.Status, &job.EnqueuedAt,
		&startedAt, &finishedAt, &job.InsertedCount, &job.ErrorMessage,
	); err != nil {
		return nil, err
	}

	if startedAt.Valid {
		job.StartedAt = &startedAt.Time
	}
	if finishedAt.Valid {
		job.FinishedAt = &finishedAt.Time
	}

	return job, nil
}

// Enqueue はpending状態のジョブをキューに追加する。
func (r *PostgresSyncJobRepo) Enqueue(ctx context.Context, job *model.SyncJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, source, status, enqueued_at)
		 VALUES ($1, $2, $3, $4)`,
		job.ID, job.Source, model.JobStatusPending, job.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("同期ジョブの投入に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
func (r *PostgresSyncJobRepo) FindByID(ctx context.Context, id string) (*model.SyncJob, error) {
	job, err := scanSyncJob(r.db.QueryRowContext(ctx,
		`SELECT `+syncJobColumns+` FROM sync_jobs WHERE id = $1`,
		id,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("同期ジョブの取得に失敗しました: %w", err)
	}

	return job, nil
}

// LeaseNext は最も古いpendingジョブを1件排他的にリースしてactiveへ遷移させる。
// FOR UPDATE SKIP LOCKEDにより、複数ワーカーが同一ジョブを取得することはない。
// 対象がない場合はnilを返す。
func (r *PostgresSyncJobRepo) LeaseNext(ctx context.Context) (*model.SyncJob, error) {
	job, err := scanSyncJob(r.db.QueryRowContext(ctx,
		`UPDATE sync_jobs
		 SET status = $1, started_at = now()
		 WHERE id = (
		     SELECT id FROM sync_jobs
		     WHERE status = $2
		     ORDER BY enqueued_at
		     LIMIT 1
		     FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+syncJobColumns,
		model.JobStatusActive, model.JobStatusPending,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("同期ジョブのリースに失敗しました: %w", err)
	}

	return job, nil
}

// MarkCompleted はジョブを完了状態へ遷移させ、挿入記事数を記録する。
func (r *PostgresSyncJobRepo) MarkCompleted(ctx context.Context, id string, insertedCount int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs
		 SET status = $2, finished_at = now(), inserted_count = $3
		 WHERE id = $1`,
		id, model.JobStatusCompleted, insertedCount,
	)
	if err != nil {
		return fmt.Errorf("同期ジョブの完了記録に失敗しました: %w", err)
	}
	return nil
}

// MarkFailed はジョブを失敗状態へ遷移させ、エラー内容を記録する。
func (r *PostgresSyncJobRepo) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sync_jobs
		 SET status = $2, finished_at = now(), error_message = $3
		 WHERE id = $1`,
		id, model.JobStatusFailed, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("同期ジョブの失敗記録に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SyncJobRepository = (*PostgresSyncJobRepo)(nil)
