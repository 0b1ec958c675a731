package model

import "time"

// JobStatus は同期ジョブの状態を表す。
type JobStatus string

const (
	// JobStatusPending はキュー投入済みで未処理のジョブ。
	JobStatusPending JobStatus = "pending"
	// JobStatusActive はワーカーがリース中のジョブ。
	JobStatusActive JobStatus = "active"
	// JobStatusCompleted は正常完了したジョブ（終端状態）。
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed は失敗したジョブ（終端状態）。自動リトライは行わない。
	JobStatusFailed JobStatus = "failed"
)

// SyncJobSourceAll は全ソースの同期を意味するワイルドカード。
const SyncJobSourceAll = "*"

// SyncJob は外部ソース同期ジョブを表す。
// cronまたは管理操作によりキューに投入され、
// インジェスションワーカーが1件ずつリースして処理する。
type SyncJob struct {
	ID         string
	Source     string // ソース名。SyncJobSourceAllの場合は全ソース
	Status     JobStatus
	EnqueuedAt time.Time
	StartedAt  *time.Time
	FinishedAt *time.Time
	// InsertedCount は完了時に記録される挿入・更新記事数。
	InsertedCount int
	// ErrorMessage は失敗時のエラー内容。オペレーターがジョブ状態から確認する。
	ErrorMessage string
}
