// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/newsflow/internal/model"
)

// ArticleRepository は記事データの永続化インターフェース。
// すべての一覧系クエリは可視性条件（scheduled_forが未来の記事を除外）を適用する。
type ArticleRepository interface {
	// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
	// 可視性条件を適用しない内部向けの参照。
	FindByID(ctx context.Context, id string) (*model.Article, error)

	// FindVisibleByID は指定IDの可視記事を取得する。
	// scheduled_forが未来の記事は存在しないものとして扱い、nilを返す。
	// 公開APIの記事詳細はこちらを使用する。
	FindVisibleByID(ctx context.Context, id string) (*model.Article, error)

	// SearchFulltext はtitle/description/bodyに対する全文検索を行い、
	// ストアの関連度スコア降順で返す。
	SearchFulltext(ctx context.Context, query string, limit, offset int) ([]model.Article, error)

	// CountFulltext はSearchFulltextと同一述語でのマッチ件数を返す。
	CountFulltext(ctx context.Context, query string) (int, error)

	// SearchPattern はtitle/description/bodyに対する部分文字列検索を行い、
	// 公開日時降順で返す。関連度スコアは利用できない最終フォールバック。
	SearchPattern(ctx context.Context, query string, limit, offset int) ([]model.Article, error)

	// CountPattern はSearchPatternと同一述語でのマッチ件数を返す。
	CountPattern(ctx context.Context, query string) (int, error)

	// ListScoredByPreferences は嗜好スコア順の記事一覧を返す。
	// スコア: カテゴリ一致（大文字小文字無視）+2、タグテキストへの
	// 部分一致する嗜好タグ1件につき+1（加算式、上限なし）。
	// 同点はpublished_at降順。嗜好が空の場合は全件スコア0で日付順となる。
	// クエリはタグ数に依存しない固定形状のパラメータ化SQLで発行される。
	ListScoredByPreferences(ctx context.Context, pref *model.UserPreference, limit int) ([]model.Article, error)

	// ListTrending は可視記事をviews降順で返す。
	ListTrending(ctx context.Context, limit int) ([]model.Article, error)

	// IncrementViews は閲覧数をアトミックにインクリメントする
	// （views = views + 1。アプリケーション側でのread-modify-writeは行わない）。
	// 記事が存在した場合はtrueを返す。
	IncrementViews(ctx context.Context, id string) (bool, error)

	// UpsertBySourceGUID は(source_id, guid)をキーに記事を冪等にUPSERTする。
	// 新規挿入の場合はtrueを返す。
	UpsertBySourceGUID(ctx context.Context, article *model.Article) (bool, error)
}

// PreferenceRepository はユーザー嗜好設定の読み取りインターフェース。
// 嗜好の作成・更新はコンテンツ管理側の設定UIが行う。
type PreferenceRepository interface {
	// FindByUserID は指定ユーザーの嗜好設定を取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserPreference, error)
}

// ViewEventRepository は閲覧イベントの永続化インターフェース。
type ViewEventRepository interface {
	// Create は閲覧イベントを追記する。更新・削除は行わない。
	Create(ctx context.Context, event *model.ViewEvent) error

	// ListRecentArticleIDsByUser はユーザーの直近の閲覧記事IDを
	// viewed_at降順で最大limit件返す。
	ListRecentArticleIDsByUser(ctx context.Context, userID string, limit int) ([]string, error)

	// ListCoViewedArticles は指定記事群を閲覧した他ユーザーが閲覧した
	// 別の可視記事を、他ユーザーの閲覧日時が新しい順に返す。
	// 呼び出しユーザー自身が閲覧済みの記事は除外する。
	ListCoViewedArticles(ctx context.Context, userID string, articleIDs []string, limit int) ([]model.Article, error)
}

// SyncJobRepository は同期ジョブキューの永続化インターフェース。
// enqueue/lease/ack/failのセマンティクスを提供する。
type SyncJobRepository interface {
	// Enqueue はpending状態のジョブをキューに追加する。
	Enqueue(ctx context.Context, job *model.SyncJob) error

	// FindByID は指定IDのジョブを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SyncJob, error)

	// LeaseNext は最も古いpendingジョブを1件、FOR UPDATE SKIP LOCKEDで
	// 排他的にリースしてactiveへ遷移させる。対象がない場合はnilを返す。
	// 同一ジョブの二重リースはロックにより防止されるが、
	// 同一ソースの別ジョブが並行することは妨げない。
	LeaseNext(ctx context.Context) (*model.SyncJob, error)

	// MarkCompleted はジョブを完了状態へ遷移させ、挿入記事数を記録する。
	MarkCompleted(ctx context.Context, id string, insertedCount int) error

	// MarkFailed はジョブを失敗状態へ遷移させ、エラー内容を記録する。
	// 自動リトライは行わない。
	MarkFailed(ctx context.Context, id string, errorMessage string) error
}

// SourceRepository は外部ソースの永続化インターフェース。
type SourceRepository interface {
	// Create はソースを登録する。
	Create(ctx context.Context, source *model.Source) error

	// FindByName はソース名でソースを検索する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Source, error)

	// ListAll は登録済みの全ソースを返す。
	ListAll(ctx context.Context) ([]*model.Source, error)
}
