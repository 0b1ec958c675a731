// Package model はドメインモデルを定義する。
package model

import "time"

// Article は外部ソースから取り込んだ記事を表す。
// 記事の作成・編集はコンテンツ管理側の責務であり、
// 本パイプラインは読み取りと閲覧数のインクリメントのみを行う。
type Article struct {
	ID          string
	SourceID    string
	GUID        string // 外部ソース上の記事識別子。UPSERTの冪等性キー
	Title       string
	Description string
	Body        string // サニタイズ済みHTML
	Category    string
	Tags        []string
	PublishedAt time.Time
	// ScheduledFor が未来の場合、記事はすべての読み取りから不可視となる。
	// nilの場合は即時可視。
	ScheduledFor *time.Time
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserPreference はユーザーの嗜好設定を表す。
// 設定UIはコンテンツ管理側にあり、本パイプラインでは読み取り専用。
type UserPreference struct {
	UserID              string
	PreferredCategories []string
	PreferredTags       []string
	UpdatedAt           time.Time
}

// ViewEvent は記事閲覧の追記専用レコードを表す。
// 協調フィルタリングのフォールバック層が蓄積された履歴に依存する。
type ViewEvent struct {
	ID        string
	UserID    string
	ArticleID string
	ViewedAt  time.Time
}

// ParsedArticle は外部ソースのフェッチ・正規化処理が返す未保存の記事データを表す。
// インジェスションワーカーがフィードをパースした後、ArticleRepositoryのUPSERTに渡される。
type ParsedArticle struct {
	GUID        string
	Title       string
	Description string // 未サニタイズ
	Body        string // 未サニタイズのHTML
	Tags        []string
	PublishedAt *time.Time
}

// Source は記事の取り込み元となる外部ソースを表す。
type Source struct {
	ID        string
	Name      string
	URL       string // 登録時に指定されたページまたはフィードのURL
	FeedURL   string // 自動検出で解決されたフィードURL
	Category  string // このソースから取り込む記事に付与するカテゴリ
	CreatedAt time.Time
}
