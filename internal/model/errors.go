// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, discovery, ingest, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeQueryRequired    = "QUERY_REQUIRED"
	ErrCodeArticleNotFound  = "ARTICLE_NOT_FOUND"
	ErrCodeJobNotFound      = "JOB_NOT_FOUND"
	ErrCodeSourceNotFound   = "SOURCE_NOT_FOUND"
	ErrCodeDuplicateSource  = "DUPLICATE_SOURCE"
	ErrCodeFeedNotDetected  = "FEED_NOT_DETECTED"
	ErrCodeInvalidURL       = "INVALID_URL"
	ErrCodeSSRFBlocked      = "SSRF_BLOCKED"
	ErrCodeQueueUnavailable = "QUEUE_UNAVAILABLE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeFetchFailed      = "FETCH_FAILED"
)

// NewFetchFailedError は外部ソースへのフェッチ失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("外部ソースへのアクセスに失敗しました: %s", reason),
		Category: "ingest",
		Action:   "URLが正しいか、対象サイトが稼働しているかを確認してください。",
	}
}

// NewQueryRequiredError は検索クエリ未指定エラーを生成する。
// 空白のみのクエリもトリム後に空と判定され、このエラーとなる。
func NewQueryRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeQueryRequired,
		Message:  "検索クエリ（q）が指定されていません。",
		Category: "validation",
		Action:   "qパラメータに1文字以上の検索キーワードを指定してください。",
	}
}

// NewArticleNotFoundError は記事未検出エラーを生成する。
func NewArticleNotFoundError(articleID string) *APIError {
	return &APIError{
		Code:     ErrCodeArticleNotFound,
		Message:  fmt.Sprintf("指定された記事が見つかりません: %s", articleID),
		Category: "discovery",
		Action:   "記事IDを確認してください。",
	}
}

// NewJobNotFoundError は同期ジョブ未検出エラーを生成する。
func NewJobNotFoundError(jobID string) *APIError {
	return &APIError{
		Code:     ErrCodeJobNotFound,
		Message:  fmt.Sprintf("指定された同期ジョブが見つかりません: %s", jobID),
		Category: "ingest",
		Action:   "ジョブIDを確認してください。",
	}
}

// NewSourceNotFoundError はソース未検出エラーを生成する。
func NewSourceNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeSourceNotFound,
		Message:  fmt.Sprintf("指定されたソースが見つかりません: %s", name),
		Category: "ingest",
		Action:   "登録済みのソース名を指定してください。",
	}
}

// NewDuplicateSourceError は登録済みソースの再登録エラーを生成する。
func NewDuplicateSourceError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateSource,
		Message:  fmt.Sprintf("このソースは既に登録されています: %s", name),
		Category: "ingest",
		Action:   "ソース一覧から該当ソースを確認してください。",
	}
}

// NewFeedNotDetectedError はフィード未検出エラーを生成する。
func NewFeedNotDetectedError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotDetected,
		Message:  fmt.Sprintf("指定されたURLからRSS/Atomフィードを検出できませんでした: %s", url),
		Category: "ingest",
		Action:   "フィードのURLを直接入力するか、フィードが公開されているページのURLを確認してください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}

// NewQueueUnavailableError はジョブキュー利用不可エラーを生成する。
func NewQueueUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeQueueUnavailable,
		Message:  "同期ジョブキューが利用できません。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}
