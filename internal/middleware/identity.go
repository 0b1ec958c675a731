package middleware

import "net/http"

// UserIDHeader は呼び出し元が申告する任意のユーザー識別ヘッダー。
// 認証はコンテンツ管理側の責務であり、本パイプラインは申告された
// 識別子をレコメンドのパーソナライズと閲覧履歴にのみ使用する。
// 未指定のリクエストは匿名として扱われる。
const UserIDHeader = "X-User-ID"

// UserID はリクエストから申告済みユーザーIDを取り出す。
// ヘッダーを優先し、未指定の場合はuser_idクエリパラメータを参照する。
// どちらもない場合は空文字列（匿名）を返す。
func UserID(r *http.Request) string {
	if id := r.Header.Get(UserIDHeader); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}
