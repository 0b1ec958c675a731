package middleware

import (
	"context"
	"net/http"
	"time"
)

// NewQueryTimeoutMiddleware はリクエストコンテキストにバックエンド呼び出し用の
// デッドラインを設定するミドルウェアを返す。
// ハンドラー配下のストア・キュー・キャッシュへの問い合わせはすべてこの
// デッドラインに拘束され、応答しない接続がクライアントの待機に引きずられて
// 無期限にブロックすることを防ぐ。
// timeoutが0以下の場合は何も設定しない。
func NewQueryTimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
