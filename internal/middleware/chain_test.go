package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// TestMiddlewareChain_CORSLoggingRateLimit はCORS → Logging → RateLimitの
// チェーンがchi.Routerで正しく動作することを検証する。
func TestMiddlewareChain_CORSLoggingRateLimit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(1.0 / 60.0),
		GeneralBurst:    2,
		IngestRate:      rate.Limit(1.0 / 60.0),
		IngestBurst:     1,
		CleanupInterval: time.Hour,
	})
	defer rl.Stop()

	r := chi.NewRouter()
	r.Use(NewCORSMiddleware("http://localhost:3000"))
	r.Use(NewRecoveryMiddleware())
	r.Use(NewLoggingMiddleware(logger))
	r.Use(rl.GeneralMiddleware())
	r.Get("/api/trending", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// テスト1: 通常リクエストはCORSヘッダー付きで通る
	req := httptest.NewRequest(http.MethodGet, "/api/trending", nil)
	req.RemoteAddr = "203.0.113.1:12345"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if buf.Len() == 0 {
		t.Error("request log not written")
	}

	// テスト2: OPTIONSプリフライトはレート制限を消費せず204
	preflight := httptest.NewRequest(http.MethodOptions, "/api/trending", nil)
	preflight.RemoteAddr = "203.0.113.1:12345"
	pw := httptest.NewRecorder()
	r.ServeHTTP(pw, preflight)
	if pw.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", pw.Code)
	}

	// テスト3: バースト超過で429
	req2 := httptest.NewRequest(http.MethodGet, "/api/trending", nil)
	req2.RemoteAddr = "203.0.113.1:12345"
	r.ServeHTTP(httptest.NewRecorder(), req2)

	req3 := httptest.NewRequest(http.MethodGet, "/api/trending", nil)
	req3.RemoteAddr = "203.0.113.1:12345"
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, req3)
	if w3.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429 after burst exhausted", w3.Code)
	}
}

// TestMiddlewareChain_RecoveryCatchesPanic はハンドラーのpanicが
// 500に変換されプロセスが継続することを検証する。
func TestMiddlewareChain_RecoveryCatchesPanic(t *testing.T) {
	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware())
	r.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

// TestSecurityHeaders はセキュリティヘッダーが全レスポンスに付与されることを検証する。
func TestSecurityHeaders(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
	if got := w.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q, want DENY", got)
	}
	if got := w.Header().Get("Content-Security-Policy"); got != "default-src 'none'" {
		t.Errorf("Content-Security-Policy = %q, want default-src 'none'", got)
	}
}
