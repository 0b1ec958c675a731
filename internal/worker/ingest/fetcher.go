// Package ingest は同期ジョブキューを消化するインジェスションワーカーを提供する。
// ジョブのリース、ソースのフェッチ・パース・サニタイズ、記事の冪等UPSERTを含む。
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/newsflow/internal/model"
	"github.com/hitoshi/newsflow/internal/repository"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Sanitizer はHTMLサニタイズのインターフェース。
// security.ContentSanitizerServiceが満たす。
type Sanitizer interface {
	Sanitize(rawHTML string) string
}

// Fetcher は個別ソースのHTTPフェッチとパースを行う。
// SSRF検証、gofeedによるパース、bluemondayによるサニタイズ、
// (source_id, guid)キーでの冪等UPSERTを実行する。
type Fetcher struct {
	articles     repository.ArticleRepository
	ssrfGuard    SSRFValidator
	sanitizer    Sanitizer
	logger       *slog.Logger
	timeout      time.Duration
	maxBodySize  int64
	queryTimeout time.Duration
}

// NewFetcher はFetcherを生成する。
// timeoutはHTTPフェッチの、queryTimeoutはストア呼び出し1件ごとの上限。
func NewFetcher(
	articles repository.ArticleRepository,
	ssrfGuard SSRFValidator,
	sanitizer Sanitizer,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
	queryTimeout time.Duration,
) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if queryTimeout <= 0 {
		queryTimeout = 5 * time.Second
	}
	return &Fetcher{
		articles:     articles,
		ssrfGuard:    ssrfGuard,
		sanitizer:    sanitizer,
		logger:       logger,
		timeout:      timeout,
		maxBodySize:  maxBodySize,
		queryTimeout: queryTimeout,
	}
}

// FetchSource はソースのフィードをフェッチし、記事をUPSERTする。
// 新規挿入された記事数を返す。既存記事の更新は挿入数に含めない。
// 同一ジョブの再実行は同一の(source_id, guid)へのUPSERTとなるため冪等。
func (f *Fetcher) FetchSource(ctx context.Context, src *model.Source) (int, error) {
	start := time.Now()

	if f.ssrfGuard != nil {
		if err := f.ssrfGuard.ValidateURL(src.FeedURL); err != nil {
			return 0, fmt.Errorf("SSRF検証に失敗しました: %w", err)
		}
	}

	body, err := f.fetchBody(ctx, src.FeedURL)
	if err != nil {
		return 0, err
	}

	parsedFeed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return 0, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	parsed := convertFeedItems(parsedFeed.Items)

	inserted := 0
	for _, p := range parsed {
		article := f.toArticle(src, p)
		// ストア呼び出しは1件ごとに有界のデッドラインを持つ
		upsertCtx, cancel := context.WithTimeout(ctx, f.queryTimeout)
		isNew, err := f.articles.UpsertBySourceGUID(upsertCtx, article)
		cancel()
		if err != nil {
			return inserted, fmt.Errorf("記事のUPSERTに失敗しました: %w", err)
		}
		if isNew {
			inserted++
		}
	}

	f.logger.Info("source fetch completed",
		slog.String("source_id", src.ID),
		slog.String("source_name", src.Name),
		slog.Int("items_total", len(parsed)),
		slog.Int("items_inserted", inserted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return inserted, nil
}

// fetchBody はフィードURLへGETリクエストを送信し、ボディを返す。
func (f *Fetcher) fetchBody(ctx context.Context, feedURL string) ([]byte, error) {
	client := f.httpClient()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Newsflow/1.0 Content Discovery")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードの取得に失敗しました: HTTPステータス %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスの読み取りに失敗しました: %w", err)
	}

	return body, nil
}

// httpClient はHTTPクライアントを取得する。
// SSRFGuardが設定されている場合はSSRF防止付きクライアントを返す。
func (f *Fetcher) httpClient() *http.Client {
	if f.ssrfGuard != nil {
		return f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	}
	return &http.Client{Timeout: f.timeout}
}

// toArticle はParsedArticleを保存用のArticleへ変換する。
// 本文と概要はサニタイズし、カテゴリはソース設定を引き継ぐ。
func (f *Fetcher) toArticle(src *model.Source, p model.ParsedArticle) *model.Article {
	publishedAt := time.Now()
	if p.PublishedAt != nil {
		publishedAt = *p.PublishedAt
	}

	body := p.Body
	description := p.Description
	if f.sanitizer != nil {
		body = f.sanitizer.Sanitize(body)
		description = f.sanitizer.Sanitize(description)
	}

	return &model.Article{
		SourceID:    src.ID,
		GUID:        p.GUID,
		Title:       p.Title,
		Description: description,
		Body:        body,
		Category:    src.Category,
		Tags:        p.Tags,
		PublishedAt: publishedAt,
	}
}

// convertFeedItems はgofeedの記事をmodel.ParsedArticleに変換する。
// GUIDのない記事はリンクをGUIDとして使用し、どちらもない記事は読み飛ばす。
func convertFeedItems(items []*gofeed.Item) []model.ParsedArticle {
	parsed := make([]model.ParsedArticle, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		p := model.ParsedArticle{
			GUID:        item.GUID,
			Title:       item.Title,
			Description: item.Description,
			Body:        item.Content,
			Tags:        item.Categories,
		}

		if p.GUID == "" {
			p.GUID = item.Link
		}
		if p.GUID == "" {
			// 冪等性キーを構成できない記事は取り込まない
			continue
		}

		// Contentが空の場合はDescriptionを本文として使用
		if p.Body == "" && item.Description != "" {
			p.Body = item.Description
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			p.PublishedAt = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			p.PublishedAt = &t
		}

		parsed = append(parsed, p)
	}

	return parsed
}
