// Package searchcluster は外部検索クラスタ（Typesense互換API）のクライアントを提供する。
// クラスタが構成されている場合、検索リゾルバはクエリとページネーションを
// そのまま転送し、クラスタ側の関連度スコアリングに順位付けを委ねる。
package searchcluster

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// queryBy は検索対象フィールド。クラスタにはtitle/description/bodyへの
// マッチを依頼する。
const queryBy = "title,description,body"

// Client は検索クラスタAPIのクライアント。
// 構成は起動時に1回行い、グローバルシングルトンは使用しない。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	apiKey     string
	collection string
}

// Config はClientの構成を保持する。
type Config struct {
	BaseURL    string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
	}
}

// Document は検索クラスタ上の記事ドキュメントを表す。
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Body        string   `json:"body"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	PublishedAt int64    `json:"published_at"` // unix秒
	Views       int64    `json:"views"`
}

// Result は検索クラスタの応答を表す。
// Foundはページングに関わらない総ヒット件数で、totalPagesの計算に使用する。
type Result struct {
	Found     int
	Documents []Document
}

// searchResponse は検索APIのレスポンスボディ。
type searchResponse struct {
	Found int `json:"found"`
	Hits  []struct {
		Document Document `json:"document"`
	} `json:"hits"`
}

// Search は記事コレクションに対する検索を実行する。
// クエリとページネーションをそのまま転送し、順位付けはクラスタに委ねる。
// 失敗時はエラーを返す（検索層はキャッシュ層と異なりフェイルオープンしない）。
func (c *Client) Search(ctx context.Context, query string, page, perPage int) (*Result, error) {
	reqURL, err := url.Parse(fmt.Sprintf("%s/collections/%s/documents/search", c.baseURL, c.collection))
	if err != nil {
		return nil, fmt.Errorf("検索クラスタのURL構築に失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("q", query)
	q.Set("query_by", queryBy)
	q.Set("page", strconv.Itoa(page))
	q.Set("per_page", strconv.Itoa(perPage))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-TYPESENSE-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("検索クラスタの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("検索クラスタの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("検索クラスタがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("検索クラスタがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	result := &Result{
		Found:     parsed.Found,
		Documents: make([]Document, 0, len(parsed.Hits)),
	}
	for _, hit := range parsed.Hits {
		result.Documents = append(result.Documents, hit.Document)
	}

	return result, nil
}

// Ping は検索クラスタの疎通を確認する。
// ティア選択時（起動時に1回）の到達性チェックに使用する。
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-TYPESENSE-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("検索クラスタへの疎通確認に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("検索クラスタがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}
