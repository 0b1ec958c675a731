package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/newsflow/internal/model"
)

// fakeArticleRepo はUPSERTのみを記録するArticleRepositoryのフェイク。
type fakeArticleRepo struct {
	upsertFunc func(ctx context.Context, article *model.Article) (bool, error)
	upserted   []*model.Article
}

func (f *fakeArticleRepo) UpsertBySourceGUID(ctx context.Context, article *model.Article) (bool, error) {
	f.upserted = append(f.upserted, article)
	if f.upsertFunc != nil {
		return f.upsertFunc(ctx, article)
	}
	return true, nil
}

func (f *fakeArticleRepo) FindByID(context.Context, string) (*model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) FindVisibleByID(context.Context, string) (*model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) SearchFulltext(context.Context, string, int, int) ([]model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) CountFulltext(context.Context, string) (int, error) { return 0, nil }
func (f *fakeArticleRepo) SearchPattern(context.Context, string, int, int) ([]model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) CountPattern(context.Context, string) (int, error) { return 0, nil }
func (f *fakeArticleRepo) ListScoredByPreferences(context.Context, *model.UserPreference, int) ([]model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) ListTrending(context.Context, int) ([]model.Article, error) {
	return nil, nil
}
func (f *fakeArticleRepo) IncrementViews(context.Context, string) (bool, error) {
	return false, nil
}

// fakeSanitizer はscriptタグを除去する単純なSanitizerのフェイク。
type fakeSanitizer struct {
	calls int
}

func (f *fakeSanitizer) Sanitize(rawHTML string) string {
	f.calls++
	return strings.ReplaceAll(rawHTML, "<script>alert(1)</script>", "")
}

const testRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<item>
	<title>記事1</title>
	<guid>guid-1</guid>
	<description>概要1<script>alert(1)</script></description>
	<category>go</category>
	<category>backend</category>
	<pubDate>Mon, 02 Jun 2025 10:00:00 +0000</pubDate>
</item>
<item>
	<title>記事2</title>
	<link>https://example.com/2</link>
	<description>概要2</description>
</item>
<item>
	<title>GUIDもリンクもない記事</title>
	<description>取り込まれない</description>
</item>
</channel>
</rss>`

// TestFetchSource_ParsesAndUpserts はRSSフィードのフェッチで記事が
// サニタイズされてUPSERTされ、新規挿入数が返ることを検証する。
func TestFetchSource_ParsesAndUpserts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	repo := &fakeArticleRepo{}
	sanitizer := &fakeSanitizer{}
	f := NewFetcher(repo, nil, sanitizer, discardLogger(), 5*time.Second, 5*1024*1024, time.Second)

	src := &model.Source{ID: "s-1", Name: "test", FeedURL: srv.URL, Category: "technology"}
	inserted, err := f.FetchSource(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchSource returned error: %v", err)
	}

	// GUIDを構成できない3件目は読み飛ばされる
	if len(repo.upserted) != 2 {
		t.Fatalf("upserted = %d articles, want 2", len(repo.upserted))
	}
	if inserted != 2 {
		t.Errorf("inserted = %d, want 2", inserted)
	}

	first := repo.upserted[0]
	if first.GUID != "guid-1" {
		t.Errorf("GUID = %q, want guid-1", first.GUID)
	}
	if first.SourceID != "s-1" {
		t.Errorf("SourceID = %q, want s-1", first.SourceID)
	}
	if first.Category != "technology" {
		t.Errorf("Category = %q, want source category", first.Category)
	}
	if len(first.Tags) != 2 {
		t.Errorf("Tags = %v, want 2 categories", first.Tags)
	}
	if strings.Contains(first.Description, "<script>") {
		t.Errorf("Description not sanitized: %q", first.Description)
	}

	// リンクのみの記事はリンクがGUIDとなる
	second := repo.upserted[1]
	if second.GUID != "https://example.com/2" {
		t.Errorf("GUID = %q, want link fallback", second.GUID)
	}
}

// TestFetchSource_ExistingArticlesNotCountedAsInserted は既存記事の更新が
// 挿入数に含まれないことを検証する。
func TestFetchSource_ExistingArticlesNotCountedAsInserted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	repo := &fakeArticleRepo{
		upsertFunc: func(_ context.Context, article *model.Article) (bool, error) {
			// guid-1のみ新規、その他は既存更新
			return article.GUID == "guid-1", nil
		},
	}
	f := NewFetcher(repo, nil, nil, discardLogger(), 5*time.Second, 5*1024*1024, time.Second)

	src := &model.Source{ID: "s-1", Name: "test", FeedURL: srv.URL}
	inserted, err := f.FetchSource(context.Background(), src)
	if err != nil {
		t.Fatalf("FetchSource returned error: %v", err)
	}
	if inserted != 1 {
		t.Errorf("inserted = %d, want 1", inserted)
	}
}

// TestFetchSource_UpsertCarriesDeadline はUPSERTのストア呼び出しが
// 有界のデッドラインを持つことを検証する。
func TestFetchSource_UpsertCarriesDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSS))
	}))
	defer srv.Close()

	repo := &fakeArticleRepo{
		upsertFunc: func(ctx context.Context, _ *model.Article) (bool, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("UpsertBySourceGUID received context without deadline")
			}
			return true, nil
		},
	}
	f := NewFetcher(repo, nil, nil, discardLogger(), 5*time.Second, 5*1024*1024, time.Second)

	src := &model.Source{ID: "s-1", Name: "test", FeedURL: srv.URL}
	if _, err := f.FetchSource(context.Background(), src); err != nil {
		t.Fatalf("FetchSource returned error: %v", err)
	}
	if len(repo.upserted) == 0 {
		t.Fatal("no articles upserted")
	}
}

// TestFetchSource_HTTPErrorFails はHTTPエラーステータスでフェッチが
// 失敗することを検証する。
func TestFetchSource_HTTPErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(&fakeArticleRepo{}, nil, nil, discardLogger(), 5*time.Second, 5*1024*1024, time.Second)
	src := &model.Source{ID: "s-1", Name: "test", FeedURL: srv.URL}

	if _, err := f.FetchSource(context.Background(), src); err == nil {
		t.Error("FetchSource returned nil error for HTTP 500")
	}
}

// TestFetchSource_InvalidFeedFails はパース不能なボディでフェッチが
// 失敗することを検証する。
func TestFetchSource_InvalidFeedFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body>not a feed</body></html>"))
	}))
	defer srv.Close()

	f := NewFetcher(&fakeArticleRepo{}, nil, nil, discardLogger(), 5*time.Second, 5*1024*1024, time.Second)
	src := &model.Source{ID: "s-1", Name: "test", FeedURL: srv.URL}

	if _, err := f.FetchSource(context.Background(), src); err == nil {
		t.Error("FetchSource returned nil error for non-feed body")
	}
}
