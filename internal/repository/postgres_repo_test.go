package repository

import (
	"strings"
	"testing"

	"github.com/hitoshi/newsflow/internal/model"
)

// TestPostgresArticleRepo_ImplementsInterface はPostgresArticleRepoがArticleRepositoryを実装することを検証する。
func TestPostgresArticleRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresArticleRepoがArticleRepositoryを満たすことを検証
	var _ ArticleRepository = (*PostgresArticleRepo)(nil)
}

// TestPostgresSyncJobRepo_ImplementsInterface はPostgresSyncJobRepoがSyncJobRepositoryを実装することを検証する。
func TestPostgresSyncJobRepo_ImplementsInterface(t *testing.T) {
	// コンパイル時チェック：PostgresSyncJobRepoがSyncJobRepositoryを満たすことを検証
	var _ SyncJobRepository = (*PostgresSyncJobRepo)(nil)
}

// TestReadQueries_ContainVisibilityPredicate は公開読み取り系のクエリが
// すべて可視性条件を含むことを検証する。scheduled_forが未来の記事は
// 検索・トレンド・レコメンド・共閲覧・詳細のどの読み取りにも現れてはならない。
func TestReadQueries_ContainVisibilityPredicate(t *testing.T) {
	queries := map[string]string{
		"FindVisibleByID":         findVisibleByIDQuery,
		"SearchFulltext":          searchFulltextQuery,
		"CountFulltext":           countFulltextQuery,
		"SearchPattern":           searchPatternQuery,
		"CountPattern":            countPatternQuery,
		"ListScoredByPreferences": listScoredByPreferencesQuery,
		"ListTrending":            listTrendingQuery,
		"ListCoViewedArticles":    listCoViewedArticlesQuery,
	}

	for name, query := range queries {
		if !strings.Contains(query, visiblePredicate) {
			t.Errorf("%s query does not contain the visibility predicate %q", name, visiblePredicate)
		}
	}
}

// TestCountQueries_ShareSearchPredicates は件数クエリが検索クエリと
// 同一の述語を共有することを検証する。件数と結果一覧が食い違うと
// ページネーションのtotalPagesが崩れる。
func TestCountQueries_ShareSearchPredicates(t *testing.T) {
	fulltextPredicate := `@@ plainto_tsquery('english', $1)`
	if !strings.Contains(searchFulltextQuery, fulltextPredicate) || !strings.Contains(countFulltextQuery, fulltextPredicate) {
		t.Error("fulltext search and count queries do not share the tsquery predicate")
	}

	patternPredicate := `a.title ILIKE $1 OR a.description ILIKE $1 OR a.body ILIKE $1`
	if !strings.Contains(searchPatternQuery, patternPredicate) || !strings.Contains(countPatternQuery, patternPredicate) {
		t.Error("pattern search and count queries do not share the ILIKE predicate")
	}
}

// TestJobStatusValues はJobStatusの定数値が正しいことを検証する。
func TestJobStatusValues(t *testing.T) {
	if model.JobStatusPending != "pending" {
		t.Errorf("JobStatusPending = %q, want %q", model.JobStatusPending, "pending")
	}
	if model.JobStatusActive != "active" {
		t.Errorf("JobStatusActive = %q, want %q", model.JobStatusActive, "active")
	}
	if model.JobStatusCompleted != "completed" {
		t.Errorf("JobStatusCompleted = %q, want %q", model.JobStatusCompleted, "completed")
	}
	if model.JobStatusFailed != "failed" {
		t.Errorf("JobStatusFailed = %q, want %q", model.JobStatusFailed, "failed")
	}
}

// TestLowerAll は大文字小文字無視比較用の小文字化ヘルパーを検証する。
func TestLowerAll(t *testing.T) {
	got := lowerAll([]string{"Tech", "SPORTS", "politics"})
	want := []string{"tech", "sports", "politics"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("lowerAll[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
