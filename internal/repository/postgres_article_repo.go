package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/hitoshi/newsflow/internal/model"
)

// visiblePredicate は可視性条件。scheduled_forが未来の記事は
// すべての読み取りから除外される。一覧系クエリは必ずこの条件を含めること。
const visiblePredicate = `(a.scheduled_for IS NULL OR a.scheduled_for <= now())`

// articleColumns はArticleのSELECT対象カラム。scanArticleと対で維持する。
const articleColumns = `a.id, a.source_id, a.guid, a.title, a.description, a.body,
       a.category, a.tags, a.published_at, a.scheduled_for, a.views,
       a.created_at, a.updated_at`

// クエリはパッケージレベル定数として定義し、一覧系・詳細読み取り系が
// visiblePredicateを含むことをテストで検証できるようにする。
const (
	findByIDQuery = `SELECT ` + articleColumns + ` FROM articles a WHERE a.id = $1`

	findVisibleByIDQuery = findByIDQuery + ` AND ` + visiblePredicate

	searchFulltextQuery = `SELECT ` + articleColumns + `
	 FROM articles a
	 WHERE to_tsvector('english', a.title || ' ' || a.description || ' ' || a.body)
	       @@ plainto_tsquery('english', $1)
	   AND ` + visiblePredicate + `
	 ORDER BY ts_rank(
	     to_tsvector('english', a.title || ' ' || a.description || ' ' || a.body),
	     plainto_tsquery('english', $1)
	 ) DESC
	 LIMIT $2 OFFSET $3`

	countFulltextQuery = `SELECT count(*)
	 FROM articles a
	 WHERE to_tsvector('english', a.title || ' ' || a.description || ' ' || a.body)
	       @@ plainto_tsquery('english', $1)
	   AND ` + visiblePredicate

	searchPatternQuery = `SELECT ` + articleColumns + `
	 FROM articles a
	 WHERE (a.title ILIKE $1 OR a.description ILIKE $1 OR a.body ILIKE $1)
	   AND ` + visiblePredicate + `
	 ORDER BY a.published_at DESC
	 LIMIT $2 OFFSET $3`

	countPatternQuery = `SELECT count(*)
	 FROM articles a
	 WHERE (a.title ILIKE $1 OR a.description ILIKE $1 OR a.body ILIKE $1)
	   AND ` + visiblePredicate

	listScoredByPreferencesQuery = `SELECT ` + articleColumns + `,
	        (CASE WHEN lower(a.category) = ANY($1::text[]) THEN 2 ELSE 0 END)
	        + (SELECT count(*) FROM unnest($2::text[]) AS pt
	           WHERE array_to_string(a.tags, ',') ILIKE '%' || pt || '%') AS score
	 FROM articles a
	 WHERE ` + visiblePredicate + `
	 ORDER BY score DESC, a.published_at DESC
	 LIMIT $3`

	listTrendingQuery = `SELECT ` + articleColumns + `
	 FROM articles a
	 WHERE ` + visiblePredicate + `
	 ORDER BY a.views DESC, a.published_at DESC
	 LIMIT $1`
)

// PostgresArticleRepo はPostgreSQLを使用した記事リポジトリ。
type PostgresArticleRepo struct {
	db *sql.DB
}

// NewPostgresArticleRepo はPostgresArticleRepoを生成する。
func NewPostgresArticleRepo(db *sql.DB) *PostgresArticleRepo {
	return &PostgresArticleRepo{db: db}
}

// rowScanner はsql.Rowとsql.Rowsの共通スキャンインターフェース。
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanArticle は1行分の記事をスキャンする。articleColumnsと対で維持する。
func scanArticle(s rowScanner) (*model.Article, error) {
	article := &model.Article{}
	var scheduledFor sql.NullTime
	var tags pq.StringArray

	if err := s.Scan(
		&article.ID, &article.SourceID, &article.GUID, &article.Title,
		&article.Description, &article.Body, &article.Category, &tags,
		&article.PublishedAt, &scheduledFor, &article.Views,
		&article.CreatedAt, &article.UpdatedAt,
	); err != nil {
		return nil, err
	}

	article.Tags = []string(tags)
	if scheduledFor.Valid {
		article.ScheduledFor = &scheduledFor.Time
	}

	return article, nil
}

// collectArticles は複数行の記事をスキャンして返す。
func collectArticles(rows *sql.Rows) ([]model.Article, error) {
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return articles, nil
}

// FindByID は指定IDの記事を取得する。見つからない場合はnilを返す。
// 可視性条件を適用しない内部向けの参照。公開APIの詳細読み取りには
// FindVisibleByIDを使用すること。
func (r *PostgresArticleRepo) FindByID(ctx context.Context, id string) (*model.Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx, findByIDQuery, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return article, nil
}

// FindVisibleByID は指定IDの可視記事を取得する。
// scheduled_forが未来の記事は存在しないものとして扱い、nilを返す。
func (r *PostgresArticleRepo) FindVisibleByID(ctx context.Context, id string) (*model.Article, error) {
	article, err := scanArticle(r.db.QueryRowContext(ctx, findVisibleByIDQuery, id))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}

	return article, nil
}

// SearchFulltext はtitle/description/bodyへの全文検索を関連度スコア降順で実行する。
func (r *PostgresArticleRepo) SearchFulltext(ctx context.Context, query string, limit, offset int) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx, searchFulltextQuery, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("全文検索に失敗しました: %w", err)
	}

	return collectArticles(rows)
}

// CountFulltext はSearchFulltextと同一述語でのマッチ件数を返す。
func (r *PostgresArticleRepo) CountFulltext(ctx context.Context, query string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, countFulltextQuery, query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("全文検索の件数取得に失敗しました: %w", err)
	}
	return count, nil
}

// SearchPattern はtitle/description/bodyへの部分文字列検索を公開日時降順で実行する。
func (r *PostgresArticleRepo) SearchPattern(ctx context.Context, query string, limit, offset int) ([]model.Article, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, searchPatternQuery, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("パターン検索に失敗しました: %w", err)
	}

	return collectArticles(rows)
}

// CountPattern はSearchPatternと同一述語でのマッチ件数を返す。
func (r *PostgresArticleRepo) CountPattern(ctx context.Context, query string) (int, error) {
	pattern := "%" + query + "%"
	var count int
	err := r.db.QueryRowContext(ctx, countPatternQuery, pattern).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("パターン検索の件数取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListScoredByPreferences は嗜好スコア降順・published_at降順の記事一覧を返す。
// スコア計算はタグ数に依存しない固定形状のパラメータ化SQLで行う
// （文字列連結による動的SQL断片は使用しない）。
// 嗜好が空の場合は全件スコア0となり、実質的に日付順へ縮退する。
func (r *PostgresArticleRepo) ListScoredByPreferences(ctx context.Context, pref *model.UserPreference, limit int) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx, listScoredByPreferencesQuery,
		pq.Array(lowerAll(pref.PreferredCategories)), pq.Array(pref.PreferredTags), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("嗜好スコア付き記事一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		article := &model.Article{}
		var scheduledFor sql.NullTime
		var tags pq.StringArray
		var score int

		if err := rows.Scan(
			&article.ID, &article.SourceID, &article.GUID, &article.Title,
			&article.Description, &article.Body, &article.Category, &tags,
			&article.PublishedAt, &scheduledFor, &article.Views,
			&article.CreatedAt, &article.UpdatedAt, &score,
		); err != nil {
			return nil, fmt.Errorf("記事行の読み取りに失敗しました: %w", err)
		}

		article.Tags = []string(tags)
		if scheduledFor.Valid {
			article.ScheduledFor = &scheduledFor.Time
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事一覧の走査に失敗しました: %w", err)
	}

	return articles, nil
}

// ListTrending は可視記事をviews降順で返す。
func (r *PostgresArticleRepo) ListTrending(ctx context.Context, limit int) ([]model.Article, error) {
	rows, err := r.db.QueryContext(ctx, listTrendingQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("トレンド記事一覧の取得に失敗しました: %w", err)
	}

	return collectArticles(rows)
}

// IncrementViews は閲覧数をアトミックにインクリメントする。
// views = views + 1 をストア側で実行し、並行記録でのロスト更新を防ぐ。
func (r *PostgresArticleRepo) IncrementViews(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE articles SET views = views + 1, updated_at = now() WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("閲覧数の更新に失敗しました: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("閲覧数更新の結果取得に失敗しました: %w", err)
	}

	return affected > 0, nil
}

// UpsertBySourceGUID は(source_id, guid)をキーに記事を冪等にUPSERTする。
// 挿入か更新かの判定にはxmaxシステムカラムを使用する
// （INSERT直後の行のみxmax = 0となる）。
func (r *PostgresArticleRepo) UpsertBySourceGUID(ctx context.Context, article *model.Article) (bool, error) {
	var inserted bool
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO articles (id, source_id, guid, title, description, body,
		                       category, tags, published_at, scheduled_for,
		                       views, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, now(), now())
		 ON CONFLICT (source_id, guid) DO UPDATE SET
		     title = EXCLUDED.title,
		     description = EXCLUDED.description,
		     body = EXCLUDED.body,
		     category = EXCLUDED.category,
		     tags = EXCLUDED.tags,
		     published_at = EXCLUDED.published_at,
		     updated_at = now()
		 RETURNING (xmax = 0)`,
		article.ID, article.SourceID, article.GUID, article.Title,
		article.Description, article.Body, article.Category,
		pq.Array(article.Tags), article.PublishedAt, article.ScheduledFor,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("記事のUPSERTに失敗しました: %w", err)
	}

	return inserted, nil
}

// lowerAll は文字列スライスの全要素を小文字化して返す。
// カテゴリ一致の大文字小文字無視比較に使用する。
func lowerAll(values []string) []string {
	lowered := make([]string, len(values))
	for i, v := range values {
		lowered[i] = strings.ToLower(v)
	}
	return lowered
}

// compile-time interface check
var _ ArticleRepository = (*PostgresArticleRepo)(nil)
