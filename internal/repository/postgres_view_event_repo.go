package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/newsflow/internal/model"
)

// listCoViewedArticlesQuery は共閲覧結合クエリ。
// 一覧系であるため可視性条件（visiblePredicate）を含むこと。
const listCoViewedArticlesQuery = `SELECT ` + articleColumns + `, max(v.viewed_at) AS last_co_viewed
	 FROM view_events v
	 JOIN articles a ON a.id = v.article_id
	 WHERE v.user_id IN (
	           SELECT DISTINCT user_id FROM view_events
	           WHERE article_id = ANY($2::text[]) AND user_id <> $1
	       )
	   AND v.user_id <> $1
	   AND v.article_id NOT IN (
	           SELECT article_id FROM view_events WHERE user_id = $1
	       )
	   AND ` + visiblePredicate + `
	 GROUP BY ` + articleColumns + `
	 ORDER BY last_co_viewed DESC
	 LIMIT $3`

// PostgresViewEventRepo はPostgreSQLを使用した閲覧イベントリポジトリ。
type PostgresViewEventRepo struct {
	db *sql.DB
}

// NewPostgresViewEventRepo はPostgresViewEventRepoを生成する。
func NewPostgresViewEventRepo(db *sql.DB) *PostgresViewEventRepo {
	return &PostgresViewEventRepo{db: db}
}

// Create は閲覧イベントを追記する。
func (r *PostgresViewEventRepo) Create(ctx context.Context, event *model.ViewEvent) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO view_events (id, user_id, article_id, viewed_at)
		 VALUES ($1, $2, $3, $4)`,
		event.ID, event.UserID, event.ArticleID, event.ViewedAt,
	)
	if err != nil {
		return fmt.Errorf("閲覧イベントの作成に失敗しました: %w", err)
	}
	return nil
}

// ListRecentArticleIDsByUser はユーザーの直近の閲覧記事IDをviewed_at降順で返す。
// 同一記事を複数回閲覧した場合も1件として扱う。
func (r *PostgresViewEventRepo) ListRecentArticleIDsByUser(ctx context.Context, userID string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT article_id, max(viewed_at) AS last_viewed
		 FROM view_events
		 WHERE user_id = $1
		 GROUP BY article_id
		 ORDER BY last_viewed DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("閲覧履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		var lastViewed sql.NullTime
		if err := rows.Scan(&id, &lastViewed); err != nil {
			return nil, fmt.Errorf("閲覧履歴行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("閲覧履歴の走査に失敗しました: %w", err)
	}

	return ids, nil
}

// ListCoViewedArticles は「Xを見た人はYも見ている」結合を実行する。
// 指定記事群を閲覧した他ユーザーを求め、そのユーザーたちが閲覧した別の可視記事を
// 他ユーザーの閲覧日時が新しい順に返す。呼び出しユーザー自身が閲覧済みの記事は除外する。
// 記事IDのDISTINCT以上の重複排除や減衰付きランキングは行わない。
func (r *PostgresViewEventRepo) ListCoViewedArticles(ctx context.Context, userID string, articleIDs []string, limit int) ([]model.Article, error) {
	if len(articleIDs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, listCoViewedArticlesQuery,
		userID, pq.Array(articleIDs), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("共閲覧記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		article := &model.Article{}
		var scheduledFor sql.NullTime
		var tags pq.StringArray
		var lastCoViewed sql.NullTime

		if err := rows.Scan(
			&article.ID, &article.SourceID, &article.GUID, &article.Title,
			&article.Description, &article.Body, &article.Category, &tags,
			&article.PublishedAt, &scheduledFor, &article.Views,
			&article.CreatedAt, &article.UpdatedAt, &lastCoViewed,
		); err != nil {
			return nil, fmt.Errorf("共閲覧記事行の読み取りに失敗しました: %w", err)
		}

		article.Tags = []string(tags)
		if scheduledFor.Valid {
			article.ScheduledFor = &scheduledFor.Time
		}
		articles = append(articles, *article)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("共閲覧記事の走査に失敗しました: %w", err)
	}

	return articles, nil
}

// compile-time interface check
var _ ViewEventRepository = (*PostgresViewEventRepo)(nil)
