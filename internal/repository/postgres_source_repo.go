package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/newsflow/internal/model"
)

// PostgresSourceRepo はPostgreSQLを使用した外部ソースリポジトリ。
type PostgresSourceRepo struct {
	db *sql.DB
}

// NewPostgresSourceRepo はPostgresSourceRepoを生成する。
func NewPostgresSourceRepo(db *sql.DB) *PostgresSourceRepo {
	return &PostgresSourceRepo{db: db}
}

// Create はソースを登録する。
func (r *PostgresSourceRepo) Create(ctx context.Context, source *model.Source) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, feed_url, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		source.ID, source.Name, source.URL, source.FeedURL,
		source.Category, source.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ソースの登録に失敗しました: %w", err)
	}
	return nil
}

// FindByName はソース名でソースを検索する。見つからない場合はnilを返す。
func (r *PostgresSourceRepo) FindByName(ctx context.Context, name string) (*model.Source, error) {
	source := &model.Source{}

	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, url, feed_url, category, created_at
		 FROM sources WHERE name = $1`,
		name,
	).Scan(&source.ID, &source.Name, &source.URL, &source.FeedURL,
		&source.Category, &source.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ソースの検索に失敗しました: %w", err)
	}

	return source, nil
}

// ListAll は登録済みの全ソースを返す。
func (r *PostgresSourceRepo) ListAll(ctx context.Context) ([]*model.Source, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, url, feed_url, category, created_at
		 FROM sources ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("ソース一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var sources []*model.Source
	for rows.Next() {
		source := &model.Source{}
		if err := rows.Scan(&source.ID, &source.Name, &source.URL,
			&source.FeedURL, &source.Category, &source.CreatedAt); err != nil {
			return nil, fmt.Errorf("ソース行の読み取りに失敗しました: %w", err)
		}
		sources = append(sources, source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ソース一覧の走査に失敗しました: %w", err)
	}

	return sources, nil
}

// compile-time interface check
var _ SourceRepository = (*PostgresSourceRepo)(nil)
