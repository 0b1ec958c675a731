package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/newsflow/internal/model"
)

// PostgresPreferenceRepo はPostgreSQLを使用したユーザー嗜好設定リポジトリ。
// 嗜好の作成・更新はコンテンツ管理側が行うため、読み取りのみを提供する。
type PostgresPreferenceRepo struct {
	db *sql.DB
}

// NewPostgresPreferenceRepo はPostgresPreferenceRepoを生成する。
func NewPostgresPreferenceRepo(db *sql.DB) *PostgresPreferenceRepo {
	return &PostgresPreferenceRepo{db: db}
}

// FindByUserID は指定ユーザーの嗜好設定を取得する。見つからない場合はnilを返す。
func (r *PostgresPreferenceRepo) FindByUserID(ctx context.Context, userID string) (*model.UserPreference, error) {
	pref := &model.UserPreference{}
	var categories, tags pq.StringArray

	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, preferred_categories, preferred_tags, updated_at
		 FROM user_preferences WHERE user_id = $1`,
		userID,
	).Scan(&pref.UserID, &categories, &tags, &pref.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("嗜好設定の取得に失敗しました: %w", err)
	}

	pref.PreferredCategories = []string(categories)
	pref.PreferredTags = []string(tags)

	return pref, nil
}

// compile-time interface check
var _ PreferenceRepository = (*PostgresPreferenceRepo)(nil)
