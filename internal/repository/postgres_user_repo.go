package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/calmirror/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, google_id, email, name, access_token, channel_id, resource_id, created_at, updated_at`

// UpsertByGoogleID はGoogle IDでユーザーを作成または更新する。
// 2回目以降のログインではaccess_tokenのみを上書きする。
func (r *PostgresUserRepo) UpsertByGoogleID(ctx context.Context, googleID, email, name, accessToken string) (*model.User, error) {
	now := time.Now()
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, google_id, email, name, access_token, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)
		 ON CONFLICT (google_id)
		 DO UPDATE SET access_token = EXCLUDED.access_token, updated_at = EXCLUDED.updated_at
		 RETURNING `+userColumns,
		uuid.New().String(), googleID, email, name, accessToken, now,
	)

	user, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return user, nil
}

// FindByGoogleID は指定Google IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE google_id = $1`,
		googleID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google ID: %w", err)
	}
	return user, nil
}

// FindByChannelID はwatchチャネルIDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByChannelID(ctx context.Context, channelID string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE channel_id = $1`,
		channelID,
	)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by channel ID: %w", err)
	}
	return user, nil
}

// SetWatch はユーザーのwatchチャネル記述子を設定する。nilでクリアする。
func (r *PostgresUserRepo) SetWatch(ctx context.Context, googleID string, watch *model.WatchChannel) error {
	var channelID, resourceID sql.NullString
	if watch != nil {
		channelID = sql.NullString{String: watch.ChannelID, Valid: true}
		resourceID = sql.NullString{String: watch.ResourceID, Valid: true}
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET channel_id = $1, resource_id = $2, updated_at = $3 WHERE google_id = $4`,
		channelID, resourceID, time.Now(), googleID,
	)
	if err != nil {
		return fmt.Errorf("failed to set watch channel: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", googleID)
	}
	return nil
}

// rowScanner はsql.Rowとsql.Rowsを同じscanUserで扱うための共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser は1行をmodel.Userに読み出す。channel_id/resource_idが両方
// 揃っている場合のみWatchを復元する。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var channelID, resourceID sql.NullString

	err := row.Scan(
		&user.ID, &user.GoogleID, &user.Email, &user.Name, &user.AccessToken,
		&channelID, &resourceID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if channelID.Valid && resourceID.Valid {
		user.Watch = &model.WatchChannel{
			ChannelID:  channelID.String,
			ResourceID: resourceID.String,
		}
	}
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
