package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/calmirror/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントミラーリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

const eventColumns = `id, user_id, google_event_id, name, start_at, end_at, created_at, updated_at`

// Create は新規ミラーイベントを作成する。
func (r *PostgresEventRepo) Create(ctx context.Context, event *model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, google_event_id, name, start_at, end_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.UserID, event.GoogleEventID, event.Name,
		event.StartAt, event.EndAt, event.CreatedAt, event.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// FindByGoogleEventID は指定のGoogleイベントIDのミラーを取得する。
// 見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByGoogleEventID(ctx context.Context, googleEventID string) (*model.Event, error) {
	event := &model.Event{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE google_event_id = $1`,
		googleEventID,
	).Scan(
		&event.ID, &event.UserID, &event.GoogleEventID, &event.Name,
		&event.StartAt, &event.EndAt, &event.CreatedAt, &event.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event by google event ID: %w", err)
	}
	return event, nil
}

// UpsertByGoogleEventID はGoogleイベントIDで冪等にUPSERTする。
// 既存行はname/start_at/end_atのみ上書きし、所有者は変更しない。
func (r *PostgresEventRepo) UpsertByGoogleEventID(ctx context.Context, userID, googleEventID, name string, startAt, endAt time.Time) error {
	now := time.Now()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO events (id, user_id, google_event_id, name, start_at, end_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		 ON CONFLICT (google_event_id)
		 DO UPDATE SET name = EXCLUDED.name, start_at = EXCLUDED.start_at,
		               end_at = EXCLUDED.end_at, updated_at = EXCLUDED.updated_at`,
		uuid.New().String(), userID, googleEventID, name, startAt, endAt, now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}
	return nil
}

// DeleteByGoogleEventID は指定のGoogleイベントIDのミラーを削除する。
// 存在しない場合は何もしない（冪等）。
func (r *PostgresEventRepo) DeleteByGoogleEventID(ctx context.Context, googleEventID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE google_event_id = $1`,
		googleEventID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	return nil
}

// ListByUserID はユーザーのミラーイベント一覧をstart_at昇順で返す。
func (r *PostgresEventRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE user_id = $1 ORDER BY start_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		event := &model.Event{}
		if err := rows.Scan(
			&event.ID, &event.UserID, &event.GoogleEventID, &event.Name,
			&event.StartAt, &event.EndAt, &event.CreatedAt, &event.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event rows: %w", err)
	}
	return events, nil
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
