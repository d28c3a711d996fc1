// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/calmirror/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// UpsertByGoogleID はGoogle IDでユーザーを作成または更新する。
	// 初回は全フィールドを保存し、2回目以降はaccess_tokenのみ上書きする
	// （email/nameは再ログインでは更新しない）。
	UpsertByGoogleID(ctx context.Context, googleID, email, name, accessToken string) (*model.User, error)

	// FindByGoogleID は指定Google IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// FindByChannelID はwatchチャネルIDでユーザーを検索する。見つからない場合はnilを返す。
	// チャネルIDは失効・差し替えされるため、stop-watch後のin-flight通知ではミスが起きうる。
	FindByChannelID(ctx context.Context, channelID string) (*model.User, error)

	// SetWatch はユーザーのwatchチャネル記述子を設定する。nilでクリアする。
	SetWatch(ctx context.Context, googleID string, watch *model.WatchChannel) error
}

// EventRepository はイベントミラーの永続化インターフェース。
// ミラーはキャッシュであり、真実の所在は常にGoogle Calendar側にある。
type EventRepository interface {
	// Create は新規ミラーイベントを作成する。
	Create(ctx context.Context, event *model.Event) error

	// FindByGoogleEventID は指定のGoogleイベントIDのミラーを取得する。
	// 見つからない場合はnilを返す。
	FindByGoogleEventID(ctx context.Context, googleEventID string) (*model.Event, error)

	// UpsertByGoogleEventID はGoogleイベントIDで冪等にUPSERTする。
	// 既存ならname/start_at/end_atを上書きし、なければuserIDを所有者として挿入する。
	UpsertByGoogleEventID(ctx context.Context, userID, googleEventID, name string, startAt, endAt time.Time) error

	// DeleteByGoogleEventID は指定のGoogleイベントIDのミラーを削除する。
	// 存在しない場合は何もしない（冪等）。
	DeleteByGoogleEventID(ctx context.Context, googleEventID string) error

	// ListByUserID はユーザーのミラーイベント一覧をstart_at昇順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Event, error)
}
