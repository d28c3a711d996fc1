// Package gcal はGoogle Calendar APIへの型付きゲートウェイを提供する。
// ユーザーごとのアクセストークンからクライアントを構築し、
// 本システムが使用する操作（insert / list-upcoming / delete / watch）のみを公開する。
package gcal

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/calmirror/internal/model"
)

// ErrUnauthorized は上流がベアラートークンを拒否したことを表す。
// リフレッシュフローは存在しないため、呼び出し側は再ログインを要求するしかない。
var ErrUnauthorized = errors.New("access token rejected by google")

// ErrNotFound は対象リソースが上流に存在しないことを表す。
// 削除操作ではローカルの意図（存在しないこと）が既に満たされているため、
// 呼び出し側は成功として扱う。
var ErrNotFound = errors.New("resource not found upstream")

// EventDateTime はGoogle CalendarのdateTimeフィールドを表す。
// フロントエンドが消費する {start: {dateTime}} の形をそのまま保つ。
type EventDateTime struct {
	DateTime string `json:"dateTime"`
}

// ExternalEvent はGoogle Calendar上のイベントを表す。
// JSON形状はフロントエンドとの契約であり変更してはならない。
type ExternalEvent struct {
	ID      string        `json:"id"`
	Summary string        `json:"summary"`
	Start   EventDateTime `json:"start"`
	End     EventDateTime `json:"end"`
}

// Gateway は1ユーザーの資格情報に紐付いたGoogle Calendar操作のインターフェース。
type Gateway interface {
	// InsertEvent はイベントを作成し、上流が採番したIDを含むイベントを返す。
	InsertEvent(ctx context.Context, title string, start, end time.Time) (*ExternalEvent, error)

	// ListUpcoming は現在時刻以降に開始するイベントを開始時刻昇順で返す。
	// 繰り返しイベントは個別インスタンスに展開される。
	ListUpcoming(ctx context.Context) ([]*ExternalEvent, error)

	// DeleteEvent は指定イベントを上流から削除する。
	// 既に存在しない場合はErrNotFoundを返す。
	DeleteEvent(ctx context.Context, eventID string) error

	// StartWatch は変更push通知のwatchチャネルを開始する。
	StartWatch(ctx context.Context, callbackURL string) (*model.WatchChannel, error)

	// StopWatch は指定のwatchチャネルを停止する。
	StopWatch(ctx context.Context, channelID, resourceID string) error
}

// Profile はログイン時にGoogleから取得するユーザー情報。
type Profile struct {
	GoogleID string
	Email    string
	Name     string
}

// Factory はアクセストークンからゲートウェイとプロフィール取得を構築する。
// ハンドラー・サービス層はこのインターフェースにのみ依存する。
type Factory interface {
	// NewGateway は指定トークンで認可されたGatewayを生成する。
	NewGateway(ctx context.Context, accessToken string) (Gateway, error)

	// FetchProfile は指定トークンの持ち主のプロフィールを取得する。
	FetchProfile(ctx context.Context, accessToken string) (*Profile, error)
}
