// Package model はドメインモデルを定義する。
package model

import "time"

// User はGoogleアカウントで認証されたユーザーを表す。
// AccessTokenはGoogle Calendar API呼び出しに使用するベアラートークンで、
// ログインのたびに上書きされる。リフレッシュフローは持たない。
type User struct {
	ID          string
	GoogleID    string
	Email       string
	Name        string
	AccessToken string
	Watch       *WatchChannel // アクティブなwatchチャネル。未購読ならnil。
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// WatchChannel はGoogle Calendarのpush通知チャネルの記述子を表す。
// watch開始時にGoogleから返され、stop時に両方のIDが必要になる。
type WatchChannel struct {
	ChannelID  string `json:"id"`
	ResourceID string `json:"resourceId"`
}

// Subscribed はユーザーがpush通知を購読中かどうかを返す。
func (u *User) Subscribed() bool {
	return u.Watch != nil
}
