package model

import "time"

// Event はGoogle Calendar上のイベントのローカルミラーを表す。
// 真実の所在は常にGoogle Calendar側にあり、ミラーはキャッシュに過ぎない。
// GoogleEventIDはストア全体で一意（所有者との複合キーではない）。
type Event struct {
	ID            string
	UserID        string
	GoogleEventID string
	Name          string
	StartAt       time.Time
	EndAt         time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
