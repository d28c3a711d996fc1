package event

import (
	"fmt"
	"time"

	"github.com/hitoshi/calmirror/internal/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ParseSchedule は日付と開始・終了時刻の文字列を検証し、
// 設定タイムゾーンのtime.Timeに組み立てる。
// 日付は"2006-01-02"、時刻は"15:04"の厳密な形式のみ受け付ける
// （"9:30"のようなゼロ埋めなしや"2024-13-01"のような実在しない日付は拒否）。
// 不正な入力にはValidationErrorを返し、上流API呼び出しの前に弾く。
func ParseSchedule(date, timeFrom, timeTo string, loc *time.Location) (start, end time.Time, err error) {
	// time.Parseの数値フィールドはゼロ埋めなし（"9"や"2024-6-1"）も受理するため、
	// レイアウトと同じ長さであることを先に確認して固定幅の形式だけを通す。
	if len(date) != len(dateLayout) {
		return time.Time{}, time.Time{}, model.NewValidationError(
			fmt.Sprintf("不正な日付です: %q（YYYY-MM-DD形式で指定してください）", date))
	}
	if _, parseErr := time.Parse(dateLayout, date); parseErr != nil {
		return time.Time{}, time.Time{}, model.NewValidationError(
			fmt.Sprintf("不正な日付です: %q（YYYY-MM-DD形式で指定してください）", date))
	}

	start, err = combine(date, timeFrom, loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewValidationError(
			fmt.Sprintf("不正な開始時刻です: %q（HH:MM形式で指定してください）", timeFrom))
	}

	end, err = combine(date, timeTo, loc)
	if err != nil {
		return time.Time{}, time.Time{}, model.NewValidationError(
			fmt.Sprintf("不正な終了時刻です: %q（HH:MM形式で指定してください）", timeTo))
	}

	return start, end, nil
}

// combine は検証済みの日付と時刻文字列を1つの時刻に組み立てる。
// 時刻もレイアウト長との一致を要求し、"9:30"のような短縮形は弾く。
func combine(date, clock string, loc *time.Location) (time.Time, error) {
	if len(clock) != len(timeLayout) {
		return time.Time{}, fmt.Errorf("invalid clock format: %q", clock)
	}
	return time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+clock, loc)
}
