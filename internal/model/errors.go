package model

import "fmt"

// APIError はサーバー内部でのエラー分類を表す。
// クライアントには常にフラットな {"error": string} ボディのみを返し、
// コードとカテゴリはログでの分類にのみ使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, upstream, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeUnknownChannel = "UNKNOWN_CHANNEL"
	ErrCodeStaleResource  = "STALE_RESOURCE"
	ErrCodeNoActiveWatch  = "NO_ACTIVE_WATCH"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
	}
}

// NewUnauthorizedError は認証エラーを生成する。
// セッション不正と上流でのトークン拒否の両方に使用する。
// 上流拒否の場合、リフレッシュフローは存在しないため再ログインが必要。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証に失敗しました。再度ログインしてください。",
		Category: "auth",
	}
}

// NewUnknownChannelError は通知のチャネルIDがどのユーザーにも
// 紐付かない場合のエラーを生成する。stop-watch直後のin-flight通知で発生しうる。
func NewUnknownChannelError(channelID string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownChannel,
		Message:  fmt.Sprintf("未知のチャネルIDです: %s", channelID),
		Category: "upstream",
	}
}

// NewStaleResourceError は通知のリソースIDが保存済みの記述子と
// 一致しない場合のエラーを生成する。チャネル跨ぎのリプレイ防御。
func NewStaleResourceError() *APIError {
	return &APIError{
		Code:     ErrCodeStaleResource,
		Message:  "リソースIDが現在のwatchチャネルと一致しません。",
		Category: "upstream",
	}
}

// NewNoActiveWatchError は未購読状態でstop-watchが呼ばれた場合のエラーを生成する。
func NewNoActiveWatchError() *APIError {
	return &APIError{
		Code:     ErrCodeNoActiveWatch,
		Message:  "アクティブなwatchチャネルがありません。",
		Category: "validation",
	}
}
