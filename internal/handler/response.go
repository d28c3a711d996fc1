// Package handler はHTTP APIのハンドラーとルーティングを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// 内部の分類コードはログにのみ記録し、クライアントにはメッセージだけを返す。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		slog.Warn("request failed",
			slog.String("code", apiErr.Code),
			slog.String("category", apiErr.Category),
			slog.Int("status", statusCode),
		)
		middleware.WriteErrorResponse(w, statusCode, apiErr.Message)
		return
	}

	// 上流でのトークン拒否。リフレッシュフローはないため再ログインを促す。
	if errors.Is(err, gcal.ErrUnauthorized) {
		slog.Warn("upstream rejected access token", slog.String("error", err.Error()))
		middleware.WriteUnauthorized(w)
		return
	}

	slog.Error("internal error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorのコードをHTTPステータスコードに対応付ける。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeStaleResource, model.ErrCodeNoActiveWatch:
		return http.StatusBadRequest
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeUnknownChannel:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
