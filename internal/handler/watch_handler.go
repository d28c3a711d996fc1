package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
)

// Google push通知のヘッダー名。
const (
	headerChannelID  = "X-Goog-Channel-ID"
	headerResourceID = "X-Goog-Resource-ID"
)

// SyncServiceInterface はwatchハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	// StartWatch はユーザーのpush通知チャネルを開始する。既存チャネルは置き換える。
	StartWatch(ctx context.Context, user *model.User) (*model.WatchChannel, error)
	// StopWatch はユーザーのpush通知チャネルを停止する。
	StopWatch(ctx context.Context, user *model.User) error
	// HandleNotification はpush通知を受けてイベントミラーをリコンサイルする。
	HandleNotification(ctx context.Context, channelID, resourceID string) error
}

// WatchHandler はpush通知チャネル管理と通知受信のHTTPハンドラー。
type WatchHandler struct {
	service  SyncServiceInterface
	accounts AccountServiceInterface
}

// NewWatchHandler はWatchHandlerを生成する。
func NewWatchHandler(service SyncServiceInterface, accounts AccountServiceInterface) *WatchHandler {
	return &WatchHandler{
		service:  service,
		accounts: accounts,
	}
}

// currentUser は認証済みGoogle IDからユーザーレコードを解決する。
func (h *WatchHandler) currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	googleID, err := middleware.GoogleIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return nil
	}

	user, err := h.accounts.GetUser(r.Context(), googleID)
	if err != nil {
		handleServiceError(w, err)
		return nil
	}
	if user == nil {
		middleware.WriteUnauthorized(w)
		return nil
	}
	return user
}

// StartWatch はカレンダー変更のpush通知チャネルを開始する。
// POST /events/watch
func (h *WatchHandler) StartWatch(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	watch, err := h.service.StartWatch(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "watchを開始しました。",
		"watchData": watch,
	})
}

// StopWatch はpush通知チャネルを停止する。
// POST /events/stop-watch
func (h *WatchHandler) StopWatch(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	if err := h.service.StopWatch(r.Context(), user); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "watchを停止しました。",
	})
}

// Notify はGoogleからのpush通知を受信し、イベントミラーをリコンサイルする。
// 認証はセッションではなく、保存済みのチャネル記述子との照合で行う。
// POST /events/notifications
func (h *WatchHandler) Notify(w http.ResponseWriter, r *http.Request) {
	channelID := r.Header.Get(headerChannelID)
	resourceID := r.Header.Get(headerResourceID)
	if channelID == "" || resourceID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "通知ヘッダーが不足しています。")
		return
	}

	if err := h.service.HandleNotification(r.Context(), channelID, resourceID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "通知を処理しました。",
	})
}
