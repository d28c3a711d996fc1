package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/calmirror/internal/event"
	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
)

// EventServiceInterface はイベントハンドラーが必要とするサービスインターフェース。
type EventServiceInterface interface {
	// Create は入力を検証し、上流にイベントを作成してからミラーに保存する。
	Create(ctx context.Context, user *model.User, input event.CreateInput) (*model.Event, error)
	// ListUpcoming は上流から今後のイベント一覧を取得する。
	ListUpcoming(ctx context.Context, user *model.User) ([]*gcal.ExternalEvent, error)
	// Delete はイベントを上流とミラーの両方から削除する。
	Delete(ctx context.Context, user *model.User, googleEventID string) error
}

// EventHandler はイベント管理のHTTPハンドラー。
type EventHandler struct {
	service  EventServiceInterface
	accounts AccountServiceInterface
}

// NewEventHandler はEventHandlerを生成する。
func NewEventHandler(service EventServiceInterface, accounts AccountServiceInterface) *EventHandler {
	return &EventHandler{
		service:  service,
		accounts: accounts,
	}
}

// createEventRequest はイベント作成リクエストのボディ。
// フィールド名はフロントエンドとの契約。
type createEventRequest struct {
	EventName     string `json:"eventName"`
	Date          string `json:"date"`          // "2006-01-02"
	EventTimeFrom string `json:"eventTimeFrom"` // "15:04"
	EventTimeTo   string `json:"eventTimeTo"`   // "15:04"
}

// eventResponse はミラー済みイベントのAPIレスポンス。
type eventResponse struct {
	ID            string `json:"id"`
	GoogleEventID string `json:"googleEventId"`
	Name          string `json:"name"`
	StartAt       string `json:"startAt"`
	EndAt         string `json:"endAt"`
}

// currentUser は認証済みGoogle IDからユーザーレコードを解決する。
// レコードが存在しない場合は401を書き込み、nilを返す。
func (h *EventHandler) currentUser(w http.ResponseWriter, r *http.Request) *model.User {
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

// Create はイベントを作成する。
// POST /events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディの解析に失敗しました。")
		return
	}

	created, err := h.service.Create(r.Context(), user, event.CreateInput{
		Name:     req.EventName,
		Date:     req.Date,
		TimeFrom: req.EventTimeFrom,
		TimeTo:   req.EventTimeTo,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "イベントを作成しました。",
		"event":   toEventResponse(created),
	})
}

// List は今後のイベント一覧を返す。
// レスポンスのイベント形状（id/summary/start.dateTime/end.dateTime）は上流をそのまま反映する。
// GET /events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	events, err := h.service.ListUpcoming(r.Context(), user)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if events == nil {
		events = []*gcal.ExternalEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
	})
}

// Delete はイベントを削除する。
// DELETE /events/{eventId}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := h.currentUser(w, r)
	if user == nil {
		return
	}

	eventID := chi.URLParam(r, "eventId")
	if eventID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "イベントIDが空です。")
		return
	}

	if err := h.service.Delete(r.Context(), user, eventID); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "イベントを削除しました。",
	})
}

// toEventResponse はmodel.EventからAPIレスポンスに変換する。
func toEventResponse(e *model.Event) eventResponse {
	return eventResponse{
		ID:            e.ID,
		GoogleEventID: e.GoogleEventID,
		Name:          e.Name,
		StartAt:       e.StartAt.Format("2006-01-02T15:04:05Z07:00"),
		EndAt:         e.EndAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
