// Package event はカレンダーイベントの作成・一覧・削除を提供する。
// イベントの真実の所在はGoogle Calendarであり、
// ローカルのミラーは作成・リコンサイル時に書かれるキャッシュに過ぎない。
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/metrics"
	"github.com/hitoshi/calmirror/internal/model"
	"github.com/hitoshi/calmirror/internal/repository"
	"github.com/hitoshi/calmirror/internal/security"
)

// CreateInput はイベント作成のリクエスト入力。
type CreateInput struct {
	Name     string
	Date     string // "2006-01-02"
	TimeFrom string // "15:04"
	TimeTo   string // "15:04"
}

// Service はイベントに関するビジネスロジックを提供する。
type Service struct {
	events    repository.EventRepository
	gateways  gcal.Factory
	sanitizer security.TitleSanitizer
	collector metrics.MetricsCollector
	loc       *time.Location
}

// NewService はServiceを生成する。
// locはイベント時刻の解釈に使用するタイムゾーン。
func NewService(
	events repository.EventRepository,
	gateways gcal.Factory,
	sanitizer security.TitleSanitizer,
	collector metrics.MetricsCollector,
	loc *time.Location,
) *Service {
	return &Service{
		events:    events,
		gateways:  gateways,
		sanitizer: sanitizer,
		collector: collector,
		loc:       loc,
	}
}

// Create は入力を検証し、上流にイベントを作成してからミラーに保存する。
// 検証エラーの場合は上流呼び出しを行わない。
func (s *Service) Create(ctx context.Context, user *model.User, input CreateInput) (*model.Event, error) {
	name := s.sanitizer.Sanitize(input.Name)
	if name == "" {
		return nil, model.NewValidationError("イベント名が空です。")
	}

	start, end, err := ParseSchedule(input.Date, input.TimeFrom, input.TimeTo, s.loc)
	if err != nil {
		return nil, err
	}

	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	started := time.Now()
	created, err := gateway.InsertEvent(ctx, name, start, end)
	s.collector.RecordGatewayLatency(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("failed to insert event upstream: %w", err)
	}

	now := time.Now()
	event := &model.Event{
		ID:            uuid.New().String(),
		UserID:        user.ID,
		GoogleEventID: created.ID,
		Name:          name,
		StartAt:       start,
		EndAt:         end,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.events.Create(ctx, event); err != nil {
		// 上流には既に存在する。次のリコンサイルでミラーに補完される。
		return nil, fmt.Errorf("failed to mirror created event: %w", err)
	}

	slog.Info("event created",
		slog.String("google_id", user.GoogleID),
		slog.String("google_event_id", created.ID),
	)
	return event, nil
}

// ListUpcoming は上流から今後のイベント一覧を取得してそのまま返す。
// レスポンス形状（id/summary/start.dateTime/end.dateTime）は
// フロントエンドとの契約であり、ミラーではなく上流を直接反映する。
func (s *Service) ListUpcoming(ctx context.Context, user *model.User) ([]*gcal.ExternalEvent, error) {
	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	started := time.Now()
	events, err := gateway.ListUpcoming(ctx)
	s.collector.RecordGatewayLatency(time.Since(started))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return events, nil
}

// Delete はイベントを上流から削除し、続いてミラーから削除する。
// 上流で既に存在しない場合（NotFound）は意図が満たされているため成功として扱う。
func (s *Service) Delete(ctx context.Context, user *model.User, googleEventID string) error {
	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	started := time.Now()
	err = gateway.DeleteEvent(ctx, googleEventID)
	s.collector.RecordGatewayLatency(time.Since(started))
	if err != nil && !errors.Is(err, gcal.ErrNotFound) {
		return fmt.Errorf("failed to delete event upstream: %w", err)
	}

	if err := s.events.DeleteByGoogleEventID(ctx, googleEventID); err != nil {
		return fmt.Errorf("failed to delete mirrored event: %w", err)
	}

	slog.Info("event deleted",
		slog.String("google_id", user.GoogleID),
		slog.String("google_event_id", googleEventID),
	)
	return nil
}
