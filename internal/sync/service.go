// Package sync はGoogle Calendarのwatchチャネル管理と、
// push通知を契機としたイベントミラーのリコンサイルを提供する。
//
// 通知は変更のシグナルのみで差分を運ばないため、リコンサイルは常に
// 「今後のイベント窓を全件取得して外部IDでアップサートする」方式を取る。
// アップサートが冪等であることから、同一通知の再配送や順序の入れ替わりが
// あっても最終的なミラー内容は最後に取得した上流状態に収束する。
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/metrics"
	"github.com/hitoshi/calmirror/internal/model"
	"github.com/hitoshi/calmirror/internal/repository"
)

// Service はwatchチャネルのライフサイクルとリコンサイルのビジネスロジックを提供する。
type Service struct {
	users       repository.UserRepository
	events      repository.EventRepository
	gateways    gcal.Factory
	collector   metrics.MetricsCollector
	callbackURL string
}

// NewService はServiceを生成する。
// callbackURLはGoogleがpush通知を配送する公開URL。
func NewService(
	users repository.UserRepository,
	events repository.EventRepository,
	gateways gcal.Factory,
	collector metrics.MetricsCollector,
	callbackURL string,
) *Service {
	return &Service{
		users:       users,
		events:      events,
		gateways:    gateways,
		collector:   collector,
		callbackURL: callbackURL,
	}
}

// StartWatch はユーザーのwatchチャネルを開始し、記述子を永続化する。
// 既にアクティブなチャネルがある場合はベストエフォートで停止してから差し替える。
func (s *Service) StartWatch(ctx context.Context, user *model.User) (*model.WatchChannel, error) {
	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway: %w", err)
	}

	if user.Subscribed() {
		if err := gateway.StopWatch(ctx, user.Watch.ChannelID, user.Watch.ResourceID); err != nil && !errors.Is(err, gcal.ErrNotFound) {
			// 旧チャネルの停止失敗は差し替えを妨げない。失効するまで放置される。
			slog.Warn("failed to stop previous watch channel",
				slog.String("google_id", user.GoogleID),
				slog.String("channel_id", user.Watch.ChannelID),
				slog.String("error", err.Error()),
			)
		}
	}

	watch, err := gateway.StartWatch(ctx, s.callbackURL)
	if err != nil {
		return nil, fmt.Errorf("failed to start watch: %w", err)
	}

	if err := s.users.SetWatch(ctx, user.GoogleID, watch); err != nil {
		return nil, fmt.Errorf("failed to persist watch channel: %w", err)
	}

	slog.Info("watch channel started",
		slog.String("google_id", user.GoogleID),
		slog.String("channel_id", watch.ChannelID),
	)
	return watch, nil
}

// StopWatch はユーザーのwatchチャネルを停止し、記述子をクリアする。
// 未購読の場合はNoActiveWatchエラーを返す。
// 上流でチャネルが既に消えている場合（NotFound）はローカルのクリアのみ行う。
func (s *Service) StopWatch(ctx context.Context, user *model.User) error {
	if !user.Subscribed() {
		return model.NewNoActiveWatchError()
	}

	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	if err := gateway.StopWatch(ctx, user.Watch.ChannelID, user.Watch.ResourceID); err != nil && !errors.Is(err, gcal.ErrNotFound) {
		return fmt.Errorf("failed to stop watch: %w", err)
	}

	if err := s.users.SetWatch(ctx, user.GoogleID, nil); err != nil {
		return fmt.Errorf("failed to clear watch channel: %w", err)
	}

	slog.Info("watch channel stopped", slog.String("google_id", user.GoogleID))
	return nil
}

// HandleNotification はpush通知を処理し、ミラーをリコンサイルする。
//
//  1. チャネルIDでユーザーを解決する。見つからない場合はUnknownChannelエラー
//     （stop-watch直後のin-flight通知やストアのリセット後に起こりうる）。
//  2. リソースIDを保存済みの記述子と照合する。不一致はStaleResourceエラーで、
//     ミラーへの書き込みは一切行わない。
//  3. 今後のイベント窓を全件取得し、1件ずつ外部IDでアップサートする。
//     ストア書き込みエラーは残りを中断してエラーを返す（バッチを跨ぐ
//     トランザクションはない）。過去に落ちたイベントの刈り取りは行わない。
func (s *Service) HandleNotification(ctx context.Context, channelID, resourceID string) error {
	user, err := s.users.FindByChannelID(ctx, channelID)
	if err != nil {
		s.collector.RecordReconcileFailure("store")
		return fmt.Errorf("failed to resolve channel: %w", err)
	}
	if user == nil {
		return model.NewUnknownChannelError(channelID)
	}

	if user.Watch == nil || user.Watch.ResourceID != resourceID {
		return model.NewStaleResourceError()
	}

	gateway, err := s.gateways.NewGateway(ctx, user.AccessToken)
	if err != nil {
		s.collector.RecordReconcileFailure("gateway")
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	started := time.Now()
	upcoming, err := gateway.ListUpcoming(ctx)
	s.collector.RecordGatewayLatency(time.Since(started))
	if err != nil {
		s.collector.RecordReconcileFailure("list")
		return fmt.Errorf("failed to list upcoming events: %w", err)
	}

	upserted := 0
	for _, event := range upcoming {
		startAt, endAt, ok := parseEventTimes(event)
		if !ok {
			// dateTimeを持たないイベント（終日等）はミラー対象外
			slog.Debug("skipping event without dateTime",
				slog.String("google_event_id", event.ID),
			)
			continue
		}

		if err := s.events.UpsertByGoogleEventID(ctx, user.ID, event.ID, event.Summary, startAt, endAt); err != nil {
			s.collector.RecordReconcileFailure("store")
			return fmt.Errorf("failed to upsert event %s: %w", event.ID, err)
		}
		upserted++
	}

	s.collector.RecordEventsUpserted(upserted)
	s.collector.RecordReconcileSuccess()
	slog.Info("reconciled upcoming events",
		slog.String("google_id", user.GoogleID),
		slog.String("channel_id", channelID),
		slog.Int("upserted", upserted),
	)
	return nil
}

// parseEventTimes は上流イベントの開始・終了時刻を解析する。
// どちらかが欠落または不正な場合はok=falseを返す。
func parseEventTimes(event *gcal.ExternalEvent) (startAt, endAt time.Time, ok bool) {
	if event.Start.DateTime == "" || event.End.DateTime == "" {
		return time.Time{}, time.Time{}, false
	}
	startAt, err := time.Parse(time.RFC3339, event.Start.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	endAt, err = time.Parse(time.RFC3339, event.End.DateTime)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return startAt, endAt, true
}
