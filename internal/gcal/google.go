package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	people "google.golang.org/api/people/v1"

	"github.com/hitoshi/calmirror/internal/model"
)

// GoogleFactory はgoogle.golang.org/apiを使用したFactoryの実装。
type GoogleFactory struct {
	calendarID string
}

// NewGoogleFactory はGoogleFactoryを生成する。
// calendarIDは操作対象のカレンダー。通常は"primary"。
func NewGoogleFactory(calendarID string) *GoogleFactory {
	return &GoogleFactory{calendarID: calendarID}
}

// NewGateway は指定トークンで認可されたGatewayを生成する。
func (f *GoogleFactory) NewGateway(ctx context.Context, accessToken string) (Gateway, error) {
	service, err := calendar.NewService(ctx, option.WithTokenSource(staticTokenSource(accessToken)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return &googleGateway{
		service:    service,
		calendarID: f.calendarID,
	}, nil
}

// FetchProfile はPeople APIでトークンの持ち主のGoogle ID・メール・表示名を取得する。
func (f *GoogleFactory) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	service, err := people.NewService(ctx, option.WithTokenSource(staticTokenSource(accessToken)))
	if err != nil {
		return nil, fmt.Errorf("failed to create people service: %w", err)
	}

	person, err := service.People.Get("people/me").
		PersonFields("emailAddresses,names").
		Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError("fetch profile", err)
	}

	profile := &Profile{}
	for _, name := range person.Names {
		profile.Name = name.DisplayName
		if name.Metadata != nil && name.Metadata.Source != nil {
			profile.GoogleID = name.Metadata.Source.Id
		}
		break
	}
	for _, email := range person.EmailAddresses {
		profile.Email = email.Value
		break
	}

	if profile.GoogleID == "" || profile.Email == "" {
		return nil, fmt.Errorf("incomplete profile response: googleID=%q email=%q", profile.GoogleID, profile.Email)
	}
	return profile, nil
}

// staticTokenSource は有効期限を持たない固定トークンのTokenSourceを返す。
// トークンは上流で拒否されるまで不透明な文字列として扱う。
func staticTokenSource(accessToken string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
}

// googleGateway は1ユーザー分のcalendar.Serviceを包むGateway実装。
type googleGateway struct {
	service    *calendar.Service
	calendarID string
}

// InsertEvent はイベントを作成し、上流が採番したIDを含むイベントを返す。
func (g *googleGateway) InsertEvent(ctx context.Context, title string, start, end time.Time) (*ExternalEvent, error) {
	event := &calendar.Event{
		Summary: title,
		Start: &calendar.EventDateTime{
			DateTime: start.Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: end.Format(time.RFC3339),
		},
	}

	created, err := g.service.Events.Insert(g.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError("insert event", err)
	}
	return toExternalEvent(created), nil
}

// ListUpcoming は現在時刻以降に開始するイベントを開始時刻昇順で返す。
func (g *googleGateway) ListUpcoming(ctx context.Context) ([]*ExternalEvent, error) {
	result, err := g.service.Events.List(g.calendarID).
		TimeMin(time.Now().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError("list events", err)
	}

	events := make([]*ExternalEvent, 0, len(result.Items))
	for _, item := range result.Items {
		events = append(events, toExternalEvent(item))
	}
	return events, nil
}

// DeleteEvent は指定イベントを上流から削除する。
func (g *googleGateway) DeleteEvent(ctx context.Context, eventID string) error {
	if err := g.service.Events.Delete(g.calendarID, eventID).Context(ctx).Do(); err != nil {
		return mapGoogleError("delete event", err)
	}
	return nil
}

// StartWatch は変更push通知のwatchチャネルを開始する。
// チャネルIDはこちらで採番し、リソースIDはGoogleが返す。
func (g *googleGateway) StartWatch(ctx context.Context, callbackURL string) (*model.WatchChannel, error) {
	channel := &calendar.Channel{
		Id:      uuid.New().String(),
		Type:    "web_hook",
		Address: callbackURL,
	}

	created, err := g.service.Events.Watch(g.calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, mapGoogleError("start watch", err)
	}
	return &model.WatchChannel{
		ChannelID:  created.Id,
		ResourceID: created.ResourceId,
	}, nil
}

// StopWatch は指定のwatchチャネルを停止する。
func (g *googleGateway) StopWatch(ctx context.Context, channelID, resourceID string) error {
	channel := &calendar.Channel{
		Id:         channelID,
		ResourceId: resourceID,
	}
	if err := g.service.Channels.Stop(channel).Context(ctx).Do(); err != nil {
		return mapGoogleError("stop watch", err)
	}
	return nil
}

// toExternalEvent はcalendar.EventをExternalEventに変換する。
func toExternalEvent(event *calendar.Event) *ExternalEvent {
	ext := &ExternalEvent{
		ID:      event.Id,
		Summary: event.Summary,
	}
	if event.Start != nil {
		ext.Start = EventDateTime{DateTime: event.Start.DateTime}
	}
	if event.End != nil {
		ext.End = EventDateTime{DateTime: event.End.DateTime}
	}
	return ext
}

// mapGoogleError はgoogleapiのHTTPステータスをドメインエラーに写す。
// 401はトークン失効（再ログイン必須）、404は上流に存在しないリソース。
func mapGoogleError(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrUnauthorized)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// compile-time interface checks
var (
	_ Factory = (*GoogleFactory)(nil)
	_ Gateway = (*googleGateway)(nil)
)
