package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/calmirror/internal/event"
	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
	"github.com/hitoshi/calmirror/internal/session"
)

// --- テスト用モック ---

type mockAccountService struct {
	loginFn   func(ctx context.Context, accessToken string) (*model.User, error)
	getUserFn func(ctx context.Context, googleID string) (*model.User, error)
}

func (m *mockAccountService) Login(ctx context.Context, accessToken string) (*model.User, error) {
	return m.loginFn(ctx, accessToken)
}

func (m *mockAccountService) GetUser(ctx context.Context, googleID string) (*model.User, error) {
	if m.getUserFn == nil {
		return nil, nil
	}
	return m.getUserFn(ctx, googleID)
}

type mockEventService struct {
	createFn func(ctx context.Context, user *model.User, input event.CreateInput) (*model.Event, error)
	listFn   func(ctx context.Context, user *model.User) ([]*gcal.ExternalEvent, error)
	deleteFn func(ctx context.Context, user *model.User, googleEventID string) error
}

func (m *mockEventService) Create(ctx context.Context, user *model.User, input event.CreateInput) (*model.Event, error) {
	return m.createFn(ctx, user, input)
}

func (m *mockEventService) ListUpcoming(ctx context.Context, user *model.User) ([]*gcal.ExternalEvent, error) {
	return m.listFn(ctx, user)
}

func (m *mockEventService) Delete(ctx context.Context, user *model.User, googleEventID string) error {
	return m.deleteFn(ctx, user, googleEventID)
}

type mockSyncService struct {
	startFn  func(ctx context.Context, user *model.User) (*model.WatchChannel, error)
	stopFn   func(ctx context.Context, user *model.User) error
	notifyFn func(ctx context.Context, channelID, resourceID string) error
}

func (m *mockSyncService) StartWatch(ctx context.Context, user *model.User) (*model.WatchChannel, error) {
	return m.startFn(ctx, user)
}

func (m *mockSyncService) StopWatch(ctx context.Context, user *model.User) error {
	return m.stopFn(ctx, user)
}

func (m *mockSyncService) HandleNotification(ctx context.Context, channelID, resourceID string) error {
	return m.notifyFn(ctx, channelID, resourceID)
}

type stubHealth struct {
	err error
}

func (s *stubHealth) PingContext(_ context.Context) error {
	return s.err
}

type noopCollector struct{}

func (noopCollector) RecordReconcileSuccess()              {}
func (noopCollector) RecordReconcileFailure(reason string) {}
func (noopCollector) RecordEventsUpserted(count int)       {}
func (noopCollector) RecordGatewayLatency(d time.Duration) {}
func (noopCollector) RecordHTTPStatus(code int)            {}

// --- ルーター組み立てヘルパー ---

func knownUser() *model.User {
	return &model.User{ID: "uid-1", GoogleID: "g-1", Email: "taro@example.com", Name: "Taro", AccessToken: "tok-1"}
}

func accountServiceWithUser(user *model.User) *mockAccountService {
	return &mockAccountService{
		loginFn: func(_ context.Context, _ string) (*model.User, error) {
			return user, nil
		},
		getUserFn: func(_ context.Context, googleID string) (*model.User, error) {
			if user != nil && googleID == user.GoogleID {
				return user, nil
			}
			return nil, nil
		},
	}
}

func testCodec() *session.Codec {
	return session.NewCodec("test-secret", time.Hour)
}

// newTestRouter はモックを組み合わせたルーターを返す。nilの依存はスタブで埋める。
func newTestRouter(accounts *mockAccountService, events *mockEventService, syncs *mockSyncService) (http.Handler, *session.Codec, func()) {
	codec := testCodec()

	if accounts == nil {
		accounts = accountServiceWithUser(nil)
	}
	if events == nil {
		events = &mockEventService{
			createFn: func(_ context.Context, _ *model.User, _ event.CreateInput) (*model.Event, error) {
				return nil, errors.New("not implemented")
			},
			listFn: func(_ context.Context, _ *model.User) ([]*gcal.ExternalEvent, error) {
				return nil, errors.New("not implemented")
			},
			deleteFn: func(_ context.Context, _ *model.User, _ string) error {
				return errors.New("not implemented")
			},
		}
	}
	if syncs == nil {
		syncs = &mockSyncService{
			startFn: func(_ context.Context, _ *model.User) (*model.WatchChannel, error) {
				return nil, errors.New("not implemented")
			},
			stopFn: func(_ context.Context, _ *model.User) error {
				return errors.New("not implemented")
			},
			notifyFn: func(_ context.Context, _, _ string) error {
				return errors.New("not implemented")
			},
		}
	}

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))

	router := NewRouter(&RouterDeps{
		TokenVerifier:     codec,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Collector:         noopCollector{},
		AccountService:    accounts,
		TokenIssuer:       codec,
		Cookie:            CookieConfig{Secure: false, MaxAge: 3600},
		EventService:      events,
		SyncService:       syncs,
		Health:            &stubHealth{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	return router, codec, rl.Stop
}
