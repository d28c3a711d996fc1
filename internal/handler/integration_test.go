package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/calmirror/internal/account"
	"github.com/hitoshi/calmirror/internal/event"
	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
	"github.com/hitoshi/calmirror/internal/security"
	syncpkg "github.com/hitoshi/calmirror/internal/sync"
)

// 実サービス層をインメモリリポジトリとモックゲートウェイで組み上げ、
// ルーター経由でログイン→作成→一覧→削除とwatch→通知の一連の流れを検証する。

// --- インメモリリポジトリ ---

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User // key: googleID
	seq   int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*model.User)}
}

func (r *memUserRepo) UpsertByGoogleID(_ context.Context, googleID, email, name, accessToken string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[googleID]; ok {
		u.AccessToken = accessToken
		return u, nil
	}
	r.seq++
	u := &model.User{
		ID:          fmt.Sprintf("uid-%d", r.seq),
		GoogleID:    googleID,
		Email:       email,
		Name:        name,
		AccessToken: accessToken,
	}
	r.users[googleID] = u
	return u, nil
}

func (r *memUserRepo) FindByGoogleID(_ context.Context, googleID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[googleID], nil
}

func (r *memUserRepo) FindByChannelID(_ context.Context, channelID string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Watch != nil && u.Watch.ChannelID == channelID {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) SetWatch(_ context.Context, googleID string, watch *model.WatchChannel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[googleID]
	if !ok {
		return fmt.Errorf("user not found: %s", googleID)
	}
	u.Watch = watch
	return nil
}

type memEventRepo struct {
	mu     sync.Mutex
	events map[string]*model.Event // key: googleEventID
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{events: make(map[string]*model.Event)}
}

func (r *memEventRepo) Create(_ context.Context, e *model.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[e.GoogleEventID] = e
	return nil
}

func (r *memEventRepo) FindByGoogleEventID(_ context.Context, googleEventID string) (*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[googleEventID], nil
}

func (r *memEventRepo) UpsertByGoogleEventID(_ context.Context, userID, googleEventID, name string, startAt, endAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.events[googleEventID]; ok {
		e.Name = name
		e.StartAt = startAt
		e.EndAt = endAt
		return nil
	}
	r.events[googleEventID] = &model.Event{
		ID:            "row-" + googleEventID,
		UserID:        userID,
		GoogleEventID: googleEventID,
		Name:          name,
		StartAt:       startAt,
		EndAt:         endAt,
	}
	return nil
}

func (r *memEventRepo) DeleteByGoogleEventID(_ context.Context, googleEventID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.events, googleEventID)
	return nil
}

func (r *memEventRepo) ListByUserID(_ context.Context, userID string) ([]*model.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Event
	for _, e := range r.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- 上流カレンダーのフェイク ---

type fakeCalendar struct {
	mu     sync.Mutex
	seq    int
	events map[string]*gcal.ExternalEvent
	watch  *model.WatchChannel
}

func newFakeCalendar() *fakeCalendar {
	return &fakeCalendar{events: make(map[string]*gcal.ExternalEvent)}
}

type fakeGateway struct {
	cal *fakeCalendar
}

func (g *fakeGateway) InsertEvent(_ context.Context, title string, start, end time.Time) (*gcal.ExternalEvent, error) {
	g.cal.mu.Lock()
	defer g.cal.mu.Unlock()
	g.cal.seq++
	ev := &gcal.ExternalEvent{
		ID:      fmt.Sprintf("gev-%d", g.cal.seq),
		Summary: title,
		Start:   gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:     gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	g.cal.events[ev.ID] = ev
	return ev, nil
}

func (g *fakeGateway) ListUpcoming(_ context.Context) ([]*gcal.ExternalEvent, error) {
	g.cal.mu.Lock()
	defer g.cal.mu.Unlock()
	out := make([]*gcal.ExternalEvent, 0, len(g.cal.events))
	for _, ev := range g.cal.events {
		out = append(out, ev)
	}
	return out, nil
}

func (g *fakeGateway) DeleteEvent(_ context.Context, eventID string) error {
	g.cal.mu.Lock()
	defer g.cal.mu.Unlock()
	if _, ok := g.cal.events[eventID]; !ok {
		return gcal.ErrNotFound
	}
	delete(g.cal.events, eventID)
	return nil
}

func (g *fakeGateway) StartWatch(_ context.Context, callbackURL string) (*model.WatchChannel, error) {
	g.cal.mu.Lock()
	defer g.cal.mu.Unlock()
	g.cal.seq++
	g.cal.watch = &model.WatchChannel{
		ChannelID:  fmt.Sprintf("ch-%d", g.cal.seq),
		ResourceID: "res-cal",
	}
	return g.cal.watch, nil
}

func (g *fakeGateway) StopWatch(_ context.Context, channelID, resourceID string) error {
	g.cal.mu.Lock()
	defer g.cal.mu.Unlock()
	g.cal.watch = nil
	return nil
}

type fakeFactory struct {
	cal *fakeCalendar
}

func (f *fakeFactory) NewGateway(_ context.Context, accessToken string) (gcal.Gateway, error) {
	if accessToken == "" {
		return nil, gcal.ErrUnauthorized
	}
	return &fakeGateway{cal: f.cal}, nil
}

func (f *fakeFactory) FetchProfile(_ context.Context, accessToken string) (*gcal.Profile, error) {
	if accessToken == "" {
		return nil, gcal.ErrUnauthorized
	}
	return &gcal.Profile{GoogleID: "g-1", Email: "taro@example.com", Name: "Taro"}, nil
}

// newIntegrationRouter は実サービスとフェイク上流を組み上げたルーターを返す。
func newIntegrationRouter(t *testing.T) (http.Handler, *fakeCalendar, *memEventRepo, func()) {
	t.Helper()

	cal := newFakeCalendar()
	factory := &fakeFactory{cal: cal}
	users := newMemUserRepo()
	events := newMemEventRepo()
	codec := testCodec()
	collector := noopCollector{}

	accountService := account.NewService(users, factory)
	eventService := event.NewService(events, factory, security.NewTitleSanitizer(), collector, time.UTC)
	syncService := syncpkg.NewService(users, events, factory, collector, "https://api.example.com/events/notifications")

	rl := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(1000, 1000))

	router := NewRouter(&RouterDeps{
		TokenVerifier:     codec,
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Collector:         collector,
		AccountService:    accountService,
		TokenIssuer:       codec,
		Cookie:            CookieConfig{MaxAge: 3600},
		EventService:      eventService,
		SyncService:       syncService,
		Health:            &stubHealth{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	return router, cal, events, rl.Stop
}

func loginAndGetCookie(t *testing.T, router http.Handler) *http.Cookie {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/user", strings.NewReader(`{"accessToken":"tok-1"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("login: session cookie was not set")
	return nil
}

func TestIntegration_CreateListDeleteFlow(t *testing.T) {
	router, cal, mirror, stop := newIntegrationRouter(t)
	defer stop()

	cookie := loginAndGetCookie(t, router)

	// 作成
	req := httptest.NewRequest(http.MethodPost, "/events",
		strings.NewReader(`{"eventName":"ミーティング","date":"2024-06-01","eventTimeFrom":"09:00","eventTimeTo":"10:00"}`))
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var createResp struct {
		Event eventResponse `json:"event"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &createResp); err != nil {
		t.Fatal(err)
	}
	googleEventID := createResp.Event.GoogleEventID

	// 上流とミラーの両方に存在する
	if len(cal.events) != 1 {
		t.Fatalf("upstream events = %d, want 1", len(cal.events))
	}
	if e, _ := mirror.FindByGoogleEventID(context.Background(), googleEventID); e == nil {
		t.Fatal("mirror row was not created")
	}

	// 一覧は上流の形状を返す
	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	var listResp struct {
		Events []*gcal.ExternalEvent `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listResp); err != nil {
		t.Fatal(err)
	}
	if len(listResp.Events) != 1 || listResp.Events[0].Summary != "ミーティング" {
		t.Errorf("events = %+v", listResp.Events)
	}

	// 削除
	req = httptest.NewRequest(http.MethodDelete, "/events/"+googleEventID, nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(cal.events) != 0 {
		t.Error("upstream event was not deleted")
	}
	if e, _ := mirror.FindByGoogleEventID(context.Background(), googleEventID); e != nil {
		t.Error("mirror row was not deleted")
	}

	// 再削除も成功する（冪等）
	req = httptest.NewRequest(http.MethodDelete, "/events/"+googleEventID, nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("redelete: status = %d, want 200", rec.Code)
	}
}

func TestIntegration_WatchAndNotificationFlow(t *testing.T) {
	router, cal, mirror, stop := newIntegrationRouter(t)
	defer stop()

	cookie := loginAndGetCookie(t, router)

	// watch開始
	req := httptest.NewRequest(http.MethodPost, "/events/watch", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("watch: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var watchResp struct {
		Watch model.WatchChannel `json:"watchData"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &watchResp); err != nil {
		t.Fatal(err)
	}

	// 上流に直接イベントが増えたことにする
	cal.mu.Lock()
	cal.events["gev-ext"] = &gcal.ExternalEvent{
		ID:      "gev-ext",
		Summary: "外部で追加",
		Start:   gcal.EventDateTime{DateTime: "2024-06-02T09:00:00Z"},
		End:     gcal.EventDateTime{DateTime: "2024-06-02T10:00:00Z"},
	}
	cal.mu.Unlock()

	// 通知を配送するとミラーがリコンサイルされる
	req = httptest.NewRequest(http.MethodPost, "/events/notifications", nil)
	req.Header.Set("X-Goog-Channel-ID", watchResp.Watch.ChannelID)
	req.Header.Set("X-Goog-Resource-ID", watchResp.Watch.ResourceID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("notify: status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if e, _ := mirror.FindByGoogleEventID(context.Background(), "gev-ext"); e == nil {
		t.Fatal("notification did not reconcile the mirror")
	}

	// 同じ通知の再配送は冪等
	req = httptest.NewRequest(http.MethodPost, "/events/notifications", nil)
	req.Header.Set("X-Goog-Channel-ID", watchResp.Watch.ChannelID)
	req.Header.Set("X-Goog-Resource-ID", watchResp.Watch.ResourceID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("redeliver: status = %d, want 200", rec.Code)
	}

	// 不一致のリソースIDはミラーを変更しない
	req = httptest.NewRequest(http.MethodPost, "/events/notifications", nil)
	req.Header.Set("X-Goog-Channel-ID", watchResp.Watch.ChannelID)
	req.Header.Set("X-Goog-Resource-ID", "res-stale")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("stale notify: status = %d, want 400", rec.Code)
	}

	// watch停止後、旧チャネルへの通知は404
	req = httptest.NewRequest(http.MethodPost, "/events/stop-watch", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stop-watch: status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/events/notifications", nil)
	req.Header.Set("X-Goog-Channel-ID", watchResp.Watch.ChannelID)
	req.Header.Set("X-Goog-Resource-ID", watchResp.Watch.ResourceID)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("notify after stop: status = %d, want 404", rec.Code)
	}
}
