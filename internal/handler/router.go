package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/calmirror/internal/metrics"
	"github.com/hitoshi/calmirror/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Collector         metrics.MetricsCollector

	// アカウント
	AccountService AccountServiceInterface
	TokenIssuer    TokenIssuer
	Cookie         CookieConfig

	// イベント
	EventService EventServiceInterface

	// watchチャネルとリコンサイル
	SyncService SyncServiceInterface

	// 運用系
	Health         HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging →（保護ルートのみ）Session → RateLimit
//
// ログイン（POST /user）とGoogleからの通知受信（POST /events/notifications）は
// セッションミドルウェアの外に配置する。通知の検証はチャネル記述子の照合で行う。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Collector))

	userHandler := NewUserHandler(deps.AccountService, deps.TokenIssuer, deps.Cookie)
	eventHandler := NewEventHandler(deps.EventService, deps.AccountService)
	watchHandler := NewWatchHandler(deps.SyncService, deps.AccountService)

	// --- 認証不要のルート ---

	// ログイン
	r.Post("/user", userHandler.Login)

	// Googleからのpush通知受信
	r.Post("/events/notifications", watchHandler.Notify)

	// 運用系
	r.Get("/health", NewHealthHandler(deps.Health))
	r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 現在ユーザー
		r.Get("/user", userHandler.Me)

		// イベント管理
		r.Route("/events", func(r chi.Router) {
			// POST /events - イベント作成（作成専用レート制限を追加）
			r.With(deps.RateLimiter.EventCreationMiddleware()).Post("/", eventHandler.Create)

			r.Get("/", eventHandler.List)
			r.Delete("/{eventId}", eventHandler.Delete)

			// watchチャネル管理
			r.Post("/watch", watchHandler.StartWatch)
			r.Post("/stop-watch", watchHandler.StopWatch)
		})
	})

	return r
}
