// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
)

// SessionCookieName はセッショントークンを保持するCookieの名前。
const SessionCookieName = "token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// googleIDContextKey はリクエストコンテキストにGoogle IDを格納するためのキー。
var googleIDContextKey = contextKey("google_id")

// TokenVerifier はセッショントークンの検証に必要なインターフェース。
// session.Codecの部分集合として定義する。
type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッショントークンを読み取り、
// 署名と有効期限を検証するミドルウェアを返す。
// 検証済みのGoogle IDをリクエストコンテキストに注入する。
// Cookieなし・署名不一致・期限切れのリクエストには401 Unauthorizedを返す。
// トークンは有効だがユーザーレコードが存在しないケースはハンドラー層で検出する。
func NewSessionMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				WriteUnauthorized(w)
				return
			}

			googleID, err := verifier.Verify(cookie.Value)
			if err != nil {
				WriteUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), googleIDContextKey, googleID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GoogleIDFromContext はリクエストコンテキストから認証済みGoogle IDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func GoogleIDFromContext(ctx context.Context) (string, error) {
	googleID, ok := ctx.Value(googleIDContextKey).(string)
	if !ok || googleID == "" {
		return "", fmt.Errorf("google ID not found in context")
	}
	return googleID, nil
}

// ContextWithGoogleID はコンテキストにGoogle IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithGoogleID(ctx context.Context, googleID string) context.Context {
	return context.WithValue(ctx, googleIDContextKey, googleID)
}
