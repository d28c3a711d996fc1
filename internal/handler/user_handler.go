package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/calmirror/internal/middleware"
	"github.com/hitoshi/calmirror/internal/model"
)

// AccountServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	// Login はアクセストークンでプロフィールを取得し、ユーザーを作成または更新する。
	Login(ctx context.Context, accessToken string) (*model.User, error)
	// GetUser は指定Google IDのユーザーを取得する。見つからない場合はnilを返す。
	GetUser(ctx context.Context, googleID string) (*model.User, error)
}

// TokenIssuer はセッショントークンの発行に必要なインターフェース。
// session.Codecの部分集合として定義する。
type TokenIssuer interface {
	Issue(googleID string) (string, error)
}

// CookieConfig はセッションCookieの属性設定。
type CookieConfig struct {
	Secure bool
	Domain string
	MaxAge int // 秒
}

// UserHandler はログインと現在ユーザー取得のHTTPハンドラー。
type UserHandler struct {
	service AccountServiceInterface
	issuer  TokenIssuer
	cookie  CookieConfig
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AccountServiceInterface, issuer TokenIssuer, cookie CookieConfig) *UserHandler {
	return &UserHandler{
		service: service,
		issuer:  issuer,
		cookie:  cookie,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	AccessToken string `json:"accessToken"`
}

// userResponse はユーザー情報のAPIレスポンス。
// アクセストークンはサーバー内部でのみ使用し、クライアントには返さない。
type userResponse struct {
	GoogleID string `json:"googleId"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

// Login はフロントエンドで取得されたGoogleアクセストークンを受け取り、
// ユーザーを作成または更新してセッションCookieを設定する。
// POST /user
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディの解析に失敗しました。")
		return
	}
	if req.AccessToken == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "accessTokenが空です。")
		return
	}

	user, err := h.service.Login(r.Context(), req.AccessToken)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	token, err := h.issuer.Issue(user.GoogleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	// クロスオリジンのフロントエンドからCookieを送れるようSameSite=Noneとする。
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   h.cookie.MaxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteNoneMode,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "ログインしました。",
		"user":    toUserResponse(user),
	})
}

// Me は現在ログイン中のユーザー情報を返す。
// トークンは有効だがユーザーレコードが存在しない場合は401を返す。
// GET /user
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	googleID, err := middleware.GoogleIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	user, err := h.service.GetUser(r.Context(), googleID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if user == nil {
		middleware.WriteUnauthorized(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user": toUserResponse(user),
	})
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		GoogleID: user.GoogleID,
		Email:    user.Email,
		Name:     user.Name,
	}
}
