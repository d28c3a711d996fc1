// Package account はログインと現在ユーザーの取得を提供する。
package account

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/calmirror/internal/gcal"
	"github.com/hitoshi/calmirror/internal/model"
	"github.com/hitoshi/calmirror/internal/repository"
)

// Service はアカウントに関するビジネスロジックを提供する。
type Service struct {
	users    repository.UserRepository
	gateways gcal.Factory
}

// NewService はServiceを生成する。
func NewService(users repository.UserRepository, gateways gcal.Factory) *Service {
	return &Service{
		users:    users,
		gateways: gateways,
	}
}

// Login はフロントエンドから渡されたアクセストークンでGoogleのプロフィールを取得し、
// ユーザーを作成または更新して返す。
// 初回はレコードを新規作成し、2回目以降はaccess_tokenのみ上書きする。
func (s *Service) Login(ctx context.Context, accessToken string) (*model.User, error) {
	profile, err := s.gateways.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google profile: %w", err)
	}

	user, err := s.users.UpsertByGoogleID(ctx, profile.GoogleID, profile.Email, profile.Name, accessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	slog.Info("user logged in",
		slog.String("google_id", user.GoogleID),
		slog.String("email", user.Email),
	)
	return user, nil
}

// GetUser は指定Google IDのユーザーを取得する。見つからない場合はnilを返す。
// セッショントークンは有効だがレコードが消えているケースはここで検出される。
func (s *Service) GetUser(ctx context.Context, googleID string) (*model.User, error) {
	user, err := s.users.FindByGoogleID(ctx, googleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}
