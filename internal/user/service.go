// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/medialog/internal/model"
)

// UserStore はユーザーの取得・削除インターフェース。
type UserStore interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	DeleteByID(ctx context.Context, id string) error
}

// UserDataDeleter はユーザーに紐づくデータの一括削除インターフェース。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	users    UserStore
	entries  UserDataDeleter
	sessions UserDataDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(users UserStore, entries, sessions UserDataDeleter) *Service {
	return &Service{
		users:    users,
		entries:  entries,
		sessions: sessions,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: entries → sessions → user
// ユーザー行は最後に削除する。途中で失敗した場合はユーザーが残り、再実行できる。
// 発行済みのBearerトークンは失効できないが、ユーザー削除後はエントリー操作の対象が存在しなくなる。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します", slog.String("user_id", userID))

	if err := s.entries.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("エントリーの削除に失敗しました: %w", err)
	}

	if err := s.sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.users.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました", slog.String("user_id", userID))

	return nil
}
