// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/watchman/internal/model"
	"github.com/hitoshi/watchman/internal/repository"
)

// WatchRecordDeleter は視聴レコードの一括削除インターフェース。
type WatchRecordDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo      repository.UserRepository
	sessionRepo   repository.SessionRepository
	recordDeleter WatchRecordDeleter
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	recordDeleter WatchRecordDeleter,
) *Service {
	return &Service{
		userRepo:      userRepo,
		sessionRepo:   sessionRepo,
		recordDeleter: recordDeleter,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: watch_records → sessions → user（+ CASCADE: identities）
// カタログ側のゲストセッションは失効に任せる（明示的な破棄APIはない）。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	slog.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 視聴レコードを削除
	if s.recordDeleter != nil {
		if err := s.recordDeleter.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("視聴レコードの削除に失敗しました: %w", err)
		}
	}

	// 2. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 3. ユーザーを削除（identitiesはCASCADE削除）
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
