package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/watchman/internal/metrics"
)

// CatalogSessionStore はユーザーに紐づくゲストセッションIDの永続化を抽象化する。
// ユーザーリポジトリが実装する。
type CatalogSessionStore interface {
	// GetCatalogSession はユーザーの保存済みゲストセッションIDを返す。
	// 未取得の場合は空文字列を返す。
	GetCatalogSession(ctx context.Context, userID string) (string, error)
	// UpdateCatalogSession はユーザーのゲストセッションIDを置き換える。
	UpdateCatalogSession(ctx context.Context, userID, sessionID string) error
}

// SessionRenewer はゲストセッションの取得と再発行を抽象化する。
type SessionRenewer interface {
	// Ensure はユーザーの有効と思われるセッションIDを返す。
	// 未取得であれば新規に発行して永続化する。
	Ensure(ctx context.Context, userID string) (string, error)
	// Renew はカタログ側の期限切れ報告を受けてセッションを再発行し、永続化する。
	Renew(ctx context.Context, userID string) (string, error)
}

// GuestSessionService はカタログサービスのゲストセッションを管理する。
// ゲストセッションはレーティング送信のためだけに必要で、
// 初回送信時にオンデマンドで発行し、期限切れのたびに置き換える。
type GuestSessionService struct {
	dispatcher Dispatcher
	store      CatalogSessionStore
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
}

var _ SessionRenewer = (*GuestSessionService)(nil)

// NewGuestSessionService はGuestSessionServiceの新しいインスタンスを生成する。
func NewGuestSessionService(dispatcher Dispatcher, store CatalogSessionStore, logger *slog.Logger, collector metrics.MetricsCollector) *GuestSessionService {
	return &GuestSessionService{
		dispatcher: dispatcher,
		store:      store,
		logger:     logger,
		metrics:    collector,
	}
}

// Ensure はユーザーの保存済みセッションIDを返す。未取得なら新規発行する。
func (s *GuestSessionService) Ensure(ctx context.Context, userID string) (string, error) {
	sessionID, err := s.store.GetCatalogSession(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ゲストセッションの取得に失敗しました: %w", err)
	}
	if sessionID != "" {
		return sessionID, nil
	}
	return s.Renew(ctx, userID)
}

// Renew は新しいゲストセッションをカタログサービスから発行し、
// ユーザーに永続化してから返す。
func (s *GuestSessionService) Renew(ctx context.Context, userID string) (string, error) {
	body, err := s.dispatcher.Dispatch(ctx, "guest_session_new", Request{
		Method: http.MethodGet,
		Path:   "/authentication/guest_session/new",
	})
	if err != nil {
		return "", err
	}

	var resp guestSessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("ゲストセッションレスポンスのパースに失敗しました: %w", err)
	}
	if !resp.Success || resp.GuestSessionID == "" {
		return "", fmt.Errorf("ゲストセッションの発行に失敗しました")
	}

	if err := s.store.UpdateCatalogSession(ctx, userID, resp.GuestSessionID); err != nil {
		return "", fmt.Errorf("ゲストセッションの永続化に失敗しました: %w", err)
	}

	s.metrics.RecordSessionRenewal()
	s.logger.Info("カタログゲストセッションを発行しました",
		slog.String("user_id", userID),
	)
	return resp.GuestSessionID, nil
}
