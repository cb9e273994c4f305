// Package notification は未視聴エピソードの通知集約を提供する。
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/watchman/internal/model"
)

// resolveConcurrency は表示名解決のカタログ呼び出しの同時実行数上限。
const resolveConcurrency = 4

// StatusSource は通知集約が必要とするステータス分割操作のインターフェース。
type StatusSource interface {
	GetStatusBuckets(ctx context.Context, userID string) (*model.StatusBuckets, error)
}

// NameResolver は作品の表示名解決のインターフェース。
// 現在はカタログへの都度問い合わせだが、バッチ解決やキャッシュへの
// 差し替えを想定した拡張点。
type NameResolver interface {
	// ResolveName は作品の表示名を返す。見つからない場合は空文字列を返す。
	ResolveName(ctx context.Context, ref model.MediaRef) (string, error)
}

// Notification は未視聴エピソードがあるシリーズ1件の通知。
type Notification struct {
	Ref  model.MediaRef
	Name string
}

// Service は通知集約のサービス層。
type Service struct {
	statuses StatusSource
	resolver NameResolver
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(statuses StatusSource, resolver NameResolver, logger *slog.Logger) *Service {
	return &Service{
		statuses: statuses,
		resolver: resolver,
		logger:   logger,
	}
}

// GetNotifications は未視聴エピソードがあるシリーズの通知一覧を返す。
// 表示名は同時実行数を制限した並行フェッチで解決し、バケット内の順序を保持する。
// 解決に失敗した作品とカタログから消えた作品は一覧から除外する。
func (s *Service) GetNotifications(ctx context.Context, userID string) ([]Notification, error) {
	buckets, err := s.statuses.GetStatusBuckets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ステータス一覧の取得に失敗しました: %w", err)
	}

	refs := buckets.NotUpToDate
	if len(refs) == 0 {
		return []Notification{}, nil
	}

	names := make([]string, len(refs))
	sem := make(chan struct{}, resolveConcurrency)
	var wg sync.WaitGroup

	for i, ref := range refs {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, ref model.MediaRef) {
			defer wg.Done()
			defer func() { <-sem }()

			name, err := s.resolver.ResolveName(ctx, ref)
			if err != nil {
				s.logger.Warn("通知の表示名解決に失敗",
					"user_id", userID, "media", ref.String(), "error", err)
				return
			}
			names[i] = name
		}(i, ref)
	}
	wg.Wait()

	notifications := make([]Notification, 0, len(refs))
	for i, ref := range refs {
		if names[i] == "" {
			continue
		}
		notifications = append(notifications, Notification{Ref: ref, Name: names[i]})
	}

	return notifications, nil
}

// GetNotificationCount は未視聴エピソードがあるシリーズの件数を返す。
// 表示名の解決は行わないため、カタログへの問い合わせは発生しない。
func (s *Service) GetNotificationCount(ctx context.Context, userID string) (int, error) {
	buckets, err := s.statuses.GetStatusBuckets(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("ステータス一覧の取得に失敗しました: %w", err)
	}
	return len(buckets.NotUpToDate), nil
}
