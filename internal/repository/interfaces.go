// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/watchman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、watch_recordsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error

	// GetCatalogSession はユーザーのカタログゲストセッションIDを返す。
	// 未取得の場合は空文字列を返す。
	GetCatalogSession(ctx context.Context, userID string) (string, error)

	// UpdateCatalogSession はユーザーのカタログゲストセッションIDを置き換える。
	UpdateCatalogSession(ctx context.Context, userID, sessionID string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	// クリーンアップワーカーから定期実行される。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// WatchRecordRepository は視聴レコードの永続化インターフェース。
// レコードは(user_id, media_type, external_id)につき1件。
type WatchRecordRepository interface {
	// FindByUserAndRef はユーザーと作品の視聴レコードを取得する。
	// 見つからない場合はnilを返す。
	FindByUserAndRef(ctx context.Context, userID string, ref model.MediaRef) (*model.WatchRecord, error)

	// Create は視聴レコードを作成する。
	Create(ctx context.Context, record *model.WatchRecord) error

	// Delete はユーザーと作品の視聴レコードを削除する。
	// レコードが存在しない場合もエラーにしない（フォロー解除の冪等性）。
	Delete(ctx context.Context, userID string, ref model.MediaRef) error

	// ListByUserID はユーザーの全視聴レコードを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.WatchRecord, error)

	// ListSeriesByUserID はユーザーのシリーズの視聴レコードのみを返す。
	ListSeriesByUserID(ctx context.Context, userID string) ([]*model.WatchRecord, error)

	// UpdateProgress は視聴位置とステータスを単一のUPDATEで同時に書き込む。
	// 2つの並行更新が読み書きを交錯させないための永続化層での原子性保証。
	// レコードが存在しない場合はfalseを返す（未フォロー）。
	UpdateProgress(ctx context.Context, userID string, ref model.MediaRef, marker model.EpisodeMarker, status model.WatchStatus) (bool, error)

	// UpdateStatusIfMarker は保存済みの視聴位置がmarkerと一致する場合のみ
	// ステータスを更新する楽観的条件付き更新。
	// 再計算中に視聴位置が進んだレコードへの古いステータスの上書きを防ぐ。
	// 更新が適用された場合にtrueを返す。
	UpdateStatusIfMarker(ctx context.Context, userID string, ref model.MediaRef, marker model.EpisodeMarker, status model.WatchStatus) (bool, error)

	// UpdateGrade はレコードのレーティングを更新する。
	// レコードが存在しない場合はfalseを返す。
	UpdateGrade(ctx context.Context, userID string, ref model.MediaRef, grade float64) (bool, error)

	// DeleteByUserID はユーザーの全視聴レコードを削除する。退会時に使用する。
	DeleteByUserID(ctx context.Context, userID string) error

	// ListUserIDsWithSeries はシリーズを1件以上フォローしている全ユーザーIDを返す。
	// 定期再計算ワーカーの巡回対象の列挙に使用する。
	ListUserIDsWithSeries(ctx context.Context) ([]string, error)
}
