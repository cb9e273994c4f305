// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// CatalogSessionIDはカタログサービスのゲストセッションID。
// レーティング送信のためだけに必要で、初回送信時にオンデマンドで取得し、
// カタログ側が期限切れを報告するたびに置き換えられる。未取得の場合は空文字列。
type User struct {
	ID               string
	Email            string
	Name             string
	CatalogSessionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// カタログサービスのゲストセッションとは別物で、本サービスのWeb層でのみ使用する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
