// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, watchlist, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidMediaType   = "INVALID_MEDIA_TYPE"
	ErrCodeMediaNotFound      = "MEDIA_NOT_FOUND"
	ErrCodeEpisodeNotFound    = "EPISODE_NOT_FOUND"
	ErrCodeCatalogThrottled   = "CATALOG_THROTTLED"
	ErrCodeCatalogUnavailable = "CATALOG_UNAVAILABLE"
	ErrCodeInvalidEpisode     = "INVALID_EPISODE"
	ErrCodeInvalidRating      = "INVALID_RATING"
	ErrCodeInvalidPage        = "INVALID_PAGE"
	ErrCodeNotFollowed        = "NOT_FOLLOWED"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
)

// NewInvalidMediaTypeError は未知のメディア種別エラーを生成する。
// 既知の2種類以外を渡すのは呼び出し側のプログラミングエラーであり、即座に失敗させる。
func NewInvalidMediaTypeError(t MediaType) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMediaType,
		Message:  fmt.Sprintf("未知のメディア種別です: %q", string(t)),
		Category: "validation",
		Action:   "メディア種別には tv または movie を指定してください。",
	}
}

// NewMediaNotFoundError は作品未検出エラーを生成する。
// カタログに存在しない作品の参照は想定内の事象として扱う。
func NewMediaNotFoundError(ref MediaRef) *APIError {
	return &APIError{
		Code:     ErrCodeMediaNotFound,
		Message:  fmt.Sprintf("指定された作品が見つかりません: %s", ref),
		Category: "catalog",
		Action:   "メディア種別とIDを確認してください。",
	}
}

// NewEpisodeNotFoundError はエピソード未検出エラーを生成する。
func NewEpisodeNotFoundError(seriesID, season, episode int) *APIError {
	return &APIError{
		Code:     ErrCodeEpisodeNotFound,
		Message:  fmt.Sprintf("指定されたエピソードが見つかりません: シリーズ%d S%dE%d", seriesID, season, episode),
		Category: "catalog",
		Action:   "シーズン番号とエピソード番号を確認してください。",
	}
}

// NewCatalogThrottledError はカタログAPIのリトライ上限到達エラーを生成する。
// 一時的な失敗であり、呼び出し側での再試行が可能。
func NewCatalogThrottledError() *APIError {
	return &APIError{
		Code:     ErrCodeCatalogThrottled,
		Message:  "カタログサービスへのリクエストがレート制限により失敗しました。",
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCatalogUnavailableError はカタログサービス到達不能エラーを生成する。
func NewCatalogUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeCatalogUnavailable,
		Message:  "カタログサービスに接続できませんでした。",
		Category: "catalog",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidEpisodeError は無効なエピソード指定エラーを生成する。
func NewInvalidEpisodeError(season, episode int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidEpisode,
		Message:  fmt.Sprintf("無効なエピソード指定です: S%dE%d", season, episode),
		Category: "validation",
		Action:   "シーズン番号とエピソード番号には1以上の整数を指定してください。",
	}
}

// NewInvalidRatingError は無効なレーティング値エラーを生成する。
func NewInvalidRatingError(value float64) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRating,
		Message:  fmt.Sprintf("無効なレーティング値です: %.1f", value),
		Category: "validation",
		Action:   "レーティングは0.5から10.0の範囲で0.5刻みで指定してください。",
	}
}

// NewInvalidPageError は無効なページ番号エラーを生成する。
func NewInvalidPageError(page int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPage,
		Message:  fmt.Sprintf("無効なページ番号です: %d", page),
		Category: "validation",
		Action:   "ページ番号には1以上の整数を指定してください。",
	}
}

// NewNotFollowedError は未フォロー作品への操作エラーを生成する。
func NewNotFollowedError(ref MediaRef) *APIError {
	return &APIError{
		Code:     ErrCodeNotFollowed,
		Message:  fmt.Sprintf("この作品はフォローしていません: %s", ref),
		Category: "watchlist",
		Action:   "先に作品をフォローしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}
