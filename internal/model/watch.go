// Package model はドメインモデルを定義する。
package model

import "time"

// WatchStatus は視聴ステータスを表す。
// 「フォロー解除」の明示的な状態は存在しない。WatchRecordの不在がフォロー解除を意味する。
type WatchStatus string

const (
	// WatchStatusNotUpToDate は未視聴エピソードが残っている状態。
	WatchStatusNotUpToDate WatchStatus = "not_up_to_date"
	// WatchStatusUpToDate は放送済み最新話まで視聴済みで、次回放送が予定されている状態。
	WatchStatusUpToDate WatchStatus = "up_to_date"
	// WatchStatusFinished は最終話まで視聴済みで、次回放送の予定がない状態。
	WatchStatusFinished WatchStatus = "finished"
)

// WatchRecord はユーザーとフォロー中作品の関連を表す。
// (UserID, MediaType, ExternalID) につき1レコード。
// Statusは最終再計算時点のLastViewedとカタログ最新話の比較結果をキャッシュした導出値であり、
// 読み取りのたびに再計算されるライブな値ではない。
// 映画のレコードはLastViewedとStatusを持たない（フォローの有無のみ）。
type WatchRecord struct {
	ID         string
	UserID     string
	MediaType  MediaType
	ExternalID int
	LastViewed EpisodeMarker
	Status     WatchStatus
	Grade      *float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Ref はレコードが指す作品のMediaRefを返す。
func (r *WatchRecord) Ref() MediaRef {
	return MediaRef{Type: r.MediaType, ID: r.ExternalID}
}

// IsSeries はレコードがシリーズのものかを返す。
func (r *WatchRecord) IsSeries() bool {
	return r.MediaType == MediaTypeSeries
}

// StatusBuckets はユーザーのフォロー中シリーズをステータス別に分割した結果。
// ステータスを持たない映画レコードは含まれない。
type StatusBuckets struct {
	NotUpToDate []MediaRef
	UpToDate    []MediaRef
	Finished    []MediaRef
}
