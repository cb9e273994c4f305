// Package tracker は視聴進捗管理のドメインロジックを提供する。
package tracker

import "github.com/hitoshi/watchman/internal/model"

// DeriveStatus は視聴位置と放送済み最新話から視聴ステータスを導出する純粋関数。
// hasNextAirDateは次回放送日が確定しているかを表す。
//
// 導出規則:
//   - 視聴位置 = 最新話 かつ 次回放送なし → finished
//   - 視聴位置 = 最新話 かつ 次回放送あり → up_to_date
//   - 視聴位置 < 最新話 → not_up_to_date
//   - 視聴位置 > 最新話 → up_to_date（カタログ側のデータ遅延を許容する防御的分岐）
func DeriveStatus(lastViewed, latestAired model.EpisodeMarker, hasNextAirDate bool) model.WatchStatus {
	switch cmp := lastViewed.Compare(latestAired); {
	case cmp < 0:
		return model.WatchStatusNotUpToDate
	case cmp > 0:
		return model.WatchStatusUpToDate
	case hasNextAirDate:
		return model.WatchStatusUpToDate
	default:
		return model.WatchStatusFinished
	}
}
