package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/watchman/internal/metrics"
	"github.com/hitoshi/watchman/internal/model"
	"github.com/hitoshi/watchman/internal/repository"
)

// recomputeConcurrency は一括再計算時のカタログ呼び出しの同時実行数上限。
const recomputeConcurrency = 4

// CatalogSource はトラッカーが必要とするカタログ操作のインターフェース。
type CatalogSource interface {
	// GetSeries はシリーズ詳細を取得する。見つからない場合は(nil, nil)を返す。
	GetSeries(ctx context.Context, id int) (*model.Series, error)
	// SubmitRating は作品のレーティングをカタログサービスへ送信する。
	SubmitRating(ctx context.Context, ref model.MediaRef, userID string, value float64) error
}

// Service は視聴進捗管理のサービス層。
// フォロー管理、視聴位置の更新、ステータス再計算のビジネスロジックを提供する。
type Service struct {
	records repository.WatchRecordRepository
	catalog CatalogSource
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	records repository.WatchRecordRepository,
	catalog CatalogSource,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		records: records,
		catalog: catalog,
		metrics: collector,
		logger:  logger,
	}
}

// AddMedia は作品をフォローする。すでにフォロー済みの場合は何もしない。
// シリーズはS1E1・not_up_to_dateで初期化する。映画は視聴位置もステータスも持たない。
// カタログへの存在確認は行わない。存在しないIDはMarkEpisodeViewed等の
// 後続操作で検出される（クォータ節約のための設計判断）。
func (s *Service) AddMedia(ctx context.Context, userID string, ref model.MediaRef) error {
	if !ref.Type.Valid() {
		return model.NewInvalidMediaTypeError(ref.Type)
	}

	existing, err := s.records.FindByUserAndRef(ctx, userID, ref)
	if err != nil {
		return fmt.Errorf("視聴レコードの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return nil
	}

	now := time.Now()
	record := &model.WatchRecord{
		ID:         uuid.New().String(),
		UserID:     userID,
		MediaType:  ref.Type,
		ExternalID: ref.ID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if ref.Type == model.MediaTypeSeries {
		record.LastViewed = model.EpisodeMarker{Season: 1, Episode: 1}
		record.Status = model.WatchStatusNotUpToDate
	}

	if err := s.records.Create(ctx, record); err != nil {
		return fmt.Errorf("視聴レコードの作成に失敗しました: %w", err)
	}

	s.logger.Info("作品をフォローしました", "user_id", userID, "media", ref.String())
	return nil
}

// RemoveMedia は作品のフォローを解除する。フォローしていない場合も成功する（冪等）。
func (s *Service) RemoveMedia(ctx context.Context, userID string, ref model.MediaRef) error {
	if !ref.Type.Valid() {
		return model.NewInvalidMediaTypeError(ref.Type)
	}

	if err := s.records.Delete(ctx, userID, ref); err != nil {
		return fmt.Errorf("視聴レコードの削除に失敗しました: %w", err)
	}

	return nil
}

// MarkEpisodeViewed は指定エピソードまで視聴したことを記録する。
// カタログから放送済み最新話と次回放送日を取得し、視聴位置とステータスを
// 単一のUPDATEで同時に書き込む。フォローしていないシリーズへの呼び出しは
// 何もしない（冪等）。同じエピソードの再記録も安全。
func (s *Service) MarkEpisodeViewed(ctx context.Context, userID string, seriesID, season, episode int) error {
	if season < 1 || episode < 1 {
		return model.NewInvalidEpisodeError(season, episode)
	}

	ref := model.MediaRef{Type: model.MediaTypeSeries, ID: seriesID}

	record, err := s.records.FindByUserAndRef(ctx, userID, ref)
	if err != nil {
		return fmt.Errorf("視聴レコードの取得に失敗しました: %w", err)
	}
	if record == nil {
		return nil
	}

	series, err := s.catalog.GetSeries(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("シリーズ情報の取得に失敗しました: %w", err)
	}
	if series == nil {
		return model.NewMediaNotFoundError(ref)
	}

	marker := model.EpisodeMarker{Season: season, Episode: episode}
	status := DeriveStatus(marker, series.LatestAired, series.NextAirDate != "")

	updated, err := s.records.UpdateProgress(ctx, userID, ref, marker, status)
	if err != nil {
		return fmt.Errorf("視聴位置の更新に失敗しました: %w", err)
	}
	if !updated {
		// 取得後にフォロー解除された場合。冪等性のため成功として扱う
		return nil
	}

	s.logger.Info("視聴位置を更新しました",
		"user_id", userID, "media", ref.String(), "marker", marker.String(), "status", string(status))
	return nil
}

// RecomputeAll はユーザーの全フォロー中シリーズのステータスを再計算する。
// 視聴位置は変更しない。カタログ呼び出しは同時実行数を制限して並行実行する。
// 個々のシリーズの失敗は記録して処理を継続する（ベストエフォート）。
func (s *Service) RecomputeAll(ctx context.Context, userID string) error {
	records, err := s.records.ListSeriesByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("視聴レコード一覧の取得に失敗しました: %w", err)
	}
	if len(records) == 0 {
		return nil
	}

	sem := make(chan struct{}, recomputeConcurrency)
	var wg sync.WaitGroup

	for _, record := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(record *model.WatchRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			s.recomputeOne(ctx, record)
		}(record)
	}
	wg.Wait()

	s.metrics.RecordStatusRecompute(len(records))
	return nil
}

// recomputeOne は1件の視聴レコードのステータスを再計算する。
func (s *Service) recomputeOne(ctx context.Context, record *model.WatchRecord) {
	ref := record.Ref()

	series, err := s.catalog.GetSeries(ctx, ref.ID)
	if err != nil {
		s.logger.Warn("ステータス再計算のシリーズ取得に失敗",
			"user_id", record.UserID, "media", ref.String(), "error", err)
		return
	}
	if series == nil {
		// カタログから削除された作品。レコードは残し、ステータスは据え置く
		s.logger.Warn("フォロー中の作品がカタログに存在しません",
			"user_id", record.UserID, "media", ref.String())
		return
	}

	status := DeriveStatus(record.LastViewed, series.LatestAired, series.NextAirDate != "")
	if status == record.Status {
		return
	}

	applied, err := s.records.UpdateStatusIfMarker(ctx, record.UserID, ref, record.LastViewed, status)
	if err != nil {
		s.logger.Warn("ステータスの更新に失敗",
			"user_id", record.UserID, "media", ref.String(), "error", err)
		return
	}
	if !applied {
		// 再計算中に視聴位置が進んだ。新しい位置に基づく値が既に書かれている
		return
	}

	s.logger.Info("視聴ステータスを更新しました",
		"user_id", record.UserID, "media", ref.String(),
		"from", string(record.Status), "to", string(status))
}

// GetStatusBuckets はユーザーのフォロー中シリーズをステータス別に分割して返す。
// 保存順（作成順）を保持する。映画レコードは含まれない。
func (s *Service) GetStatusBuckets(ctx context.Context, userID string) (*model.StatusBuckets, error) {
	records, err := s.records.ListSeriesByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("視聴レコード一覧の取得に失敗しました: %w", err)
	}

	buckets := &model.StatusBuckets{}
	for _, record := range records {
		switch record.Status {
		case model.WatchStatusNotUpToDate:
			buckets.NotUpToDate = append(buckets.NotUpToDate, record.Ref())
		case model.WatchStatusUpToDate:
			buckets.UpToDate = append(buckets.UpToDate, record.Ref())
		case model.WatchStatusFinished:
			buckets.Finished = append(buckets.Finished, record.Ref())
		}
	}

	return buckets, nil
}

// ListFollowed はユーザーの全視聴レコード（シリーズと映画）を返す。
func (s *Service) ListFollowed(ctx context.Context, userID string) ([]*model.WatchRecord, error) {
	records, err := s.records.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("視聴レコード一覧の取得に失敗しました: %w", err)
	}
	return records, nil
}

// RateMedia はフォロー中作品のレーティングをカタログサービスへ送信し、
// 視聴レコードに記録する。値は0.5から10.0の範囲で0.5刻み。
func (s *Service) RateMedia(ctx context.Context, userID string, ref model.MediaRef, value float64) error {
	if !ref.Type.Valid() {
		return model.NewInvalidMediaTypeError(ref.Type)
	}
	if !validRating(value) {
		return model.NewInvalidRatingError(value)
	}

	record, err := s.records.FindByUserAndRef(ctx, userID, ref)
	if err != nil {
		return fmt.Errorf("視聴レコードの取得に失敗しました: %w", err)
	}
	if record == nil {
		return model.NewNotFollowedError(ref)
	}

	if err := s.catalog.SubmitRating(ctx, ref, userID, value); err != nil {
		return fmt.Errorf("レーティングの送信に失敗しました: %w", err)
	}

	if _, err := s.records.UpdateGrade(ctx, userID, ref, value); err != nil {
		return fmt.Errorf("レーティングの保存に失敗しました: %w", err)
	}

	s.logger.Info("レーティングを送信しました",
		"user_id", userID, "media", ref.String(), "value", value)
	return nil
}

// validRating はレーティング値が0.5〜10.0の範囲の0.5刻みかを返す。
func validRating(value float64) bool {
	if value < 0.5 || value > 10.0 {
		return false
	}
	doubled := value * 2
	return doubled == math.Trunc(doubled)
}
