// Package refresh はフォロー中シリーズの視聴ステータスの定期再計算を提供する。
// カタログの放送スケジュールは日々進むため、ユーザー操作がなくても
// ステータスが陳腐化する。スケジューラが定期的に全ユーザー分を再計算する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatusRecomputer は1ユーザー分のステータス再計算の実行インターフェース。
type StatusRecomputer interface {
	// RecomputeAll はユーザーのフォロー中全シリーズのステータスを再計算する。
	RecomputeAll(ctx context.Context, userID string) error
}

// UserLister は再計算対象ユーザーの列挙インターフェース。
// repository.WatchRecordRepositoryの部分集合として定義する。
type UserLister interface {
	ListUserIDsWithSeries(ctx context.Context) ([]string, error)
}

// Scheduler はステータス再計算のスケジューリングと並列制御を行う。
// ティッカーで再計算対象ユーザーを取得し、
// semaphoreパターンで最大並列数を制御しながら再計算を実行する。
// 並列度はユーザー単位。1ユーザー内のカタログ呼び出しの並列制御は
// 再計算サービス側が持つ。
type Scheduler struct {
	users          UserLister
	recomputer     StatusRecomputer
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewScheduler(
	users UserLister,
	recomputer StatusRecomputer,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Scheduler{
		users:          users,
		recomputer:     recomputer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ステータス再計算スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("再計算サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ステータス再計算スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("再計算サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は再計算対象ユーザーを1回取得し、並列で再計算を実行する。
// 1ユーザーの失敗はログに記録してサイクルを継続する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	userIDs, err := s.users.ListUserIDsWithSeries(ctx)
	if err != nil {
		return err
	}

	if len(userIDs) == 0 {
		s.logger.Info("再計算対象のユーザーはいません")
		return nil
	}

	s.logger.Info("再計算サイクルを開始します",
		slog.Int("user_count", len(userIDs)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, userID := range userIDs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.recomputer.RecomputeAll(ctx, id); err != nil {
				s.logger.Error("ユーザーのステータス再計算に失敗しました",
					slog.String("user_id", id),
					slog.String("error", err.Error()),
				)
			}
		}(userID)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("再計算サイクルが完了しました",
		slog.Int("user_count", len(userIDs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
