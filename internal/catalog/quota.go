// Package catalog は外部メディアカタログサービスへのアクセスを提供する。
// レート制限を尊重するゲートウェイと、エンドポイントごとの型付きクライアントを含む。
package catalog

import (
	"context"
	"sync"
	"time"
)

// Clock は時刻取得とスリープを抽象化する。
// リトライやレート制限待ちのタイミングを実時間なしでテストするために注入する。
type Clock interface {
	// Now は現在時刻を返す。
	Now() time.Time
	// Sleep は指定時間待機する。コンテキストがキャンセルされた場合は
	// 待機を打ち切ってctx.Err()を返す。
	Sleep(ctx context.Context, d time.Duration) error
}

// realClock は実時間を使用するClockの実装。
type realClock struct{}

// NewRealClock は実時間を使用するClockを生成する。
func NewRealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// QuotaState はカタログサービスのレート制限窓の観測状態を保持する。
// プロセス全体で共有され、全ての送信リクエストが参照・更新するため
// ミューテックスで保護する。待機自体はロックの外で行い、
// 1つのリクエストの待機が他のリクエストの状態参照を妨げない。
type QuotaState struct {
	mu            sync.Mutex
	remaining     int // 残りコール数。-1は未観測を意味する
	windowResetAt time.Time
	window        time.Duration
	budget        int // 1窓あたりの許容コール数。0以下は上限なし
}

// NewQuotaState は未観測状態のQuotaStateを生成する。
func NewQuotaState(window time.Duration, budget int) *QuotaState {
	return &QuotaState{
		remaining: -1,
		window:    window,
		budget:    budget,
	}
}

// Observe は成功レスポンスのクォータヘッダーから残りコール数を反映する。
// 負の値は0に、窓の許容量を超える値は許容量に丸め、
// 観測後のremainingが負になることはない。
// windowResetAtは前進のみ許す。過去に巻き戻すと他のリクエストの
// 待機判定が狂い、許可が枯渇するため。
func (q *QuotaState) Observe(remaining int, now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if remaining < 0 {
		remaining = 0
	}
	if q.budget > 0 && remaining > q.budget {
		remaining = q.budget
	}
	q.remaining = remaining

	if now.After(q.windowResetAt) {
		q.windowResetAt = now.Add(q.window)
	}
}

// MarkThrottled は429受信を反映する。残りコール数を0とし、
// リセット時刻が過去であれば1窓分先に設定する。
func (q *QuotaState) MarkThrottled(now time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.remaining = 0
	if !q.windowResetAt.After(now) {
		q.windowResetAt = now.Add(q.window)
	}
}

// AdmitWait はリクエスト発行前の待機判定を行う。
// 残りコール数が1以下と観測されており、かつ窓のリセット前であれば、
// リセットまでの待機時間とtrueを返す。それ以外は即時発行可能として
// 0とfalseを返す。未観測（-1）の場合は待機しない。
func (q *QuotaState) AdmitWait(now time.Time) (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.remaining == -1 || q.remaining > 1 {
		return 0, false
	}
	if !q.windowResetAt.After(now) {
		return 0, false
	}
	return q.windowResetAt.Sub(now), true
}

// Snapshot は現在の観測状態を返す。ログとメトリクス用。
func (q *QuotaState) Snapshot() (remaining int, resetAt time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining, q.windowResetAt
}
