package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type mockUserLister struct {
	userIDs []string
	err     error
}

func (m *mockUserLister) ListUserIDsWithSeries(ctx context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.userIDs, nil
}

type mockRecomputer struct {
	mu         sync.Mutex
	recomputed []string
	errFor     map[string]error
	delay      time.Duration

	active    int32
	maxActive int32
}

func (m *mockRecomputer) RecomputeAll(ctx context.Context, userID string) error {
	cur := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		max := atomic.LoadInt32(&m.maxActive)
		if cur <= max || atomic.CompareAndSwapInt32(&m.maxActive, max, cur) {
			break
		}
	}

	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	m.mu.Lock()
	m.recomputed = append(m.recomputed, userID)
	m.mu.Unlock()

	if err, ok := m.errFor[userID]; ok {
		return err
	}
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestScheduler_RunOnce は全対象ユーザーの再計算が実行されることを検証する。
func TestScheduler_RunOnce(t *testing.T) {
	lister := &mockUserLister{userIDs: []string{"user-1", "user-2", "user-3"}}
	recomputer := &mockRecomputer{}
	s := NewScheduler(lister, recomputer, testLogger(), 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返しました: %v", err)
	}

	if len(recomputer.recomputed) != 3 {
		t.Errorf("再計算されたユーザー数 = %d, want 3", len(recomputer.recomputed))
	}
}

// TestScheduler_RunOnce_UserFailureContinues は1ユーザーの失敗が
// サイクル全体を止めないことを検証する。
func TestScheduler_RunOnce_UserFailureContinues(t *testing.T) {
	lister := &mockUserLister{userIDs: []string{"user-1", "user-2", "user-3"}}
	recomputer := &mockRecomputer{
		errFor: map[string]error{"user-2": errors.New("catalog unavailable")},
	}
	s := NewScheduler(lister, recomputer, testLogger(), 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返しました: %v", err)
	}

	if len(recomputer.recomputed) != 3 {
		t.Errorf("再計算されたユーザー数 = %d, want 3", len(recomputer.recomputed))
	}
}

// TestScheduler_RunOnce_Empty は対象ユーザーがいない場合に何もしないことを検証する。
func TestScheduler_RunOnce_Empty(t *testing.T) {
	lister := &mockUserLister{userIDs: []string{}}
	recomputer := &mockRecomputer{}
	s := NewScheduler(lister, recomputer, testLogger(), 2)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返しました: %v", err)
	}

	if len(recomputer.recomputed) != 0 {
		t.Errorf("再計算されたユーザー数 = %d, want 0", len(recomputer.recomputed))
	}
}

// TestScheduler_RunOnce_ListError はユーザー列挙の失敗が伝播することを検証する。
func TestScheduler_RunOnce_ListError(t *testing.T) {
	lister := &mockUserLister{err: errors.New("database error")}
	s := NewScheduler(lister, &mockRecomputer{}, testLogger(), 2)

	if err := s.RunOnce(context.Background()); err == nil {
		t.Error("ユーザー列挙失敗時のエラーを期待しました")
	}
}

// TestScheduler_RunOnce_ConcurrencyLimit は並列数が上限を超えないことを検証する。
func TestScheduler_RunOnce_ConcurrencyLimit(t *testing.T) {
	userIDs := make([]string, 20)
	for i := range userIDs {
		userIDs[i] = "user"
	}
	lister := &mockUserLister{userIDs: userIDs}
	recomputer := &mockRecomputer{delay: 5 * time.Millisecond}
	s := NewScheduler(lister, recomputer, testLogger(), 3)

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce がエラーを返しました: %v", err)
	}

	if max := atomic.LoadInt32(&recomputer.maxActive); max > 3 {
		t.Errorf("最大並列数 = %d, want <= 3", max)
	}
}

// TestScheduler_Start_StopsOnContextCancel はコンテキストキャンセルで
// スケジューラが停止することを検証する。
func TestScheduler_Start_StopsOnContextCancel(t *testing.T) {
	lister := &mockUserLister{userIDs: []string{"user-1"}}
	recomputer := &mockRecomputer{}
	s := NewScheduler(lister, recomputer, testLogger(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回目の実行を待ってからキャンセル
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("スケジューラがキャンセル後に停止しませんでした")
	}

	if len(recomputer.recomputed) == 0 {
		t.Error("起動直後の再計算が実行されていません")
	}
}

// TestNewScheduler_DefaultConcurrency は並列数のデフォルト値を検証する。
func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	s := NewScheduler(&mockUserLister{}, &mockRecomputer{}, testLogger(), 0)
	if s.maxConcurrency != 5 {
		t.Errorf("maxConcurrency = %d, want 5", s.maxConcurrency)
	}
}
