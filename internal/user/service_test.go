package user

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/watchman/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	user    *model.User
	deleted []string
	calls   *[]string
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.user, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	*m.calls = append(*m.calls, "user")
	return nil
}

func (m *mockUserRepo) GetCatalogSession(ctx context.Context, userID string) (string, error) {
	return "", nil
}

func (m *mockUserRepo) UpdateCatalogSession(ctx context.Context, userID, sessionID string) error {
	return nil
}

type mockSessionRepo struct {
	calls *[]string
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	*m.calls = append(*m.calls, "sessions")
	return nil
}
func (m *mockSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}

type mockRecordDeleter struct {
	calls *[]string
}

func (m *mockRecordDeleter) DeleteByUserID(ctx context.Context, userID string) error {
	*m.calls = append(*m.calls, "watch_records")
	return nil
}

// --- テスト ---

// TestService_Withdraw は退会処理の削除順序を検証する。
// watch_records → sessions → user の順で削除される。
func TestService_Withdraw(t *testing.T) {
	var calls []string
	userRepo := &mockUserRepo{
		user:  &model.User{ID: "user-1", Email: "u@example.com"},
		calls: &calls,
	}
	svc := NewService(userRepo, &mockSessionRepo{calls: &calls}, &mockRecordDeleter{calls: &calls})

	if err := svc.Withdraw(context.Background(), "user-1"); err != nil {
		t.Fatalf("Withdraw がエラーを返しました: %v", err)
	}

	want := []string{"watch_records", "sessions", "user"}
	if len(calls) != len(want) {
		t.Fatalf("削除呼び出し回数が不正: got %v, want %v", calls, want)
	}
	for i, w := range want {
		if calls[i] != w {
			t.Errorf("削除順序[%d]が不正: got %q, want %q", i, calls[i], w)
		}
	}

	if len(userRepo.deleted) != 1 || userRepo.deleted[0] != "user-1" {
		t.Errorf("削除されたユーザーが不正: %v", userRepo.deleted)
	}
}

// TestService_Withdraw_UserNotFound は存在しないユーザーの退会が
// USER_NOT_FOUNDエラーになることを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	var calls []string
	userRepo := &mockUserRepo{calls: &calls}
	svc := NewService(userRepo, &mockSessionRepo{calls: &calls}, &mockRecordDeleter{calls: &calls})

	err := svc.Withdraw(context.Background(), "unknown")
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("USER_NOT_FOUNDエラーを期待しましたが: %v", err)
	}
	if len(calls) != 0 {
		t.Errorf("存在しないユーザーで削除が実行されました: %v", calls)
	}
}
