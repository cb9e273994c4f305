package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

// fakeClock はテスト用の仮想時計。Sleepは実時間を消費せず仮想時刻を進める。
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) sleepCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sleeps)
}

// noopMetrics はテスト用の空のメトリクスコレクター。
type noopMetrics struct{}

func (noopMetrics) RecordCatalogCall(endpoint string, statusCode int) {}
func (noopMetrics) RecordCatalogLatency(duration time.Duration)       {}
func (noopMetrics) RecordThrottleWait(duration time.Duration)         {}
func (noopMetrics) RecordRetryExhausted()                             {}
func (noopMetrics) RecordSessionRenewal()                             {}
func (noopMetrics) SetQuotaRemaining(remaining int)                   {}
func (noopMetrics) RecordStatusRecompute(count int)                   {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGateway(baseURL string, maxAttempts int, clock Clock) *Gateway {
	return NewGateway(GatewayConfig{
		BaseURL:     baseURL,
		APIKey:      "test-key",
		Language:    "en-US",
		QuotaWindow: 10 * time.Second,
		MaxAttempts: maxAttempts,
	}, &http.Client{}, clock, testLogger(), noopMetrics{})
}

// TestDispatch_Success は成功レスポンスのボディとクォータ観測を検証する。
func TestDispatch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("api_key"); got != "test-key" {
			t.Errorf("api_key = %q, want %q", got, "test-key")
		}
		if got := r.URL.Query().Get("language"); got != "en-US" {
			t.Errorf("language = %q, want %q", got, "en-US")
		}
		w.Header().Set(quotaRemainingHeader, "39")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id": 1399}`))
	}))
	defer ts.Close()

	g := newTestGateway(ts.URL, 5, newFakeClock())

	body, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1399",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if string(body) != `{"id": 1399}` {
		t.Errorf("body = %s, want %s", body, `{"id": 1399}`)
	}

	remaining, _ := g.Quota().Snapshot()
	if remaining != 39 {
		t.Errorf("観測後のremaining = %d, want 39", remaining)
	}
}

// TestDispatch_ThrottledThenSuccess は429を3回受けた後の200で
// 呼び出し側が1つの成功結果を観測することを検証する。
func TestDispatch_ThrottledThenSuccess(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n <= 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Header().Set(quotaRemainingHeader, "40")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok": true}`))
	}))
	defer ts.Close()

	clock := newFakeClock()
	g := newTestGateway(ts.URL, 5, clock)

	body, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1399",
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if string(body) != `{"ok": true}` {
		t.Errorf("body = %s", body)
	}

	mu.Lock()
	total := requests
	mu.Unlock()
	if total != 4 {
		t.Errorf("リクエスト数 = %d, want 4", total)
	}
	if clock.sleepCount() < 3 {
		t.Errorf("429ごとにリセット待ちするべき: sleeps = %d", clock.sleepCount())
	}
}

// TestDispatch_RetryExhausted はリトライ上限到達時にThrottledErrorを返すことを検証する。
func TestDispatch_RetryExhausted(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	g := newTestGateway(ts.URL, 5, newFakeClock())

	_, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1399",
	})

	var throttled *ThrottledError
	if !errors.As(err, &throttled) {
		t.Fatalf("ThrottledErrorを返すべき: got %v", err)
	}
	if throttled.Attempts != 5 {
		t.Errorf("Attempts = %d, want 5", throttled.Attempts)
	}

	mu.Lock()
	total := requests
	mu.Unlock()
	if total != 5 {
		t.Errorf("リクエスト数 = %d, want 5", total)
	}
}

// TestDispatch_NonRetryableStatus は429以外の非2xxをリトライせず
// StatusErrorとして返すことを検証する。
func TestDispatch_NonRetryableStatus(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status_code": 500, "status_message": "internal"}`))
	}))
	defer ts.Close()

	g := newTestGateway(ts.URL, 5, newFakeClock())

	_, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1399",
	})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("StatusErrorを返すべき: got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
	}

	mu.Lock()
	total := requests
	mu.Unlock()
	if total != 1 {
		t.Errorf("非2xxはリトライしないべき: リクエスト数 = %d", total)
	}
}

// TestDispatch_QuotaNeverNegative は不正なクォータヘッダーでも
// remainingが負にならないことを検証する。
func TestDispatch_QuotaNeverNegative(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(quotaRemainingHeader, "-7")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	g := newTestGateway(ts.URL, 5, newFakeClock())

	if _, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1",
	}); err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	remaining, _ := g.Quota().Snapshot()
	if remaining < 0 {
		t.Errorf("remaining = %d, 観測後に負になってはならない", remaining)
	}
}

// TestDispatch_AdmitWaitsBeforeRequest は残りコール数が尽きかけている場合に
// リクエスト発行前に窓のリセットを待つことを検証する。
func TestDispatch_AdmitWaitsBeforeRequest(t *testing.T) {
	var mu sync.Mutex
	requests := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests++
		n := requests
		mu.Unlock()
		if n == 1 {
			w.Header().Set(quotaRemainingHeader, "1")
		} else {
			w.Header().Set(quotaRemainingHeader, "40")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	clock := newFakeClock()
	g := newTestGateway(ts.URL, 5, clock)

	ctx := context.Background()
	req := Request{Method: http.MethodGet, Path: "/tv/1"}

	if _, err := g.Dispatch(ctx, "get_series", req); err != nil {
		t.Fatalf("1回目のDispatch() error = %v", err)
	}
	if clock.sleepCount() != 0 {
		t.Fatalf("1回目は待機しないべき: sleeps = %d", clock.sleepCount())
	}

	// remaining=1が観測済みのため、2回目は発行前に待機する
	if _, err := g.Dispatch(ctx, "get_series", req); err != nil {
		t.Fatalf("2回目のDispatch() error = %v", err)
	}
	if clock.sleepCount() != 1 {
		t.Errorf("2回目は発行前に待機するべき: sleeps = %d", clock.sleepCount())
	}
}

// TestDispatch_TransportError は接続失敗がTransportErrorになることを検証する。
func TestDispatch_TransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Close() // 即座に閉じて接続失敗させる

	g := newTestGateway(ts.URL, 5, newFakeClock())

	_, err := g.Dispatch(context.Background(), "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1",
	})

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("TransportErrorを返すべき: got %v", err)
	}
}

// TestDispatch_ContextCancelled はコンテキストキャンセルで待機が打ち切られることを検証する。
func TestDispatch_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	g := newTestGateway(ts.URL, 5, newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Dispatch(ctx, "get_series", Request{
		Method: http.MethodGet,
		Path:   "/tv/1",
	})
	if err == nil {
		t.Fatal("キャンセル済みコンテキストではエラーを返すべき")
	}
}
