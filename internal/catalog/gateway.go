package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/hitoshi/watchman/internal/metrics"
)

// quotaRemainingHeader はカタログサービスが成功レスポンスに付与する
// 残りコール数のヘッダー名。
const quotaRemainingHeader = "X-RateLimit-Remaining"

// Request はゲートウェイに渡す完全に構築済みのリクエスト。
// Bodyはバイト列で保持し、リトライ時に再送可能とする。
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
}

// Dispatcher はリクエスト発行の抽象。クライアントのテストでモックに差し替える。
// endpointはメトリクスのラベル用の論理名（"get_series"等）。
type Dispatcher interface {
	Dispatch(ctx context.Context, endpoint string, req Request) ([]byte, error)
}

// Gateway はカタログサービスへの全ての送信HTTP呼び出しを仲介する。
// クォータ状態の追跡、429時のリセット待ちリトライ、
// サーキットブレーカーによる連続接続失敗の遮断を行う。
type Gateway struct {
	baseURL     string
	apiKey      string
	language    string
	httpClient  *http.Client
	quota       *QuotaState
	clock       Clock
	maxAttempts int
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
}

// GatewayConfig はGateway生成時の設定。
type GatewayConfig struct {
	BaseURL     string
	APIKey      string
	Language    string
	QuotaWindow time.Duration
	QuotaBudget int
	MaxAttempts int
}

var _ Dispatcher = (*Gateway)(nil)

// NewGateway はGatewayの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きクライアントを渡す。
// clockにnilを渡すと実時間を使用する。
func NewGateway(cfg GatewayConfig, httpClient *http.Client, clock Clock, logger *slog.Logger, collector metrics.MetricsCollector) *Gateway {
	if clock == nil {
		clock = NewRealClock()
	}

	// 連続した接続失敗でオープンし、30秒後にハーフオープンへ移行する。
	// 429やその他のHTTPステータスはbreakerの失敗に数えない。
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:    "catalog",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("カタログサービスのサーキットブレーカーの状態が変化しました",
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return &Gateway{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		language:    cfg.Language,
		httpClient:  httpClient,
		quota:       NewQuotaState(cfg.QuotaWindow, cfg.QuotaBudget),
		clock:       clock,
		maxAttempts: cfg.MaxAttempts,
		breaker:     breaker,
		logger:      logger,
		metrics:     collector,
	}
}

// Quota はゲートウェイが保持するクォータ状態を返す。ヘルスチェック用。
func (g *Gateway) Quota() *QuotaState {
	return g.quota
}

// Dispatch はリクエストを発行し、レスポンスボディを返す。
//   - 2xx: クォータヘッダーを反映してボディを返す。
//   - 429: 窓のリセットまで待機して同一リクエストを再試行する。
//     試行は上限回数で打ち切り、ThrottledErrorを返す。
//   - その他の非2xx: リトライせずStatusErrorを返す。
//   - 接続失敗: リトライせずTransportErrorを返す。
//
// 待機は呼び出し元のタスクのみをブロックする。クォータ状態のロックは
// 待機中は保持しないため、他のリクエストの判定を妨げない。
func (g *Gateway) Dispatch(ctx context.Context, endpoint string, req Request) ([]byte, error) {
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		// 残りコール数が尽きている場合は窓のリセットまで待つ。
		// 429で弾かれるだけのリクエストを発行しないための事前判定。
		if wait, ok := g.quota.AdmitWait(g.clock.Now()); ok {
			g.logger.Info("カタログAPIのクォータ回復を待機します",
				slog.String("endpoint", endpoint),
				slog.Duration("wait", wait),
			)
			g.metrics.RecordThrottleWait(wait)
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		httpReq, err := g.buildRequest(ctx, req)
		if err != nil {
			return nil, err
		}

		start := g.clock.Now()
		resp, err := g.breaker.Execute(func() (*http.Response, error) {
			return g.httpClient.Do(httpReq)
		})
		g.metrics.RecordCatalogLatency(g.clock.Now().Sub(start))

		if err != nil {
			g.logger.Error("カタログサービスへの接続に失敗しました",
				slog.String("endpoint", endpoint),
				slog.String("error", err.Error()),
			)
			return nil, &TransportError{Err: err}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, &TransportError{Err: err}
		}

		g.metrics.RecordCatalogCall(endpoint, resp.StatusCode)

		if resp.StatusCode == http.StatusTooManyRequests {
			now := g.clock.Now()
			g.quota.MarkThrottled(now)
			wait, _ := g.quota.AdmitWait(now)
			g.logger.Warn("カタログサービスにレート制限されました",
				slog.String("endpoint", endpoint),
				slog.Int("attempt", attempt),
				slog.Duration("wait", wait),
			)
			g.metrics.RecordThrottleWait(wait)
			if err := g.clock.Sleep(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		g.observeQuota(resp.Header)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		// エラーペイロードが読めればメッセージをログに残す
		var payload errorPayload
		if jsonErr := json.Unmarshal(body, &payload); jsonErr == nil && payload.StatusMessage != "" {
			g.logger.Warn("カタログサービスがエラーステータスを返しました",
				slog.String("endpoint", endpoint),
				slog.Int("http_status", resp.StatusCode),
				slog.String("message", payload.StatusMessage),
			)
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: body}
	}

	g.metrics.RecordRetryExhausted()
	return nil, &ThrottledError{Attempts: g.maxAttempts}
}

// buildRequest はベースURL、APIキー、言語設定を合成してHTTPリクエストを構築する。
func (g *Gateway) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	q := url.Values{}
	for k, vs := range req.Query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("api_key", g.apiKey)
	if g.language != "" {
		q.Set("language", g.language)
	}

	fullURL := g.baseURL + req.Path + "?" + q.Encode()

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, fullURL, body)
	if err != nil {
		return nil, err
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json;charset=utf-8")
	}
	return httpReq, nil
}

// observeQuota は成功レスポンスのクォータヘッダーを状態に反映する。
// ヘッダーが欠けている場合は状態を変更しない。
func (g *Gateway) observeQuota(header http.Header) {
	v := header.Get(quotaRemainingHeader)
	if v == "" {
		return
	}
	remaining, err := strconv.Atoi(v)
	if err != nil {
		return
	}
	g.quota.Observe(remaining, g.clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	g.metrics.SetQuotaRemaining(remaining)
}
