// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ゲートウェイやワーカーから利用する。
type MetricsCollector interface {
	RecordCatalogCall(endpoint string, statusCode int)
	RecordCatalogLatency(duration time.Duration)
	RecordThrottleWait(duration time.Duration)
	RecordRetryExhausted()
	RecordSessionRenewal()
	SetQuotaRemaining(remaining int)
	RecordStatusRecompute(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	catalogCalls     *prometheus.CounterVec
	catalogLatency   prometheus.Histogram
	throttleWait     prometheus.Histogram
	retryExhausted   prometheus.Counter
	sessionRenewals  prometheus.Counter
	quotaRemaining   prometheus.Gauge
	statusRecomputes prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		catalogCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchman_catalog_calls_total",
			Help: "エンドポイントとHTTPステータスコード別のカタログAPI呼び出し数",
		}, []string{"endpoint", "status_code"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchman_catalog_latency_seconds",
			Help:    "カタログAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		throttleWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchman_catalog_throttle_wait_seconds",
			Help:    "レート制限窓のリセット待ちに費やした時間（秒）",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20},
		}),
		retryExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchman_catalog_retry_exhausted_total",
			Help: "リトライ上限に到達したカタログAPI呼び出しの合計数",
		}),
		sessionRenewals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchman_catalog_session_renewals_total",
			Help: "カタログゲストセッションの再取得回数",
		}),
		quotaRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "watchman_catalog_quota_remaining",
			Help: "カタログAPIの残りコール数（最終観測値）",
		}),
		statusRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchman_status_recomputes_total",
			Help: "再計算された視聴ステータスの合計数",
		}),
	}

	reg.MustRegister(
		c.catalogCalls,
		c.catalogLatency,
		c.throttleWait,
		c.retryExhausted,
		c.sessionRenewals,
		c.quotaRemaining,
		c.statusRecomputes,
	)

	return c
}

// RecordCatalogCall はカタログAPI呼び出しをエンドポイントとステータス別に記録する。
func (c *Collector) RecordCatalogCall(endpoint string, statusCode int) {
	c.catalogCalls.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordCatalogLatency はカタログAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordCatalogLatency(duration time.Duration) {
	c.catalogLatency.Observe(duration.Seconds())
}

// RecordThrottleWait はレート制限窓のリセット待ち時間を記録する。
func (c *Collector) RecordThrottleWait(duration time.Duration) {
	c.throttleWait.Observe(duration.Seconds())
}

// RecordRetryExhausted はリトライ上限到達を記録する。
func (c *Collector) RecordRetryExhausted() {
	c.retryExhausted.Inc()
}

// RecordSessionRenewal はゲストセッションの再取得を記録する。
func (c *Collector) RecordSessionRenewal() {
	c.sessionRenewals.Inc()
}

// SetQuotaRemaining は残りコール数の最終観測値を記録する。
func (c *Collector) SetQuotaRemaining(remaining int) {
	c.quotaRemaining.Set(float64(remaining))
}

// RecordStatusRecompute は再計算されたステータス数を記録する。
func (c *Collector) RecordStatusRecompute(count int) {
	c.statusRecomputes.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
