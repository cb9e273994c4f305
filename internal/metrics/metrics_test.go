package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_RegistersMetrics はメトリクスがレジストリに登録されることを検証する。
func TestNewCollector_RegistersMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCatalogCall("get_series", 200)
	c.RecordCatalogLatency(120 * time.Millisecond)
	c.RecordThrottleWait(2 * time.Second)
	c.RecordRetryExhausted()
	c.RecordSessionRenewal()
	c.SetQuotaRemaining(37)
	c.RecordStatusRecompute(8)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() returned error: %v", err)
	}

	found := make(map[string]bool)
	for _, f := range families {
		found[f.GetName()] = true
	}

	wantNames := []string{
		"watchman_catalog_calls_total",
		"watchman_catalog_latency_seconds",
		"watchman_catalog_throttle_wait_seconds",
		"watchman_catalog_retry_exhausted_total",
		"watchman_catalog_session_renewals_total",
		"watchman_catalog_quota_remaining",
		"watchman_status_recomputes_total",
	}
	for _, name := range wantNames {
		if !found[name] {
			t.Errorf("メトリクス %q が登録されていない", name)
		}
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録がpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if r := recover(); r == nil {
			t.Error("二重登録はpanicするべき")
		}
	}()
	NewCollector(reg)
}

// TestSetupMetricsRoute は/metricsエンドポイントがメトリクスを公開することを検証する。
func TestSetupMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCatalogCall("search", 200)

	handler := SetupMetricsRoute(reg)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "watchman_catalog_calls_total") {
		t.Error("レスポンスにwatchman_catalog_calls_totalが含まれるべき")
	}
}

// TestCollectorInterface はCollectorがインターフェースを実装していることを検証する。
func TestCollectorInterface(t *testing.T) {
	var _ MetricsCollector = NewCollector(prometheus.NewRegistry())
}
