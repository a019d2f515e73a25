package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func newTestServer() *MetricsServer {
	return NewMetricsServer(Config{ListenAddr: ":0", MetricsPath: "/metrics", HealthPath: "/health"})
}

func TestRecordEmissionUpdatesGauges(t *testing.T) {
	ms := newTestServer()
	ms.RecordEmission(50000, 12345, true)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !contains(body, "finova_emission_rate_micro_per_hour 50000") {
		t.Fatalf("expected emission rate gauge in output, got:\n%s", body)
	}
	if !contains(body, "finova_daily_cap_hits_total 1") {
		t.Fatalf("expected daily cap hit counter incremented, got:\n%s", body)
	}
}

func TestRecordOracleUpdateSetsCircuitBreakerLabel(t *testing.T) {
	ms := newTestServer()
	ms.RecordOracleUpdate("FIN/USD", 8500, true)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !contains(body, `finova_oracle_circuit_breaker_tripped{symbol="FIN/USD"} 1`) {
		t.Fatalf("expected circuit breaker gauge tripped for FIN/USD, got:\n%s", body)
	}
	if !contains(body, `finova_oracle_confidence_bps{symbol="FIN/USD"} 8500`) {
		t.Fatalf("expected confidence gauge set, got:\n%s", body)
	}
}

func TestRecordReferralTierDistribution(t *testing.T) {
	ms := newTestServer()
	ms.RecordReferralTierDistribution(map[string]int{"explorer": 100, "ambassador": 3})

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !contains(body, `finova_referral_tier_users{tier="explorer"} 100`) {
		t.Fatalf("expected explorer tier gauge, got:\n%s", body)
	}
	if !contains(body, `finova_referral_tier_users{tier="ambassador"} 3`) {
		t.Fatalf("expected ambassador tier gauge, got:\n%s", body)
	}
}

func TestHealthHandlerReturnsHealthyWhenNoPressure(t *testing.T) {
	ms := newTestServer()
	rec := httptest.NewRecorder()
	ms.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	ms := newTestServer()
	if err := ms.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := ms.Start(); err == nil {
		t.Fatalf("expected error starting an already-running server")
	}
	ms.Stop()
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
