// Package monitoring exports Prometheus metrics for every core engine
// (spec.md §4.1-§4.7) and serves them, plus a liveness/health endpoint,
// over HTTP.
//
// Adapted from the teacher's MetricsServer: registry/gauge/histogram
// layout, HealthChecker pattern, and promhttp+gorilla/mux server setup
// kept; the block/consensus/network gauges (no block producer in this
// core) replaced with domain gauges for emission, staking, oracle,
// bridge, referral, and cards.
package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsServer owns the Prometheus registry and the HTTP server that
// exposes it, mirroring the teacher's MetricsServer field layout.
type MetricsServer struct {
	listenAddr  string
	metricsPath string
	healthPath  string

	registry *prometheus.Registry

	// Emission Engine (spec.md §4.1)
	emissionRatePerHour prometheus.Gauge
	miningRewardsTotal  prometheus.Counter
	dailyCapHitsTotal   prometheus.Counter

	// Staking Vault (spec.md §4.2)
	stakingTVL       prometheus.Gauge
	stakingAPYBPS    *prometheus.GaugeVec // labeled by pool_id
	stakingClaims    prometheus.Counter
	stakingEarlyExit prometheus.Counter

	// Referral Graph (spec.md §4.3)
	referralTierDistribution *prometheus.GaugeVec // labeled by tier
	referralCyclesRejected   prometheus.Counter

	// Card Scheduler (spec.md §4.4)
	cardSynergyActiveCount prometheus.Gauge
	cardsAppliedTotal      *prometheus.CounterVec // labeled by card_type

	// Bridge Verifier (spec.md §4.5)
	bridgeQuorumDepth *prometheus.GaugeVec // labeled by chain
	bridgeUnlocksTotal prometheus.Counter
	bridgePausedGauge  prometheus.Gauge

	// Oracle Aggregator (spec.md §4.6)
	oracleConfidenceBPS        *prometheus.GaugeVec // labeled by symbol
	oracleCircuitBreakerTripped *prometheus.GaugeVec // labeled by symbol, 0/1
	oracleOutlierRejections    prometheus.Counter

	// Global State (spec.md §4.7)
	networkHealthScore prometheus.Gauge
	networkPhase       prometheus.Gauge

	// System
	memoryUsage    prometheus.Gauge
	goroutineCount prometheus.Gauge

	healthStatus *HealthChecker

	server *http.Server
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.RWMutex

	running bool
}

// Config configures the metrics server's listen address and endpoint paths.
type Config struct {
	ListenAddr  string
	MetricsPath string
	HealthPath  string
}

// DefaultConfig mirrors the teacher's MetricsConfig defaults.
func DefaultConfig() Config {
	return Config{ListenAddr: ":9464", MetricsPath: "/metrics", HealthPath: "/health"}
}

// NewMetricsServer creates a metrics server with a fresh registry and an
// HTTP server wired but not yet started.
func NewMetricsServer(cfg Config) *MetricsServer {
	ctx, cancel := context.WithCancel(context.Background())

	ms := &MetricsServer{
		listenAddr:   cfg.ListenAddr,
		metricsPath:  cfg.MetricsPath,
		healthPath:   cfg.HealthPath,
		registry:     prometheus.NewRegistry(),
		ctx:          ctx,
		cancel:       cancel,
		healthStatus: NewHealthChecker(),
	}
	ms.initMetrics()
	ms.setupServer()
	return ms
}

func (ms *MetricsServer) initMetrics() {
	ms.emissionRatePerHour = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_emission_rate_micro_per_hour",
		Help: "Current effective mining rate in micro-FIN per hour",
	})
	ms.miningRewardsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_mining_rewards_micro_total",
		Help: "Total mining rewards distributed, in micro-FIN",
	})
	ms.dailyCapHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_daily_cap_hits_total",
		Help: "Total mining operations that were clamped by the daily cap",
	})

	ms.stakingTVL = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_staking_tvl",
		Help: "TotalStaked of the most recently updated staking pool (not summed across pools)",
	})
	ms.stakingAPYBPS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finova_staking_apy_bps",
		Help: "Effective APY in basis points, per staking pool",
	}, []string{"pool_id"})
	ms.stakingClaims = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_staking_claims_total",
		Help: "Total staking reward claims",
	})
	ms.stakingEarlyExit = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_staking_early_exit_total",
		Help: "Total withdrawals that paid the early-exit penalty",
	})

	ms.referralTierDistribution = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finova_referral_tier_users",
		Help: "Number of users currently at each referral tier",
	}, []string{"tier"})
	ms.referralCyclesRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_referral_cycles_rejected_total",
		Help: "Total referral registrations rejected for forming a cycle",
	})

	ms.cardSynergyActiveCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_card_synergy_active_count",
		Help: "Active card count of the user who most recently applied a card",
	})
	ms.cardsAppliedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "finova_cards_applied_total",
		Help: "Total cards applied, by card type",
	}, []string{"card_type"})

	ms.bridgeQuorumDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finova_bridge_quorum_depth",
		Help: "Validator signature count on the most recently signed lock, per destination chain",
	}, []string{"chain"})
	ms.bridgeUnlocksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_bridge_unlocks_total",
		Help: "Total completed bridge unlocks",
	})
	ms.bridgePausedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_bridge_paused",
		Help: "1 if the bridge is currently paused, 0 otherwise",
	})

	ms.oracleConfidenceBPS = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finova_oracle_confidence_bps",
		Help: "Current confidence, in basis points, per price feed",
	}, []string{"symbol"})
	ms.oracleCircuitBreakerTripped = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "finova_oracle_circuit_breaker_tripped",
		Help: "1 if a feed's circuit breaker is tripped, 0 otherwise",
	}, []string{"symbol"})
	ms.oracleOutlierRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "finova_oracle_outlier_rejections_total",
		Help: "Total submissions rejected by submission validation (confidence floor, source count, cross-source deviation)",
	})

	ms.networkHealthScore = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_network_health_score",
		Help: "Observer-facing network health score, 0-1000",
	})
	ms.networkPhase = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_network_phase",
		Help: "Current network phase (1-4)",
	})

	ms.memoryUsage = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_memory_usage_bytes",
		Help: "Process memory usage in bytes",
	})
	ms.goroutineCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "finova_goroutines",
		Help: "Number of goroutines",
	})

	collectors := []prometheus.Collector{
		ms.emissionRatePerHour, ms.miningRewardsTotal, ms.dailyCapHitsTotal,
		ms.stakingTVL, ms.stakingAPYBPS, ms.stakingClaims, ms.stakingEarlyExit,
		ms.referralTierDistribution, ms.referralCyclesRejected,
		ms.cardSynergyActiveCount, ms.cardsAppliedTotal,
		ms.bridgeQuorumDepth, ms.bridgeUnlocksTotal, ms.bridgePausedGauge,
		ms.oracleConfidenceBPS, ms.oracleCircuitBreakerTripped, ms.oracleOutlierRejections,
		ms.networkHealthScore, ms.networkPhase,
		ms.memoryUsage, ms.goroutineCount,
	}
	for _, c := range collectors {
		ms.registry.MustRegister(c)
	}
}

func (ms *MetricsServer) setupServer() {
	router := mux.NewRouter()
	router.Path(ms.metricsPath).Handler(promhttp.HandlerFor(ms.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	router.PathPrefix(ms.healthPath).HandlerFunc(ms.healthHandler)

	ms.server = &http.Server{Addr: ms.listenAddr, Handler: router}
}

// Start starts the background system-metrics sampler and the HTTP server.
func (ms *MetricsServer) Start() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if ms.running {
		return fmt.Errorf("metrics server already running")
	}

	ms.healthStatus.Start()

	ms.wg.Add(1)
	go ms.sampleSystemMetrics()

	ms.wg.Add(1)
	go func() {
		defer ms.wg.Done()
		if err := ms.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(fmt.Sprintf("metrics server error: %v", err))
		}
	}()

	ms.running = true
	return nil
}

// Stop shuts the metrics server down, waiting for its background
// goroutines to exit.
func (ms *MetricsServer) Stop() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if !ms.running {
		return
	}
	ms.cancel()

	if ms.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ms.server.Shutdown(ctx)
	}

	ms.healthStatus.Stop()
	ms.wg.Wait()
	ms.running = false
}

func (ms *MetricsServer) sampleSystemMetrics() {
	defer ms.wg.Done()
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ms.ctx.Done():
			return
		case <-ticker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			ms.memoryUsage.Set(float64(m.Alloc))
			ms.goroutineCount.Set(float64(runtime.NumGoroutine()))
		}
	}
}

func (ms *MetricsServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := ms.healthStatus.GetOverallHealth()

	status := http.StatusOK
	switch health.Status {
	case HealthStatusCritical:
		status = http.StatusServiceUnavailable
	case HealthStatusWarning:
		status = http.StatusPartialContent
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(health)
}

// Record* methods are the write side of each domain gauge/counter,
// called by the chain/rpc handlers after each engine operation.

func (ms *MetricsServer) RecordEmission(ratePerHourMicro uint64, rewardMicro uint64, dailyCapHit bool) {
	ms.emissionRatePerHour.Set(float64(ratePerHourMicro))
	ms.miningRewardsTotal.Add(float64(rewardMicro))
	if dailyCapHit {
		ms.dailyCapHitsTotal.Inc()
	}
}

func (ms *MetricsServer) RecordStakingPool(poolID string, tvl uint64, apyBPS uint32) {
	ms.stakingTVL.Set(float64(tvl))
	ms.stakingAPYBPS.WithLabelValues(poolID).Set(float64(apyBPS))
}

func (ms *MetricsServer) RecordStakingClaim(earlyExit bool) {
	ms.stakingClaims.Inc()
	if earlyExit {
		ms.stakingEarlyExit.Inc()
	}
}

func (ms *MetricsServer) RecordReferralTierDistribution(counts map[string]int) {
	for tier, n := range counts {
		ms.referralTierDistribution.WithLabelValues(tier).Set(float64(n))
	}
}

func (ms *MetricsServer) RecordReferralCycleRejected() {
	ms.referralCyclesRejected.Inc()
}

func (ms *MetricsServer) RecordCardApplied(cardType string, synergyActiveCount int) {
	ms.cardsAppliedTotal.WithLabelValues(cardType).Inc()
	ms.cardSynergyActiveCount.Set(float64(synergyActiveCount))
}

func (ms *MetricsServer) RecordBridgeQuorumDepth(chain string, depth int) {
	ms.bridgeQuorumDepth.WithLabelValues(chain).Set(float64(depth))
}

func (ms *MetricsServer) RecordBridgeUnlock() {
	ms.bridgeUnlocksTotal.Inc()
}

func (ms *MetricsServer) RecordBridgePaused(paused bool) {
	if paused {
		ms.bridgePausedGauge.Set(1)
	} else {
		ms.bridgePausedGauge.Set(0)
	}
}

func (ms *MetricsServer) RecordOracleUpdate(symbol string, confidenceBPS uint16, circuitTripped bool) {
	ms.oracleConfidenceBPS.WithLabelValues(symbol).Set(float64(confidenceBPS))
	if circuitTripped {
		ms.oracleCircuitBreakerTripped.WithLabelValues(symbol).Set(1)
	} else {
		ms.oracleCircuitBreakerTripped.WithLabelValues(symbol).Set(0)
	}
}

func (ms *MetricsServer) RecordOracleOutlierRejection() {
	ms.oracleOutlierRejections.Inc()
}

func (ms *MetricsServer) RecordNetworkState(healthScore uint16, phase uint8) {
	ms.networkHealthScore.Set(float64(healthScore))
	ms.networkPhase.Set(float64(phase))
}

// HealthChecker runs a small set of liveness checks and reports the
// worst status among them, following the teacher's HealthChecker
// pattern.
type HealthChecker struct {
	checks        map[string]HealthCheck
	checkInterval time.Duration
	mu            sync.RWMutex
}

// HealthCheck is one named liveness probe.
type HealthCheck struct {
	Name      string
	Status    HealthStatus
	Message   string
	Critical  bool
	CheckFunc func() (HealthStatus, string)
}

// HealthStatus is the liveness level a single check or the overall
// server reports.
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusWarning
	HealthStatusCritical
)

// NewHealthChecker builds a checker with the default memory/goroutine
// checks installed.
func NewHealthChecker() *HealthChecker {
	hc := &HealthChecker{
		checks:        make(map[string]HealthCheck),
		checkInterval: 30 * time.Second,
	}
	hc.checks["memory"] = HealthCheck{Name: "Memory Usage", Critical: true, CheckFunc: hc.checkMemoryUsage}
	hc.checks["goroutines"] = HealthCheck{Name: "Goroutine Count", Critical: false, CheckFunc: hc.checkGoroutineCount}
	return hc
}

func (hc *HealthChecker) checkMemoryUsage() (HealthStatus, string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	if m.Sys == 0 {
		return HealthStatusHealthy, "memory usage: n/a"
	}
	usagePercent := float64(m.Alloc) / float64(m.Sys) * 100
	switch {
	case usagePercent > 90:
		return HealthStatusCritical, fmt.Sprintf("memory usage critical: %.1f%%", usagePercent)
	case usagePercent > 80:
		return HealthStatusWarning, fmt.Sprintf("memory usage high: %.1f%%", usagePercent)
	default:
		return HealthStatusHealthy, fmt.Sprintf("memory usage normal: %.1f%%", usagePercent)
	}
}

func (hc *HealthChecker) checkGoroutineCount() (HealthStatus, string) {
	count := runtime.NumGoroutine()
	if count > 10000 {
		return HealthStatusWarning, fmt.Sprintf("high goroutine count: %d", count)
	}
	return HealthStatusHealthy, fmt.Sprintf("goroutine count normal: %d", count)
}

// Start and Stop are no-ops: every check here is synchronous and cheap
// enough to run on demand in GetOverallHealth rather than on a ticker.
func (hc *HealthChecker) Start() {}
func (hc *HealthChecker) Stop()  {}

// GetOverallHealth runs every registered check and returns the worst
// status among them.
func (hc *HealthChecker) GetOverallHealth() *HealthCheck {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	overall := HealthStatusHealthy
	var messages []string
	for _, c := range hc.checks {
		status, msg := c.CheckFunc()
		messages = append(messages, fmt.Sprintf("%s: %s", c.Name, msg))
		if status > overall {
			overall = status
		}
	}

	return &HealthCheck{Name: "Overall Health", Status: overall, Message: fmt.Sprintf("%v", messages)}
}
