package monitor

import (
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks trader activity. Counters are exported through a private
// prometheus registry; latencies are also kept in sliding windows for the
// health snapshot.
type Metrics struct {
	registry *prometheus.Registry

	ticks         *prometheus.CounterVec
	signals       *prometheus.CounterVec
	orders        *prometheus.CounterVec
	gatewayErrors *prometheus.CounterVec
	apiRequests   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	activeSymbols prometheus.Gauge

	CycleLatency   *LatencyHistogram
	OrderLatency   *LatencyHistogram
	GatewayLatency *LatencyHistogram
	APILatency     *LatencyHistogram

	cycles      atomic.Uint64
	ordersTotal atomic.Uint64
	errorsTotal atomic.Uint64
	lastCycle   atomic.Int64 // unix nanos
}

// NewMetrics creates a metrics set with its own registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perp_ticks_total", Help: "Candle closes fed to the indicator engine"},
			[]string{"symbol"},
		),
		signals: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perp_signals_total", Help: "Strategy decisions per cycle"},
			[]string{"symbol", "decision"},
		),
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perp_orders_total", Help: "Orders submitted"},
			[]string{"symbol", "side", "result"},
		),
		gatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perp_gateway_errors_total", Help: "Failed venue calls"},
			[]string{"op"},
		),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "perp_api_requests_total", Help: "Operator API requests"},
			[]string{"route", "code"},
		),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "perp_cycle_duration_seconds",
			Help:    "Duration of one monitoring cycle",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		activeSymbols: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "perp_active_symbols",
			Help: "Symbols evaluated in the last cycle",
		}),
		CycleLatency:   NewLatencyHistogram(500),
		OrderLatency:   NewLatencyHistogram(500),
		GatewayLatency: NewLatencyHistogram(1000),
		APILatency:     NewLatencyHistogram(1000),
	}
	m.registry.MustRegister(
		m.ticks, m.signals, m.orders, m.gatewayErrors, m.apiRequests, m.cycleDuration, m.activeSymbols,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// All recorders are safe on a nil *Metrics.

func (m *Metrics) ObserveTick(symbol string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(symbol).Inc()
}

func (m *Metrics) ObserveSignal(symbol, decision string) {
	if m == nil {
		return
	}
	m.signals.WithLabelValues(symbol, decision).Inc()
}

func (m *Metrics) ObserveOrder(symbol, side string, accepted bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "accepted"
	if !accepted {
		result = "rejected"
		m.errorsTotal.Add(1)
	}
	m.orders.WithLabelValues(symbol, side, result).Inc()
	m.ordersTotal.Add(1)
	m.OrderLatency.RecordDuration(d)
}

func (m *Metrics) ObserveGateway(op string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.GatewayLatency.RecordDuration(d)
	if err != nil {
		m.gatewayErrors.WithLabelValues(op).Inc()
		m.errorsTotal.Add(1)
	}
}

func (m *Metrics) ObserveAPI(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.APILatency.RecordDuration(d)
}

func (m *Metrics) ObserveCycle(symbols int, d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
	m.activeSymbols.Set(float64(symbols))
	m.CycleLatency.RecordDuration(d)
	m.cycles.Add(1)
	m.lastCycle.Store(time.Now().UnixNano())
}

// LatencyHistogram tracks latency samples with sliding window.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99. Recomputed only after new samples.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   sorted[0],
		Max:   sorted[n-1],
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

// Snapshot is a point-in-time view for the health endpoint.
type Snapshot struct {
	CycleLatency   LatencyStats `json:"cycle_latency"`
	OrderLatency   LatencyStats `json:"order_latency"`
	GatewayLatency LatencyStats `json:"gateway_latency"`
	APILatency     LatencyStats `json:"api_latency"`
	Cycles         uint64       `json:"cycles"`
	Orders         uint64       `json:"orders"`
	Errors         uint64       `json:"errors"`
	LastCycle      *time.Time   `json:"last_cycle,omitempty"`
	GoroutineCount int          `json:"goroutine_count"`
	HeapAlloc      uint64       `json:"heap_alloc_bytes"`
	Timestamp      time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s := Snapshot{
		CycleLatency:   m.CycleLatency.Stats(),
		OrderLatency:   m.OrderLatency.Stats(),
		GatewayLatency: m.GatewayLatency.Stats(),
		APILatency:     m.APILatency.Stats(),
		Cycles:         m.cycles.Load(),
		Orders:         m.ordersTotal.Load(),
		Errors:         m.errorsTotal.Load(),
		GoroutineCount: runtime.NumGoroutine(),
		HeapAlloc:      memStats.HeapAlloc,
		Timestamp:      time.Now(),
	}
	if ns := m.lastCycle.Load(); ns != 0 {
		t := time.Unix(0, ns)
		s.LastCycle = &t
	}
	return s
}
