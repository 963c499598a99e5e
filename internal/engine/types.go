package engine

import (
	"time"

	"github.com/sirupsen/logrus"

	"perp-trader/internal/events"
	"perp-trader/internal/indicators"
	"perp-trader/internal/monitor"
	"perp-trader/internal/risk"
	"perp-trader/pkg/cache"
	"perp-trader/pkg/exchanges/common"
)

// Defaults for the monitoring loop.
const (
	DefaultInterval      = 60 * time.Second
	DefaultKlineInterval = "5m"
	DefaultLookback      = 2 * time.Hour
	DefaultKlineLimit    = 24
	DefaultDepthLimit    = 20
)

// Recorder receives the audit trail of the loop. persistence.Journal implements it.
type Recorder interface {
	RecordSignal(events.SignalEvent)
	RecordOrderSubmitted(events.OrderEvent)
	RecordOrderResult(e events.OrderEvent, accepted bool)
	RecordCycle(events.CycleSummary)
	RecordStatus(events.StatusChange)
}

type nopRecorder struct{}

func (nopRecorder) RecordSignal(events.SignalEvent)           {}
func (nopRecorder) RecordOrderSubmitted(events.OrderEvent)    {}
func (nopRecorder) RecordOrderResult(events.OrderEvent, bool) {}
func (nopRecorder) RecordCycle(events.CycleSummary)           {}
func (nopRecorder) RecordStatus(events.StatusChange)          {}

// Config wires an Orchestrator. Only Gateway is required.
type Config struct {
	Gateway  common.Gateway
	Bus      *events.Bus
	Recorder Recorder
	Prices   *cache.PriceCache
	Metrics  *monitor.Metrics
	Log      *logrus.Entry

	Interval      time.Duration
	KlineInterval string
	Lookback      time.Duration
	KlineLimit    int
	DepthLimit    int
	Params        indicators.Params
	Debounce      bool
	DryRun        bool
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.KlineInterval == "" {
		c.KlineInterval = DefaultKlineInterval
	}
	if c.Lookback <= 0 {
		c.Lookback = DefaultLookback
	}
	if c.KlineLimit <= 0 {
		c.KlineLimit = DefaultKlineLimit
	}
	if c.DepthLimit <= 0 {
		c.DepthLimit = DefaultDepthLimit
	}
	if c.Bus == nil {
		c.Bus = events.NewBus()
	}
	if c.Recorder == nil {
		c.Recorder = nopRecorder{}
	}
	if c.Prices == nil {
		c.Prices = cache.NewPriceCache()
	}
	if c.Log == nil {
		c.Log = logrus.NewEntry(logrus.StandardLogger())
	}
}

// OrderOutcome is the result of a successful PlaceOrder.
type OrderOutcome struct {
	Result common.OrderResult `json:"result"`
	Bounds risk.Bounds        `json:"bounds"`
}

// SystemStatus is returned by the health endpoint.
type SystemStatus struct {
	DryRun        bool      `json:"dry_run"`
	Symbols       int       `json:"symbols"`
	ActiveSymbols int       `json:"active_symbols"`
	Interval      string    `json:"interval"`
	KlineInterval string    `json:"kline_interval"`
	StartedAt     time.Time `json:"started_at"`
	ServerTime    time.Time `json:"server_time"`
}
