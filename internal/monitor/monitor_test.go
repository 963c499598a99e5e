package monitor

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader/internal/events"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []string
}

func (s *recordingSink) Send(m string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, m)
	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

func TestMonitorAlertsOnRejectedOrder(t *testing.T) {
	bus := events.NewBus()
	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := &Monitor{Bus: bus, Sink: sink}
	m.Start(ctx)

	bus.Publish(events.EventOrderAccepted, events.OrderEvent{Symbol: "BTC-USDT"})
	bus.Publish(events.EventOrderRejected, events.OrderEvent{Symbol: "BTC-USDT", Side: "BUY", Qty: 0.001, Error: "insufficient margin"})
	bus.Publish(events.EventStatusChange, events.StatusChange{Symbol: "ETH-USDT", Status: "ERROR", Reason: "delisted"})
	bus.Publish(events.EventStatusChange, events.StatusChange{Symbol: "ETH-USDT", Status: "ACTIVE"})

	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)
	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Contains(t, sink.msgs[0], "insufficient margin")
	assert.Contains(t, sink.msgs[1], "delisted")
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveTick("BTC-USDT")
	m.ObserveSignal("BTC-USDT", "BUY")
	m.ObserveOrder("BTC-USDT", "BUY", true, 20*time.Millisecond)
	m.ObserveOrder("BTC-USDT", "SELL", false, 5*time.Millisecond)
	m.ObserveCycle(3, 150*time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `perp_orders_total{result="rejected",side="SELL",symbol="BTC-USDT"} 1`))
	assert.True(t, strings.Contains(text, "perp_active_symbols 3"))

	snap := m.GetSnapshot()
	assert.Equal(t, uint64(1), snap.Cycles)
	assert.Equal(t, uint64(2), snap.Orders)
	assert.Equal(t, uint64(1), snap.Errors)
	assert.Equal(t, 2, snap.OrderLatency.Count)
	require.NotNil(t, snap.LastCycle)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveTick("X")
		m.ObserveGateway("depth", time.Millisecond, nil)
		m.ObserveCycle(1, time.Second)
	})
}

func TestLatencyHistogramWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for _, v := range []float64{10, 20, 30, 40} {
		h.Record(v)
	}
	s := h.Stats()
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 20.0, s.Min)
	assert.Equal(t, 40.0, s.Max)
	assert.Equal(t, 30.0, s.Avg)
}
