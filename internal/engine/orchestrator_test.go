package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader/internal/events"
	"perp-trader/internal/indicators"
	"perp-trader/internal/state"
	"perp-trader/pkg/exchanges/common"
	"perp-trader/pkg/logger"
)

var errVenueDown = errors.New("venue down")

// scriptedGateway serves scripted candles and records every call.
type scriptedGateway struct {
	mu        sync.Mutex
	candles   map[string][]common.Candle // oldest first
	depth     *common.DepthSnapshot
	ticker    *common.Ticker
	candleErr error
	orderErr  error
	orders    []common.OrderRequest
	calls     map[string]int
	price     float64
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{candles: make(map[string][]common.Candle), calls: make(map[string]int)}
}

func (g *scriptedGateway) setCloses(symbol string, closes []float64) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cs := make([]common.Candle, len(closes))
	for i, c := range closes {
		at := base.Add(time.Duration(i) * 5 * time.Minute)
		cs[i] = common.Candle{OpenTime: at, Open: c, High: c, Low: c, Close: c, CloseTime: at}
	}
	g.mu.Lock()
	g.candles[symbol] = cs
	g.mu.Unlock()
}

func (g *scriptedGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *scriptedGateway) placed() []common.OrderRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]common.OrderRequest(nil), g.orders...)
}

func (g *scriptedGateway) GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]common.Candle, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["klines"]++
	if g.candleErr != nil {
		return nil, g.candleErr
	}
	src := g.candles[symbol]
	out := make([]common.Candle, 0, len(src))
	for i := len(src) - 1; i >= 0; i-- {
		out = append(out, src[i])
	}
	return out, nil
}

func (g *scriptedGateway) GetDepth(ctx context.Context, symbol string, limit int) (common.DepthSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["depth"]++
	if g.depth == nil {
		return common.DepthSnapshot{}, &common.GatewayError{Op: "depth", Err: errVenueDown}
	}
	return *g.depth, nil
}

func (g *scriptedGateway) GetTicker(ctx context.Context, symbol string) ([]common.Ticker, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["ticker"]++
	if g.ticker == nil {
		return nil, &common.GatewayError{Op: "ticker", Err: errVenueDown}
	}
	return []common.Ticker{*g.ticker}, nil
}

func (g *scriptedGateway) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["order"]++
	if g.orderErr != nil {
		return common.OrderResult{}, g.orderErr
	}
	g.orders = append(g.orders, req)
	return common.OrderResult{OrderID: "ord-1", ClientID: req.ClientID, Status: "NEW", Symbol: req.Symbol, Side: req.Side, Qty: req.Qty}, nil
}

func (g *scriptedGateway) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls["price"]++
	return g.price, nil
}

type recorder struct {
	mu      sync.Mutex
	signals []events.SignalEvent
	results []bool
	cycles  []events.CycleSummary
	status  []events.StatusChange
}

func (r *recorder) RecordSignal(e events.SignalEvent) {
	r.mu.Lock()
	r.signals = append(r.signals, e)
	r.mu.Unlock()
}
func (r *recorder) RecordOrderSubmitted(events.OrderEvent) {}
func (r *recorder) RecordOrderResult(_ events.OrderEvent, ok bool) {
	r.mu.Lock()
	r.results = append(r.results, ok)
	r.mu.Unlock()
}
func (r *recorder) RecordCycle(e events.CycleSummary) {
	r.mu.Lock()
	r.cycles = append(r.cycles, e)
	r.mu.Unlock()
}
func (r *recorder) RecordStatus(e events.StatusChange) {
	r.mu.Lock()
	r.status = append(r.status, e)
	r.mu.Unlock()
}

func btcConfig() common.SymbolConfig {
	return common.SymbolConfig{
		Symbol: "BTC-USDT", BaseAsset: "BTC", QuoteAsset: "USDT",
		MinQty: 0.001, PricePrecision: 1, QtyPrecision: 3, MinNotional: 5, Leverage: 20,
	}
}

func rising(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 0.05*float64(i*i)
	}
	return out
}

func falling(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 - 0.05*float64(i*i)
	}
	return out
}

func newTestOrchestrator(t *testing.T, gw *scriptedGateway, debounce bool) (*Orchestrator, *recorder) {
	t.Helper()
	rec := &recorder{}
	o, err := NewOrchestrator(Config{
		Gateway:    gw,
		Recorder:   rec,
		Log:        logger.Discard(),
		KlineLimit: 50,
		Debounce:   debounce,
	})
	require.NoError(t, err)
	ids := 0
	o.newID = func() string { ids++; return "id-" + string(rune('a'+ids%26)) }
	require.NoError(t, o.AddSymbol(btcConfig()))
	return o, rec
}

func TestNewOrchestratorRequiresGateway(t *testing.T) {
	_, err := NewOrchestrator(Config{})
	assert.Error(t, err)
}

func TestCycleBuysOnAcceleratingRise(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, rec := newTestOrchestrator(t, gw, false)

	sum, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Symbols)
	assert.Equal(t, 1, sum.Orders)
	assert.Equal(t, 0, sum.Errors)

	orders := gw.placed()
	require.Len(t, orders, 1)
	req := orders[0]
	price := rising(30)[29]
	assert.Equal(t, common.SideBuy, req.Side)
	assert.Equal(t, common.OrderTypeMarket, req.Type)
	assert.Equal(t, 0.001, req.Qty)
	assert.Equal(t, common.PositionSideLong, req.PositionSide)
	require.NotNil(t, req.TakeProfit)
	require.NotNil(t, req.StopLoss)
	assert.InDelta(t, price*1.10, req.TakeProfit.StopPrice, 1e-9)
	assert.InDelta(t, price*0.95, req.StopLoss.StopPrice, 1e-9)

	st, ok := o.GetStatus("BTC-USDT")
	require.True(t, ok)
	require.NotNil(t, st.Position)
	assert.Equal(t, state.Long, st.Position.Side)
	assert.Equal(t, price, st.Position.EntryPrice)
	assert.Equal(t, 20, st.Position.Leverage)

	cached, ok := o.cfg.Prices.Get("BTC-USDT")
	require.True(t, ok)
	assert.Equal(t, price, cached)

	require.Len(t, rec.signals, 1)
	assert.Equal(t, "BUY", rec.signals[0].Candidate)
	assert.Equal(t, "BUY", rec.signals[0].Decision)
	assert.False(t, rec.signals[0].HasDepth)
	assert.False(t, rec.signals[0].HasTicker)
	assert.Equal(t, []bool{true}, rec.results)
	require.Len(t, rec.cycles, 1)
}

func TestCycleSellsOnAcceleratingFall(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", falling(30))
	o, _ := newTestOrchestrator(t, gw, false)

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	orders := gw.placed()
	require.Len(t, orders, 1)
	price := falling(30)[29]
	assert.Equal(t, common.SideSell, orders[0].Side)
	assert.Equal(t, common.PositionSideLong, orders[0].PositionSide)
	assert.InDelta(t, price*0.90, orders[0].TakeProfit.StopPrice, 1e-9)
	assert.InDelta(t, price*1.05, orders[0].StopLoss.StopPrice, 1e-9)

	st, _ := o.GetStatus("BTC-USDT")
	assert.Equal(t, state.Short, st.Position.Side)
}

func TestCycleFeedsOnlyNewCandles(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	_, err := o.RunCycle(ctx)
	require.NoError(t, err)
	first := len(o.History("BTC-USDT"))
	require.Equal(t, 5, first)

	// Same window again: nothing new is fed.
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, o.History("BTC-USDT"), first)

	// One flat candle: history grows by one and the acceleration is gone.
	closes := rising(30)
	closes = append(closes, closes[len(closes)-1])
	gw.setCloses("BTC-USDT", closes)
	sum, err := o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, o.History("BTC-USDT"), first+1)
	assert.Equal(t, 0, sum.Orders)
}

func TestRepeatSignalsWithoutDebounce(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	_, err := o.RunCycle(ctx)
	require.NoError(t, err)
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, gw.placed(), 2)
}

func TestDebounceSuppressesRepeat(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, true)
	ctx := context.Background()

	_, err := o.RunCycle(ctx)
	require.NoError(t, err)
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, gw.placed(), 1)
}

func TestCycleSkipsSymbolOnCandleFailure(t *testing.T) {
	gw := newScriptedGateway()
	gw.candleErr = &common.GatewayError{Op: "klines", Err: errVenueDown}
	o, _ := newTestOrchestrator(t, gw, false)

	sum, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Errors)
	assert.Zero(t, gw.count("order"))
	assert.Empty(t, o.History("BTC-USDT"))
}

func TestCycleUsesConfirmations(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	price := rising(30)[29]
	// Ask-heavy book vetoes the buy.
	gw.depth = &common.DepthSnapshot{
		Bids: []common.Level{{Price: price * 0.999, Qty: 1}},
		Asks: []common.Level{{Price: price * 1.001, Qty: 5}},
	}
	gw.ticker = &common.Ticker{Symbol: "BTC-USDT", PriceChangePercent: 1, High: price * 1.01, Low: price * 0.99, Last: price, Bid: price, Ask: price * 1.0001}
	o, rec := newTestOrchestrator(t, gw, false)

	sum, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Orders)
	require.Len(t, rec.signals, 1)
	assert.Equal(t, "BUY", rec.signals[0].Candidate)
	assert.Equal(t, "HOLD", rec.signals[0].Decision)
	assert.True(t, rec.signals[0].HasDepth)
	assert.True(t, rec.signals[0].HasTicker)
}

func TestSuspendedSymbolIsSkipped(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, rec := newTestOrchestrator(t, gw, false)

	require.NoError(t, o.SetStatus("BTC-USDT", state.Suspended()))
	sum, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Symbols)
	assert.Zero(t, gw.count("klines"))

	_, err = o.PlaceOrder(context.Background(), "BTC-USDT", common.SideBuy, 100)
	assert.ErrorIs(t, err, common.ErrTradingBlocked)
	assert.Zero(t, gw.count("order"))

	require.Len(t, rec.status, 2)
	assert.Equal(t, "SUSPENDED", rec.status[1].Status)
}

func TestPlaceOrderErrors(t *testing.T) {
	gw := newScriptedGateway()
	o, rec := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	_, err := o.PlaceOrder(ctx, "DOGE-USDT", common.SideBuy, 1)
	assert.ErrorIs(t, err, common.ErrUnknownSymbol)

	_, err = o.PlaceOrder(ctx, "BTC-USDT", common.SideBuy, 0)
	assert.Error(t, err)
	assert.Zero(t, gw.count("order"))

	gw.orderErr = &common.GatewayError{Op: "order", Code: 101204, Message: "insufficient margin"}
	_, err = o.PlaceOrder(ctx, "BTC-USDT", common.SideBuy, 100)
	var gerr *common.GatewayError
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, 101204, gerr.Code)

	st, _ := o.GetStatus("BTC-USDT")
	assert.Nil(t, st.Position)
	assert.Equal(t, []bool{false}, rec.results)
}

func TestPlaceOrderReplacesPosition(t *testing.T) {
	gw := newScriptedGateway()
	o, _ := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	_, err := o.PlaceOrder(ctx, "BTC-USDT", common.SideBuy, 100)
	require.NoError(t, err)
	out, err := o.PlaceOrder(ctx, "BTC-USDT", common.SideSell, 110)
	require.NoError(t, err)
	assert.InDelta(t, 99.0, out.Bounds.TakeProfit, 1e-9)

	st, _ := o.GetStatus("BTC-USDT")
	require.NotNil(t, st.Position)
	assert.Equal(t, state.Short, st.Position.Side)
	assert.Equal(t, 110.0, st.Position.EntryPrice)
	assert.Equal(t, 0.001, st.Position.Quantity)
}

func TestAddSymbolValidatesAndResets(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)

	bad := btcConfig()
	bad.MinQty = 0
	var cerr *common.ConfigError
	assert.True(t, errors.As(o.AddSymbol(bad), &cerr))

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, o.History("BTC-USDT"))

	require.NoError(t, o.AddSymbol(btcConfig()))
	assert.Empty(t, o.History("BTC-USDT"))
	st, _ := o.GetStatus("BTC-USDT")
	assert.Nil(t, st.Position)
	assert.Equal(t, state.StatusActive, st.Status.Kind)

	assert.True(t, o.RemoveSymbol("BTC-USDT"))
	assert.False(t, o.RemoveSymbol("BTC-USDT"))
	assert.Empty(t, o.ListStatuses())
}

func TestCanceledCycleMakesNoCalls(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := o.RunCycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, gw.count("depth"))
	assert.Zero(t, gw.count("klines"))
}

func TestMonitorLoopStopsOnCancel(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(10))
	o, _ := newTestOrchestrator(t, gw, false)
	o.cfg.Interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.RunMonitorLoop(ctx) }()

	require.Eventually(t, func() bool { return gw.count("klines") >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestResolvePrice(t *testing.T) {
	gw := newScriptedGateway()
	gw.price = 42
	o, _ := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	p, err := o.ResolvePrice(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, 42.0, p)
	assert.Equal(t, 1, gw.count("price"))

	o.cfg.Prices.Set("BTC-USDT", 43, time.Now())
	p, err = o.ResolvePrice(ctx, "BTC-USDT")
	require.NoError(t, err)
	assert.Equal(t, 43.0, p)
	assert.Equal(t, 1, gw.count("price"))
}

func TestEventsPublished(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)

	orders, unsub := o.Bus().Subscribe(events.EventOrderAccepted, 4)
	defer unsub()
	cycles, unsubCycles := o.Bus().Subscribe(events.EventCycleCompleted, 4)
	defer unsubCycles()

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	msg := <-orders
	ev, ok := msg.Payload.(events.OrderEvent)
	require.True(t, ok)
	assert.Equal(t, "ord-1", ev.OrderID)
	assert.Equal(t, "BUY", ev.Side)

	msg = <-cycles
	sum, ok := msg.Payload.(events.CycleSummary)
	require.True(t, ok)
	assert.Equal(t, 1, sum.Orders)
}

func TestCycleFeedsFormingCandleOnceClosed(t *testing.T) {
	gw := newScriptedGateway()
	closes := rising(30)
	gw.setCloses("BTC-USDT", closes)
	o, _ := newTestOrchestrator(t, gw, false)
	ctx := context.Background()

	lastOpen := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(29 * 5 * time.Minute)
	o.now = func() time.Time { return lastOpen.Add(2 * time.Minute) }

	_, err := o.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, o.History("BTC-USDT"), 4, "forming candle is not fed")

	// The venue revises the forming candle; it is still not fed but prices the cache.
	revised := append([]float64(nil), closes...)
	revised[29] = 500
	gw.setCloses("BTC-USDT", revised)
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	require.Len(t, o.History("BTC-USDT"), 4)
	cached, _ := o.cfg.Prices.Get("BTC-USDT")
	assert.Equal(t, 500.0, cached)

	// Once closed, the final close is what the indicator sees.
	o.now = func() time.Time { return lastOpen.Add(6 * time.Minute) }
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	history := o.History("BTC-USDT")
	require.Len(t, history, 5)

	want := indicators.NewEngine(o.cfg.Params)
	for _, c := range revised {
		want.AddPrice("BTC-USDT", c)
	}
	expected := want.History("BTC-USDT")
	assert.InDelta(t, expected[len(expected)-1].Momentum, history[len(history)-1].Momentum, 1e-9)
	assert.InDelta(t, expected[len(expected)-1].Histogram, history[len(history)-1].Histogram, 1e-9)

	// Fed once: another cycle over the same window adds nothing.
	_, err = o.RunCycle(ctx)
	require.NoError(t, err)
	assert.Len(t, o.History("BTC-USDT"), 5)
}

func TestKlineSpan(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"1m", time.Minute, true},
		{"5m", 5 * time.Minute, true},
		{"4h", 4 * time.Hour, true},
		{"1d", 24 * time.Hour, true},
		{"1w", 7 * 24 * time.Hour, true},
		{"1M", 0, false},
		{"m", 0, false},
		{"0m", 0, false},
		{"xh", 0, false},
	}
	for _, tt := range tests {
		got, ok := klineSpan(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestLoopOrderUsesMinQty(t *testing.T) {
	gw := newScriptedGateway()
	gw.setCloses("BTC-USDT", rising(30))
	o, _ := newTestOrchestrator(t, gw, false)
	cfg := btcConfig()
	cfg.MinQty = 1.0
	require.NoError(t, o.AddSymbol(cfg))

	_, err := o.RunCycle(context.Background())
	require.NoError(t, err)

	orders := gw.placed()
	require.Len(t, orders, 1)
	assert.Equal(t, 1.0, orders[0].Qty)
	st, _ := o.GetStatus("BTC-USDT")
	require.NotNil(t, st.Position)
	assert.Equal(t, 1.0, st.Position.Quantity)
	assert.Equal(t, state.Long, st.Position.Side)
	assert.Equal(t, rising(30)[29], st.Position.EntryPrice)
}
