package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"perp-trader/internal/events"
	"perp-trader/internal/strategy"
	"perp-trader/pkg/exchanges/common"
)

// RunMonitorLoop runs a cycle immediately and then on every interval tick.
// Cycle failures are logged; the loop only returns when ctx is done.
func (o *Orchestrator) RunMonitorLoop(ctx context.Context) error {
	o.log.WithFields(logrus.Fields{
		"interval":       o.cfg.Interval,
		"kline_interval": o.cfg.KlineInterval,
		"dry_run":        o.cfg.DryRun,
	}).Info("monitor loop started")

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := o.RunCycle(ctx); err != nil && ctx.Err() == nil {
			o.log.WithError(err).Warn("cycle failed")
		}
		select {
		case <-ctx.Done():
			o.log.Info("monitor loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle evaluates every Active symbol once, sequentially. Per-symbol
// failures are logged and counted; only cancellation aborts the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context) (events.CycleSummary, error) {
	sum := events.CycleSummary{CycleID: o.newID(), Started: o.now()}
	if err := ctx.Err(); err != nil {
		return sum, err
	}

	symbols := o.registry.ActiveSymbols()
	sum.Symbols = len(symbols)
	log := o.log.WithField("cycle_id", sum.CycleID)
	log.WithField("symbols", len(symbols)).Debug("cycle started")

	var cycleErr error
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			cycleErr = err
			break
		}
		ordered, err := o.processSymbol(ctx, sum.CycleID, symbol)
		if ordered {
			sum.Orders++
		}
		if err != nil {
			if ctx.Err() != nil {
				cycleErr = ctx.Err()
				break
			}
			sum.Errors++
			log.WithField("symbol", symbol).WithError(err).Warn("symbol skipped")
		}
	}

	sum.Duration = o.now().Sub(sum.Started)
	o.cfg.Metrics.ObserveCycle(sum.Symbols, sum.Duration)
	o.publish(events.EventCycleCompleted, sum)
	o.cfg.Recorder.RecordCycle(sum)
	log.WithFields(logrus.Fields{
		"symbols":  sum.Symbols,
		"orders":   sum.Orders,
		"errors":   sum.Errors,
		"duration": sum.Duration,
	}).Info("cycle completed")
	return sum, cycleErr
}

// processSymbol runs one symbol through fetch, feed, decide and order.
// ordered reports an accepted order.
func (o *Orchestrator) processSymbol(ctx context.Context, cycleID, symbol string) (ordered bool, err error) {
	strat, ok := o.strategyFor(symbol)
	if !ok {
		return false, nil
	}
	log := o.log.WithFields(logrus.Fields{"cycle_id": cycleID, "symbol": symbol})

	depth, err := o.fetchDepth(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.WithError(err).Warn("depth unavailable")
	}

	ticker, err := o.fetchTicker(ctx, symbol)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		log.WithError(err).Warn("ticker unavailable")
	}

	candles, err := o.fetchCandles(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("candles: %w", err)
	}
	if len(candles) == 0 {
		log.Debug("no candles")
		return false, nil
	}

	latest := o.feed(symbol, candles)
	price := latest.Close
	o.cfg.Prices.Set(symbol, price, latest.OpenTime)
	o.logSummary(log, price, ticker)

	candidate := strat.Evaluate()
	decision := strat.Decide(price, depth, ticker)
	ev := events.SignalEvent{
		CycleID:   cycleID,
		Symbol:    symbol,
		Candidate: string(candidate),
		Decision:  string(decision),
		Price:     price,
		HasDepth:  depth != nil,
		HasTicker: ticker != nil,
	}
	if h := o.indicators.History(symbol); len(h) > 0 {
		ev.Histogram = h[len(h)-1].Histogram
	}
	o.publish(events.EventStrategySignal, ev)
	o.cfg.Recorder.RecordSignal(ev)
	o.cfg.Metrics.ObserveSignal(symbol, string(decision))

	if decision == strategy.SignalHold {
		return false, nil
	}
	log.WithFields(logrus.Fields{"signal": decision, "price": price}).Info("signal")

	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, err := o.PlaceOrder(ctx, symbol, common.Side(decision), price); err != nil {
		return false, err
	}
	return true, nil
}

func (o *Orchestrator) fetchDepth(ctx context.Context, symbol string) (*common.DepthSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	d, err := o.gw.GetDepth(ctx, symbol, o.cfg.DepthLimit)
	o.cfg.Metrics.ObserveGateway("depth", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (o *Orchestrator) fetchTicker(ctx context.Context, symbol string) (*common.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	ts, err := o.gw.GetTicker(ctx, symbol)
	o.cfg.Metrics.ObserveGateway("ticker", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	if len(ts) == 0 {
		return nil, errors.New("empty ticker response")
	}
	t := ts[0]
	for _, cand := range ts {
		if cand.Symbol == symbol {
			t = cand
			break
		}
	}
	return &t, nil
}

func (o *Orchestrator) fetchCandles(ctx context.Context, symbol string) ([]common.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	end := o.now()
	start := end.Add(-o.cfg.Lookback)
	began := time.Now()
	cs, err := o.gw.GetCandles(ctx, symbol, o.cfg.KlineInterval, start, end, o.cfg.KlineLimit)
	o.cfg.Metrics.ObserveGateway("klines", time.Since(began), err)
	return cs, err
}

// feed sorts candles oldest first and feeds the closed candles not yet seen,
// returning the most recent candle. The venue returns overlapping windows
// newest first, so only candles opened after the last fed one are new. The
// candle still forming is left for a later cycle, when its close is final.
func (o *Orchestrator) feed(symbol string, candles []common.Candle) common.Candle {
	sorted := make([]common.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTime.Before(sorted[j].OpenTime) })

	o.mu.Lock()
	last, seen := o.lastFed[symbol]
	o.mu.Unlock()

	now := o.now()
	span, spanKnown := klineSpan(o.cfg.KlineInterval)
	fed, pending := 0, 0
	for i, c := range sorted {
		if seen && !c.OpenTime.After(last) {
			continue
		}
		closed := i < len(sorted)-1
		if spanKnown {
			closed = !c.OpenTime.Add(span).After(now)
		}
		if !closed {
			pending++
			continue
		}
		last, seen = c.OpenTime, true
		fed++
		o.publish(events.EventPriceTick, events.PriceTick{Symbol: symbol, Close: c.Close, OpenTime: c.OpenTime})
		o.cfg.Metrics.ObserveTick(symbol)
		if pt, ok := o.indicators.AddPrice(symbol, c.Close); ok {
			o.publish(events.EventMomentum, events.MomentumUpdate{
				Symbol:    symbol,
				Momentum:  pt.Momentum,
				Signal:    pt.Signal,
				Histogram: pt.Histogram,
			})
		}
	}

	o.mu.Lock()
	if _, still := o.strategies[symbol]; still && seen {
		o.lastFed[symbol] = last
	}
	o.mu.Unlock()

	o.log.WithFields(logrus.Fields{"symbol": symbol, "fed": fed, "pending": pending}).Debug("candles fed")
	return sorted[len(sorted)-1]
}

// klineSpan parses venue kline intervals such as "1m", "4h", "1d" and "1w".
// Monthly and malformed intervals are unknown.
func klineSpan(interval string) (time.Duration, bool) {
	if len(interval) < 2 {
		return 0, false
	}
	n, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || n <= 0 {
		return 0, false
	}
	unit := map[byte]time.Duration{
		'm': time.Minute,
		'h': time.Hour,
		'd': 24 * time.Hour,
		'w': 7 * 24 * time.Hour,
	}[interval[len(interval)-1]]
	if unit == 0 {
		return 0, false
	}
	return time.Duration(n) * unit, true
}

func (o *Orchestrator) logSummary(log *logrus.Entry, price float64, ticker *common.Ticker) {
	fields := logrus.Fields{"close": price}
	if ticker != nil {
		st := strategy.MeasureTicker(*ticker)
		fields["change_24h_pct"] = st.ChangePercent
		fields["volatility_pct"] = st.Volatility
		fields["range_position_pct"] = st.Position
	}
	log.WithFields(fields).Info("market summary")
}
