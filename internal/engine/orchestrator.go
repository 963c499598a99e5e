package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"perp-trader/internal/events"
	"perp-trader/internal/indicators"
	"perp-trader/internal/risk"
	"perp-trader/internal/state"
	"perp-trader/internal/strategy"
	"perp-trader/pkg/cache"
	"perp-trader/pkg/exchanges/common"
)

// Orchestrator owns the registry, indicator state and per-symbol strategies,
// and drives them from the venue gateway.
type Orchestrator struct {
	cfg        Config
	gw         common.Gateway
	registry   *state.Registry
	indicators *indicators.Engine
	log        *logrus.Entry
	now        func() time.Time
	newID      func() string
	startedAt  time.Time

	mu         sync.Mutex
	strategies map[string]*strategy.MomentumStrategy
	lastFed    map[string]time.Time
}

// NewOrchestrator wires an orchestrator. cfg.Gateway must be set.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("engine: gateway is required")
	}
	cfg.applyDefaults()
	return &Orchestrator{
		cfg:        cfg,
		gw:         cfg.Gateway,
		registry:   state.NewRegistry(),
		indicators: indicators.NewEngine(cfg.Params),
		log:        cfg.Log,
		now:        time.Now,
		newID:      func() string { return uuid.NewString() },
		startedAt:  time.Now(),
		strategies: make(map[string]*strategy.MomentumStrategy),
		lastFed:    make(map[string]time.Time),
	}, nil
}

// Bus returns the event bus the orchestrator publishes to.
func (o *Orchestrator) Bus() *events.Bus { return o.cfg.Bus }

// AddSymbol validates cfg and registers it as Active. Re-adding a symbol
// overwrites it and starts its indicator and strategy state from scratch.
func (o *Orchestrator) AddSymbol(cfg common.SymbolConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("add symbol %q: %w", cfg.Symbol, err)
	}
	o.registry.Add(cfg)
	o.indicators.Reset(cfg.Symbol)

	o.mu.Lock()
	o.strategies[cfg.Symbol] = strategy.NewMomentumStrategy(cfg.Symbol, o.indicators, strategy.Options{Debounce: o.cfg.Debounce})
	delete(o.lastFed, cfg.Symbol)
	o.mu.Unlock()

	o.cfg.Prices.Delete(cfg.Symbol)
	o.statusChanged(cfg.Symbol, state.Active())
	o.log.WithFields(logrus.Fields{
		"symbol":   cfg.Symbol,
		"min_qty":  cfg.MinQty,
		"leverage": cfg.Leverage,
	}).Info("symbol added")
	return nil
}

// RemoveSymbol stops tracking symbol and reports whether it was known.
func (o *Orchestrator) RemoveSymbol(symbol string) bool {
	if !o.registry.Remove(symbol) {
		return false
	}
	o.indicators.Remove(symbol)

	o.mu.Lock()
	delete(o.strategies, symbol)
	delete(o.lastFed, symbol)
	o.mu.Unlock()

	o.cfg.Prices.Delete(symbol)
	o.publish(events.EventStatusChange, events.StatusChange{Symbol: symbol, Status: "REMOVED"})
	o.cfg.Recorder.RecordStatus(events.StatusChange{Symbol: symbol, Status: "REMOVED"})
	o.log.WithField("symbol", symbol).Info("symbol removed")
	return true
}

// GetStatus returns a copy of the registry entry for symbol.
func (o *Orchestrator) GetStatus(symbol string) (state.SymbolStatus, bool) {
	return o.registry.Get(symbol)
}

// ListStatuses returns every registered symbol, sorted by symbol.
func (o *Orchestrator) ListStatuses() []state.SymbolStatus {
	return o.registry.List()
}

// SetStatus changes the lifecycle state of symbol. Suspended and errored
// symbols are skipped by the loop and refuse orders.
func (o *Orchestrator) SetStatus(symbol string, status state.TradingStatus) error {
	if err := o.registry.SetStatus(symbol, status); err != nil {
		return err
	}
	o.statusChanged(symbol, status)
	return nil
}

func (o *Orchestrator) statusChanged(symbol string, status state.TradingStatus) {
	ev := events.StatusChange{Symbol: symbol, Status: string(status.Kind), Reason: status.Reason}
	o.publish(events.EventStatusChange, ev)
	o.cfg.Recorder.RecordStatus(ev)
}

// History returns the momentum history of symbol.
func (o *Orchestrator) History(symbol string) []indicators.MomentumPoint {
	return o.indicators.History(symbol)
}

// LatestPrices returns the last close seen per symbol.
func (o *Orchestrator) LatestPrices() map[string]cache.Quote {
	return o.cfg.Prices.Snapshot()
}

// ResolvePrice returns the cached latest close, falling back to the venue's
// latest trade price when the gateway can quote one.
func (o *Orchestrator) ResolvePrice(ctx context.Context, symbol string) (float64, error) {
	if p, ok := o.cfg.Prices.Get(symbol); ok && p > 0 {
		return p, nil
	}
	src, ok := o.gw.(common.PriceSource)
	if !ok {
		return 0, fmt.Errorf("resolve price %s: no cached close and gateway cannot quote", symbol)
	}
	start := time.Now()
	p, err := src.GetLatestPrice(ctx, symbol)
	o.cfg.Metrics.ObserveGateway("price", time.Since(start), err)
	if err != nil {
		return 0, fmt.Errorf("resolve price %s: %w", symbol, err)
	}
	return p, nil
}

func (o *Orchestrator) GetSystemStatus() SystemStatus {
	return SystemStatus{
		DryRun:        o.cfg.DryRun,
		Symbols:       len(o.registry.List()),
		ActiveSymbols: len(o.registry.ActiveSymbols()),
		Interval:      o.cfg.Interval.String(),
		KlineInterval: o.cfg.KlineInterval,
		StartedAt:     o.startedAt,
		ServerTime:    o.now().UTC(),
	}
}

func (o *Orchestrator) strategyFor(symbol string) (*strategy.MomentumStrategy, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.strategies[symbol]
	return s, ok
}

// PlaceOrder opens a MinQty market position on symbol with take-profit and
// stop-loss attached around refPrice. The symbol must be registered and Active.
func (o *Orchestrator) PlaceOrder(ctx context.Context, symbol string, side common.Side, refPrice float64) (OrderOutcome, error) {
	st, ok := o.registry.Get(symbol)
	if !ok {
		return OrderOutcome{}, fmt.Errorf("place order %s: %w", symbol, common.ErrUnknownSymbol)
	}
	if st.Status.Kind != state.StatusActive {
		return OrderOutcome{}, fmt.Errorf("place order %s (%s): %w", symbol, st.Status, common.ErrTradingBlocked)
	}
	if side != common.SideBuy && side != common.SideSell {
		return OrderOutcome{}, fmt.Errorf("place order %s: invalid side %q", symbol, side)
	}
	if refPrice <= 0 {
		return OrderOutcome{}, fmt.Errorf("place order %s: reference price must be positive", symbol)
	}
	if err := ctx.Err(); err != nil {
		return OrderOutcome{}, fmt.Errorf("place order %s: %w", symbol, err)
	}

	req, bounds := risk.BuildOrder(st.Config, side, refPrice, o.newID())
	ev := events.OrderEvent{
		ClientID:   req.ClientID,
		Symbol:     symbol,
		Side:       string(side),
		Qty:        req.Qty,
		Price:      refPrice,
		TakeProfit: bounds.TakeProfit,
		StopLoss:   bounds.StopLoss,
	}
	o.publish(events.EventOrderSubmitted, ev)
	o.cfg.Recorder.RecordOrderSubmitted(ev)

	log := o.log.WithFields(logrus.Fields{
		"symbol":      symbol,
		"side":        side,
		"qty":         req.Qty,
		"price":       refPrice,
		"take_profit": bounds.TakeProfit,
		"stop_loss":   bounds.StopLoss,
		"client_id":   req.ClientID,
	})

	start := time.Now()
	res, err := o.gw.PlaceOrder(ctx, req)
	elapsed := time.Since(start)
	o.cfg.Metrics.ObserveOrder(symbol, string(side), err == nil, elapsed)
	if err != nil {
		ev.Error = err.Error()
		o.publish(events.EventOrderRejected, ev)
		o.cfg.Recorder.RecordOrderResult(ev, false)
		log.WithError(err).Error("order rejected")
		return OrderOutcome{}, fmt.Errorf("place order %s: %w", symbol, err)
	}

	ev.OrderID = res.OrderID
	o.publish(events.EventOrderAccepted, ev)
	o.cfg.Recorder.RecordOrderResult(ev, true)
	log.WithField("order_id", res.OrderID).Info("order placed")

	entry := res.Price
	if entry <= 0 {
		entry = refPrice
	}
	pos := &state.Position{
		Symbol:     symbol,
		Side:       state.SideFor(side),
		Quantity:   req.Qty,
		EntryPrice: entry,
		Leverage:   st.Config.Leverage,
		OrderID:    res.OrderID,
		OpenedAt:   o.now(),
	}
	if err := o.registry.RecordPosition(symbol, pos); err != nil {
		// Removed while the order was in flight; the order itself stands.
		log.WithError(err).Warn("position not recorded")
	} else {
		o.publish(events.EventPositionChange, events.PositionChange{
			Symbol:     symbol,
			Side:       string(pos.Side),
			Quantity:   pos.Quantity,
			EntryPrice: pos.EntryPrice,
			Leverage:   pos.Leverage,
		})
	}

	if strat, ok := o.strategyFor(symbol); ok {
		strat.RecordEmitted(strategy.Signal(side))
	}
	return OrderOutcome{Result: res, Bounds: bounds}, nil
}

func (o *Orchestrator) publish(e events.Event, payload any) {
	o.cfg.Bus.Publish(e, payload)
}
