package indicators

import "sync"

// Default momentum parameters.
const (
	DefaultFast   = 12
	DefaultSlow   = 26
	DefaultSignal = 9
)

// MomentumPoint is one MACD-style observation.
type MomentumPoint struct {
	Momentum  float64 `json:"momentum"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// Params are the EMA periods used by the engine.
type Params struct {
	Fast   int
	Slow   int
	Signal int
}

// DefaultParams returns (12, 26, 9).
func DefaultParams() Params {
	return Params{Fast: DefaultFast, Slow: DefaultSlow, Signal: DefaultSignal}
}

type series struct {
	prices  []float64
	history []MomentumPoint
}

// Engine maintains per-symbol price windows and momentum histories.
type Engine struct {
	mu     sync.Mutex
	params Params
	data   map[string]*series
}

// NewEngine builds an indicator engine. Non-positive periods fall back to defaults.
func NewEngine(p Params) *Engine {
	def := DefaultParams()
	if p.Fast <= 0 {
		p.Fast = def.Fast
	}
	if p.Slow <= 0 {
		p.Slow = def.Slow
	}
	if p.Signal <= 0 {
		p.Signal = def.Signal
	}
	return &Engine{params: p, data: make(map[string]*series)}
}

// Params returns the configured periods.
func (e *Engine) Params() Params { return e.params }

// AddPrice ingests a close for symbol. It returns the new point and true once
// the window holds at least Slow prices, otherwise false.
func (e *Engine) AddPrice(symbol string, price float64) (MomentumPoint, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.data[symbol]
	if s == nil {
		s = &series{}
		e.data[symbol] = s
	}

	s.prices = append(s.prices, price)
	if limit := 2 * e.params.Slow; len(s.prices) > limit {
		s.prices = append([]float64(nil), s.prices[len(s.prices)-limit:]...)
	}
	if len(s.prices) < e.params.Slow {
		return MomentumPoint{}, false
	}

	fast, _ := EMA(s.prices, e.params.Fast)
	slow, _ := EMA(s.prices, e.params.Slow)
	momentum := fast - slow

	values := make([]float64, 0, len(s.history)+1)
	for _, p := range s.history {
		values = append(values, p.Momentum)
	}
	values = append(values, momentum)
	// Zero until enough momentum values exist.
	signal, _ := EMA(values, e.params.Signal)

	pt := MomentumPoint{Momentum: momentum, Signal: signal, Histogram: momentum - signal}
	s.history = append(s.history, pt)
	if limit := 2 * e.params.Signal; len(s.history) > limit {
		s.history = append([]MomentumPoint(nil), s.history[len(s.history)-limit:]...)
	}
	return pt, true
}

// History returns a copy of the symbol's momentum points, oldest first.
func (e *Engine) History(symbol string) []MomentumPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.data[symbol]
	if s == nil {
		return nil
	}
	return append([]MomentumPoint(nil), s.history...)
}

// Prices returns a copy of the symbol's retained price window, oldest first.
func (e *Engine) Prices(symbol string) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.data[symbol]
	if s == nil {
		return nil
	}
	return append([]float64(nil), s.prices...)
}

// Reset clears all state for symbol.
func (e *Engine) Reset(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data[symbol] = &series{}
}

// Remove forgets symbol entirely.
func (e *Engine) Remove(symbol string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.data, symbol)
}
