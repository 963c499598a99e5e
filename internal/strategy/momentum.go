package strategy

import (
	"math"
	"sync"

	"perp-trader/internal/indicators"
	"perp-trader/pkg/exchanges/common"
)

// Momentum thresholds.
const (
	// Histogram change, in percent of the previous histogram, needed to act.
	MinHistogramChangePct = 3.0
	// Relative momentum/signal gap treated as a crossover.
	NearCrossTolerance = 0.001
	// Absolute histogram change below which a candidate is ignored.
	MinStrength = 0.0001
)

// Options tune a MomentumStrategy.
type Options struct {
	// Debounce makes RecordEmitted suppress a repeat of the last emitted signal.
	// Off by default: the last signal is never advanced and repeats are allowed.
	Debounce bool
}

// MomentumStrategy turns a symbol's momentum history into BUY/SELL/HOLD decisions,
// confirmed by order book and 24h ticker analysis.
type MomentumStrategy struct {
	symbol string
	source HistorySource
	opts   Options

	mu         sync.Mutex
	lastSignal Signal // empty until something is recorded
}

// NewMomentumStrategy creates a strategy reading symbol's history from source.
func NewMomentumStrategy(symbol string, source HistorySource, opts Options) *MomentumStrategy {
	return &MomentumStrategy{symbol: symbol, source: source, opts: opts}
}

// Symbol returns the traded symbol.
func (s *MomentumStrategy) Symbol() string { return s.symbol }

// Evaluate returns the candidate signal from the last three momentum points.
func (s *MomentumStrategy) Evaluate() Signal {
	return evaluate(s.source.History(s.symbol))
}

// Strength is the absolute histogram change between the last two points.
func (s *MomentumStrategy) Strength() (float64, bool) {
	h := s.source.History(s.symbol)
	if len(h) < 2 {
		return 0, false
	}
	n := len(h) - 1
	return math.Abs(h[n].Histogram - h[n-1].Histogram), true
}

func evaluate(h []indicators.MomentumPoint) Signal {
	if len(h) < 3 {
		return SignalHold
	}
	n := len(h) - 1
	cur, prev, prev2 := h[n], h[n-1], h[n-2]

	currChange := cur.Histogram - prev.Histogram
	prevChange := prev.Histogram - prev2.Histogram
	accel := currChange - prevChange
	// Division by a zero histogram gives +Inf, which passes the threshold.
	changePct := math.Abs(currChange) / math.Abs(prev.Histogram) * 100

	increasing := currChange > 0 && prevChange > 0 && accel > 0
	decreasing := currChange < 0 && prevChange < 0 && accel < 0
	nearCross := math.Abs(cur.Momentum-cur.Signal)/math.Abs(cur.Signal) < NearCrossTolerance

	switch {
	case increasing && changePct > MinHistogramChangePct:
		if cur.Momentum >= cur.Signal || nearCross {
			return SignalBuy
		}
	case decreasing && changePct > MinHistogramChangePct:
		if cur.Momentum <= cur.Signal || nearCross {
			return SignalSell
		}
	}
	return SignalHold
}

// ShouldBuy reports whether a BUY should be emitted at price. A nil depth or
// ticker counts as confirming.
func (s *MomentumStrategy) ShouldBuy(price float64, depth *common.DepthSnapshot, ticker *common.Ticker) bool {
	return s.should(SignalBuy, price, depth, ticker)
}

// ShouldSell reports whether a SELL should be emitted at price.
func (s *MomentumStrategy) ShouldSell(price float64, depth *common.DepthSnapshot, ticker *common.Ticker) bool {
	return s.should(SignalSell, price, depth, ticker)
}

// Decide folds ShouldBuy and ShouldSell into one signal.
func (s *MomentumStrategy) Decide(price float64, depth *common.DepthSnapshot, ticker *common.Ticker) Signal {
	switch {
	case s.ShouldBuy(price, depth, ticker):
		return SignalBuy
	case s.ShouldSell(price, depth, ticker):
		return SignalSell
	}
	return SignalHold
}

func (s *MomentumStrategy) should(want Signal, price float64, depth *common.DepthSnapshot, ticker *common.Ticker) bool {
	h := s.source.History(s.symbol)
	if evaluate(h) != want {
		return false
	}
	n := len(h) - 1
	if math.Abs(h[n].Histogram-h[n-1].Histogram) <= MinStrength {
		return false
	}
	if s.LastSignal() == want {
		return false
	}

	depthOK, tickerOK := true, true
	if depth != nil {
		strongBuy, strongSell := AnalyzeDepth(*depth, price)
		depthOK = pick(want, strongBuy, strongSell)
	}
	if ticker != nil {
		bullish, bearish := AnalyzeTicker(*ticker)
		tickerOK = pick(want, bullish, bearish)
	}
	return depthOK && tickerOK
}

func pick(want Signal, buy, sell bool) bool {
	if want == SignalBuy {
		return buy
	}
	return sell
}

// RecordEmitted stores sig as the last emitted signal when debouncing is enabled.
func (s *MomentumStrategy) RecordEmitted(sig Signal) {
	if !s.opts.Debounce {
		return
	}
	s.mu.Lock()
	s.lastSignal = sig
	s.mu.Unlock()
}

// LastSignal returns the last recorded signal, or "" if none.
func (s *MomentumStrategy) LastSignal() Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSignal
}

// Reset forgets the last recorded signal.
func (s *MomentumStrategy) Reset() {
	s.mu.Lock()
	s.lastSignal = ""
	s.mu.Unlock()
}
