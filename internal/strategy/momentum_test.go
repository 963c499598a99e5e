package strategy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader/internal/indicators"
	"perp-trader/pkg/exchanges/common"
)

type staticHistory []indicators.MomentumPoint

func (h staticHistory) History(string) []indicators.MomentumPoint { return h }

func hist(values ...float64) staticHistory {
	out := make(staticHistory, 0, len(values))
	for _, v := range values {
		out = append(out, indicators.MomentumPoint{Momentum: v, Histogram: v})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name string
		h    staticHistory
		want Signal
	}{
		{"too short", hist(1, 2), SignalHold},
		{"accelerating up", hist(1, 2, 4), SignalBuy},
		{"accelerating down", hist(-1, -2, -4), SignalSell},
		{"rising but decelerating", hist(1, 3, 4), SignalHold},
		{"falling but decelerating", hist(-1, -3, -4), SignalHold},
		{"mixed", hist(1, 3, 2), SignalHold},
		{"below change threshold", hist(100, 101, 102.5), SignalHold},
		{"zero previous histogram", hist(-1, 0, 2), SignalBuy},
		{
			name: "momentum below signal",
			h: staticHistory{
				{Histogram: 1}, {Histogram: 2},
				{Momentum: 0.5, Signal: 1, Histogram: 4},
			},
			want: SignalHold,
		},
		{
			name: "near cross counts",
			h: staticHistory{
				{Histogram: 1}, {Histogram: 2},
				{Momentum: 0.9995, Signal: 1, Histogram: 4},
			},
			want: SignalBuy,
		},
		{
			name: "momentum above signal blocks sell",
			h: staticHistory{
				{Histogram: -1}, {Histogram: -2},
				{Momentum: 2, Signal: 1, Histogram: -4},
			},
			want: SignalHold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMomentumStrategy("X", tt.h, Options{})
			assert.Equal(t, tt.want, s.Evaluate())
		})
	}
}

func TestStrengthGate(t *testing.T) {
	s := NewMomentumStrategy("X", hist(0.00001, 0.00003, 0.00007), Options{})
	require.Equal(t, SignalBuy, s.Evaluate())
	assert.False(t, s.ShouldBuy(100, nil, nil))

	strength, ok := s.Strength()
	require.True(t, ok)
	assert.InDelta(t, 0.00004, strength, 1e-12)
}

func TestConfirmations(t *testing.T) {
	s := NewMomentumStrategy("X", hist(1, 2, 4), Options{})

	bidHeavy := &common.DepthSnapshot{Bids: []common.Level{{Price: 100, Qty: 5}}, Asks: []common.Level{{Price: 100.1, Qty: 1}}}
	askHeavy := &common.DepthSnapshot{Bids: []common.Level{{Price: 100, Qty: 1}}, Asks: []common.Level{{Price: 100.1, Qty: 5}}}
	bullish := &common.Ticker{PriceChangePercent: 1, High: 101, Low: 99.5, Last: 100.5, Bid: 100.49, Ask: 100.5}
	neutral := &common.Ticker{High: 101, Low: 99, Last: 100, Bid: 99.99, Ask: 100}

	assert.True(t, s.ShouldBuy(100, nil, nil), "absent data confirms")
	assert.True(t, s.ShouldBuy(100, bidHeavy, bullish))
	assert.False(t, s.ShouldBuy(100, askHeavy, bullish))
	assert.False(t, s.ShouldBuy(100, bidHeavy, neutral))
	assert.False(t, s.ShouldSell(100, askHeavy, nil), "candidate is BUY")
	assert.Equal(t, SignalBuy, s.Decide(100, bidHeavy, nil))
	assert.Equal(t, SignalHold, s.Decide(100, askHeavy, nil))
}

func TestDebounceOffByDefault(t *testing.T) {
	s := NewMomentumStrategy("X", hist(1, 2, 4), Options{})
	require.True(t, s.ShouldBuy(100, nil, nil))

	s.RecordEmitted(SignalBuy)
	assert.Equal(t, Signal(""), s.LastSignal())
	assert.True(t, s.ShouldBuy(100, nil, nil), "repeat allowed")
}

func TestDebounceEnabled(t *testing.T) {
	s := NewMomentumStrategy("X", hist(1, 2, 4), Options{Debounce: true})
	require.True(t, s.ShouldBuy(100, nil, nil))

	s.RecordEmitted(SignalBuy)
	assert.Equal(t, SignalBuy, s.LastSignal())
	assert.False(t, s.ShouldBuy(100, nil, nil))

	s.Reset()
	assert.True(t, s.ShouldBuy(100, nil, nil))
}

func TestBuyAndSellNeverBothTrue(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	eng := indicators.NewEngine(indicators.DefaultParams())
	s := NewMomentumStrategy("R", eng, Options{})

	price := 100.0
	for i := 0; i < 2000; i++ {
		price *= 1 + (rng.Float64()-0.5)*0.04
		eng.AddPrice("R", price)
		assert.False(t, s.ShouldBuy(price, nil, nil) && s.ShouldSell(price, nil, nil), "step %d", i)
	}
}

func TestMomentumScenario(t *testing.T) {
	eng := indicators.NewEngine(indicators.DefaultParams())
	s := NewMomentumStrategy("BTC-USDT", eng, Options{})

	// Quadratic growth makes the histogram accelerate.
	var last float64
	for i := 0; i < 30; i++ {
		last = 100 + 0.05*float64(i*i)
		eng.AddPrice("BTC-USDT", last)
	}

	depth := &common.DepthSnapshot{
		Bids: []common.Level{{Price: last - 0.05, Qty: 10}},
		Asks: []common.Level{{Price: last + 0.05, Qty: 5}},
	}
	ticker := &common.Ticker{PriceChangePercent: 1, High: last + 1, Low: last - 1, Last: last, Bid: last - 0.05, Ask: last + 0.05}

	assert.True(t, s.ShouldBuy(last, depth, ticker))
	assert.False(t, s.ShouldSell(last, depth, ticker))

	// A flat close breaks the acceleration.
	eng.AddPrice("BTC-USDT", last)
	assert.Equal(t, SignalHold, s.Evaluate())
	assert.False(t, s.ShouldBuy(last, depth, ticker))
}

func TestDirectionalSanity(t *testing.T) {
	count := func(step float64) int {
		eng := indicators.NewEngine(indicators.DefaultParams())
		n := 0
		for i := 0; i < 60; i++ {
			if pt, ok := eng.AddPrice("X", 1000+step*float64(i)); ok && pt.Momentum >= 0 {
				n++
			}
		}
		return n
	}
	assert.Greater(t, count(1), count(-1))
}
