package market

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"perp-trader/pkg/exchanges/common"
)

// PaperConfig tunes the synthetic market.
type PaperConfig struct {
	StartPrice  float64       // first close of every symbol
	Step        float64       // max relative move per candle, e.g. 0.004 = 0.4%
	Interval    time.Duration // candle spacing
	Backfill    int           // candles generated on first touch of a symbol
	SlippageBps float64       // basis points applied against the taker on fills
	Seed        int64
}

// DefaultPaperConfig mirrors a 5m venue feed.
func DefaultPaperConfig() PaperConfig {
	return PaperConfig{
		StartPrice:  100,
		Step:        0.004,
		Interval:    5 * time.Minute,
		Backfill:    60,
		SlippageBps: 2,
		Seed:        time.Now().UnixNano(),
	}
}

// PaperGateway is an in-process venue driven by a random walk. It implements
// common.Gateway and common.PriceSource for dry runs.
type PaperGateway struct {
	cfg PaperConfig
	log *logrus.Entry
	now func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	series map[string][]common.Candle
	fills  []common.OrderResult
}

// NewPaperGateway creates a paper venue. Zero config fields take defaults.
func NewPaperGateway(cfg PaperConfig, log *logrus.Entry) *PaperGateway {
	def := DefaultPaperConfig()
	if cfg.StartPrice <= 0 {
		cfg.StartPrice = def.StartPrice
	}
	if cfg.Step <= 0 {
		cfg.Step = def.Step
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Backfill <= 0 {
		cfg.Backfill = def.Backfill
	}
	if cfg.Seed == 0 {
		cfg.Seed = def.Seed
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &PaperGateway{
		cfg:    cfg,
		log:    log,
		now:    time.Now,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		series: make(map[string][]common.Candle),
	}
}

// advance extends the symbol's series up to the candle containing now. Caller holds mu.
func (p *PaperGateway) advance(symbol string) []common.Candle {
	now := p.now().Truncate(p.cfg.Interval)
	s := p.series[symbol]
	if len(s) == 0 {
		start := now.Add(-time.Duration(p.cfg.Backfill-1) * p.cfg.Interval)
		s = append(s, p.nextCandle(start, p.cfg.StartPrice))
	}
	for last := s[len(s)-1]; last.OpenTime.Before(now); last = s[len(s)-1] {
		s = append(s, p.nextCandle(last.OpenTime.Add(p.cfg.Interval), last.Close))
	}
	p.series[symbol] = s
	return s
}

func (p *PaperGateway) nextCandle(openTime time.Time, open float64) common.Candle {
	move := (p.rng.Float64()*2 - 1) * p.cfg.Step
	closePrice := open * (1 + move)
	wick := p.rng.Float64() * p.cfg.Step / 2
	return common.Candle{
		OpenTime:  openTime,
		Open:      open,
		High:      math.Max(open, closePrice) * (1 + wick),
		Low:       math.Min(open, closePrice) * (1 - wick),
		Close:     closePrice,
		Volume:    10 + p.rng.Float64()*990,
		CloseTime: openTime.Add(p.cfg.Interval - time.Millisecond),
	}
}

func checkCtx(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &common.GatewayError{Op: op, Err: err}
	}
	return nil
}

// GetCandles returns candles newest first, like the venue.
func (p *PaperGateway) GetCandles(ctx context.Context, symbol, interval string, start, end time.Time, limit int) ([]common.Candle, error) {
	if err := checkCtx(ctx, "klines"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	s := p.advance(symbol)
	out := make([]common.Candle, 0, len(s))
	for i := len(s) - 1; i >= 0; i-- {
		c := s[i]
		if !start.IsZero() && c.OpenTime.Before(start) {
			continue
		}
		if !end.IsZero() && c.OpenTime.After(end) {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	p.mu.Unlock()
	return out, nil
}

// GetDepth builds a symmetric book around the latest close with random sizes.
func (p *PaperGateway) GetDepth(ctx context.Context, symbol string, limit int) (common.DepthSnapshot, error) {
	if err := checkCtx(ctx, "depth"); err != nil {
		return common.DepthSnapshot{}, err
	}
	if limit <= 0 {
		limit = 20
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.advance(symbol)
	mid := s[len(s)-1].Close
	snap := common.DepthSnapshot{
		Timestamp: p.now(),
		Asks:      make([]common.Level, 0, limit),
		Bids:      make([]common.Level, 0, limit),
	}
	for i := 1; i <= limit; i++ {
		off := 0.0005 * float64(i)
		snap.Asks = append(snap.Asks, common.Level{Price: mid * (1 + off), Qty: 1 + p.rng.Float64()*9})
		snap.Bids = append(snap.Bids, common.Level{Price: mid * (1 - off), Qty: 1 + p.rng.Float64()*9})
	}
	return snap, nil
}

// GetTicker aggregates the last 24h of the synthetic series.
func (p *PaperGateway) GetTicker(ctx context.Context, symbol string) ([]common.Ticker, error) {
	if err := checkCtx(ctx, "ticker"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	s := p.advance(symbol)
	last := s[len(s)-1]
	from := last.OpenTime.Add(-24 * time.Hour)
	idx := sort.Search(len(s), func(i int) bool { return s[i].OpenTime.After(from) })
	window := s[idx:]

	t := common.Ticker{
		Symbol:    symbol,
		Open:      window[0].Open,
		High:      window[0].High,
		Low:       window[0].Low,
		Last:      last.Close,
		Bid:       last.Close * 0.9999,
		Ask:       last.Close * 1.0001,
		OpenTime:  window[0].OpenTime,
		CloseTime: last.CloseTime,
	}
	for _, c := range window {
		t.High = math.Max(t.High, c.High)
		t.Low = math.Min(t.Low, c.Low)
		t.Volume += c.Volume
		t.QuoteVolume += c.Volume * c.Close
	}
	if t.Open != 0 {
		t.PriceChangePercent = (t.Last - t.Open) / t.Open * 100
	}
	return []common.Ticker{t}, nil
}

// GetLatestPrice returns the latest synthetic close.
func (p *PaperGateway) GetLatestPrice(ctx context.Context, symbol string) (float64, error) {
	if err := checkCtx(ctx, "price"); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.advance(symbol)
	return s[len(s)-1].Close, nil
}

// PlaceOrder fills immediately at the latest close adjusted for slippage.
func (p *PaperGateway) PlaceOrder(ctx context.Context, req common.OrderRequest) (common.OrderResult, error) {
	if err := checkCtx(ctx, "order"); err != nil {
		return common.OrderResult{}, err
	}
	if req.Qty <= 0 {
		return common.OrderResult{}, &common.GatewayError{Op: "order", Message: "quantity must be positive"}
	}

	p.mu.Lock()
	s := p.advance(req.Symbol)
	price := s[len(s)-1].Close
	slip := p.rng.Float64() * p.cfg.SlippageBps / 10000
	if req.Side == common.SideSell {
		price *= 1 - slip
	} else {
		price *= 1 + slip
	}
	res := common.OrderResult{
		OrderID:  fmt.Sprintf("paper-%d", len(p.fills)+1),
		ClientID: req.ClientID,
		Status:   "FILLED",
		Symbol:   req.Symbol,
		Side:     req.Side,
		Qty:      req.Qty,
		Price:    price,
	}
	p.fills = append(p.fills, res)
	p.mu.Unlock()

	p.log.WithFields(logrus.Fields{
		"symbol": req.Symbol,
		"side":   req.Side,
		"qty":    req.Qty,
		"price":  price,
	}).Info("paper fill")
	return res, nil
}

// Fills returns a copy of every simulated fill.
func (p *PaperGateway) Fills() []common.OrderResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]common.OrderResult, len(p.fills))
	copy(out, p.fills)
	return out
}
