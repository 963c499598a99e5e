package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const numShards = 16

// Quote is the latest observed close of a symbol.
type Quote struct {
	Price      float64   `json:"price"`
	CandleTime time.Time `json:"candle_time"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PriceCache holds the latest close per symbol, sharded to keep API reads
// off the monitor loop's lock.
type PriceCache struct {
	shards [numShards]*priceShard
	now    func() time.Time
}

type priceShard struct {
	mu    sync.RWMutex
	items map[string]Quote
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	c := &PriceCache{now: time.Now}
	for i := 0; i < numShards; i++ {
		c.shards[i] = &priceShard{items: make(map[string]Quote)}
	}
	return c
}

func (c *PriceCache) getShard(key string) *priceShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%numShards]
}

// Set stores the close of the candle that opened at candleTime.
func (c *PriceCache) Set(symbol string, price float64, candleTime time.Time) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	shard.items[symbol] = Quote{Price: price, CandleTime: candleTime, UpdatedAt: c.now()}
	shard.mu.Unlock()
}

// Get retrieves the latest price for a symbol.
func (c *PriceCache) Get(symbol string) (float64, bool) {
	q, ok := c.Quote(symbol)
	return q.Price, ok
}

// Quote retrieves the full cached entry.
func (c *PriceCache) Quote(symbol string) (Quote, bool) {
	shard := c.getShard(symbol)
	shard.mu.RLock()
	q, ok := shard.items[symbol]
	shard.mu.RUnlock()
	return q, ok
}

// GetWithAge retrieves price and how long ago it was stored.
func (c *PriceCache) GetWithAge(symbol string) (float64, time.Duration, bool) {
	q, ok := c.Quote(symbol)
	if !ok {
		return 0, 0, false
	}
	return q.Price, c.now().Sub(q.UpdatedAt), true
}

// Delete removes a symbol from the cache.
func (c *PriceCache) Delete(symbol string) {
	shard := c.getShard(symbol)
	shard.mu.Lock()
	delete(shard.items, symbol)
	shard.mu.Unlock()
}

// Len returns total items across all shards.
func (c *PriceCache) Len() int {
	total := 0
	for _, shard := range c.shards {
		shard.mu.RLock()
		total += len(shard.items)
		shard.mu.RUnlock()
	}
	return total
}

// Cleanup removes entries older than maxAge.
func (c *PriceCache) Cleanup(maxAge time.Duration) int {
	removed := 0
	cutoff := c.now().Add(-maxAge)

	for _, shard := range c.shards {
		shard.mu.Lock()
		for sym, q := range shard.items {
			if q.UpdatedAt.Before(cutoff) {
				delete(shard.items, sym)
				removed++
			}
		}
		shard.mu.Unlock()
	}
	return removed
}

// Snapshot returns a copy of every cached quote.
func (c *PriceCache) Snapshot() map[string]Quote {
	result := make(map[string]Quote)
	for _, shard := range c.shards {
		shard.mu.RLock()
		for sym, q := range shard.items {
			result[sym] = q
		}
		shard.mu.RUnlock()
	}
	return result
}
