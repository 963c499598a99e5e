package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"perp-trader/pkg/exchanges/common"
)

func btc() common.SymbolConfig {
	return common.SymbolConfig{Symbol: "BTC-USDT", BaseAsset: "BTC", QuoteAsset: "USDT", MinQty: 1, PricePrecision: 1, QtyPrecision: 3, MinNotional: 5, Leverage: 20}
}

func TestAddListAndPosition(t *testing.T) {
	r := NewRegistry()
	r.Add(btc())

	all := r.List()
	require.Len(t, all, 1)
	assert.Equal(t, Active(), all[0].Status)
	assert.Nil(t, all[0].Position)

	require.NoError(t, r.RecordPosition("BTC-USDT", &Position{Symbol: "BTC-USDT", Side: Long, Quantity: 1, EntryPrice: 43000, Leverage: 20}))
	st, ok := r.Get("BTC-USDT")
	require.True(t, ok)
	require.NotNil(t, st.Position)
	assert.Equal(t, Long, st.Position.Side)
	assert.Equal(t, 43000.0, st.Position.EntryPrice)
}

func TestRecordPositionReplaces(t *testing.T) {
	r := NewRegistry()
	r.Add(btc())
	require.NoError(t, r.RecordPosition("BTC-USDT", &Position{Side: Long, Quantity: 1, EntryPrice: 100}))
	require.NoError(t, r.RecordPosition("BTC-USDT", &Position{Side: Short, Quantity: 1, EntryPrice: 120}))

	st, _ := r.Get("BTC-USDT")
	assert.Equal(t, Short, st.Position.Side)
	assert.Equal(t, 1.0, st.Position.Quantity, "not netted")
	assert.Equal(t, 120.0, st.Position.EntryPrice)

	require.NoError(t, r.RecordPosition("BTC-USDT", nil))
	st, _ = r.Get("BTC-USDT")
	assert.Nil(t, st.Position)
}

func TestAddOverwritesAndResets(t *testing.T) {
	r := NewRegistry()
	r.Add(btc())
	require.NoError(t, r.SetStatus("BTC-USDT", Suspended()))
	require.NoError(t, r.RecordPosition("BTC-USDT", &Position{Side: Long}))

	cfg := btc()
	cfg.Leverage = 10
	r.Add(cfg)

	st, _ := r.Get("BTC-USDT")
	assert.Equal(t, 10, st.Config.Leverage)
	assert.Equal(t, Active(), st.Status)
	assert.Nil(t, st.Position)
	assert.Len(t, r.List(), 1)
}

func TestSetStatus(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }
	r.Add(btc())

	r.now = func() time.Time { return base.Add(time.Minute) }
	require.NoError(t, r.SetStatus("BTC-USDT", Errored("venue rejected")))
	st, _ := r.Get("BTC-USDT")
	assert.Equal(t, StatusError, st.Status.Kind)
	assert.Equal(t, "venue rejected", st.Status.Reason)
	assert.Equal(t, base.Add(time.Minute), st.LastUpdate)
	assert.Empty(t, r.ActiveSymbols())

	assert.ErrorIs(t, r.SetStatus("ETH-USDT", Active()), common.ErrUnknownSymbol)
	assert.ErrorIs(t, r.RecordPosition("ETH-USDT", &Position{}), common.ErrUnknownSymbol)
}

func TestSnapshotsAreCopies(t *testing.T) {
	r := NewRegistry()
	r.Add(btc())
	require.NoError(t, r.RecordPosition("BTC-USDT", &Position{EntryPrice: 1}))

	st, _ := r.Get("BTC-USDT")
	st.Position.EntryPrice = 999
	st.Status = Suspended()

	again, _ := r.Get("BTC-USDT")
	assert.Equal(t, 1.0, again.Position.EntryPrice)
	assert.Equal(t, Active(), again.Status)
}

func TestListSortedAndRemove(t *testing.T) {
	r := NewRegistry()
	for _, s := range []string{"SOL-USDT", "BTC-USDT", "ETH-USDT"} {
		cfg := btc()
		cfg.Symbol = s
		r.Add(cfg)
	}
	require.NoError(t, r.SetStatus("ETH-USDT", Suspended()))

	var syms []string
	for _, st := range r.List() {
		syms = append(syms, st.Config.Symbol)
	}
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT", "SOL-USDT"}, syms)
	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, r.ActiveSymbols())

	assert.True(t, r.Remove("BTC-USDT"))
	assert.False(t, r.Remove("BTC-USDT"))
	_, ok := r.Get("BTC-USDT")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("suspended", "")
	require.NoError(t, err)
	assert.Equal(t, Suspended(), s)

	s, err = ParseStatus("ERROR", "manual")
	require.NoError(t, err)
	assert.Equal(t, "ERROR(manual)", s.String())

	_, err = ParseStatus("paused", "")
	assert.Error(t, err)
}

func TestConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	r.Add(btc())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.RecordPosition("BTC-USDT", &Position{Quantity: float64(i*100 + j)})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.List()
				r.ActiveSymbols()
			}
		}()
	}
	wg.Wait()

	st, ok := r.Get("BTC-USDT")
	require.True(t, ok)
	assert.NotNil(t, st.Position)
}
