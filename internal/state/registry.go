package state

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"perp-trader/pkg/exchanges/common"
)

// StatusKind is the lifecycle state of a tracked symbol.
type StatusKind string

const (
	StatusActive    StatusKind = "ACTIVE"
	StatusSuspended StatusKind = "SUSPENDED"
	StatusError     StatusKind = "ERROR"
)

// TradingStatus is a lifecycle state with an optional reason (used by StatusError).
type TradingStatus struct {
	Kind   StatusKind `json:"kind"`
	Reason string     `json:"reason,omitempty"`
}

func Active() TradingStatus               { return TradingStatus{Kind: StatusActive} }
func Suspended() TradingStatus            { return TradingStatus{Kind: StatusSuspended} }
func Errored(reason string) TradingStatus { return TradingStatus{Kind: StatusError, Reason: reason} }

// ParseStatus reads ACTIVE, SUSPENDED or ERROR (any case).
func ParseStatus(kind, reason string) (TradingStatus, error) {
	switch StatusKind(strings.ToUpper(strings.TrimSpace(kind))) {
	case StatusActive:
		return Active(), nil
	case StatusSuspended:
		return Suspended(), nil
	case StatusError:
		return Errored(reason), nil
	}
	return TradingStatus{}, fmt.Errorf("unknown status %q", kind)
}

func (s TradingStatus) String() string {
	if s.Kind == StatusError && s.Reason != "" {
		return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
	}
	return string(s.Kind)
}

// PositionSide is the direction of an open position.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// SideFor maps an order side to the position it opens.
func SideFor(side common.Side) PositionSide {
	if side == common.SideSell {
		return Short
	}
	return Long
}

// Position is the engine's record of the last order placed on a symbol.
type Position struct {
	Symbol           string       `json:"symbol"`
	Side             PositionSide `json:"side"`
	Quantity         float64      `json:"quantity"`
	EntryPrice       float64      `json:"entry_price"`
	UnrealizedPnLPct float64      `json:"unrealized_pnl_pct"`
	Leverage         int          `json:"leverage"`
	OrderID          string       `json:"order_id,omitempty"`
	OpenedAt         time.Time    `json:"opened_at"`
}

// SymbolStatus is the live state of one tracked symbol.
type SymbolStatus struct {
	Config     common.SymbolConfig `json:"config"`
	Status     TradingStatus       `json:"status"`
	LastUpdate time.Time           `json:"last_update"`
	Position   *Position           `json:"position,omitempty"`
}

func (s SymbolStatus) clone() SymbolStatus {
	if s.Position != nil {
		p := *s.Position
		s.Position = &p
	}
	return s
}

// Registry is the single owner of per-symbol status.
// Mutations are last-writer-wins.
type Registry struct {
	mu      sync.RWMutex
	symbols map[string]*SymbolStatus
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{symbols: make(map[string]*SymbolStatus), now: time.Now}
}

// Add inserts or overwrites cfg.Symbol as Active with no position.
func (r *Registry) Add(cfg common.SymbolConfig) SymbolStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := &SymbolStatus{Config: cfg, Status: Active(), LastUpdate: r.now()}
	r.symbols[cfg.Symbol] = st
	return st.clone()
}

// Remove deletes symbol and reports whether it existed.
func (r *Registry) Remove(symbol string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.symbols[symbol]
	delete(r.symbols, symbol)
	return ok
}

// Get returns a copy of the symbol's status.
func (r *Registry) Get(symbol string) (SymbolStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.symbols[symbol]
	if !ok {
		return SymbolStatus{}, false
	}
	return st.clone(), true
}

// List returns copies of every status, sorted by symbol.
func (r *Registry) List() []SymbolStatus {
	r.mu.RLock()
	out := make([]SymbolStatus, 0, len(r.symbols))
	for _, st := range r.symbols {
		out = append(out, st.clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Config.Symbol < out[j].Config.Symbol })
	return out
}

// ActiveSymbols returns the sorted symbols whose status is Active.
func (r *Registry) ActiveSymbols() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.symbols))
	for sym, st := range r.symbols {
		if st.Status.Kind == StatusActive {
			out = append(out, sym)
		}
	}
	r.mu.RUnlock()

	sort.Strings(out)
	return out
}

// SetStatus updates the lifecycle state and last-update time.
func (r *Registry) SetStatus(symbol string, status TradingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.symbols[symbol]
	if !ok {
		return fmt.Errorf("set status %s: %w", symbol, common.ErrUnknownSymbol)
	}
	st.Status = status
	st.LastUpdate = r.now()
	return nil
}

// RecordPosition replaces the stored position. A nil position clears it.
func (r *Registry) RecordPosition(symbol string, pos *Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.symbols[symbol]
	if !ok {
		return fmt.Errorf("record position %s: %w", symbol, common.ErrUnknownSymbol)
	}
	if pos != nil {
		p := *pos
		pos = &p
	}
	st.Position = pos
	st.LastUpdate = r.now()
	return nil
}
