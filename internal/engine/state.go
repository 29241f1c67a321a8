// state.go holds the trading state the engine owns exclusively: books, BBO
// caches, PnL ledgers, and the active/historical order tables. Per-symbol
// slots are dense arrays indexed by the closed Symbol enum.
package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ceraunus/internal/market"
	"ceraunus/pkg/types"
)

// State is the engine's mutable world. It is mutated only from the engine
// loop goroutine and carries no locks.
type State struct {
	books [types.NumSymbols]*market.OrderBook
	bbos  [types.NumSymbols]*types.Bbo
	pnl   [types.NumSymbols]*Ledger

	// active holds orders that may still receive venue updates, keyed by
	// client order id. hist records ids whose life has ended, so late
	// updates can be told apart from never-known ids.
	active map[uuid.UUID]*types.Order
	hist   map[uuid.UUID]struct{}

	startTime time.Time
	turnover  decimal.Decimal
}

// NewState creates an empty trading state with flat ledgers.
func NewState() *State {
	s := &State{
		active:    make(map[uuid.UUID]*types.Order, 64),
		hist:      make(map[uuid.UUID]struct{}, 256),
		startTime: time.Now(),
	}
	for i := range s.pnl {
		s.pnl[i] = NewLedger(decimal.Zero, decimal.Zero)
	}
	return s
}

// Book returns the symbol's order book, nil while un-bootstrapped.
func (s *State) Book(sym types.Symbol) *market.OrderBook { return s.books[sym] }

// SetBook installs a freshly bootstrapped book.
func (s *State) SetBook(sym types.Symbol, ob *market.OrderBook) { s.books[sym] = ob }

// DropBook discards a book after gap detection.
func (s *State) DropBook(sym types.Symbol) { s.books[sym] = nil }

// SetBbo overwrites the cached BBO from a bookTicker update.
func (s *State) SetBbo(sym types.Symbol, bbo types.Bbo) { s.bbos[sym] = &bbo }

// Bbo returns the freshest top of book: the bookTicker cache when present,
// otherwise the book-derived BBO.
func (s *State) Bbo(sym types.Symbol) (types.Bbo, bool) {
	if bbo := s.bbos[sym]; bbo != nil {
		return *bbo, true
	}
	if ob := s.books[sym]; ob != nil {
		return ob.Bbo()
	}
	return types.Bbo{}, false
}

// Ledger returns the symbol's PnL ledger.
func (s *State) Ledger(sym types.Symbol) *Ledger { return s.pnl[sym] }

// Register inserts a quote order into the active set. This happens before
// the open HTTP call completes, so the venue's first update for the client
// order id is guaranteed to find it.
func (s *State) Register(order *types.Order) {
	s.active[order.ClientOrderID] = order
}

// ActiveOrder looks up an active order.
func (s *State) ActiveOrder(id uuid.UUID) (*types.Order, bool) {
	order, ok := s.active[id]
	return order, ok
}

// ActiveCount returns the number of live orders.
func (s *State) ActiveCount() int { return len(s.active) }

// Complete removes an order from the active set and records its id in the
// historical set.
func (s *State) Complete(id uuid.UUID) {
	delete(s.active, id)
	s.hist[id] = struct{}{}
}

// InHist reports whether an order id has already completed.
func (s *State) InHist(id uuid.UUID) bool {
	_, ok := s.hist[id]
	return ok
}

// StaleOrderIDs returns active orders not updated for at least threshold,
// as (symbol, id) pairs ready for cancel tasks.
func (s *State) StaleOrderIDs(threshold time.Duration, now time.Time) []StaleOrder {
	var stale []StaleOrder
	for id, order := range s.active {
		if now.Sub(order.LastUpdateTS) >= threshold {
			stale = append(stale, StaleOrder{Symbol: order.Symbol, ClientOrderID: id})
		}
	}
	return stale
}

// StaleOrder identifies one cancel-sweep target.
type StaleOrder struct {
	Symbol        types.Symbol
	ClientOrderID uuid.UUID
}

// AddTurnover accumulates executed notional.
func (s *State) AddTurnover(amount decimal.Decimal) {
	s.turnover = s.turnover.Add(amount)
}

// Turnover returns cumulative executed notional this session.
func (s *State) Turnover() decimal.Decimal { return s.turnover }

// StartTime returns when this state was created.
func (s *State) StartTime() time.Time { return s.startTime }
