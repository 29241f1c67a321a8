// Package market maintains local order book replicas.
//
// A book is born from a REST depth snapshot and kept current by incremental
// depth deltas from the stream. Reception is gap-checked: each delta carries
// the final update id of its predecessor (pu), and a delta whose pu does not
// match the book's last applied id means frames were lost — the book is no
// longer trustworthy and the caller must rebuild from a fresh snapshot.
package market

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"ceraunus/pkg/types"
)

// ErrGap reports a discontinuity in the depth stream. The book must be
// dropped and re-bootstrapped.
var ErrGap = errors.New("depth update gap")

// OrderBook is the in-memory replica of one symbol's book.
//
// Bids are held highest-price-first and asks lowest-price-first, so index 0
// of each side is the top of book. A level with quantity zero never appears:
// zero-quantity arrivals remove the level.
type OrderBook struct {
	symbol       types.Symbol
	localTS      time.Time
	xchgTS       time.Time
	lastUpdateID uint64

	// primed flips once the first post-snapshot delta lands. Until then the
	// snapshot may sit anywhere inside a delta's [U, u] range, so the
	// continuity check has to accept a straddle instead of exact adjacency.
	primed bool

	bids []types.Level
	asks []types.Level
}

// NewFromSnapshot builds a book from a REST depth snapshot.
func NewFromSnapshot(symbol types.Symbol, snap *types.DepthSnapshot) *OrderBook {
	ob := &OrderBook{
		symbol:       symbol,
		localTS:      time.Now(),
		xchgTS:       time.UnixMilli(snap.TransactionTime),
		lastUpdateID: snap.LastUpdateID,
		bids:         slices.Clone(snap.Bids),
		asks:         slices.Clone(snap.Asks),
	}
	slices.SortFunc(ob.bids, func(a, b types.Level) int { return b.Price.Cmp(a.Price) })
	slices.SortFunc(ob.asks, func(a, b types.Level) int { return a.Price.Cmp(b.Price) })
	return ob
}

// Symbol returns the book's trading pair.
func (ob *OrderBook) Symbol() types.Symbol { return ob.symbol }

// LastUpdateID returns the final update id of the last applied delta.
func (ob *OrderBook) LastUpdateID() uint64 { return ob.lastUpdateID }

// LocalTS returns when the book last changed, by the local clock.
func (ob *OrderBook) LocalTS() time.Time { return ob.localTS }

// XchgTS returns the venue transaction time of the last applied delta.
func (ob *OrderBook) XchgTS() time.Time { return ob.xchgTS }

// Extend applies one depth delta.
//
// A delta already covered by the book (final id at or below the last applied
// id) is skipped without mutation, which makes replays harmless. Otherwise
// the continuity check runs: once primed, the delta's pu must equal the last
// applied id exactly; before that, the snapshot id must fall inside the
// delta's [U, u] range. A failed check returns ErrGap and leaves the book
// untouched.
func (ob *OrderBook) Extend(du *types.DepthUpdate) error {
	if du.FinalUpdateID <= ob.lastUpdateID {
		return nil
	}

	if ob.primed {
		if du.LastFinalUpdateID != ob.lastUpdateID {
			return fmt.Errorf("%w: %s pu=%d want %d", ErrGap, ob.symbol, du.LastFinalUpdateID, ob.lastUpdateID)
		}
	} else {
		if du.FirstUpdateID > ob.lastUpdateID {
			return fmt.Errorf("%w: %s first delta U=%d after snapshot id %d", ErrGap, ob.symbol, du.FirstUpdateID, ob.lastUpdateID)
		}
		ob.primed = true
	}

	ob.xchgTS = time.UnixMilli(du.TransactionTime)
	ob.localTS = time.Now()
	ob.lastUpdateID = du.FinalUpdateID

	for _, lvl := range du.Bids {
		applyLevel(&ob.bids, lvl, descending)
	}
	for _, lvl := range du.Asks {
		applyLevel(&ob.asks, lvl, ascending)
	}
	return nil
}

// Bbo returns the top of book, or false if either side is empty.
func (ob *OrderBook) Bbo() (types.Bbo, bool) {
	if len(ob.bids) == 0 || len(ob.asks) == 0 {
		return types.Bbo{}, false
	}
	return types.Bbo{Bid: ob.bids[0], Ask: ob.asks[0]}, true
}

// Show renders the top depth levels of both sides as [B:q@p,...|A:q@p,...],
// bids best-first then asks best-first. Used by the periodic state report.
func (ob *OrderBook) Show(depth int) string {
	var b strings.Builder
	b.WriteString("[B:")
	writeSide(&b, ob.bids, depth)
	b.WriteString("|A:")
	writeSide(&b, ob.asks, depth)
	b.WriteString("]")
	return b.String()
}

func writeSide(b *strings.Builder, side []types.Level, depth int) {
	for i, lvl := range side {
		if i >= depth {
			break
		}
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(lvl.Qty.String())
		b.WriteString("@")
		b.WriteString(lvl.Price.String())
	}
}

type sideOrder uint8

const (
	descending sideOrder = iota // bids
	ascending                   // asks
)

// applyLevel inserts, overwrites, or (on zero quantity) removes one level,
// keeping the side ordered.
func applyLevel(side *[]types.Level, lvl types.Level, order sideOrder) {
	cmp := func(e types.Level, p decimal.Decimal) int { return e.Price.Cmp(p) }
	if order == descending {
		cmp = func(e types.Level, p decimal.Decimal) int { return p.Cmp(e.Price) }
	}

	i, found := slices.BinarySearchFunc(*side, lvl.Price, cmp)
	switch {
	case lvl.Qty.IsZero():
		if found {
			*side = slices.Delete(*side, i, i+1)
		}
	case found:
		(*side)[i].Qty = lvl.Qty
	default:
		*side = slices.Insert(*side, i, lvl)
	}
}
