package sim

import (
	"errors"
	"sort"

	"github.com/shopspring/decimal"
)

var errReduceOnlyIncrease = errors.New("reduce only order would increase position")

type positionState struct {
	Qty   decimal.Decimal // positive long, negative short
	Entry decimal.Decimal // average entry price
}

// Position is the net exposure of one account in one coin.
type Position struct {
	Coin     string
	Qty      decimal.Decimal
	Entry    decimal.Decimal
	Realized decimal.Decimal
}

// ledger tracks filled exposure per coin for one account. Callers hold the venue lock.
type ledger struct {
	positions map[string]*positionState
	realized  map[string]decimal.Decimal
}

func newLedger() *ledger {
	return &ledger{positions: make(map[string]*positionState), realized: make(map[string]decimal.Decimal)}
}

// apply books a fill of size at price and returns the executed size, which is
// smaller than size only for reduce-only orders clamped to the open position.
func (l *ledger) apply(coin string, price, size decimal.Decimal, isBuy, reduceOnly bool) (decimal.Decimal, error) {
	state := l.positions[coin]
	if reduceOnly {
		if state == nil || state.Qty.IsZero() {
			return decimal.Zero, nil
		}
	} else if state == nil {
		state = &positionState{}
		l.positions[coin] = state
	}

	delta := size
	if !isBuy {
		delta = size.Neg()
	}
	if reduceOnly {
		if state.Qty.Sign() == delta.Sign() {
			return decimal.Zero, errReduceOnlyIncrease
		}
		if size.GreaterThan(state.Qty.Abs()) {
			size = state.Qty.Abs()
		}
		delta = size
		if !isBuy {
			delta = size.Neg()
		}
	}

	oldQty := state.Qty
	newQty := oldQty.Add(delta)
	opposite := oldQty.Sign()*delta.Sign() < 0

	if opposite {
		closeQty := decimal.Min(oldQty.Abs(), delta.Abs())
		pnl := closeQty.Mul(price.Sub(state.Entry))
		if oldQty.IsNegative() {
			pnl = pnl.Neg()
		}
		l.realized[coin] = l.realized[coin].Add(pnl)
	}

	switch {
	case oldQty.IsZero():
		state.Entry = price
	case !opposite:
		state.Entry = oldQty.Mul(state.Entry).Add(delta.Mul(price)).Div(newQty)
	case oldQty.Sign()*newQty.Sign() < 0:
		state.Entry = price
	}

	state.Qty = newQty
	if state.Qty.IsZero() {
		delete(l.positions, coin)
	}
	return size, nil
}

func (l *ledger) snapshot() []Position {
	out := make([]Position, 0, len(l.positions))
	for coin, state := range l.positions {
		out = append(out, Position{Coin: coin, Qty: state.Qty, Entry: state.Entry, Realized: l.realized[coin]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Coin < out[j].Coin })
	return out
}
