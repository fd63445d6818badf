package account

import (
	"fmt"

	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// View is the balances, margins and locks derived from an event log
type View struct {
	AccountID shared.AccountID
	Balances  map[money.Currency]money.AccountBalance
	Margins   map[shared.InstrumentID]money.MarginBalance
	Locks     map[lockKey]money.Money
}

type lockKey struct {
	instrumentID shared.InstrumentID
	currency     money.Currency
}

func lockView(locks []money.LockedBalance) map[lockKey]money.Money {
	out := make(map[lockKey]money.Money, len(locks))
	for _, l := range locks {
		if !l.Locked.IsZero() {
			out[lockKey{instrumentID: l.InstrumentID, currency: l.Currency()}] = l.Locked
		}
	}
	return out
}

// Replay folds events, genesis first, into a View. Later events overwrite
// the balances and margins they carry; an event carrying locks replaces them all.
func Replay(events []*State) (View, error) {
	if len(events) == 0 {
		return View{}, ErrNoEvents
	}

	v := View{
		AccountID: events[0].AccountID,
		Balances:  make(map[money.Currency]money.AccountBalance),
		Margins:   make(map[shared.InstrumentID]money.MarginBalance),
		Locks:     make(map[lockKey]money.Money),
	}
	for i, e := range events {
		if e == nil {
			return View{}, fmt.Errorf("event %d: %w", i, ErrNilState)
		}
		if e.AccountID != v.AccountID {
			return View{}, fmt.Errorf("event %d: %w: %s is not %s", i, ErrEventMismatch, e.AccountID, v.AccountID)
		}
		for _, b := range e.Balances {
			v.Balances[b.Currency()] = b
		}
		for _, m := range e.Margins {
			v.Margins[m.InstrumentID] = m
		}
		if e.CarriesLocks() {
			v.Locks = lockView(e.Locks)
		}
	}
	return v, nil
}

// ViewOf captures the current balances, margins and locks of an account
func ViewOf(acc Account) View {
	v := View{
		AccountID: acc.ID(),
		Balances:  make(map[money.Currency]money.AccountBalance),
		Margins:   make(map[shared.InstrumentID]money.MarginBalance),
		Locks:     make(map[lockKey]money.Money),
	}
	if locker, ok := acc.(BalanceLocker); ok {
		v.Locks = lockView(locker.Locks())
	}
	for _, b := range acc.Balances() {
		v.Balances[b.Currency()] = b
	}
	for _, m := range acc.Margins() {
		v.Margins[m.InstrumentID] = m
	}
	return v
}

// Equal compares balances, margins and locks numerically
func (v View) Equal(other View) bool {
	if v.AccountID != other.AccountID || len(v.Balances) != len(other.Balances) ||
		len(v.Margins) != len(other.Margins) || len(v.Locks) != len(other.Locks) {
		return false
	}
	for k, l := range v.Locks {
		o, ok := other.Locks[k]
		if !ok || !l.Equal(o) {
			return false
		}
	}
	for ccy, b := range v.Balances {
		o, ok := other.Balances[ccy]
		if !ok || !b.Equal(o) {
			return false
		}
	}
	for id, m := range v.Margins {
		o, ok := other.Margins[id]
		if !ok || !m.Equal(o) {
			return false
		}
	}
	return true
}
