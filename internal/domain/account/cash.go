package account

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// CashOption configures a CashAccount
type CashOption func(*CashAccount)

// WithBorrowing permits negative balances
func WithBorrowing(allow bool) CashOption {
	return func(a *CashAccount) {
		a.allowNegative = allow
	}
}

// CashAccount reserves the notional of working orders as locked balance
type CashAccount struct {
	base

	// locked amounts per instrument, keyed by the currency they are reserved in
	locks map[shared.InstrumentID]map[money.Currency]money.Money
}

var _ BalanceLocker = (*CashAccount)(nil)

// NewCashAccount creates a cash account from its genesis event
func NewCashAccount(state *State, calculated bool, opts ...CashOption) (*CashAccount, error) {
	return newCashAccount(state, shared.AccountTypeCash, calculated, opts...)
}

func newCashAccount(state *State, accountType shared.AccountType, calculated bool, opts ...CashOption) (*CashAccount, error) {
	b, err := newBase(state, accountType, calculated)
	if err != nil {
		return nil, err
	}
	a := &CashAccount{
		base:  b,
		locks: make(map[shared.InstrumentID]map[money.Currency]money.Money),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, bal := range state.Balances {
		if err := a.checkTotal(bal); err != nil {
			return nil, err
		}
	}
	a.restoreLocks(state)
	return a, nil
}

// AllowsBorrowing reports whether negative balances are permitted
func (a *CashAccount) AllowsBorrowing() bool {
	return a.allowNegative
}

func (a *CashAccount) Apply(state *State) error {
	if err := a.checkEvent(state); err != nil {
		return err
	}
	a.applyBalances(state)
	a.restoreLocks(state)
	return nil
}

// restoreLocks replaces the lock set with the one the event carries
func (a *CashAccount) restoreLocks(state *State) {
	if !state.CarriesLocks() {
		return
	}
	locks := make(map[shared.InstrumentID]map[money.Currency]money.Money, len(state.Locks))
	for _, l := range state.Locks {
		if l.Locked.IsZero() {
			continue
		}
		byCcy, ok := locks[l.InstrumentID]
		if !ok {
			byCcy = make(map[money.Currency]money.Money)
			locks[l.InstrumentID] = byCcy
		}
		if existing, ok := byCcy[l.Currency()]; ok {
			byCcy[l.Currency()] = money.New(existing.Amount.Add(l.Locked.Amount), l.Currency())
			continue
		}
		byCcy[l.Currency()] = l.Locked
	}
	a.locks = locks
}

// Margins is always empty for cash accounts
func (a *CashAccount) Margins() []money.MarginBalance {
	return []money.MarginBalance{}
}

// CalculateBalanceLocked locks the quote notional for buys. Sells lock the base
// quantity when the instrument has a base currency, else the notional.
func (a *CashAccount) CalculateBalanceLocked(inst instrument.Instrument, side shared.OrderSide, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error) {
	if side == shared.OrderSideSell {
		if baseCcy, ok := inst.BaseCurrency(); ok {
			return money.New(quantity.Mul(inst.Multiplier()), baseCcy), nil
		}
	}
	return inst.NotionalValue(quantity, price, inverseAsQuote), nil
}

// CalculateMarginInitial reserves the full notional plus a round-trip taker fee
func (a *CashAccount) CalculateMarginInitial(inst instrument.Instrument, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error) {
	notional := inst.NotionalValue(quantity, price, inverseAsQuote)
	return withFeeBuffer(notional, inst.TakerFee()), nil
}

// CalculatePnLs returns the currency legs of the fill for multi-currency
// accounts. Single-currency accounts book realized PnL against the position.
func (a *CashAccount) CalculatePnLs(inst instrument.Instrument, position *trading.Position, fill trading.Fill) ([]money.Money, error) {
	if a.baseCurrency != nil {
		return positionalPnLs(inst, position, fill), nil
	}

	notional := inst.NotionalValue(fill.LastQty, fill.LastPx, false)
	pnls := make([]money.Money, 0, 2)

	if baseCcy, ok := inst.BaseCurrency(); ok && !inst.IsInverse() {
		qty := money.New(fill.LastQty.Mul(inst.Multiplier()), baseCcy)
		if fill.OrderSide == shared.OrderSideSell {
			qty = qty.Neg()
		}
		pnls = append(pnls, qty)
	}
	if fill.OrderSide == shared.OrderSideBuy {
		notional = notional.Neg()
	}
	return append(pnls, notional), nil
}

// UpdateBalanceLocked replaces the locked amounts of one instrument and
// recalculates every affected currency. Nothing is committed on error.
func (a *CashAccount) UpdateBalanceLocked(instrumentID shared.InstrumentID, locked []money.Money) error {
	next := make(map[money.Currency]money.Money, len(locked))
	for _, m := range locked {
		if m.IsZero() {
			continue
		}
		if existing, ok := next[m.Currency]; ok {
			sum, err := existing.Add(m)
			if err != nil {
				return err
			}
			m = sum
		}
		next[m.Currency] = m
	}

	affected := make(map[money.Currency]struct{})
	for ccy := range a.locks[instrumentID] {
		affected[ccy] = struct{}{}
	}
	for ccy := range next {
		affected[ccy] = struct{}{}
	}

	prev, hadPrev := a.locks[instrumentID]
	if len(next) == 0 {
		delete(a.locks, instrumentID)
	} else {
		a.locks[instrumentID] = next
	}

	updated := make([]money.AccountBalance, 0, len(affected))
	for _, ccy := range sortedCurrencies(affected) {
		bal, ok, err := a.recalculate(ccy, a.totalLocked(ccy))
		if err != nil {
			if hadPrev {
				a.locks[instrumentID] = prev
			} else {
				delete(a.locks, instrumentID)
			}
			return err
		}
		if ok {
			updated = append(updated, bal)
		}
	}

	for _, bal := range updated {
		a.balances[bal.Currency()] = bal
	}
	return nil
}

// ClearBalanceLocked removes every lock held for the instrument
func (a *CashAccount) ClearBalanceLocked(instrumentID shared.InstrumentID) error {
	return a.UpdateBalanceLocked(instrumentID, nil)
}

// LockedFor returns the amounts currently locked for an instrument
func (a *CashAccount) LockedFor(instrumentID shared.InstrumentID) []money.Money {
	out := make([]money.Money, 0, len(a.locks[instrumentID]))
	for _, m := range a.locks[instrumentID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency.Code < out[j].Currency.Code })
	return out
}

// Locks returns every per-instrument lock, ordered by instrument then currency
func (a *CashAccount) Locks() []money.LockedBalance {
	out := make([]money.LockedBalance, 0, len(a.locks))
	for id, byCcy := range a.locks {
		for _, m := range byCcy {
			out = append(out, money.LockedBalance{Locked: m, InstrumentID: id})
		}
	}
	return sortedLocks(out)
}

func (a *CashAccount) totalLocked(ccy money.Currency) money.Money {
	total := money.Zero(ccy)
	for _, byCcy := range a.locks {
		if m, ok := byCcy[ccy]; ok {
			total = money.New(total.Amount.Add(m.Amount), ccy)
		}
	}
	return total
}

func (a *CashAccount) String() string {
	return a.describe("CashAccount")
}

func withFeeBuffer(notional money.Money, takerFee decimal.Decimal) money.Money {
	two := decimal.NewFromInt(2)
	return notional.Mul(decimal.NewFromInt(1).Add(two.Mul(takerFee)))
}

// positionalPnLs books realized PnL only when the fill reduces an open position
func positionalPnLs(inst instrument.Instrument, position *trading.Position, fill trading.Fill) []money.Money {
	if position == nil || !position.IsOpen() || position.EntrySide == fill.OrderSide {
		return []money.Money{}
	}
	qty := decimal.Min(fill.LastQty, position.Quantity)
	return []money.Money{position.RealizedPnL(inst, fill.LastPx, qty)}
}

func sortedCurrencies(set map[money.Currency]struct{}) []money.Currency {
	out := make([]money.Currency, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}
