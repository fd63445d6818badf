package account

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// Account is the aggregate root for one trading account.
// It is not safe for concurrent use; callers serialize access per account.
type Account interface {
	ID() shared.AccountID
	Type() shared.AccountType
	BaseCurrency() (money.Currency, bool)
	CalculatedAccountState() bool

	Events() []*State
	LastEvent() *State
	EventCount() int
	Apply(state *State) error
	PurgeEvents(tsBefore uint64)

	Balances() []money.AccountBalance
	Balance(ccy money.Currency) (money.AccountBalance, bool)
	BalanceTotal(ccy money.Currency) (money.Money, bool)
	BalanceFree(ccy money.Currency) (money.Money, bool)
	BalanceLocked(ccy money.Currency) (money.Money, bool)
	Currencies() []money.Currency
	Margins() []money.MarginBalance

	Commissions() []money.Money
	Commission(ccy money.Currency) (money.Money, bool)

	// UpdateBalances validates and commits every balance or none of them
	UpdateBalances(balances ...money.AccountBalance) error
	UpdateCommissions(commission money.Money) error

	CalculateCommission(inst instrument.Instrument, lastQty, lastPx decimal.Decimal, liquiditySide shared.LiquiditySide, inverseAsQuote bool) (money.Money, error)
	CalculateMarginInitial(inst instrument.Instrument, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error)
	CalculatePnLs(inst instrument.Instrument, position *trading.Position, fill trading.Fill) ([]money.Money, error)

	String() string
}

// BalanceLocker is implemented by cash-family accounts, which reserve funds for working orders as locked balance
type BalanceLocker interface {
	Account
	CalculateBalanceLocked(inst instrument.Instrument, side shared.OrderSide, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error)
	UpdateBalanceLocked(instrumentID shared.InstrumentID, locked []money.Money) error
	ClearBalanceLocked(instrumentID shared.InstrumentID) error
	Locks() []money.LockedBalance
}

// MarginReserver is implemented by margin accounts
type MarginReserver interface {
	Account
	Leverage(instrumentID shared.InstrumentID) decimal.Decimal
	CalculateMarginInit(inst instrument.Instrument, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error)
	CalculateMarginMaint(inst instrument.Instrument, side shared.PositionSide, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error)
	UpdateMarginInit(instrumentID shared.InstrumentID, margin money.Money) error
	UpdateMarginMaint(instrumentID shared.InstrumentID, margin money.Money) error
	ClearMargin(instrumentID shared.InstrumentID) error
}

// base holds the state shared by every variant
type base struct {
	id            shared.AccountID
	accountType   shared.AccountType
	baseCurrency  *money.Currency
	calculated    bool
	allowNegative bool

	events      []*State
	balances    map[money.Currency]money.AccountBalance
	commissions map[money.Currency]money.Money
}

func newBase(state *State, expected shared.AccountType, calculated bool) (base, error) {
	if state == nil {
		return base{}, ErrNilState
	}
	if state.AccountType != expected {
		return base{}, fmt.Errorf("%w: expected %s, got %s", ErrEventMismatch, expected, state.AccountType)
	}
	if _, err := shared.NewAccountID(string(state.AccountID)); err != nil {
		return base{}, err
	}
	if len(state.Balances) == 0 {
		return base{}, fmt.Errorf("%w: %s", ErrEmptyBalances, state.AccountID)
	}

	b := base{
		id:          state.AccountID,
		accountType: state.AccountType,
		calculated:  calculated,
		events:      []*State{state},
		balances:    make(map[money.Currency]money.AccountBalance, len(state.Balances)),
		commissions: make(map[money.Currency]money.Money),
	}
	if state.BaseCurrency != nil {
		ccy := *state.BaseCurrency
		b.baseCurrency = &ccy
	}
	for _, bal := range state.Balances {
		b.balances[bal.Currency()] = bal
	}
	return b, nil
}

func (a *base) ID() shared.AccountID         { return a.id }
func (a *base) Type() shared.AccountType     { return a.accountType }
func (a *base) CalculatedAccountState() bool { return a.calculated }
func (a *base) EventCount() int              { return len(a.events) }
func (a *base) LastEvent() *State            { return a.events[len(a.events)-1] }

func (a *base) BaseCurrency() (money.Currency, bool) {
	if a.baseCurrency == nil {
		return money.Currency{}, false
	}
	return *a.baseCurrency, true
}

// Events returns the event log, genesis first
func (a *base) Events() []*State {
	return append([]*State(nil), a.events...)
}

// checkEvent validates an incoming state against this account
func (a *base) checkEvent(state *State) error {
	if state == nil {
		return ErrNilState
	}
	if state.AccountID != a.id {
		return fmt.Errorf("%w: %s is not %s", ErrEventMismatch, state.AccountID, a.id)
	}
	if state.AccountType != a.accountType {
		return fmt.Errorf("%w: type %s is not %s", ErrEventMismatch, state.AccountType, a.accountType)
	}
	if !sameCurrency(state.BaseCurrency, a.baseCurrency) {
		return fmt.Errorf("%w: base currency changed", ErrEventMismatch)
	}
	for _, bal := range state.Balances {
		if err := a.checkTotal(bal); err != nil {
			return err
		}
	}
	return nil
}

func (a *base) applyBalances(state *State) {
	a.events = append(a.events, state)
	for _, bal := range state.Balances {
		a.balances[bal.Currency()] = bal
	}
}

// PurgeEvents drops events stamped before tsBefore; the latest event is always retained
func (a *base) PurgeEvents(tsBefore uint64) {
	last := a.events[len(a.events)-1]
	kept := make([]*State, 0, len(a.events))
	for _, e := range a.events[:len(a.events)-1] {
		if e.TsEvent >= tsBefore {
			kept = append(kept, e)
		}
	}
	a.events = append(kept, last)
}

func (a *base) Balances() []money.AccountBalance {
	out := make([]money.AccountBalance, 0, len(a.balances))
	for _, b := range a.balances {
		out = append(out, b)
	}
	return sortedBalances(out)
}

func (a *base) Balance(ccy money.Currency) (money.AccountBalance, bool) {
	b, ok := a.balances[ccy]
	return b, ok
}

func (a *base) BalanceTotal(ccy money.Currency) (money.Money, bool) {
	b, ok := a.balances[ccy]
	return b.Total, ok
}

func (a *base) BalanceFree(ccy money.Currency) (money.Money, bool) {
	b, ok := a.balances[ccy]
	return b.Free, ok
}

func (a *base) BalanceLocked(ccy money.Currency) (money.Money, bool) {
	b, ok := a.balances[ccy]
	return b.Locked, ok
}

func (a *base) Currencies() []money.Currency {
	out := make([]money.Currency, 0, len(a.balances))
	for c := range a.balances {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

func (a *base) Commissions() []money.Money {
	out := make([]money.Money, 0, len(a.commissions))
	for _, c := range a.commissions {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency.Code < out[j].Currency.Code })
	return out
}

func (a *base) Commission(ccy money.Currency) (money.Money, bool) {
	c, ok := a.commissions[ccy]
	return c, ok
}

func (a *base) UpdateCommissions(commission money.Money) error {
	if commission.IsZero() {
		return nil
	}
	total := money.Zero(commission.Currency)
	if existing, ok := a.commissions[commission.Currency]; ok {
		total = existing
	}
	sum, err := total.Add(commission)
	if err != nil {
		return err
	}
	a.commissions[commission.Currency] = sum.Round()
	return nil
}

func (a *base) checkTotal(bal money.AccountBalance) error {
	if bal.Total.IsNegative() && !a.allowNegative {
		return ErrAccountBalanceNegative{Balance: bal.Total, Currency: bal.Currency()}
	}
	return nil
}

func (a *base) checkFree(bal money.AccountBalance) error {
	if bal.Free.IsNegative() && !a.allowNegative {
		return ErrAccountMarginExceeded{Balance: bal.Total, Margin: bal.Locked, Currency: bal.Currency()}
	}
	return nil
}

func (a *base) UpdateBalances(balances ...money.AccountBalance) error {
	for _, bal := range balances {
		if err := a.checkTotal(bal); err != nil {
			return err
		}
		if err := a.checkFree(bal); err != nil {
			return err
		}
	}
	for _, bal := range balances {
		a.balances[bal.Currency()] = bal
	}
	return nil
}

// CalculateCommission charges the maker or taker fee on the fill notional
func (a *base) CalculateCommission(inst instrument.Instrument, lastQty, lastPx decimal.Decimal, liquiditySide shared.LiquiditySide, inverseAsQuote bool) (money.Money, error) {
	var fee decimal.Decimal
	switch liquiditySide {
	case shared.LiquiditySideMaker:
		fee = inst.MakerFee()
	case shared.LiquiditySideTaker:
		fee = inst.TakerFee()
	default:
		return money.Money{}, fmt.Errorf("invalid liquidity side %q for commission", liquiditySide)
	}
	notional := inst.NotionalValue(lastQty, lastPx, inverseAsQuote)
	return notional.Mul(fee), nil
}

// recalculate sets locked for ccy and derives free. A missing balance is only an
// error when something has to be reserved against it.
func (a *base) recalculate(ccy money.Currency, locked money.Money) (money.AccountBalance, bool, error) {
	current, ok := a.balances[ccy]
	if !ok {
		if locked.IsZero() {
			return money.AccountBalance{}, false, nil
		}
		return money.AccountBalance{}, false, ErrBalanceNotFound{AccountID: a.id, Currency: ccy}
	}

	bal, err := money.NewAccountBalance(current.Total, locked)
	if err != nil {
		return money.AccountBalance{}, false, err
	}
	if bal.Free.IsNegative() && !a.allowNegative {
		return money.AccountBalance{}, false, ErrAccountMarginExceeded{Balance: bal.Total, Margin: bal.Locked, Currency: ccy}
	}
	return bal, true, nil
}

func (a *base) describe(kind string) string {
	baseCcy := "None"
	if a.baseCurrency != nil {
		baseCcy = a.baseCurrency.Code
	}
	return fmt.Sprintf("%s(id=%s, type=%s, base=%s)", kind, a.id, a.accountType, baseCcy)
}

func sameCurrency(a, b *money.Currency) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
