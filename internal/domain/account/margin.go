package account

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/margin"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// MarginOption configures a MarginAccount
type MarginOption func(*MarginAccount)

// WithMarginModel overrides the default leveraged margin model
func WithMarginModel(model margin.Model) MarginOption {
	return func(a *MarginAccount) {
		if model != nil {
			a.model = model
		}
	}
}

// WithDefaultLeverage sets the leverage used for instruments without an explicit one.
// Values below 1 are ignored.
func WithDefaultLeverage(leverage decimal.Decimal) MarginOption {
	return func(a *MarginAccount) {
		_ = a.SetDefaultLeverage(leverage)
	}
}

// MarginAccount reserves initial and maintenance margin per instrument
type MarginAccount struct {
	base

	model           margin.Model
	defaultLeverage decimal.Decimal
	leverages       map[shared.InstrumentID]decimal.Decimal
	margins         map[shared.InstrumentID]money.MarginBalance
}

var _ MarginReserver = (*MarginAccount)(nil)

// NewMarginAccount creates a margin account from its genesis event
func NewMarginAccount(state *State, calculated bool, opts ...MarginOption) (*MarginAccount, error) {
	b, err := newBase(state, shared.AccountTypeMargin, calculated)
	if err != nil {
		return nil, err
	}
	a := &MarginAccount{
		base:            b,
		model:           margin.LeveragedModel{},
		defaultLeverage: decimal.NewFromInt(1),
		leverages:       make(map[shared.InstrumentID]decimal.Decimal),
		margins:         make(map[shared.InstrumentID]money.MarginBalance),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, m := range state.Margins {
		a.margins[m.InstrumentID] = m
	}
	for _, bal := range state.Balances {
		if err := a.checkTotal(bal); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *MarginAccount) Apply(state *State) error {
	if err := a.checkEvent(state); err != nil {
		return err
	}
	a.applyBalances(state)
	for _, m := range state.Margins {
		a.margins[m.InstrumentID] = m
	}
	return nil
}

// MarginModel returns the configured model
func (a *MarginAccount) MarginModel() margin.Model {
	return a.model
}

// DefaultLeverage is applied lazily to instruments without an explicit leverage
func (a *MarginAccount) DefaultLeverage() decimal.Decimal {
	return a.defaultLeverage
}

func (a *MarginAccount) SetDefaultLeverage(leverage decimal.Decimal) error {
	if leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: default leverage %s is below 1", margin.ErrInvalidLeverage, leverage)
	}
	a.defaultLeverage = leverage
	return nil
}

func (a *MarginAccount) SetLeverage(instrumentID shared.InstrumentID, leverage decimal.Decimal) error {
	if leverage.LessThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: leverage %s for %s is below 1", margin.ErrInvalidLeverage, leverage, instrumentID)
	}
	a.leverages[instrumentID] = leverage
	return nil
}

// Leverage returns the instrument leverage, recording the default on first use
func (a *MarginAccount) Leverage(instrumentID shared.InstrumentID) decimal.Decimal {
	lev, ok := a.leverages[instrumentID]
	if !ok {
		lev = a.defaultLeverage
		a.leverages[instrumentID] = lev
	}
	return lev
}

// Leverages returns a copy of the per-instrument leverages
func (a *MarginAccount) Leverages() map[shared.InstrumentID]decimal.Decimal {
	out := make(map[shared.InstrumentID]decimal.Decimal, len(a.leverages))
	for id, lev := range a.leverages {
		out[id] = lev
	}
	return out
}

// IsUnleveraged reports a leverage of exactly 1
func (a *MarginAccount) IsUnleveraged(instrumentID shared.InstrumentID) bool {
	return a.Leverage(instrumentID).Equal(decimal.NewFromInt(1))
}

func (a *MarginAccount) CalculateMarginInit(inst instrument.Instrument, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error) {
	return a.model.CalculateMarginInit(inst, quantity, price, a.Leverage(inst.ID()), inverseAsQuote)
}

func (a *MarginAccount) CalculateMarginMaint(inst instrument.Instrument, side shared.PositionSide, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error) {
	return a.model.CalculateMarginMaint(inst, side, quantity, price, a.Leverage(inst.ID()), inverseAsQuote)
}

// CalculateMarginInitial is the model margin plus a round-trip taker fee on the leveraged notional
func (a *MarginAccount) CalculateMarginInitial(inst instrument.Instrument, quantity, price decimal.Decimal, inverseAsQuote bool) (money.Money, error) {
	leverage := a.Leverage(inst.ID())
	marginInit, err := a.model.CalculateMarginInit(inst, quantity, price, leverage, inverseAsQuote)
	if err != nil {
		return money.Money{}, err
	}
	adjusted, err := margin.LeveragedNotional(inst, quantity, price, leverage, inverseAsQuote)
	if err != nil {
		return money.Money{}, err
	}
	fees := adjusted.Mul(inst.TakerFee().Mul(decimal.NewFromInt(2)))
	return marginInit.Add(fees)
}

func (a *MarginAccount) CalculatePnLs(inst instrument.Instrument, position *trading.Position, fill trading.Fill) ([]money.Money, error) {
	return positionalPnLs(inst, position, fill), nil
}

// Margins returns the margin reservations ordered by instrument
func (a *MarginAccount) Margins() []money.MarginBalance {
	out := make([]money.MarginBalance, 0, len(a.margins))
	for _, m := range a.margins {
		out = append(out, m)
	}
	return sortedMargins(out)
}

// Margin returns the reservation held for an instrument
func (a *MarginAccount) Margin(instrumentID shared.InstrumentID) (money.MarginBalance, bool) {
	m, ok := a.margins[instrumentID]
	return m, ok
}

// MarginInit returns the initial margin for an instrument
func (a *MarginAccount) MarginInit(instrumentID shared.InstrumentID) (money.Money, bool) {
	m, ok := a.margins[instrumentID]
	return m.Initial, ok
}

// MarginMaint returns the maintenance margin for an instrument
func (a *MarginAccount) MarginMaint(instrumentID shared.InstrumentID) (money.Money, bool) {
	m, ok := a.margins[instrumentID]
	return m.Maintenance, ok
}

func (a *MarginAccount) UpdateMarginInit(instrumentID shared.InstrumentID, marginInit money.Money) error {
	maint := money.Zero(marginInit.Currency)
	if existing, ok := a.margins[instrumentID]; ok && !existing.Maintenance.IsZero() {
		maint = existing.Maintenance
	}
	return a.setMargin(instrumentID, marginInit, maint)
}

func (a *MarginAccount) UpdateMarginMaint(instrumentID shared.InstrumentID, marginMaint money.Money) error {
	initial := money.Zero(marginMaint.Currency)
	if existing, ok := a.margins[instrumentID]; ok && !existing.Initial.IsZero() {
		initial = existing.Initial
	}
	return a.setMargin(instrumentID, initial, marginMaint)
}

// ClearMargin removes the reservation held for an instrument
func (a *MarginAccount) ClearMargin(instrumentID shared.InstrumentID) error {
	existing, ok := a.margins[instrumentID]
	if !ok {
		return nil
	}
	delete(a.margins, instrumentID)
	bal, found, err := a.recalculate(existing.Currency(), a.totalMargin(existing.Currency()))
	if err != nil {
		a.margins[instrumentID] = existing
		return err
	}
	if found {
		a.balances[bal.Currency()] = bal
	}
	return nil
}

// setMargin replaces one reservation and recalculates the balances of the old
// and new currencies. Nothing is committed on error.
func (a *MarginAccount) setMargin(instrumentID shared.InstrumentID, initial, maint money.Money) error {
	next, err := money.NewMarginBalance(initial, maint, instrumentID)
	if err != nil {
		return err
	}

	prev, hadPrev := a.margins[instrumentID]
	a.margins[instrumentID] = next

	affected := map[money.Currency]struct{}{next.Currency(): {}}
	if hadPrev {
		affected[prev.Currency()] = struct{}{}
	}

	updated := make([]money.AccountBalance, 0, len(affected))
	for _, ccy := range sortedCurrencies(affected) {
		bal, found, err := a.recalculate(ccy, a.totalMargin(ccy))
		if err != nil {
			if hadPrev {
				a.margins[instrumentID] = prev
			} else {
				delete(a.margins, instrumentID)
			}
			return err
		}
		if found {
			updated = append(updated, bal)
		}
	}

	for _, bal := range updated {
		a.balances[bal.Currency()] = bal
	}
	return nil
}

func (a *MarginAccount) totalMargin(ccy money.Currency) money.Money {
	total := money.Zero(ccy)
	for _, m := range a.margins {
		if m.Currency() == ccy {
			total = money.New(total.Amount.Add(m.Total().Amount), ccy)
		}
	}
	return total
}

func (a *MarginAccount) String() string {
	return a.describe("MarginAccount")
}
