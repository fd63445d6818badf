package account

import (
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
	"github.com/trading-account-engine/internal/domain/trading"
)

// BettingAccount is a cash account whose prices are decimal odds.
// A back (BUY) risks the stake; a lay (SELL) risks stake * (odds - 1).
type BettingAccount struct {
	*CashAccount
}

var _ BalanceLocker = (*BettingAccount)(nil)

// NewBettingAccount creates a betting account from its genesis event
func NewBettingAccount(state *State, calculated bool, opts ...CashOption) (*BettingAccount, error) {
	cash, err := newCashAccount(state, shared.AccountTypeBetting, calculated, opts...)
	if err != nil {
		return nil, err
	}
	return &BettingAccount{CashAccount: cash}, nil
}

// CalculateBalanceLocked returns the stake for backs and the liability for lays
func (a *BettingAccount) CalculateBalanceLocked(inst instrument.Instrument, side shared.OrderSide, quantity, price decimal.Decimal, _ bool) (money.Money, error) {
	return exposure(inst, side, quantity, price), nil
}

// CalculateMarginInitial is the exposure plus a round-trip taker fee
func (a *BettingAccount) CalculateMarginInitial(inst instrument.Instrument, quantity, price decimal.Decimal, _ bool) (money.Money, error) {
	stake := money.New(quantity.Mul(inst.Multiplier()), inst.QuoteCurrency())
	return withFeeBuffer(stake, inst.TakerFee()), nil
}

// CalculatePnLs moves the stake on multi-currency accounts; outcomes settle outside the engine
func (a *BettingAccount) CalculatePnLs(inst instrument.Instrument, _ *trading.Position, fill trading.Fill) ([]money.Money, error) {
	if a.baseCurrency != nil {
		return []money.Money{}, nil
	}
	stake := money.New(fill.LastQty.Mul(inst.Multiplier()), inst.QuoteCurrency())
	if fill.OrderSide == shared.OrderSideBuy {
		stake = stake.Neg()
	}
	return []money.Money{stake}, nil
}

func (a *BettingAccount) String() string {
	return a.describe("BettingAccount")
}

func exposure(inst instrument.Instrument, side shared.OrderSide, quantity, odds decimal.Decimal) money.Money {
	stake := quantity.Mul(inst.Multiplier())
	if side == shared.OrderSideSell {
		liability := stake.Mul(odds.Sub(decimal.NewFromInt(1)))
		return money.New(liability.Abs(), inst.QuoteCurrency())
	}
	return money.New(stake, inst.QuoteCurrency())
}
