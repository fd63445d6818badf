package trading

import (
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Position is an immutable view of a position
type Position struct {
	ID           shared.PositionID   `json:"id"`
	InstrumentID shared.InstrumentID `json:"instrument_id"`
	EntrySide    shared.OrderSide    `json:"entry_side"`
	Side         shared.PositionSide `json:"side"`
	Quantity     decimal.Decimal     `json:"quantity"`
	AvgPxOpen    decimal.Decimal     `json:"avg_px_open"`
}

// IsOpen reports a non-flat position with quantity
func (p Position) IsOpen() bool {
	return p.Side != shared.PositionSideFlat && p.Quantity.IsPositive()
}

// RealizedPnL computes the PnL of closing quantity at closePx in the
// instrument's cost currency. Inverse instruments use reciprocal prices.
func (p Position) RealizedPnL(inst instrument.Instrument, closePx, quantity decimal.Decimal) money.Money {
	ccy := inst.CostCurrency()
	if !p.IsOpen() || quantity.IsZero() {
		return money.Zero(ccy)
	}

	units := quantity.Mul(inst.Multiplier())
	var delta decimal.Decimal
	if inst.IsInverse() {
		if p.AvgPxOpen.IsZero() || closePx.IsZero() {
			return money.Zero(ccy)
		}
		one := decimal.NewFromInt(1)
		delta = one.Div(p.AvgPxOpen).Sub(one.Div(closePx))
	} else {
		delta = closePx.Sub(p.AvgPxOpen)
	}
	if p.Side == shared.PositionSideShort {
		delta = delta.Neg()
	}
	return money.New(units.Mul(delta), ccy)
}
