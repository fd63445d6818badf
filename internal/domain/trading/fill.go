package trading

import (
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Fill is an immutable order fill event
type Fill struct {
	AccountID     shared.AccountID     `json:"account_id"`
	InstrumentID  shared.InstrumentID  `json:"instrument_id"`
	ClientOrderID shared.ClientOrderID `json:"client_order_id"`
	TradeID       shared.TradeID       `json:"trade_id"`
	PositionID    shared.PositionID    `json:"position_id,omitempty"`
	OrderSide     shared.OrderSide     `json:"order_side"`
	OrderType     shared.OrderType     `json:"order_type"`
	LastQty       decimal.Decimal      `json:"last_qty"`
	LastPx        decimal.Decimal      `json:"last_px"`
	Currency      money.Currency       `json:"currency"`
	Commission    *money.Money         `json:"commission,omitempty"`
	LiquiditySide shared.LiquiditySide `json:"liquidity_side"`
	TsEvent       uint64               `json:"ts_event"`
	TsInit        uint64               `json:"ts_init"`
}

// HasPositionID reports whether the fill names its position
func (f Fill) HasPositionID() bool {
	return f.PositionID != ""
}
