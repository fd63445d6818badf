package trading

import (
	"encoding/json"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Order is an immutable view of a working order
type Order struct {
	ClientOrderID shared.ClientOrderID `json:"client_order_id"`
	InstrumentID  shared.InstrumentID  `json:"instrument_id"`
	Side          shared.OrderSide     `json:"side"`
	Type          shared.OrderType     `json:"type"`
	Quantity      decimal.Decimal      `json:"quantity"`
	Price         *decimal.Decimal     `json:"price,omitempty"`
	TriggerPrice  *decimal.Decimal     `json:"trigger_price,omitempty"`
	ReduceOnly    bool                 `json:"reduce_only"`
	Open          bool                 `json:"open"`
}

// UnmarshalJSON reads an order without "open" as working, since ORDERS events
// list the open set of an instrument
func (o *Order) UnmarshalJSON(data []byte) error {
	type plain Order
	p := plain{Open: true}
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*o = Order(p)
	return nil
}

// EffectivePrice is the limit price, else the trigger price
func (o Order) EffectivePrice() (decimal.Decimal, bool) {
	if o.Price != nil {
		return *o.Price, true
	}
	if o.TriggerPrice != nil {
		return *o.TriggerPrice, true
	}
	return decimal.Decimal{}, false
}

// IsOpen reports whether the order is still working
func (o Order) IsOpen() bool {
	return o.Open
}
