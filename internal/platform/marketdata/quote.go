package marketdata

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/shared"
)

var ErrInvalidQuote = errors.New("invalid quote")

// Quote is the top of book of one instrument
type Quote struct {
	InstrumentID shared.InstrumentID `json:"instrument_id"`
	Bid          decimal.Decimal     `json:"bid"`
	Ask          decimal.Decimal     `json:"ask"`
	TsEvent      uint64              `json:"ts_event"`
}

// Validate checks a quote received from the wire
func (q Quote) Validate() error {
	if _, err := shared.ParseInstrumentID(string(q.InstrumentID)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if !q.Bid.IsPositive() || !q.Ask.IsPositive() {
		return fmt.Errorf("%w: %s bid and ask must be positive", ErrInvalidQuote, q.InstrumentID)
	}
	if q.Bid.GreaterThan(q.Ask) {
		return fmt.Errorf("%w: %s bid %s above ask %s", ErrInvalidQuote, q.InstrumentID, q.Bid, q.Ask)
	}
	return nil
}

// Price reads one side of the quote. MID and LAST use the midpoint.
func (q Quote) Price(priceType shared.PriceType) decimal.Decimal {
	switch priceType {
	case shared.PriceTypeBid:
		return q.Bid
	case shared.PriceTypeAsk:
		return q.Ask
	default:
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	}
}
