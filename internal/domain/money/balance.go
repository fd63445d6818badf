package money

import (
	"fmt"

	"github.com/trading-account-engine/internal/domain/shared"
)

// AccountBalance holds the total, locked (or margin) and free amounts of one currency
type AccountBalance struct {
	Total  Money `json:"total" bson:"total"`
	Locked Money `json:"locked" bson:"locked"`
	Free   Money `json:"free" bson:"free"`
}

// NewAccountBalance rounds total and locked to currency precision and derives
// free from the rounded amounts, so total = locked + free holds exactly.
func NewAccountBalance(total, locked Money) (AccountBalance, error) {
	if total.Currency != locked.Currency {
		return AccountBalance{}, fmt.Errorf("%w: balance fields %s/%s",
			ErrCurrencyMismatch, total.Currency.Code, locked.Currency.Code)
	}
	t, l := total.Round(), locked.Round()
	return AccountBalance{
		Total:  t,
		Locked: l,
		Free:   New(t.Amount.Sub(l.Amount), t.Currency),
	}, nil
}

// NewFreeBalance returns a balance with nothing locked
func NewFreeBalance(total Money) AccountBalance {
	return AccountBalance{Total: total.Round(), Locked: Zero(total.Currency), Free: total.Round()}
}

// Currency of the balance
func (b AccountBalance) Currency() Currency {
	return b.Total.Currency
}

// Equal compares all three amounts
func (b AccountBalance) Equal(other AccountBalance) bool {
	return b.Total.Equal(other.Total) && b.Locked.Equal(other.Locked) && b.Free.Equal(other.Free)
}

func (b AccountBalance) String() string {
	return fmt.Sprintf("AccountBalance(total=%s, locked=%s, free=%s)", b.Total, b.Locked, b.Free)
}

// MarginBalance is the initial and maintenance margin reserved for one instrument
type MarginBalance struct {
	Initial      Money               `json:"initial" bson:"initial"`
	Maintenance  Money               `json:"maintenance" bson:"maintenance"`
	InstrumentID shared.InstrumentID `json:"instrument_id" bson:"instrument_id"`
}

// NewMarginBalance finalizes both amounts at currency precision
func NewMarginBalance(initial, maintenance Money, instrumentID shared.InstrumentID) (MarginBalance, error) {
	if initial.Currency != maintenance.Currency {
		return MarginBalance{}, fmt.Errorf("%w: margin fields %s/%s",
			ErrCurrencyMismatch, initial.Currency.Code, maintenance.Currency.Code)
	}
	return MarginBalance{
		Initial:      initial.Round(),
		Maintenance:  maintenance.Round(),
		InstrumentID: instrumentID,
	}, nil
}

// Currency of the margin
func (m MarginBalance) Currency() Currency {
	return m.Initial.Currency
}

// Total is initial plus maintenance
func (m MarginBalance) Total() Money {
	return New(m.Initial.Amount.Add(m.Maintenance.Amount), m.Initial.Currency)
}

// Equal compares both amounts and the instrument
func (m MarginBalance) Equal(other MarginBalance) bool {
	return m.InstrumentID == other.InstrumentID &&
		m.Initial.Equal(other.Initial) &&
		m.Maintenance.Equal(other.Maintenance)
}

func (m MarginBalance) String() string {
	return fmt.Sprintf("MarginBalance(initial=%s, maintenance=%s, instrument_id=%s)", m.Initial, m.Maintenance, m.InstrumentID)
}

// LockedBalance is what the open orders of one instrument hold locked in one currency
type LockedBalance struct {
	Locked       Money               `json:"locked" bson:"locked"`
	InstrumentID shared.InstrumentID `json:"instrument_id" bson:"instrument_id"`
}

// Currency of the lock
func (l LockedBalance) Currency() Currency {
	return l.Locked.Currency
}

// Equal compares the amount and the instrument
func (l LockedBalance) Equal(other LockedBalance) bool {
	return l.InstrumentID == other.InstrumentID && l.Locked.Equal(other.Locked)
}

func (l LockedBalance) String() string {
	return fmt.Sprintf("LockedBalance(locked=%s, instrument_id=%s)", l.Locked, l.InstrumentID)
}
