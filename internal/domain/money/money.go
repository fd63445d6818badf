package money

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var ErrCurrencyMismatch = errors.New("currency mismatch")

// Money is an exact decimal amount tagged with a currency.
// Values are immutable; every operation returns a new Money.
type Money struct {
	Amount   decimal.Decimal `json:"amount" bson:"amount"`
	Currency Currency        `json:"currency" bson:"currency"`
}

// New creates a Money without rounding
func New(amount decimal.Decimal, currency Currency) Money {
	return Money{Amount: amount, Currency: currency}
}

// FromString parses amount and creates a Money, mainly for fixtures and config
func FromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return New(d, currency), nil
}

// MustParse is FromString that panics, for tests and static tables
func MustParse(amount string, currency Currency) Money {
	m, err := FromString(amount, currency)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns zero in the given currency
func Zero(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) checkCurrency(other Money) error {
	if m.Currency != other.Currency {
		return fmt.Errorf("%w: %s and %s", ErrCurrencyMismatch, m.Currency.Code, other.Currency.Code)
	}
	return nil
}

func (m Money) Add(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount.Add(other.Amount), m.Currency), nil
}

func (m Money) Sub(other Money) (Money, error) {
	if err := m.checkCurrency(other); err != nil {
		return Money{}, err
	}
	return New(m.Amount.Sub(other.Amount), m.Currency), nil
}

// Mul scales the amount, keeping the currency
func (m Money) Mul(factor decimal.Decimal) Money {
	return New(m.Amount.Mul(factor), m.Currency)
}

func (m Money) Neg() Money {
	return New(m.Amount.Neg(), m.Currency)
}

// Cmp compares two amounts of the same currency (-1, 0, +1)
func (m Money) Cmp(other Money) (int, error) {
	if err := m.checkCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports equal currency and numerically equal amount
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) IsZero() bool     { return m.Amount.IsZero() }
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }
func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

// Decimal returns the raw amount
func (m Money) Decimal() decimal.Decimal {
	return m.Amount
}

// Round applies round-half-even at the currency precision
func (m Money) Round() Money {
	return New(m.Amount.RoundBank(m.Currency.Precision), m.Currency)
}

// Convert multiplies by an exchange rate into the target currency
func (m Money) Convert(rate decimal.Decimal, to Currency) Money {
	return New(m.Amount.Mul(rate), to)
}

func (m Money) String() string {
	return m.Amount.StringFixedBank(m.Currency.Precision) + " " + m.Currency.Code
}

// Sum adds all values, which must share currency. An empty slice sums to zero in currency.
func Sum(currency Currency, values ...Money) (Money, error) {
	total := Zero(currency)
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return Money{}, err
		}
	}
	return total, nil
}
