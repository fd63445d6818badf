package instrument

import (
	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

// Instrument exposes the static parameters the accounting engine needs
type Instrument interface {
	ID() shared.InstrumentID
	Class() shared.InstrumentClass

	// BaseCurrency returns false for instruments without a base leg (equities, betting)
	BaseCurrency() (money.Currency, bool)
	QuoteCurrency() money.Currency
	SettlementCurrency() money.Currency

	// CostCurrency is the base currency for inverse instruments, else the quote currency
	CostCurrency() money.Currency
	IsInverse() bool

	Multiplier() decimal.Decimal
	MakerFee() decimal.Decimal
	TakerFee() decimal.Decimal
	MarginInit() decimal.Decimal
	MarginMaint() decimal.Decimal

	// NotionalValue is always non-negative. It is in quote units unless the
	// instrument is inverse and useQuoteForInverse is false.
	NotionalValue(quantity, price decimal.Decimal, useQuoteForInverse bool) money.Money
}

// Spec is the concrete Instrument used by the processor and tests
type Spec struct {
	id          shared.InstrumentID
	class       shared.InstrumentClass
	base        *money.Currency
	quote       money.Currency
	settlement  money.Currency
	inverse     bool
	multiplier  decimal.Decimal
	makerFee    decimal.Decimal
	takerFee    decimal.Decimal
	marginInit  decimal.Decimal
	marginMaint decimal.Decimal
}

var _ Instrument = (*Spec)(nil)

func (s *Spec) ID() shared.InstrumentID       { return s.id }
func (s *Spec) Class() shared.InstrumentClass { return s.class }
func (s *Spec) QuoteCurrency() money.Currency { return s.quote }
func (s *Spec) IsInverse() bool               { return s.inverse }
func (s *Spec) Multiplier() decimal.Decimal   { return s.multiplier }
func (s *Spec) MakerFee() decimal.Decimal     { return s.makerFee }
func (s *Spec) TakerFee() decimal.Decimal     { return s.takerFee }
func (s *Spec) MarginInit() decimal.Decimal   { return s.marginInit }
func (s *Spec) MarginMaint() decimal.Decimal  { return s.marginMaint }

func (s *Spec) BaseCurrency() (money.Currency, bool) {
	if s.base == nil {
		return money.Currency{}, false
	}
	return *s.base, true
}

func (s *Spec) SettlementCurrency() money.Currency {
	return s.settlement
}

func (s *Spec) CostCurrency() money.Currency {
	if s.inverse && s.base != nil {
		return *s.base
	}
	return s.quote
}

func (s *Spec) NotionalValue(quantity, price decimal.Decimal, useQuoteForInverse bool) money.Money {
	if s.inverse && s.base != nil {
		if useQuoteForInverse {
			return money.New(quantity.Mul(s.multiplier).Abs(), s.quote)
		}
		if price.IsZero() {
			return money.Zero(*s.base)
		}
		return money.New(quantity.Mul(s.multiplier).Div(price).Abs(), *s.base)
	}
	return money.New(quantity.Mul(s.multiplier).Mul(price).Abs(), s.quote)
}
