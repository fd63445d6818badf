package instrument

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

var (
	ErrInvalidDefinition = errors.New("invalid instrument definition")
	ErrNotFound          = errors.New("instrument not found")
)

// Params describes an instrument in domain types
type Params struct {
	ID          shared.InstrumentID
	Class       shared.InstrumentClass
	Base        *money.Currency
	Quote       money.Currency
	Settlement  *money.Currency
	Inverse     bool
	Multiplier  decimal.Decimal
	MakerFee    decimal.Decimal
	TakerFee    decimal.Decimal
	MarginInit  decimal.Decimal
	MarginMaint decimal.Decimal
}

// New validates params and builds a Spec. Multiplier defaults to 1 and
// settlement defaults to the cost currency.
func New(p Params) (*Spec, error) {
	if _, err := shared.ParseInstrumentID(string(p.ID)); err != nil {
		return nil, err
	}
	if p.Quote.IsZero() {
		return nil, fmt.Errorf("%w: %s has no quote currency", ErrInvalidDefinition, p.ID)
	}
	if p.Inverse && p.Base == nil {
		return nil, fmt.Errorf("%w: inverse instrument %s has no base currency", ErrInvalidDefinition, p.ID)
	}
	if p.Multiplier.IsZero() {
		p.Multiplier = decimal.NewFromInt(1)
	}
	if p.Multiplier.IsNegative() || p.MarginInit.IsNegative() || p.MarginMaint.IsNegative() {
		return nil, fmt.Errorf("%w: %s has negative multiplier or margin rate", ErrInvalidDefinition, p.ID)
	}
	if p.Class == "" {
		p.Class = shared.InstrumentClassSpot
	}

	s := &Spec{
		id:          p.ID,
		class:       p.Class,
		base:        p.Base,
		quote:       p.Quote,
		inverse:     p.Inverse,
		multiplier:  p.Multiplier,
		makerFee:    p.MakerFee,
		takerFee:    p.TakerFee,
		marginInit:  p.MarginInit,
		marginMaint: p.MarginMaint,
	}
	if p.Settlement != nil {
		s.settlement = *p.Settlement
	} else {
		s.settlement = s.CostCurrency()
	}
	return s, nil
}

// Definition is the configuration-file form of an instrument
type Definition struct {
	ID                 string `mapstructure:"id" json:"id" yaml:"id"`
	Class              string `mapstructure:"class" json:"class" yaml:"class"`
	BaseCurrency       string `mapstructure:"base_currency" json:"base_currency" yaml:"base_currency"`
	QuoteCurrency      string `mapstructure:"quote_currency" json:"quote_currency" yaml:"quote_currency"`
	SettlementCurrency string `mapstructure:"settlement_currency" json:"settlement_currency" yaml:"settlement_currency"`
	Inverse            bool   `mapstructure:"inverse" json:"inverse" yaml:"inverse"`
	Multiplier         string `mapstructure:"multiplier" json:"multiplier" yaml:"multiplier"`
	MakerFee           string `mapstructure:"maker_fee" json:"maker_fee" yaml:"maker_fee"`
	TakerFee           string `mapstructure:"taker_fee" json:"taker_fee" yaml:"taker_fee"`
	MarginInit         string `mapstructure:"margin_init" json:"margin_init" yaml:"margin_init"`
	MarginMaint        string `mapstructure:"margin_maint" json:"margin_maint" yaml:"margin_maint"`
}

// Build converts the definition into a Spec
func (d Definition) Build() (*Spec, error) {
	id, err := shared.ParseInstrumentID(d.ID)
	if err != nil {
		return nil, err
	}

	p := Params{ID: id, Class: shared.InstrumentClass(d.Class), Inverse: d.Inverse}

	if p.Quote, err = money.CurrencyFromString(d.QuoteCurrency); err != nil {
		return nil, fmt.Errorf("%w: %s quote: %w", ErrInvalidDefinition, d.ID, err)
	}
	if d.BaseCurrency != "" {
		base, err := money.CurrencyFromString(d.BaseCurrency)
		if err != nil {
			return nil, fmt.Errorf("%w: %s base: %w", ErrInvalidDefinition, d.ID, err)
		}
		p.Base = &base
	}
	if d.SettlementCurrency != "" {
		settlement, err := money.CurrencyFromString(d.SettlementCurrency)
		if err != nil {
			return nil, fmt.Errorf("%w: %s settlement: %w", ErrInvalidDefinition, d.ID, err)
		}
		p.Settlement = &settlement
	}

	fields := []struct {
		name  string
		raw   string
		value *decimal.Decimal
	}{
		{"multiplier", d.Multiplier, &p.Multiplier},
		{"maker_fee", d.MakerFee, &p.MakerFee},
		{"taker_fee", d.TakerFee, &p.TakerFee},
		{"margin_init", d.MarginInit, &p.MarginInit},
		{"margin_maint", d.MarginMaint, &p.MarginMaint},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s: %w", ErrInvalidDefinition, d.ID, f.name, err)
		}
		*f.value = v
	}

	return New(p)
}
