package margin

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/domain/money"
	"github.com/trading-account-engine/internal/domain/shared"
)

var (
	ErrInvalidLeverage = errors.New("invalid leverage")
	ErrUnknownModel    = errors.New("unknown margin model")
)

const (
	ModelStandard  = "standard"
	ModelLeveraged = "leveraged"
)

// Model computes initial and maintenance margin. Implementations are pure.
type Model interface {
	Name() string
	CalculateMarginInit(inst instrument.Instrument, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error)
	CalculateMarginMaint(inst instrument.Instrument, side shared.PositionSide, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error)
}

// NewModel selects a model by configured name
func NewModel(name string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case ModelStandard:
		return StandardModel{}, nil
	case ModelLeveraged, "":
		return LeveragedModel{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
}

// StandardModel reserves a fixed percentage of notional; leverage only bounds buying power upstream
type StandardModel struct{}

func (StandardModel) Name() string { return ModelStandard }

func (StandardModel) CalculateMarginInit(inst instrument.Instrument, quantity, price, _ decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	notional := inst.NotionalValue(quantity, price, useQuoteForInverse)
	return notional.Mul(inst.MarginInit()), nil
}

func (StandardModel) CalculateMarginMaint(inst instrument.Instrument, _ shared.PositionSide, quantity, price, _ decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	notional := inst.NotionalValue(quantity, price, useQuoteForInverse)
	return notional.Mul(inst.MarginMaint()), nil
}

// LeveragedModel divides notional by leverage before applying the margin rate
type LeveragedModel struct{}

func (LeveragedModel) Name() string { return ModelLeveraged }

func (LeveragedModel) CalculateMarginInit(inst instrument.Instrument, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	adjusted, err := leveragedNotional(inst, quantity, price, leverage, useQuoteForInverse)
	if err != nil {
		return money.Money{}, err
	}
	return adjusted.Mul(inst.MarginInit()), nil
}

func (LeveragedModel) CalculateMarginMaint(inst instrument.Instrument, _ shared.PositionSide, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	adjusted, err := leveragedNotional(inst, quantity, price, leverage, useQuoteForInverse)
	if err != nil {
		return money.Money{}, err
	}
	return adjusted.Mul(inst.MarginMaint()), nil
}

// LeveragedNotional is notional divided by leverage, shared with the account fee buffer
func LeveragedNotional(inst instrument.Instrument, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	return leveragedNotional(inst, quantity, price, leverage, useQuoteForInverse)
}

func leveragedNotional(inst instrument.Instrument, quantity, price, leverage decimal.Decimal, useQuoteForInverse bool) (money.Money, error) {
	if !leverage.IsPositive() {
		return money.Money{}, fmt.Errorf("%w: %s for %s", ErrInvalidLeverage, leverage, inst.ID())
	}
	notional := inst.NotionalValue(quantity, price, useQuoteForInverse)
	return money.New(notional.Amount.Div(leverage), notional.Currency), nil
}
