package money

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidCurrency = errors.New("invalid currency")

// CurrencyType classifies a currency
type CurrencyType string

const (
	CurrencyTypeFiat   CurrencyType = "FIAT"
	CurrencyTypeCrypto CurrencyType = "CRYPTO"
)

// Currency is an immutable currency code with its decimal precision
type Currency struct {
	Code      string       `json:"code" bson:"code"`
	Precision int32        `json:"precision" bson:"precision"`
	Type      CurrencyType `json:"type" bson:"type"`
}

var (
	USD  = Currency{Code: "USD", Precision: 2, Type: CurrencyTypeFiat}
	EUR  = Currency{Code: "EUR", Precision: 2, Type: CurrencyTypeFiat}
	GBP  = Currency{Code: "GBP", Precision: 2, Type: CurrencyTypeFiat}
	JPY  = Currency{Code: "JPY", Precision: 0, Type: CurrencyTypeFiat}
	AUD  = Currency{Code: "AUD", Precision: 2, Type: CurrencyTypeFiat}
	CHF  = Currency{Code: "CHF", Precision: 2, Type: CurrencyTypeFiat}
	BTC  = Currency{Code: "BTC", Precision: 8, Type: CurrencyTypeCrypto}
	XBT  = Currency{Code: "XBT", Precision: 8, Type: CurrencyTypeCrypto}
	ETH  = Currency{Code: "ETH", Precision: 8, Type: CurrencyTypeCrypto}
	USDT = Currency{Code: "USDT", Precision: 8, Type: CurrencyTypeCrypto}
	ADA  = Currency{Code: "ADA", Precision: 6, Type: CurrencyTypeCrypto}
)

var registry = map[string]Currency{
	USD.Code:  USD,
	EUR.Code:  EUR,
	GBP.Code:  GBP,
	JPY.Code:  JPY,
	AUD.Code:  AUD,
	CHF.Code:  CHF,
	BTC.Code:  BTC,
	XBT.Code:  XBT,
	ETH.Code:  ETH,
	USDT.Code: USDT,
	ADA.Code:  ADA,
}

// CurrencyFromString looks up a registered currency by its code
func CurrencyFromString(code string) (Currency, error) {
	c, ok := registry[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	return c, nil
}

// IsZero reports whether c is the zero Currency
func (c Currency) IsZero() bool {
	return c.Code == ""
}

func (c Currency) String() string {
	return c.Code
}
